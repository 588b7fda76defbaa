package proposal

import (
	"testing"

	"github.com/btcsuite/btcd/wire"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/hostkey"
)

func testCommittee(t *testing.T, n int) []anchoring.AnchoringKeys {
	t.Helper()
	keys := make([]anchoring.AnchoringKeys, n)
	for i := range keys {
		btcPriv, err := btc.GeneratePrivateKey()
		if err != nil {
			t.Fatalf("btc.GeneratePrivateKey() error = %v", err)
		}
		hostPriv, err := hostkey.GenerateKey()
		if err != nil {
			t.Fatalf("hostkey.GenerateKey() error = %v", err)
		}
		keys[i] = anchoring.AnchoringKeys{BitcoinKey: btcPriv.PublicKey(), ServiceKey: hostPriv.PublicKey()}
	}
	return keys
}

func fundingTxFor(t *testing.T, cfg *anchoring.Config, value int64) *btc.Transaction {
	t.Helper()
	redeem, err := cfg.RedeemScript()
	if err != nil {
		t.Fatalf("RedeemScript() error = %v", err)
	}
	net, err := cfg.NetParams()
	if err != nil {
		t.Fatalf("NetParams() error = %v", err)
	}
	script, err := btc.AnchoringOutputScript(redeem, net)
	if err != nil {
		t.Fatalf("AnchoringOutputScript() error = %v", err)
	}
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, script))
	return btc.NewTransaction(tx)
}

func noBlocks(uint64) ([32]byte, bool) { return [32]byte{}, false }

func blockAt(height uint64, hash [32]byte) func(uint64) ([32]byte, bool) {
	return func(h uint64) ([32]byte, bool) {
		if h == height {
			return hash, true
		}
		return [32]byte{}, false
	}
}

func TestBuild_NoneBeforeBlockObserved(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}

	p, err := Build(7, cfg, nil, nil, nil, false, noBlocks)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.State != StateNone {
		t.Fatalf("State = %v, want StateNone", p.State)
	}
	if p.AnchoringHeight != 5 {
		t.Errorf("AnchoringHeight = %d, want 5", p.AnchoringHeight)
	}
}

func TestBuild_NoInitialFunds(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	var hash [32]byte
	hash[0] = 0x01

	p, err := Build(5, cfg, nil, nil, nil, false, blockAt(5, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.State != StateNoInitialFunds {
		t.Fatalf("State = %v, want StateNoInitialFunds", p.State)
	}
}

func TestBuild_InsufficientFunds(t *testing.T) {
	// N=1, interval 5: a single-validator committee with a funding
	// transaction too small to cover the fee of the transaction it would
	// need to sign (spec §8 scenario 3).
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 1),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	funding := fundingTxFor(t, cfg, 200)
	var hash [32]byte
	hash[0] = 0x02

	p, err := Build(5, cfg, nil, nil, funding, false, blockAt(5, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.State != StateInsufficientFunds {
		t.Fatalf("State = %v, want StateInsufficientFunds", p.State)
	}
	if p.Balance != 200 {
		t.Errorf("Balance = %d, want 200", p.Balance)
	}
	if p.TotalFee <= p.Balance {
		t.Errorf("TotalFee = %d, want > balance (%d) for InsufficientFunds", p.TotalFee, p.Balance)
	}
}

func TestBuild_AvailableFromFunding(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	funding := fundingTxFor(t, cfg, 1_000_000)
	var hash [32]byte
	hash[0] = 0x03

	p, err := Build(5, cfg, nil, nil, funding, false, blockAt(5, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.State != StateAvailable {
		t.Fatalf("State = %v, want StateAvailable", p.State)
	}
	if len(p.Tx.TxIn) != 1 {
		t.Fatalf("TxIn count = %d, want 1", len(p.Tx.TxIn))
	}
	if len(p.Tx.TxOut) != 2 {
		t.Fatalf("TxOut count = %d, want 2", len(p.Tx.TxOut))
	}
	if len(p.Sighashes) != 1 {
		t.Fatalf("Sighashes count = %d, want 1", len(p.Sighashes))
	}
	wantOut0 := int64(1_000_000) - p.TotalFee
	if p.Tx.TxOut[0].Value != wantOut0 {
		t.Errorf("TxOut[0].Value = %d, want %d", p.Tx.TxOut[0].Value, wantOut0)
	}
	if p.Tx.TxOut[1].Value != 0 {
		t.Errorf("TxOut[1].Value (OP_RETURN) = %d, want 0", p.Tx.TxOut[1].Value)
	}
	payload, err := btc.ExtractPayload(p.Tx.TxOut[1].PkScript)
	if err != nil {
		t.Fatalf("ExtractPayload() error = %v", err)
	}
	if payload.BlockHeight != 5 {
		t.Errorf("payload.BlockHeight = %d, want 5", payload.BlockHeight)
	}
	if payload.BlockHash != hash {
		t.Errorf("payload.BlockHash = %x, want %x", payload.BlockHash, hash)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	funding := fundingTxFor(t, cfg, 1_000_000)
	var hash [32]byte
	hash[0] = 0x04

	p1, err := Build(5, cfg, nil, nil, funding, false, blockAt(5, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	p2, err := Build(5, cfg, nil, nil, funding, false, blockAt(5, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p1.Tx.TxHash() != p2.Tx.TxHash() {
		t.Errorf("two builds over identical state produced different transactions")
	}
	for i := range p1.Sighashes {
		if string(p1.Sighashes[i]) != string(p2.Sighashes[i]) {
			t.Errorf("sighash[%d] differs across identical builds", i)
		}
	}
}

func TestBuild_ChainContinuation(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	redeem, err := cfg.RedeemScript()
	if err != nil {
		t.Fatalf("RedeemScript() error = %v", err)
	}
	net, _ := cfg.NetParams()
	script, err := btc.AnchoringOutputScript(redeem, net)
	if err != nil {
		t.Fatalf("AnchoringOutputScript() error = %v", err)
	}
	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	prevTx.AddTxOut(wire.NewTxOut(500_000, script))
	prev := btc.NewTransaction(prevTx)

	var hash [32]byte
	hash[0] = 0x05
	p, err := Build(10, cfg, nil, prev, nil, false, blockAt(10, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.State != StateAvailable {
		t.Fatalf("State = %v, want StateAvailable", p.State)
	}
	wantTxID := prev.ID()
	if p.Tx.TxIn[0].PreviousOutPoint.Hash != wantTxID {
		t.Errorf("input 0 does not spend the previous anchoring transaction")
	}
}

func TestBuild_CommitteeTransitionPromotion(t *testing.T) {
	actual := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	following := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 5),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}

	followingRedeem, err := following.RedeemScript()
	if err != nil {
		t.Fatalf("RedeemScript() error = %v", err)
	}
	net, _ := following.NetParams()
	followingScript, err := btc.AnchoringOutputScript(followingRedeem, net)
	if err != nil {
		t.Fatalf("AnchoringOutputScript() error = %v", err)
	}

	// prev already pays the following committee's address: the transition
	// transaction has landed, so the effective committee for the next
	// proposal is "following", pending promotion.
	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	prevTx.AddTxOut(wire.NewTxOut(500_000, followingScript))
	prev := btc.NewTransaction(prevTx)

	var hash [32]byte
	hash[0] = 0x06
	p, err := Build(10, actual, following, prev, nil, false, blockAt(10, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.State != StateAvailable {
		t.Fatalf("State = %v, want StateAvailable", p.State)
	}
	if !p.NeedsPromotion {
		t.Errorf("NeedsPromotion = false, want true once prev pays the following committee")
	}
	if len(p.EffectiveConfig.AnchoringKeys) != 5 {
		t.Errorf("EffectiveConfig committee size = %d, want 5 (following)", len(p.EffectiveConfig.AnchoringKeys))
	}
}

func TestBuild_FundingAttachedAlongsideChain(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	redeem, err := cfg.RedeemScript()
	if err != nil {
		t.Fatalf("RedeemScript() error = %v", err)
	}
	net, _ := cfg.NetParams()
	script, err := btc.AnchoringOutputScript(redeem, net)
	if err != nil {
		t.Fatalf("AnchoringOutputScript() error = %v", err)
	}

	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	prevTx.AddTxOut(wire.NewTxOut(100, script)) // too small alone
	prev := btc.NewTransaction(prevTx)

	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 1}, nil, nil))
	fundingTx.AddTxOut(wire.NewTxOut(1_000_000, script))
	funding := btc.NewTransaction(fundingTx)

	var hash [32]byte
	hash[0] = 0x07
	p, err := Build(10, cfg, nil, prev, funding, false, blockAt(10, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.State != StateAvailable {
		t.Fatalf("State = %v, want StateAvailable (prev + funding combined)", p.State)
	}
	if len(p.Tx.TxIn) != 2 {
		t.Fatalf("TxIn count = %d, want 2 (prev + funding)", len(p.Tx.TxIn))
	}
}

func TestBuild_ConsumedFundingNotReattached(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	redeem, err := cfg.RedeemScript()
	if err != nil {
		t.Fatalf("RedeemScript() error = %v", err)
	}
	net, _ := cfg.NetParams()
	script, err := btc.AnchoringOutputScript(redeem, net)
	if err != nil {
		t.Fatalf("AnchoringOutputScript() error = %v", err)
	}

	prevTx := wire.NewMsgTx(2)
	prevTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0}, nil, nil))
	prevTx.AddTxOut(wire.NewTxOut(1_000_000, script))
	prev := btc.NewTransaction(prevTx)

	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 1}, nil, nil))
	fundingTx.AddTxOut(wire.NewTxOut(1_000_000, script))
	funding := btc.NewTransaction(fundingTx)

	var hash [32]byte
	hash[0] = 0x08
	p, err := Build(10, cfg, nil, prev, funding, true /* fundingSpent */, blockAt(10, hash))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(p.Tx.TxIn) != 1 {
		t.Fatalf("TxIn count = %d, want 1 (spent funding must not be reattached)", len(p.Tx.TxIn))
	}
}
