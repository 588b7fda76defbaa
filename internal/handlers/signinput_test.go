package handlers

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/proposal"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
	"github.com/chainkit/btcanchoring/internal/testhelpers"
)

func openTestFork(t *testing.T, store *storage.Store) (*schema.Writer, *storage.Fork) {
	t.Helper()
	fork, err := store.Fork()
	if err != nil {
		t.Fatalf("Fork() error = %v", err)
	}
	t.Cleanup(func() { fork.Rollback() })
	return schema.NewWriter(fork), fork
}

// fundedConfig builds a valid committee config with a funding transaction
// paying its P2WSH address, suitable as actual_config for genesis-style
// test setup.
func fundedConfig(t *testing.T, committee *testhelpers.Committee) *anchoring.Config {
	t.Helper()
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      committee.AnchoringKeys,
		AnchoringInterval:  10,
		TransactionFeeRate: 2,
	}
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

	fundingSource := chainhash.Hash{0xaa}
	funding := wire.NewMsgTx(2)
	funding.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&fundingSource, 0), nil, nil))
	funding.AddTxOut(wire.NewTxOut(1_000_000, script))
	cfg.FundingTransaction = funding
	return cfg
}

func initService(t *testing.T, store *storage.Store, cfg *anchoring.Config) {
	t.Helper()
	fork, err := store.Fork()
	if err != nil {
		t.Fatalf("Fork() error = %v", err)
	}
	w := schema.NewWriter(fork)
	if err := w.SetActualConfig(cfg); err != nil {
		t.Fatalf("SetActualConfig() error = %v", err)
	}
	if cfg.FundingTransaction != nil {
		if err := w.SetUnspentFundingTransaction(btc.NewTransaction(cfg.FundingTransaction)); err != nil {
			t.Fatalf("SetUnspentFundingTransaction() error = %v", err)
		}
	}
	if err := fork.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func markAnchored(t *testing.T, store *storage.Store, height uint64, hash [32]byte) {
	t.Helper()
	fork, err := store.Fork()
	if err != nil {
		t.Fatalf("Fork() error = %v", err)
	}
	w := schema.NewWriter(fork)
	if err := w.AppendAnchoredBlock(height, hash); err != nil {
		t.Fatalf("AppendAnchoredBlock() error = %v", err)
	}
	if err := fork.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

// TestSignInput_QuorumFinalizes exercises the genesis proposal: one input
// spending the declared funding UTXO, signed by 3 of 4 committee members
// (quorum = floor(2*4/3)+1 = 3), which must finalize the transaction and
// consume the funding UTXO on the third signature.
func TestSignInput_QuorumFinalizes(t *testing.T) {
	store := testhelpers.OpenStore(t)
	committee := testhelpers.NewCommittee(t, 4)

	cfg := fundedConfig(t, committee)
	initService(t, store, cfg)
	markAnchored(t, store, 10, [32]byte{1, 2, 3})

	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	prop, err := proposal.BuildFromSnapshot(schema.New(snap), 15)
	snap.Close()
	if err != nil {
		t.Fatalf("BuildFromSnapshot() error = %v", err)
	}
	if prop.State != proposal.StateAvailable {
		t.Fatalf("proposal state = %v, want StateAvailable", prop.State)
	}
	if len(prop.Tx.TxIn) != 1 {
		t.Fatalf("genesis proposal has %d inputs, want 1", len(prop.Tx.TxIn))
	}

	txBytes, err := codec.EncodeTransaction(prop.Tx)
	if err != nil {
		t.Fatalf("EncodeTransaction() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		sig, err := committee.BitcoinKeys[i].Sign(prop.Sighashes[0])
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		w, fork := openTestFork(t, store)
		err = SignInput(w, 15, committee.ServiceKeys[i].PublicKey(), codec.SignInputBody{
			TransactionBytes: txBytes,
			Input:            0,
			InputSignature:   sig,
		})
		if err != nil {
			t.Fatalf("SignInput() validator %d error = %v", i, err)
		}
		if err := fork.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}

	snap2, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	defer snap2.Close()
	sch := schema.New(snap2)
	n, err := sch.AnchoringTxsChainLen()
	if err != nil {
		t.Fatalf("AnchoringTxsChainLen() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("chain length = %d, want 1 after quorum reached", n)
	}
	spent, err := sch.IsFundingTransactionSpent(btc.NewTransaction(cfg.FundingTransaction).ID())
	if err != nil {
		t.Fatalf("IsFundingTransactionSpent() error = %v", err)
	}
	if !spent {
		t.Fatal("funding transaction was not marked spent after finalization")
	}
}

func TestSignInput_RejectsNonCommitteeSender(t *testing.T) {
	store := testhelpers.OpenStore(t)
	committee := testhelpers.NewCommittee(t, 4)
	outsider := testhelpers.NewCommittee(t, 1)

	cfg := fundedConfig(t, committee)
	initService(t, store, cfg)
	markAnchored(t, store, 10, [32]byte{9})

	w, _ := openTestFork(t, store)
	err := SignInput(w, 15, outsider.ServiceKeys[0].PublicKey(), codec.SignInputBody{
		TransactionBytes: []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00},
		Input:            0,
		InputSignature:   nil,
	})
	if !errors.Is(err, config.ErrUnauthorizedCaller) {
		t.Fatalf("SignInput() error = %v, want config.ErrUnauthorizedCaller", err)
	}
}

func TestSignInput_RejectsDoubleSign(t *testing.T) {
	store := testhelpers.OpenStore(t)
	committee := testhelpers.NewCommittee(t, 4)

	cfg := fundedConfig(t, committee)
	initService(t, store, cfg)
	markAnchored(t, store, 10, [32]byte{7})

	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	prop, err := proposal.BuildFromSnapshot(schema.New(snap), 15)
	snap.Close()
	if err != nil {
		t.Fatalf("BuildFromSnapshot() error = %v", err)
	}
	txBytes, err := codec.EncodeTransaction(prop.Tx)
	if err != nil {
		t.Fatalf("EncodeTransaction() error = %v", err)
	}
	sig, err := committee.BitcoinKeys[0].Sign(prop.Sighashes[0])
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	body := codec.SignInputBody{TransactionBytes: txBytes, Input: 0, InputSignature: sig}

	w1, fork1 := openTestFork(t, store)
	if err := SignInput(w1, 15, committee.ServiceKeys[0].PublicKey(), body); err != nil {
		t.Fatalf("first SignInput() error = %v", err)
	}
	if err := fork1.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	w2, _ := openTestFork(t, store)
	err = SignInput(w2, 15, committee.ServiceKeys[0].PublicKey(), body)
	if !errors.Is(err, config.ErrAlreadySigned) {
		t.Fatalf("second SignInput() error = %v, want config.ErrAlreadySigned", err)
	}
}
