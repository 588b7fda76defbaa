package schema

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

func TestEncodeDecodeConfigRoundtrip(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 4),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}

	raw, err := EncodeConfig(cfg)
	if err != nil {
		t.Fatalf("EncodeConfig() error = %v", err)
	}

	decoded, err := DecodeConfig(raw)
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if decoded.Network != cfg.Network {
		t.Errorf("Network = %v, want %v", decoded.Network, cfg.Network)
	}
	if decoded.AnchoringInterval != cfg.AnchoringInterval {
		t.Errorf("AnchoringInterval = %d, want %d", decoded.AnchoringInterval, cfg.AnchoringInterval)
	}
	if decoded.TransactionFeeRate != cfg.TransactionFeeRate {
		t.Errorf("TransactionFeeRate = %d, want %d", decoded.TransactionFeeRate, cfg.TransactionFeeRate)
	}
	if len(decoded.AnchoringKeys) != len(cfg.AnchoringKeys) {
		t.Fatalf("AnchoringKeys length = %d, want %d", len(decoded.AnchoringKeys), len(cfg.AnchoringKeys))
	}
	for i := range cfg.AnchoringKeys {
		if decoded.AnchoringKeys[i] != cfg.AnchoringKeys[i] {
			t.Errorf("AnchoringKeys[%d] mismatch after roundtrip", i)
		}
	}
}

func TestEncodeDecodeConfig_WithFundingTransaction(t *testing.T) {
	cfg := &anchoring.Config{
		Network:            btc.Testnet,
		AnchoringKeys:      testCommittee(t, 3),
		AnchoringInterval:  5,
		TransactionFeeRate: 10,
	}
	redeem, err := cfg.RedeemScript()
	if err != nil {
		t.Fatalf("RedeemScript() error = %v", err)
	}
	netParams, _ := cfg.NetParams()
	script, err := btc.AnchoringOutputScript(redeem, netParams)
	if err != nil {
		t.Fatalf("AnchoringOutputScript() error = %v", err)
	}
	fundingTx := wire.NewMsgTx(2)
	fundingTx.AddTxOut(wire.NewTxOut(50000, script))
	cfg.FundingTransaction = fundingTx

	raw, err := EncodeConfig(cfg)
	if err != nil {
		t.Fatalf("EncodeConfig() error = %v", err)
	}
	decoded, err := DecodeConfig(raw)
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if decoded.FundingTransaction == nil {
		t.Fatalf("FundingTransaction missing after decode")
	}
	if decoded.FundingTransaction.TxHash() != fundingTx.TxHash() {
		t.Errorf("FundingTransaction txid mismatch after roundtrip")
	}
}
