package btc

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestWitnessSigHash_DeterministicAndCorrectLength(t *testing.T) {
	keys := testCommittee(t, 4)
	redeem, err := BuildRedeemScript(keys, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("BuildRedeemScript() error = %v", err)
	}

	pkScript, err := AnchoringOutputScript(redeem, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("AnchoringOutputScript() error = %v", err)
	}

	tx := buildSampleTx(t, redeem, &chaincfg.TestNet3Params)
	prevOuts := []PrevOutput{{Value: 60000, PkScript: pkScript}}

	h1, err := WitnessSigHash(tx, 0, prevOuts, redeem)
	if err != nil {
		t.Fatalf("WitnessSigHash() error = %v", err)
	}
	if len(h1) != 32 {
		t.Fatalf("WitnessSigHash() length = %d, want 32", len(h1))
	}

	h2, err := WitnessSigHash(tx, 0, prevOuts, redeem)
	if err != nil {
		t.Fatalf("WitnessSigHash() error = %v", err)
	}
	if !bytes.Equal(h1, h2) {
		t.Errorf("WitnessSigHash() is not deterministic for identical input")
	}
}

func TestWitnessSigHash_InputIndexOutOfRange(t *testing.T) {
	keys := testCommittee(t, 3)
	redeem, err := BuildRedeemScript(keys, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("BuildRedeemScript() error = %v", err)
	}
	tx := buildSampleTx(t, redeem, &chaincfg.MainNetParams)

	if _, err := WitnessSigHash(tx, 5, []PrevOutput{{Value: 1, PkScript: nil}}, redeem); err == nil {
		t.Errorf("WitnessSigHash() with out-of-range index: expected error, got nil")
	}
}

func TestWitnessSigHash_MismatchedPrevOutCount(t *testing.T) {
	keys := testCommittee(t, 3)
	redeem, err := BuildRedeemScript(keys, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("BuildRedeemScript() error = %v", err)
	}
	tx := buildSampleTx(t, redeem, &chaincfg.MainNetParams)

	if _, err := WitnessSigHash(tx, 0, nil, redeem); err == nil {
		t.Errorf("WitnessSigHash() with no prevOuts: expected error, got nil")
	}
}
