package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// PrevOutput is the value and redeem-script-derived scriptPubKey of an input
// being spent, needed to compute its witness sighash (BIP-143).
type PrevOutput struct {
	Value    int64
	PkScript []byte
}

// WitnessSigHash computes the BIP-143 witness sighash for input index i of
// tx, spending redeem under SigHashAll. Every validator computes this
// independently from the same deterministically-built proposal and must
// arrive at an identical 32-byte digest (spec §4.3 "Determinism").
func WitnessSigHash(tx *wire.MsgTx, i int, prevOuts []PrevOutput, redeem *RedeemScript) ([]byte, error) {
	if i < 0 || i >= len(tx.TxIn) {
		return nil, fmt.Errorf("input index %d out of range (tx has %d inputs)", i, len(tx.TxIn))
	}
	if len(prevOuts) != len(tx.TxIn) {
		return nil, fmt.Errorf("need one prevOutput per input: got %d outputs for %d inputs", len(prevOuts), len(tx.TxIn))
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, in := range tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, &wire.TxOut{
			Value:    prevOuts[idx].Value,
			PkScript: prevOuts[idx].PkScript,
		})
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	hash, err := txscript.CalcWitnessSigHash(redeem.Script, sigHashes, txscript.SigHashAll, tx, i, prevOuts[i].Value)
	if err != nil {
		return nil, fmt.Errorf("compute witness sighash for input %d: %w", i, err)
	}
	return hash, nil
}
