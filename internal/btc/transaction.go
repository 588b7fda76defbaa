package btc

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Transaction wraps a consensus Bitcoin transaction with the anchoring
// service's view of it: input 0 continuing the previous anchoring
// transaction (or the funding transaction, for the very first one),
// optionally followed by an input spending a newly declared funding
// transaction, an output 0 paying the current committee's P2WSH address, and an
// output 1 carrying the OP_RETURN payload.
type Transaction struct {
	MsgTx *wire.MsgTx
}

// NewTransaction wraps an existing consensus transaction.
func NewTransaction(tx *wire.MsgTx) *Transaction {
	return &Transaction{MsgTx: tx}
}

// ID returns the transaction's txid (double-SHA256 of the non-witness
// serialization).
func (t *Transaction) ID() chainhash.Hash {
	return t.MsgTx.TxHash()
}

// WitnessID returns the transaction's wtxid (double-SHA256 including
// witness data). Relay broadcast and confirmation tracking use ID, not
// this hash.
func (t *Transaction) WitnessID() chainhash.Hash {
	return t.MsgTx.WitnessHash()
}

// PrevTxID returns the txid spent by input 0, i.e. the previous anchoring
// transaction (or the funding transaction, for the chain's first link).
func (t *Transaction) PrevTxID() (chainhash.Hash, error) {
	if len(t.MsgTx.TxIn) == 0 {
		return chainhash.Hash{}, fmt.Errorf("transaction has no inputs")
	}
	return t.MsgTx.TxIn[0].PreviousOutPoint.Hash, nil
}

// Payload decodes the OP_RETURN payload carried by this transaction's
// outputs. Anchoring transactions carry exactly one data-only output.
func (t *Transaction) Payload() (Payload, error) {
	for _, out := range t.MsgTx.TxOut {
		if len(out.PkScript) > 0 && out.PkScript[0] == 0x6a { // OP_RETURN
			return ExtractPayload(out.PkScript)
		}
	}
	return Payload{}, fmt.Errorf("%w: no OP_RETURN output found", errDecode)
}

// AnchoringOutputValue returns the value of output 0, the P2WSH output
// funding the next link in the chain.
func (t *Transaction) AnchoringOutputValue() (int64, error) {
	if len(t.MsgTx.TxOut) == 0 {
		return 0, fmt.Errorf("transaction has no outputs")
	}
	return t.MsgTx.TxOut[0].Value, nil
}

// FindFundingOutput locates the first output of tx paying pkScript, for use
// when a configured or ad-hoc funding transaction is examined to see how
// much it contributes to the anchoring address.
func FindFundingOutput(tx *wire.MsgTx, pkScript []byte) (index int, value int64, found bool) {
	for i, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, pkScript) {
			return i, out.Value, true
		}
	}
	return 0, 0, false
}

// InputSignature is one validator's signature over one input of a
// proposal, keyed by validator index for deterministic witness assembly.
type InputSignature struct {
	ValidatorIndex int
	Signature      []byte // DER-encoded, without the trailing SigHashType byte
}

// AssembleWitness builds the witness stack for input i of a P2WSH
// quorum-of-N multisig redeem script from the signatures gathered so far.
// It takes the first Quorum signatures in ascending validator-index order
// (spec §9 "Validator-index ordering") and errors if fewer than Quorum are
// available. OP_CHECKMULTISIG's historical off-by-one bug requires a leading
// dummy empty element.
func AssembleWitness(redeem *RedeemScript, sigs []InputSignature) (wire.TxWitness, error) {
	if len(sigs) < redeem.Quorum {
		return nil, fmt.Errorf("need %d signatures to finalize input, have %d", redeem.Quorum, len(sigs))
	}

	ordered := make([]InputSignature, len(sigs))
	copy(ordered, sigs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ValidatorIndex < ordered[j].ValidatorIndex
	})

	witness := make(wire.TxWitness, 0, redeem.Quorum+2)
	witness = append(witness, nil) // CHECKMULTISIG off-by-one dummy
	for _, s := range ordered[:redeem.Quorum] {
		sigWithType := append(append([]byte{}, s.Signature...), byte(txscript.SigHashAll))
		witness = append(witness, sigWithType)
	}
	witness = append(witness, redeem.Script)
	return witness, nil
}
