// Package handlers implements the on-chain transaction executors of spec
// §4.5 (SignInput, AddFunds) and the supervisor-only config verify/apply
// pair of spec §4.8. All of it runs inside the single-writer, single-threaded
// on-chain execution regime of spec §5: callers supply an already
// signature-verified sender and a *schema.Writer bound to the current
// fork — no I/O happens here.
package handlers

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/hostkey"
	"github.com/chainkit/btcanchoring/internal/proposal"
	"github.com/chainkit/btcanchoring/internal/schema"
)

// SignInput executes a SignInput message at host-chain height h (spec
// §4.5). sender must already have been authenticated by the host-chain
// runtime's own transaction verification (spec §6 "TransactionContext with
// a verifiable caller") — this function only checks committee membership.
func SignInput(w *schema.Writer, h uint64, sender hostkey.PublicKey, body codec.SignInputBody) error {
	actualCfg, err := w.ActualConfig()
	if err != nil {
		return err
	}
	if actualCfg == nil {
		return config.ErrNotInitialized
	}

	validatorIndex, bitcoinKey, found := anchoring.FindBitcoinKey(actualCfg.AnchoringKeys, sender)
	if !found {
		return fmt.Errorf("%w: %s is not a current committee member", config.ErrUnauthorizedCaller, sender)
	}

	msgTx, err := codec.DecodeTransaction(body.TransactionBytes)
	if err != nil {
		return fmt.Errorf("%w: sign_input transaction: %s", config.ErrMalformedArguments, err)
	}

	prop, err := proposal.BuildFromSnapshot(w.Schema, h)
	if err != nil {
		return err
	}
	if prop.State != proposal.StateAvailable {
		return fmt.Errorf("%w: no proposal is currently available to sign", config.ErrUnexpectedProposal)
	}

	propBytes, err := codec.EncodeTransaction(prop.Tx)
	if err != nil {
		return err
	}
	if !bytes.Equal(propBytes, body.TransactionBytes) {
		return fmt.Errorf("%w: transaction does not match the current proposal", config.ErrUnexpectedProposal)
	}

	if int(body.Input) >= len(prop.Sighashes) {
		return fmt.Errorf("%w: input %d out of range (proposal has %d inputs)", config.ErrMalformedArguments, body.Input, len(prop.Sighashes))
	}

	ok, err := btc.VerifySignature(bitcoinKey, prop.Sighashes[body.Input], body.InputSignature)
	if err != nil {
		return fmt.Errorf("%w: %s", config.ErrInvalidSignature, err)
	}
	if !ok {
		return fmt.Errorf("%w: signature for input %d does not verify under validator %d's bitcoin key", config.ErrInvalidSignature, body.Input, validatorIndex)
	}

	proposalTxID := btc.NewTransaction(msgTx).ID()

	already, err := w.HasSignature(proposalTxID, body.Input, validatorIndex)
	if err != nil {
		return err
	}
	if already {
		return fmt.Errorf("%w: validator %d already signed input %d", config.ErrAlreadySigned, validatorIndex, body.Input)
	}

	if err := w.InsertSignature(proposalTxID, body.Input, validatorIndex, body.InputSignature); err != nil {
		if errors.Is(err, config.ErrAlreadySigned) {
			return err
		}
		return err
	}

	return tryFinalize(w, prop, proposalTxID)
}

// tryFinalize checks whether every input of the in-flight proposal has
// reached byzantine quorum and, if so, assembles and appends the finalized
// transaction (spec §4.5 "After insertion, if every input has >= quorum
// signatures...").
func tryFinalize(w *schema.Writer, prop *proposal.Proposal, txID chainhash.Hash) error {
	quorum := prop.Redeem.Quorum

	allSigs := make([][]btc.InputSignature, len(prop.Tx.TxIn))
	for i := range prop.Tx.TxIn {
		sigs, err := w.InputSignatures(txID, uint32(i))
		if err != nil {
			return err
		}
		if len(sigs) < quorum {
			return nil // not yet finalized; wait for more signatures
		}
		allSigs[i] = sigs
	}

	finalTx := prop.Tx.Copy()
	for i := range finalTx.TxIn {
		witness, err := btc.AssembleWitness(prop.Redeem, allSigs[i])
		if err != nil {
			return err
		}
		finalTx.TxIn[i].Witness = witness
	}

	if prop.NeedsPromotion {
		followingCfg, err := w.FollowingConfig()
		if err != nil {
			return err
		}
		if followingCfg != nil {
			if err := w.SetActualConfig(followingCfg); err != nil {
				return err
			}
			if err := w.ClearFollowingConfig(); err != nil {
				return err
			}
		}
	}

	unspent, err := w.UnspentFundingTransaction()
	if err != nil {
		return err
	}

	finalized := btc.NewTransaction(finalTx)
	if err := w.AppendAnchoringTx(finalized); err != nil {
		return err
	}

	// Any input spending the currently-declared funding UTXO (whether it
	// is the chain's very first prev-input or an attached top-up input)
	// moves that UTXO from unspent to spent (spec §3 "spent_funding_transactions").
	if unspent != nil {
		fundingID := unspent.ID()
		for _, in := range finalTx.TxIn {
			if in.PreviousOutPoint.Hash == fundingID {
				if err := w.ConsumeFundingTransaction(fundingID); err != nil {
					return err
				}
				break
			}
		}
	}

	finalTxID := finalized.ID()
	msgHash := finalTxID.String()
	for i := range finalTx.TxIn {
		for _, sig := range allSigs[i] {
			if err := w.SetValidatorLECT(sig.ValidatorIndex, msgHash, finalTxID.String()); err != nil {
				return err
			}
		}
	}

	return nil
}
