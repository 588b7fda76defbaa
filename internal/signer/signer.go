// Package signer implements the per-validator signing step of spec §4.4:
// given a validator's Bitcoin private key and the current proposal, it
// produces the SignInput message bodies for every input this validator has
// not yet signed. It performs no I/O and holds no state; idempotence
// across retries falls out of recomputing the same signatures for the same
// deterministic proposal.
package signer

import (
	"fmt"

	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/proposal"
)

// MissingInputs signs every input of prop not present in alreadySigned
// (the set of input indices this validator already has an on-chain
// signature for) and returns one SignInputBody per newly-signed input.
func MissingInputs(prop *proposal.Proposal, bitcoinKey *btc.PrivateKey, alreadySigned map[uint32]bool) ([]codec.SignInputBody, error) {
	if prop.State != proposal.StateAvailable {
		return nil, fmt.Errorf("signer: proposal is not available to sign (state=%d)", prop.State)
	}

	txBytes, err := codec.EncodeTransaction(prop.Tx)
	if err != nil {
		return nil, fmt.Errorf("signer: encode proposal transaction: %w", err)
	}

	var bodies []codec.SignInputBody
	for i, sighash := range prop.Sighashes {
		input := uint32(i)
		if alreadySigned[input] {
			continue
		}

		sig, err := bitcoinKey.Sign(sighash)
		if err != nil {
			return nil, fmt.Errorf("signer: sign input %d: %w", input, err)
		}

		bodies = append(bodies, codec.SignInputBody{
			TransactionBytes: txBytes,
			Input:            input,
			InputSignature:   sig,
		})
	}

	return bodies, nil
}
