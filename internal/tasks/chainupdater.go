// Package tasks implements the two off-chain periodic tasks of spec §4.6
// and §4.7: ChainUpdater (per-validator signing) and BitcoinSync (relay
// synchronization). Both run on independent timers on each validator's
// host process (spec §5 "Off-chain tasks"), observe a single frozen
// snapshot per call, and are safe to run concurrently with each other and
// with on-chain execution.
package tasks

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/hostkey"
	"github.com/chainkit/btcanchoring/internal/proposal"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/signer"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// PrivateAPIClient submits signed message envelopes to the host chain's
// private API (spec §6 "sign_input(SignInput) -> tx_hash"). Implemented
// over HTTP by cmd/anchorupdater; a fake implementation backs the task's
// own tests.
type PrivateAPIClient interface {
	SignInput(ctx context.Context, env *codec.Envelope) (chainhash.Hash, error)
}

// ChainUpdater is the single-shot process() task of spec §4.6, invoked on
// a timer by each validator.
type ChainUpdater struct {
	Store      *storage.Store
	Client     PrivateAPIClient
	ServiceKey *hostkey.PrivateKey
	BitcoinKey *btc.PrivateKey
}

// Process fetches the current proposal at height h, signs every input this
// validator has not yet signed, and submits one SignInput message per
// input (spec §4.6 steps 1-3). It returns the operational signals
// NoInitialFunds/InsufficientFunds as typed errors rather than retrying
// internally (spec §7).
func (u *ChainUpdater) Process(ctx context.Context, h uint64) error {
	snap, err := u.Store.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Close()
	sch := schema.New(snap)

	prop, err := proposal.BuildFromSnapshot(sch, h)
	if err != nil {
		return err
	}

	switch prop.State {
	case proposal.StateNone:
		return nil
	case proposal.StateNoInitialFunds:
		return config.ErrNoInitialFunds
	case proposal.StateInsufficientFunds:
		return &config.InsufficientFundsError{Balance: prop.Balance, TotalFee: prop.TotalFee}
	}

	myServiceKey := u.ServiceKey.PublicKey()
	myIndex := anchoring.ValidatorIndex(prop.EffectiveConfig.AnchoringKeys, myServiceKey)
	if myIndex < 0 {
		// Not a member of the committee this proposal is built under;
		// nothing for this validator to sign.
		return nil
	}

	txID := btc.NewTransaction(prop.Tx).ID()
	alreadySigned := make(map[uint32]bool, len(prop.Tx.TxIn))
	for i := range prop.Tx.TxIn {
		has, err := sch.HasSignature(txID, uint32(i), myIndex)
		if err != nil {
			return err
		}
		alreadySigned[uint32(i)] = has
	}

	bodies, err := signer.MissingInputs(prop, u.BitcoinKey, alreadySigned)
	if err != nil {
		return err
	}

	for _, body := range bodies {
		env := codec.NewSignInputEnvelope(myServiceKey, body)
		if err := env.Sign(u.ServiceKey); err != nil {
			return fmt.Errorf("chain updater: sign envelope: %w", err)
		}
		if _, err := u.Client.SignInput(ctx, env); err != nil {
			return fmt.Errorf("chain updater: submit sign_input: %w", err)
		}
	}

	return nil
}
