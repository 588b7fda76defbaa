// Package proposal implements the deterministic anchoring proposal
// builder (spec §4.3): a pure function from on-chain state to the next
// anchoring transaction every validator must independently reconstruct
// byte-for-byte.
package proposal

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/schema"
)

// State classifies the outcome of building a proposal at a given height
// (spec §4.3: "AnchoringProposalState").
type State int

const (
	// StateNone means it is not yet time to anchor: the current anchoring
	// height's block hash has not been observed yet.
	StateNone State = iota
	// StateNoInitialFunds means the chain has no prior anchoring transaction
	// and no funding UTXO has been declared.
	StateNoInitialFunds
	// StateInsufficientFunds means available input value is less than the
	// fee the fully-signed transaction would require.
	StateInsufficientFunds
	// StateAvailable means a complete, signable proposal was built.
	StateAvailable
)

// Proposal is the result of building a proposal at a given height.
type Proposal struct {
	State           State
	AnchoringHeight uint64
	Tx              *wire.MsgTx
	Sighashes       [][]byte // one per input, in Tx.TxIn order
	Balance         int64    // set when State == StateInsufficientFunds
	TotalFee        int64    // set when State == StateInsufficientFunds or StateAvailable
	Redeem          *btc.RedeemScript
	EffectiveConfig *anchoring.Config
	// NeedsPromotion is true when building this proposal observed that the
	// previous anchoring transaction already pays the following committee's
	// address: following_config must be promoted to actual_config before
	// (or atomically with) this proposal being acted upon (spec §4.3 step 4).
	NeedsPromotion bool
}

// Build derives the anchoring proposal at host-chain height h from the
// given already-loaded state. It performs no I/O and has no side effects;
// callers are responsible for persisting NeedsPromotion.
func Build(
	h uint64,
	actualCfg, followingCfg *anchoring.Config,
	prev *btc.Transaction,
	unspentFunding *btc.Transaction,
	fundingSpent bool,
	anchoredBlockAt func(height uint64) ([32]byte, bool),
) (*Proposal, error) {
	if actualCfg == nil {
		return nil, fmt.Errorf("build proposal: no actual_config installed")
	}

	anchoringHeight := anchoring.PreviousAnchoringHeight(h, actualCfg.AnchoringInterval)
	blockHash, haveBlock := anchoredBlockAt(anchoringHeight)
	if !haveBlock {
		return &Proposal{State: StateNone, AnchoringHeight: anchoringHeight}, nil
	}

	effectiveCfg, needsPromotion, err := effectiveConfig(actualCfg, followingCfg, prev)
	if err != nil {
		return nil, err
	}

	redeem, err := effectiveCfg.RedeemScript()
	if err != nil {
		return nil, err
	}
	netParams, err := effectiveCfg.NetParams()
	if err != nil {
		return nil, err
	}
	pkScript, err := btc.AnchoringOutputScript(redeem, netParams)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	var prevOuts []btc.PrevOutput
	var available int64

	var prevTxID chainhash.Hash
	if prev == nil {
		if unspentFunding == nil {
			return &Proposal{State: StateNoInitialFunds, AnchoringHeight: anchoringHeight}, nil
		}
		_, value, found := btc.FindFundingOutput(unspentFunding.MsgTx, pkScript)
		if !found {
			return nil, fmt.Errorf("funding transaction has no output paying the committee address")
		}
		prevTxID = unspentFunding.ID()
		available = value
	} else {
		prevValue, err := prev.AnchoringOutputValue()
		if err != nil {
			return nil, err
		}
		prevTxID = prev.ID()
		available = prevValue
	}

	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevTxID, 0), nil, nil))
	prevOuts = append(prevOuts, btc.PrevOutput{Value: available, PkScript: pkScript})

	// Attach the declared funding UTXO as an additional input when it is
	// distinct from the prev-input and not already consumed (spec §4.3
	// step 5).
	if prev != nil && unspentFunding != nil && !fundingSpent {
		idx, value, found := btc.FindFundingOutput(unspentFunding.MsgTx, pkScript)
		if found {
			fundingID := unspentFunding.ID()
			tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&fundingID, uint32(idx)), nil, nil))
			prevOuts = append(prevOuts, btc.PrevOutput{Value: value, PkScript: pkScript})
			available += value
		}
	}

	vsize := estimateVsize(len(tx.TxIn), redeem.Quorum, redeem.N)
	totalFee := effectiveCfg.TransactionFeeRate * int64(vsize)

	if available < totalFee {
		return &Proposal{
			State:           StateInsufficientFunds,
			AnchoringHeight: anchoringHeight,
			Balance:         available,
			TotalFee:        totalFee,
			EffectiveConfig: effectiveCfg,
			NeedsPromotion:  needsPromotion,
		}, nil
	}

	payload := btc.Payload{BlockHeight: anchoringHeight, BlockHash: blockHash}
	opReturn, err := btc.OpReturnScript(payload)
	if err != nil {
		return nil, err
	}

	tx.AddTxOut(wire.NewTxOut(available-totalFee, pkScript))
	tx.AddTxOut(wire.NewTxOut(0, opReturn))

	sighashes := make([][]byte, len(tx.TxIn))
	for i := range tx.TxIn {
		sh, err := btc.WitnessSigHash(tx, i, prevOuts, redeem)
		if err != nil {
			return nil, fmt.Errorf("%w: compute sighash for input %d: %s", config.ErrInvalidConfig, i, err)
		}
		sighashes[i] = sh
	}

	return &Proposal{
		State:           StateAvailable,
		AnchoringHeight: anchoringHeight,
		Tx:              tx,
		Sighashes:       sighashes,
		TotalFee:        totalFee,
		Redeem:          redeem,
		EffectiveConfig: effectiveCfg,
		NeedsPromotion:  needsPromotion,
	}, nil
}

// BuildFromSnapshot loads state through sch and builds the proposal at
// host-chain height h.
func BuildFromSnapshot(sch *schema.Schema, h uint64) (*Proposal, error) {
	actualCfg, err := sch.ActualConfig()
	if err != nil {
		return nil, err
	}
	followingCfg, err := sch.FollowingConfig()
	if err != nil {
		return nil, err
	}
	prev, err := sch.LastAnchoringTx()
	if err != nil {
		return nil, err
	}
	unspent, err := sch.UnspentFundingTransaction()
	if err != nil {
		return nil, err
	}
	var fundingSpent bool
	if unspent != nil {
		fundingSpent, err = sch.IsFundingTransactionSpent(unspent.ID())
		if err != nil {
			return nil, err
		}
	}

	return Build(h, actualCfg, followingCfg, prev, unspent, fundingSpent, func(height uint64) ([32]byte, bool) {
		hash, found, ferr := sch.AnchoredBlockAt(height)
		if ferr != nil {
			return [32]byte{}, false
		}
		return hash, found
	})
}

// effectiveConfig determines which committee a new proposal is built under.
// When prev already pays the following committee's address, that transition
// has already happened on-chain (the previous anchoring transaction was the
// transition transaction) and following_config is the effective committee
// pending promotion (spec §4.3 step 4).
func effectiveConfig(actualCfg, followingCfg *anchoring.Config, prev *btc.Transaction) (*anchoring.Config, bool, error) {
	if prev == nil || followingCfg == nil {
		return actualCfg, false, nil
	}

	followingRedeem, err := followingCfg.RedeemScript()
	if err != nil {
		return nil, false, err
	}
	followingNet, err := followingCfg.NetParams()
	if err != nil {
		return nil, false, err
	}
	followingScript, err := btc.AnchoringOutputScript(followingRedeem, followingNet)
	if err != nil {
		return nil, false, err
	}

	if _, _, found := btc.FindFundingOutput(prev.MsgTx, followingScript); found {
		return followingCfg, true, nil
	}
	return actualCfg, false, nil
}

// estimateVsize computes the deterministic virtual size of a fully-signed
// anchoring transaction with the given input/committee shape (spec §4.3
// step 6: vsize is deterministic given committee size and quorum).
func estimateVsize(numInputs, quorum, committeeSize int) int {
	witnessWU := quorum*config.BTCPerSigWitnessWU + committeeSize*config.BTCRedeemScriptKeyWU
	weight := config.BTCTxOverheadWU +
		numInputs*(config.BTCP2WSHInputNonWitWU+witnessWU) +
		config.BTCOutputBaseWU +
		config.BTCOpReturnOutputWU
	return (weight + 3) / 4
}
