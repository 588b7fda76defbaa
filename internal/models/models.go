// Package models holds the JSON-facing value types shared by the public
// and private HTTP endpoints (spec §6 "Public HTTP-style endpoints",
// "Private HTTP endpoints"), kept separate from the domain types in
// internal/anchoring so wire representations can evolve independently.
package models

import (
	"github.com/mr-tron/base58"

	"github.com/chainkit/btcanchoring/internal/anchoring"
)

// APIResponse is the standard success envelope for every JSON endpoint.
type APIResponse struct {
	Data any `json:"data"`
}

// APIError is the standard error envelope (spec §6 "typed HTTP errors").
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail carries a stable string code alongside a human message, so
// operator tooling can branch on Code without parsing Message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnchoringKeysView renders one committee member for JSON responses: the
// Bitcoin key in hex (as used by the redeem script) and a base58 "short ID"
// rendering distinct from the P2WSH bech32 address (spec SPEC_FULL.md §B,
// mr-tron/base58 wiring).
type AnchoringKeysView struct {
	BitcoinKeyHex  string `json:"bitcoinKey"`
	BitcoinShortID string `json:"bitcoinShortId"`
	ServiceKeyHex  string `json:"serviceKey"`
}

// NewAnchoringKeysView renders one committee member's key pair, base58
// encoding the Bitcoin key as a compact operator-facing identifier
// distinct from the bech32 P2WSH address.
func NewAnchoringKeysView(keys anchoring.AnchoringKeys) AnchoringKeysView {
	return AnchoringKeysView{
		BitcoinKeyHex:  keys.BitcoinKey.String(),
		BitcoinShortID: base58.Encode(keys.BitcoinKey.Bytes()),
		ServiceKeyHex:  keys.ServiceKey.String(),
	}
}

// NewConfigView renders an active committee configuration, deriving its
// P2WSH address and byzantine quorum for display.
func NewConfigView(cfg *anchoring.Config) (ConfigView, error) {
	views := make([]AnchoringKeysView, len(cfg.AnchoringKeys))
	for i, k := range cfg.AnchoringKeys {
		views[i] = NewAnchoringKeysView(k)
	}

	addr, err := cfg.AnchoringAddress()
	if err != nil {
		return ConfigView{}, err
	}

	return ConfigView{
		Network:            string(cfg.Network),
		AnchoringKeys:      views,
		AnchoringInterval:  cfg.AnchoringInterval,
		TransactionFeeRate: cfg.TransactionFeeRate,
		AnchoringAddress:   addr.String(),
		ByzantineQuorum:    anchoring.ByzantineQuorum(len(cfg.AnchoringKeys)),
	}, nil
}

// ConfigView renders the active committee configuration.
type ConfigView struct {
	Network            string              `json:"network"`
	AnchoringKeys       []AnchoringKeysView `json:"anchoringKeys"`
	AnchoringInterval   uint64              `json:"anchoringInterval"`
	TransactionFeeRate  int64               `json:"transactionFeeRate"`
	AnchoringAddress    string              `json:"anchoringAddress"`
	ByzantineQuorum     int                 `json:"byzantineQuorum"`
}

// ProposalView renders the current AnchoringProposalState for the public
// proposal endpoint.
type ProposalView struct {
	State           string `json:"state"`
	AnchoringHeight uint64 `json:"anchoringHeight"`
	Balance         int64  `json:"balance,omitempty"`
	TotalFee        int64  `json:"totalFee,omitempty"`
	TxID            string `json:"txId,omitempty"`
	TxHex           string `json:"txHex,omitempty"`
}

// TransactionView renders one finalized anchoring transaction.
type TransactionView struct {
	Index       int    `json:"index"`
	TxID        string `json:"txId"`
	TxHex       string `json:"txHex"`
	BlockHeight uint64 `json:"blockHeight"`
	BlockHash   string `json:"blockHash"`
}

// AnchoredBlocksProof renders the append-only anchored_blocks index entry
// used to prove a given height's recorded hash (spec §6 "anchored-blocks
// proof").
type AnchoredBlocksProof struct {
	Height    uint64 `json:"height"`
	BlockHash string `json:"blockHash"`
	Found     bool   `json:"found"`
}

// LectView renders a single validator's belief of the anchoring chain tip
// (spec GLOSSARY "LECT"; SPEC_FULL.md §C).
type LectView struct {
	ValidatorIndex int    `json:"validatorIndex"`
	MsgHash        string `json:"msgHash"`
	TxID           string `json:"txId"`
	Found          bool   `json:"found"`
}

// EnvelopeRequest is the private API request body for both sign_input and
// add_funds: the validator signs the message envelope locally (spec §9
// "Polymorphic on-chain message envelope") and submits its wire encoding.
type EnvelopeRequest struct {
	EnvelopeHex string `json:"envelopeHex"`
}

// SubmitResponse is returned by both private endpoints once the envelope
// has been accepted, carrying its content hash as the tx_hash spec §6
// names (`sign_input(SignInput) -> tx_hash`, `add_funds(...) -> tx_hash`).
type SubmitResponse struct {
	TxHash string `json:"txHash"`
}
