// Package anchoring holds the domain-level committee configuration and the
// pure height arithmetic the proposal builder relies on.
package anchoring

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/config"
)

// Config is the committee's anchoring configuration (spec §3 "Config"):
// the ordered committee, the anchoring cadence, the per-vbyte fee, and an
// optional legacy funding transaction.
type Config struct {
	Network            btc.Network
	AnchoringKeys      []AnchoringKeys
	AnchoringInterval  uint64
	TransactionFeeRate int64 // satoshis per virtual byte
	FundingTransaction *wire.MsgTx
}

// ByzantineQuorum returns the number of committee signatures required for a
// committee of n members (floor(2n/3) + 1).
func ByzantineQuorum(n int) int {
	return btc.ByzantineQuorum(n)
}

// Validate checks the invariants spec §3 places on Config: a non-empty
// committee, a positive anchoring interval, and — if a legacy funding
// transaction is present — that it pays the derived P2WSH address.
func (c *Config) Validate() error {
	if len(c.AnchoringKeys) == 0 {
		return fmt.Errorf("%w: anchoring_keys must not be empty", config.ErrInvalidConfig)
	}
	if c.AnchoringInterval < 1 {
		return fmt.Errorf("%w: anchoring_interval must be >= 1, got %d", config.ErrInvalidConfig, c.AnchoringInterval)
	}
	if !c.Network.Valid() {
		return fmt.Errorf("%w: invalid network %q", config.ErrInvalidConfig, c.Network)
	}

	redeem, err := c.RedeemScript()
	if err != nil {
		return fmt.Errorf("%w: %s", config.ErrInvalidConfig, err)
	}

	if c.FundingTransaction != nil {
		netParams, err := c.Network.Params()
		if err != nil {
			return fmt.Errorf("%w: %s", config.ErrInvalidConfig, err)
		}
		script, err := btc.AnchoringOutputScript(redeem, netParams)
		if err != nil {
			return fmt.Errorf("%w: %s", config.ErrInvalidConfig, err)
		}
		if _, _, found := btc.FindFundingOutput(c.FundingTransaction, script); !found {
			return fmt.Errorf("%w: funding_transaction has no output paying the derived P2WSH address", config.ErrInvalidConfig)
		}
	}

	return nil
}

// RedeemScript builds the quorum-of-N multisig redeem script for this
// config's committee, in committee order.
func (c *Config) RedeemScript() (*btc.RedeemScript, error) {
	netParams, err := c.Network.Params()
	if err != nil {
		return nil, err
	}
	return btc.BuildRedeemScript(BitcoinKeys(c.AnchoringKeys), netParams)
}

// AnchoringAddress derives this config's committee P2WSH address.
func (c *Config) AnchoringAddress() (btcutil.Address, error) {
	redeem, err := c.RedeemScript()
	if err != nil {
		return nil, err
	}
	netParams, err := c.Network.Params()
	if err != nil {
		return nil, err
	}
	return btc.AnchoringAddress(redeem, netParams)
}

// NetParams is a convenience accessor mirroring btc.Network.Params(),
// exposed here so callers holding only an anchoring.Config need not import
// the btc package for network parameter lookups.
func (c *Config) NetParams() (*chaincfg.Params, error) {
	return c.Network.Params()
}
