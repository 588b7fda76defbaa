package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// AnchoringAddress derives the P2WSH address for a redeem script, i.e. the
// current committee's output address.
func AnchoringAddress(redeem *RedeemScript, net *chaincfg.Params) (btcutil.Address, error) {
	hash := redeem.Hash()
	addr, err := btcutil.NewAddressWitnessScriptHash(hash[:], net)
	if err != nil {
		return nil, fmt.Errorf("derive P2WSH address: %w", err)
	}
	return addr, nil
}

// AnchoringOutputScript returns the P2WSH scriptPubKey corresponding to the
// redeem script — the script every anchoring transaction's output 0 must
// carry.
func AnchoringOutputScript(redeem *RedeemScript, net *chaincfg.Params) ([]byte, error) {
	addr, err := AnchoringAddress(redeem, net)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}
