// Package btc wraps the Bitcoin-primitive libraries (secp256k1 keys, P2WSH
// script construction, SegWit sighash) consumed by the anchoring service.
// None of the cryptography here is implemented from scratch; it is a thin,
// domain-shaped layer over github.com/btcsuite/btcd.
package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network identifies which Bitcoin network an anchoring config targets.
type Network string

const (
	Mainnet  Network = "mainnet"
	Testnet  Network = "testnet"
	Regtest  Network = "regtest"
	Signet   Network = "signet"
)

// Params returns the btcd chain parameters for n.
func (n Network) Params() (*chaincfg.Params, error) {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams, nil
	case Testnet:
		return &chaincfg.TestNet3Params, nil
	case Regtest:
		return &chaincfg.RegressionNetParams, nil
	case Signet:
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", n)
	}
}

// Valid reports whether n is one of the recognized networks.
func (n Network) Valid() bool {
	_, err := n.Params()
	return err == nil
}
