package btc

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// RedeemScript is the multisig script requiring Quorum-of-N committee
// signatures, in the committee's declared order (spec §9: "Validator-index
// ordering").
type RedeemScript struct {
	Script []byte
	Quorum int
	N      int
}

// BuildRedeemScript constructs the quorum-of-N multisig redeem script for
// the given ordered set of committee Bitcoin public keys.
func BuildRedeemScript(keys []PublicKey, net *chaincfg.Params) (*RedeemScript, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("redeem script requires at least one public key")
	}
	quorum := ByzantineQuorum(len(keys))

	addrs := make([]*btcutil.AddressPubKey, 0, len(keys))
	for i, k := range keys {
		a, err := k.AddressPubKey(net)
		if err != nil {
			return nil, fmt.Errorf("public key %d: %w", i, err)
		}
		addrs = append(addrs, a)
	}

	// txscript.MultiSigScript preserves the given key order, which is what
	// lets every validator rebuild an identical script independently and
	// lets a finalized witness pick "the first quorum signatures by
	// validator index" (spec §9).
	script, err := txscript.MultiSigScript(addrs, quorum)
	if err != nil {
		return nil, fmt.Errorf("build multisig script: %w", err)
	}

	return &RedeemScript{Script: script, Quorum: quorum, N: len(keys)}, nil
}

// Hash returns the SHA-256 of the redeem script, i.e. the witness script
// hash embedded in the P2WSH output.
func (r *RedeemScript) Hash() [32]byte {
	return sha256.Sum256(r.Script)
}

// ByzantineQuorum returns floor(2*total/3) + 1, the number of signatures a
// redeem script requires out of total committee members.
func ByzantineQuorum(total int) int {
	return 2*total/3 + 1
}
