package anchoring

import (
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/hostkey"
)

// AnchoringKeys is one committee member's key pair: the Bitcoin key that
// takes part in the P2WSH redeem script, and the host-chain validator key
// that authorizes SignInput/AddFunds messages on its behalf.
type AnchoringKeys struct {
	BitcoinKey btc.PublicKey
	ServiceKey hostkey.PublicKey
}

// BitcoinKeys extracts the ordered list of Bitcoin public keys from a
// committee, the order the redeem script is built from.
func BitcoinKeys(keys []AnchoringKeys) []btc.PublicKey {
	out := make([]btc.PublicKey, len(keys))
	for i, k := range keys {
		out[i] = k.BitcoinKey
	}
	return out
}

// FindBitcoinKey returns the index and Bitcoin key of the committee member
// whose service key matches serviceKey, the lookup performed when
// authorizing a SignInput sender against the committee.
func FindBitcoinKey(keys []AnchoringKeys, serviceKey hostkey.PublicKey) (index int, bitcoinKey btc.PublicKey, found bool) {
	for i, k := range keys {
		if k.ServiceKey == serviceKey {
			return i, k.BitcoinKey, true
		}
	}
	return 0, btc.PublicKey{}, false
}

// ValidatorIndex returns the index of the committee member whose service
// key matches serviceKey, or -1 if none does.
func ValidatorIndex(keys []AnchoringKeys, serviceKey hostkey.PublicKey) int {
	i, _, found := FindBitcoinKey(keys, serviceKey)
	if !found {
		return -1
	}
	return i
}
