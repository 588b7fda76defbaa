// Package testhelpers plays the role of the source test suite's
// AnchoringTestKit: deterministic committee key generation and a fresh
// migrated SQLite store in a temporary directory, so the proposal
// builder, handlers, and tasks can be exercised without a real host chain.
package testhelpers

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/hostkey"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// fixedMnemonic is a well-known BIP-39 test vector mnemonic, used only to
// make committee key generation deterministic and reproducible across test
// runs — never use it outside tests.
const fixedMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// Committee is a deterministically-derived committee, standing in for the
// source suite's secp_gen_keypair helper.
type Committee struct {
	AnchoringKeys []anchoring.AnchoringKeys
	BitcoinKeys   []*btc.PrivateKey
	ServiceKeys   []*hostkey.PrivateKey
}

// NewCommittee derives n committee members from a fixed BIP-39 seed: each
// member's Bitcoin key comes from BIP-32 hardened derivation path
// m/i', and its host-chain service key from Keccak-256-derived entropy at
// the same index, mirroring the teacher's wallet.DeriveMasterKey pattern
// (internal/wallet/hd.go) adapted to a single deterministic seed instead
// of an operator-supplied mnemonic file.
func NewCommittee(t testing.TB, n int) *Committee {
	t.Helper()

	seed, err := bip39.NewSeedWithErrorChecking(fixedMnemonic, "")
	if err != nil {
		t.Fatalf("testhelpers: derive seed: %v", err)
	}

	master, err := hdkeychain.NewMaster(seed, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("testhelpers: derive master key: %v", err)
	}

	c := &Committee{
		AnchoringKeys: make([]anchoring.AnchoringKeys, n),
		BitcoinKeys:   make([]*btc.PrivateKey, n),
		ServiceKeys:   make([]*hostkey.PrivateKey, n),
	}

	for i := 0; i < n; i++ {
		child, err := master.Derive(hdkeychain.HardenedKeyStart + uint32(i))
		if err != nil {
			t.Fatalf("testhelpers: derive child key %d: %v", i, err)
		}
		ecPriv, err := child.ECPrivKey()
		if err != nil {
			t.Fatalf("testhelpers: extract EC private key %d: %v", i, err)
		}
		btcPriv, err := btc.PrivateKeyFromBytes(ecPriv.Serialize())
		if err != nil {
			t.Fatalf("testhelpers: wrap bitcoin private key %d: %v", i, err)
		}

		hostScalar := deriveHostScalar(seed, i)
		hostPriv, err := hostkey.PrivateKeyFromBytes(hostScalar)
		if err != nil {
			t.Fatalf("testhelpers: derive host key %d: %v", i, err)
		}

		c.BitcoinKeys[i] = btcPriv
		c.ServiceKeys[i] = hostPriv
		c.AnchoringKeys[i] = anchoring.AnchoringKeys{
			BitcoinKey: btcPriv.PublicKey(),
			ServiceKey: hostPriv.PublicKey(),
		}
	}

	return c
}

// deriveHostScalar derives a 32-byte secp256k1 scalar for committee member
// i from the shared seed, distinct per index and distinct from the
// Bitcoin-side derivation path.
func deriveHostScalar(seed []byte, i int) []byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(i)+1)
	return crypto.Keccak256(seed, idx[:], []byte("host-key"))
}

// OpenStore opens a fresh migrated SQLite store in a temporary directory,
// closed automatically when the test ends.
func OpenStore(t testing.TB) *storage.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anchoring-testkit.sqlite")
	s, err := storage.Open(path)
	if err != nil {
		t.Fatalf("testhelpers: open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.RunMigrations(); err != nil {
		t.Fatalf("testhelpers: run migrations: %v", err)
	}
	return s
}
