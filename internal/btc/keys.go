package btc

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// PublicKey is a compressed secp256k1 public key, as used throughout the
// committee's redeem script and the anchoring address derivation.
type PublicKey [33]byte

// ParsePublicKey decodes a compressed secp256k1 public key.
func ParsePublicKey(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != 33 {
		return pk, fmt.Errorf("bitcoin public key must be 33 bytes, got %d", len(b))
	}
	if _, err := btcec.ParsePubKey(b); err != nil {
		return pk, fmt.Errorf("parse bitcoin public key: %w", err)
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePublicKeyHex decodes a hex-encoded compressed public key.
func ParsePublicKeyHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("decode bitcoin public key hex: %w", err)
	}
	return ParsePublicKey(b)
}

func (pk PublicKey) Bytes() []byte { return pk[:] }
func (pk PublicKey) String() string { return hex.EncodeToString(pk[:]) }

func (pk PublicKey) btcecKey() (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(pk[:])
}

// AddressPubKey returns the btcutil representation needed by
// txscript.MultiSigScript.
func (pk PublicKey) AddressPubKey(net *chaincfg.Params) (*btcutil.AddressPubKey, error) {
	return btcutil.NewAddressPubKey(pk[:], net)
}

// PrivateKey is a secp256k1 private key controlling one committee member's
// Bitcoin funds.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// GeneratePrivateKey creates a fresh random Bitcoin private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate bitcoin private key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes loads a private key from its 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("bitcoin private key must be 32 bytes, got %d", len(b))
	}
	key := btcec.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// WIF encodes the private key in Wallet Import Format for the given network.
func (k *PrivateKey) WIF(net *chaincfg.Params) (string, error) {
	wif, err := btcutil.NewWIF(k.key, net, true)
	if err != nil {
		return "", fmt.Errorf("encode WIF: %w", err)
	}
	return wif.String(), nil
}

// PrivateKeyFromWIF decodes a WIF-encoded private key.
func PrivateKeyFromWIF(s string) (*PrivateKey, error) {
	wif, err := btcutil.DecodeWIF(s)
	if err != nil {
		return nil, fmt.Errorf("decode WIF: %w", err)
	}
	return &PrivateKey{key: wif.PrivKey}, nil
}

// PublicKey returns the compressed public key corresponding to k.
func (k *PrivateKey) PublicKey() PublicKey {
	var pk PublicKey
	copy(pk[:], k.key.PubKey().SerializeCompressed())
	return pk
}

// Sign produces a DER-encoded ECDSA signature over a 32-byte sighash.
// Combined with a SigHashType byte, this is the witness item accepted by the
// committee's P2WSH multisig redeem script.
func (k *PrivateKey) Sign(sighash []byte) ([]byte, error) {
	if len(sighash) != 32 {
		return nil, fmt.Errorf("sighash must be 32 bytes, got %d", len(sighash))
	}
	sig := ecdsa.Sign(k.key, sighash)
	return sig.Serialize(), nil
}

// VerifySignature checks a DER-encoded signature (without the trailing
// SigHashType byte) over sighash under the given public key.
func VerifySignature(pub PublicKey, sighash []byte, derSig []byte) (bool, error) {
	key, err := pub.btcecKey()
	if err != nil {
		return false, err
	}
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return false, fmt.Errorf("parse signature: %w", err)
	}
	return sig.Verify(sighash, key), nil
}
