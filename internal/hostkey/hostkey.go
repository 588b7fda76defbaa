// Package hostkey provides the host-chain validator keypair used to
// authorize and authenticate SignInput/AddFunds messages, standing in for
// whatever message-authentication scheme the host chain's own runtime
// supplies to service transactions.
package hostkey

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// PublicKey is a compressed secp256k1 public key identifying a validator on
// the host chain.
type PublicKey [33]byte

// ParsePublicKey decodes a compressed secp256k1 public key.
func ParsePublicKey(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != 33 {
		return pk, fmt.Errorf("host-chain public key must be 33 bytes, got %d", len(b))
	}
	if _, err := crypto.DecompressPubkey(b); err != nil {
		return pk, fmt.Errorf("parse host-chain public key: %w", err)
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePublicKeyHex decodes a hex-encoded compressed public key.
func ParsePublicKeyHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("decode host-chain public key hex: %w", err)
	}
	return ParsePublicKey(b)
}

func (pk PublicKey) Bytes() []byte  { return pk[:] }
func (pk PublicKey) String() string { return hex.EncodeToString(pk[:]) }

// PrivateKey is the secp256k1 keypair a validator uses to sign the messages
// it submits to the host chain.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// GenerateKey creates a fresh random host-chain validator keypair.
func GenerateKey() (*PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate host-chain key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes loads a private key from its 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, fmt.Errorf("load host-chain private key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// Bytes returns the private key's 32-byte scalar.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.key)
}

// PublicKey returns the compressed public key corresponding to k.
func (k *PrivateKey) PublicKey() PublicKey {
	var pk PublicKey
	copy(pk[:], crypto.CompressPubkey(&k.key.PublicKey))
	return pk
}

// Sign produces a 65-byte recoverable ECDSA signature over a 32-byte
// content hash, authenticating a SignInput or AddFunds message envelope.
func (k *PrivateKey) Sign(hash [32]byte) ([]byte, error) {
	sig, err := crypto.Sign(hash[:], k.key)
	if err != nil {
		return nil, fmt.Errorf("sign message envelope: %w", err)
	}
	return sig, nil
}

// VerifySignature checks a signature produced by Sign against the claimed
// sender public key and content hash.
func VerifySignature(pub PublicKey, hash [32]byte, sig []byte) (bool, error) {
	if len(sig) != 65 {
		return false, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	// Drop the recovery byte: crypto.VerifySignature expects a 64-byte R||S
	// signature alongside the claimed compressed public key.
	return crypto.VerifySignature(pub.Bytes(), hash[:], sig[:64]), nil
}

// ContentHash computes the canonical Keccak-256 content hash of an encoded
// message, used both to sign and to index envelopes.
func ContentHash(data []byte) [32]byte {
	return crypto.Keccak256Hash(data)
}
