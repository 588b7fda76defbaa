package btc

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestPrivateKeyPublicKeyRoundtrip(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey() error = %v", err)
	}

	pub := priv.PublicKey()
	parsed, err := ParsePublicKey(pub.Bytes())
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if !bytes.Equal(parsed.Bytes(), pub.Bytes()) {
		t.Errorf("parsed public key = %x, want %x", parsed.Bytes(), pub.Bytes())
	}
}

func TestWIFRoundtrip(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey() error = %v", err)
	}

	wif, err := priv.WIF(&chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("WIF() error = %v", err)
	}

	loaded, err := PrivateKeyFromWIF(wif)
	if err != nil {
		t.Fatalf("PrivateKeyFromWIF() error = %v", err)
	}
	if !bytes.Equal(loaded.PublicKey().Bytes(), priv.PublicKey().Bytes()) {
		t.Errorf("round-tripped key has different public key")
	}
}

func TestSignVerify(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey() error = %v", err)
	}
	sighash := bytes.Repeat([]byte{0x42}, 32)

	sig, err := priv.Sign(sighash)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	ok, err := VerifySignature(priv.PublicKey(), sighash, sig)
	if err != nil {
		t.Fatalf("VerifySignature() error = %v", err)
	}
	if !ok {
		t.Errorf("VerifySignature() = false, want true")
	}
}

func TestVerifySignature_WrongKey(t *testing.T) {
	priv1, _ := GeneratePrivateKey()
	priv2, _ := GeneratePrivateKey()
	sighash := bytes.Repeat([]byte{0x07}, 32)

	sig, err := priv1.Sign(sighash)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	ok, err := VerifySignature(priv2.PublicKey(), sighash, sig)
	if err != nil {
		t.Fatalf("VerifySignature() error = %v", err)
	}
	if ok {
		t.Errorf("VerifySignature() = true with wrong key, want false")
	}
}

func TestSign_RejectsWrongLength(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	if _, err := priv.Sign([]byte{0x01, 0x02}); err == nil {
		t.Errorf("Sign() with short digest: expected error, got nil")
	}
}

func TestParsePublicKey_RejectsWrongLength(t *testing.T) {
	if _, err := ParsePublicKey([]byte{0x02, 0x03}); err == nil {
		t.Errorf("ParsePublicKey() with short input: expected error, got nil")
	}
}
