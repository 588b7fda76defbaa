package btc

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestByzantineQuorum(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{total: 1, want: 1},
		{total: 2, want: 2},
		{total: 3, want: 3},
		{total: 4, want: 3},
		{total: 5, want: 4},
		{total: 6, want: 5},
		{total: 7, want: 5},
		{total: 10, want: 7},
		{total: 13, want: 9},
		{total: 16, want: 11},
	}

	for _, tt := range tests {
		if got := ByzantineQuorum(tt.total); got != tt.want {
			t.Errorf("ByzantineQuorum(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func testCommittee(t *testing.T, n int) []PublicKey {
	t.Helper()
	keys := make([]PublicKey, n)
	for i := range keys {
		priv, err := GeneratePrivateKey()
		if err != nil {
			t.Fatalf("GeneratePrivateKey() error = %v", err)
		}
		keys[i] = priv.PublicKey()
	}
	return keys
}

func TestBuildRedeemScript(t *testing.T) {
	keys := testCommittee(t, 4)

	redeem, err := BuildRedeemScript(keys, &chaincfg.TestNet3Params)
	if err != nil {
		t.Fatalf("BuildRedeemScript() error = %v", err)
	}
	if redeem.N != 4 {
		t.Errorf("N = %d, want 4", redeem.N)
	}
	if redeem.Quorum != 3 {
		t.Errorf("Quorum = %d, want 3", redeem.Quorum)
	}
	if len(redeem.Script) == 0 {
		t.Errorf("Script is empty")
	}
}

func TestBuildRedeemScript_Deterministic(t *testing.T) {
	keys := testCommittee(t, 5)

	r1, err := BuildRedeemScript(keys, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("BuildRedeemScript() error = %v", err)
	}
	r2, err := BuildRedeemScript(keys, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("BuildRedeemScript() error = %v", err)
	}
	if r1.Hash() != r2.Hash() {
		t.Errorf("BuildRedeemScript() is not deterministic for identical input")
	}
}

func TestBuildRedeemScript_EmptyCommittee(t *testing.T) {
	if _, err := BuildRedeemScript(nil, &chaincfg.MainNetParams); err == nil {
		t.Errorf("BuildRedeemScript() with empty committee: expected error, got nil")
	}
}

func TestBuildRedeemScript_OrderMatters(t *testing.T) {
	keys := testCommittee(t, 3)
	reordered := []PublicKey{keys[1], keys[0], keys[2]}

	r1, err := BuildRedeemScript(keys, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("BuildRedeemScript() error = %v", err)
	}
	r2, err := BuildRedeemScript(reordered, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("BuildRedeemScript() error = %v", err)
	}
	if r1.Hash() == r2.Hash() {
		t.Errorf("BuildRedeemScript() produced identical hash for reordered committee")
	}
}
