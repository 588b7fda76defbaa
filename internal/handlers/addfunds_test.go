package handlers

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/testhelpers"
)

func TestAddFunds_AcceptsValidFunding(t *testing.T) {
	store := testhelpers.OpenStore(t)
	committee := testhelpers.NewCommittee(t, 4)

	cfg := fundedConfig(t, committee)
	paying := cfg.FundingTransaction
	cfg.FundingTransaction = nil
	initService(t, store, cfg)

	raw, err := codec.EncodeTransaction(paying)
	if err != nil {
		t.Fatalf("EncodeTransaction() error = %v", err)
	}

	w, fork := openTestFork(t, store)
	if err := AddFunds(w, committee.ServiceKeys[0].PublicKey(), codec.AddFundsBody{TransactionBytes: raw}); err != nil {
		t.Fatalf("AddFunds() error = %v", err)
	}
	if err := fork.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	snap, err := store.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	defer snap.Close()
	unspent, err := schema.New(snap).UnspentFundingTransaction()
	if err != nil {
		t.Fatalf("UnspentFundingTransaction() error = %v", err)
	}
	if unspent == nil {
		t.Fatal("UnspentFundingTransaction() = nil after AddFunds")
	}
}

func TestAddFunds_RejectsWhenAlreadySet(t *testing.T) {
	store := testhelpers.OpenStore(t)
	committee := testhelpers.NewCommittee(t, 4)

	cfg := fundedConfig(t, committee) // already carries a funding transaction
	initService(t, store, cfg)

	raw, err := codec.EncodeTransaction(cfg.FundingTransaction)
	if err != nil {
		t.Fatalf("EncodeTransaction() error = %v", err)
	}

	w, _ := openTestFork(t, store)
	err = AddFunds(w, committee.ServiceKeys[0].PublicKey(), codec.AddFundsBody{TransactionBytes: raw})
	if !errors.Is(err, config.ErrFundingAlreadySet) {
		t.Fatalf("AddFunds() error = %v, want config.ErrFundingAlreadySet", err)
	}
}

func TestAddFunds_RejectsOutputNotPayingCommittee(t *testing.T) {
	store := testhelpers.OpenStore(t)
	committee := testhelpers.NewCommittee(t, 4)

	cfg := fundedConfig(t, committee)
	cfg.FundingTransaction = nil
	initService(t, store, cfg)

	garbageSource := chainhash.Hash{0xbb}
	garbage := wire.NewMsgTx(2)
	garbage.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&garbageSource, 0), nil, nil))
	garbage.AddTxOut(wire.NewTxOut(1000, []byte{0x00, 0x14}))
	raw, err := codec.EncodeTransaction(garbage)
	if err != nil {
		t.Fatalf("EncodeTransaction() error = %v", err)
	}

	w, _ := openTestFork(t, store)
	err = AddFunds(w, committee.ServiceKeys[0].PublicKey(), codec.AddFundsBody{TransactionBytes: raw})
	if !errors.Is(err, config.ErrFundingOutputMissing) {
		t.Fatalf("AddFunds() error = %v, want config.ErrFundingOutputMissing", err)
	}
}

func TestAddFunds_RejectsNonCommitteeSender(t *testing.T) {
	store := testhelpers.OpenStore(t)
	committee := testhelpers.NewCommittee(t, 4)
	outsider := testhelpers.NewCommittee(t, 1)

	cfg := fundedConfig(t, committee)
	paying := cfg.FundingTransaction
	cfg.FundingTransaction = nil
	initService(t, store, cfg)

	raw, err := codec.EncodeTransaction(paying)
	if err != nil {
		t.Fatalf("EncodeTransaction() error = %v", err)
	}

	w, _ := openTestFork(t, store)
	err = AddFunds(w, outsider.ServiceKeys[0].PublicKey(), codec.AddFundsBody{TransactionBytes: raw})
	if !errors.Is(err, config.ErrUnauthorizedCaller) {
		t.Fatalf("AddFunds() error = %v, want config.ErrUnauthorizedCaller", err)
	}
}
