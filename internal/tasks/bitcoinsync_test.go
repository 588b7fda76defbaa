package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
	"github.com/chainkit/btcanchoring/internal/testhelpers"
)

// fakeRelay scripts confirmation depth per txid and records broadcasts.
type fakeRelay struct {
	confirmed  map[chainhash.Hash]uint32
	broadcasts []chainhash.Hash
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{confirmed: make(map[chainhash.Hash]uint32)}
}

func (r *fakeRelay) SendTransaction(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error) {
	id := tx.TxHash()
	r.broadcasts = append(r.broadcasts, id)
	return id, nil
}

func (r *fakeRelay) TransactionConfirmations(ctx context.Context, txid chainhash.Hash) (*uint32, error) {
	if n, ok := r.confirmed[txid]; ok {
		return &n, nil
	}
	return nil, nil
}

// appendFinalizedTx appends a finalized transaction spending prevID:0,
// bypassing the SignInput quorum flow, for tests that only need a
// populated anchoring_txs_chain.
func appendFinalizedTx(t *testing.T, store *storage.Store, prevID chainhash.Hash, salt byte) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevID, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x00, 0x14, salt}))
	tx.AddTxOut(wire.NewTxOut(0, []byte{0x6a, 0x01, salt}))

	fork, err := store.Fork()
	if err != nil {
		t.Fatalf("Fork() error = %v", err)
	}
	w := schema.NewWriter(fork)
	if err := w.AppendAnchoringTx(btc.NewTransaction(tx)); err != nil {
		t.Fatalf("AppendAnchoringTx() error = %v", err)
	}
	if err := fork.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return tx
}

// TestBitcoinSync_EmptyChain covers spec §8 scenario 5: no anchoring
// transactions recorded yet, nothing to do.
func TestBitcoinSync_EmptyChain(t *testing.T) {
	store := testhelpers.OpenStore(t)
	relay := newFakeRelay()
	sync := &BitcoinSync{Store: store, Relay: relay}

	got, err := sync.Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got != nil {
		t.Fatalf("Process() = %v, want nil for an empty chain", got)
	}
	if len(relay.broadcasts) != 0 {
		t.Fatalf("broadcast %d transactions, want 0", len(relay.broadcasts))
	}
}

// TestBitcoinSync_FirstCallFindsConfirmedFundingAndBroadcastsFirst covers
// spec §8 scenario 4's first call: no trusted floor, tx[0] unconfirmed,
// funding confirmed, so tx[0] is broadcast and index 0 reported.
func TestBitcoinSync_FirstCallFindsConfirmedFundingAndBroadcastsFirst(t *testing.T) {
	store := testhelpers.OpenStore(t)
	fundingID := chainhash.Hash{0x10}
	tx0 := appendFinalizedTx(t, store, fundingID, 1)

	relay := newFakeRelay()
	relay.confirmed[fundingID] = 3 // funding is confirmed
	sync := &BitcoinSync{Store: store, Relay: relay}

	got, err := sync.Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got == nil || *got != 0 {
		t.Fatalf("Process() = %v, want 0", got)
	}
	if len(relay.broadcasts) != 1 || relay.broadcasts[0] != tx0.TxHash() {
		t.Fatalf("broadcasts = %v, want [tx0]", relay.broadcasts)
	}
}

// TestBitcoinSync_SecondCallTrustsFloorAndAdvances covers spec §8 scenario
// 4's second call: lastKnownConfirmed = 0 is trusted, tx[1] is found
// confirmed directly (no re-check of tx[0] or funding), and its successor
// (none beyond it) means only index 1 advances with no further broadcast.
func TestBitcoinSync_SecondCallTrustsFloorAndAdvances(t *testing.T) {
	store := testhelpers.OpenStore(t)
	fundingID := chainhash.Hash{0x20}
	tx0 := appendFinalizedTx(t, store, fundingID, 2)
	tx1 := appendFinalizedTx(t, store, tx0.TxHash(), 3)

	relay := newFakeRelay()
	relay.confirmed[tx1.TxHash()] = 1
	sync := &BitcoinSync{Store: store, Relay: relay}

	zero := uint64(0)
	got, err := sync.Process(context.Background(), &zero)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got == nil || *got != 1 {
		t.Fatalf("Process() = %v, want 1", got)
	}
	if len(relay.broadcasts) != 0 {
		t.Fatalf("broadcasts = %v, want none (tx[1] is the chain tip)", relay.broadcasts)
	}
}

// TestBitcoinSync_UnconfirmedFunding covers spec §8 scenario 6: the chain
// has one link whose predecessor (the funding transaction) is not yet
// confirmed on the relay.
func TestBitcoinSync_UnconfirmedFunding(t *testing.T) {
	store := testhelpers.OpenStore(t)
	fundingID := chainhash.Hash{0x30}
	appendFinalizedTx(t, store, fundingID, 4)

	relay := newFakeRelay() // funding left unconfirmed
	sync := &BitcoinSync{Store: store, Relay: relay}

	_, err := sync.Process(context.Background(), nil)
	if !errors.Is(err, config.ErrUnconfirmedFundingTransaction) {
		t.Fatalf("Process() error = %v, want config.ErrUnconfirmedFundingTransaction", err)
	}
}
