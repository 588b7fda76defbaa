package tasks

import (
	"context"
	"fmt"

	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/relay"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// BitcoinSync is the relay synchronization task of spec §4.7: it locates
// the greatest-confirmed prefix of the anchoring chain in Bitcoin and
// broadcasts one successor per call.
type BitcoinSync struct {
	Store *storage.Store
	Relay relay.Relay
}

// Process walks the anchoring chain backward looking for a confirmed
// transaction, then broadcasts its immediate successor (spec §4.7).
//
// lastKnownConfirmed, when set, is trusted without re-querying the relay:
// it names an index the caller already established as confirmed on a
// prior call, so the search only re-examines indices at or above it
// (spec §8 scenario 4's second call re-checks only tx_chain[last_known],
// not indices below it). When lastKnownConfirmed is nil the search has no
// trusted floor and must bottom out at the chain's external anchor: the
// first anchoring transaction's funding predecessor.
func (s *BitcoinSync) Process(ctx context.Context, lastKnownConfirmed *uint64) (*uint64, error) {
	snap, err := s.Store.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Close()
	sch := schema.New(snap)

	n, err := sch.AnchoringTxsChainLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	floor := 0
	if lastKnownConfirmed != nil {
		floor = int(*lastKnownConfirmed)
		if floor >= n {
			floor = n - 1
		}
	}

	confirmedIdx := -1
	for i := n - 1; i >= floor; i-- {
		tx, err := sch.AnchoringTxAt(i)
		if err != nil {
			return nil, err
		}
		confs, err := s.Relay.TransactionConfirmations(ctx, tx.ID())
		if err != nil {
			return nil, fmt.Errorf("%w: %s", config.ErrRelay, err)
		}
		if confs != nil {
			confirmedIdx = i
			break
		}
	}

	if confirmedIdx >= 0 {
		if confirmedIdx+1 < n {
			successor, err := sch.AnchoringTxAt(confirmedIdx + 1)
			if err != nil {
				return nil, err
			}
			if _, err := s.Relay.SendTransaction(ctx, successor.MsgTx); err != nil {
				return nil, fmt.Errorf("%w: %s", config.ErrRelay, err)
			}
		}
		result := uint64(confirmedIdx)
		return &result, nil
	}

	if floor == 0 {
		first, err := sch.AnchoringTxAt(0)
		if err != nil {
			return nil, err
		}
		prevTxID, err := first.PrevTxID()
		if err != nil {
			return nil, err
		}
		confs, err := s.Relay.TransactionConfirmations(ctx, prevTxID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", config.ErrRelay, err)
		}
		if confs == nil {
			return nil, fmt.Errorf("%w: %s", config.ErrUnconfirmedFundingTransaction, prevTxID)
		}

		if _, err := s.Relay.SendTransaction(ctx, first.MsgTx); err != nil {
			return nil, fmt.Errorf("%w: %s", config.ErrRelay, err)
		}
		result := uint64(0)
		return &result, nil
	}

	target, err := sch.AnchoringTxAt(floor)
	if err != nil {
		return nil, err
	}
	if _, err := s.Relay.SendTransaction(ctx, target.MsgTx); err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrRelay, err)
	}
	result := uint64(floor)
	return &result, nil
}
