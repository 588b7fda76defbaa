// Package relay defines the Bitcoin relay collaborator of spec §6
// ("send_transaction", "transaction_confirmations") and an Esplora
// /mempool.space-compatible HTTP implementation, the only concrete
// network-facing dependency the Bitcoin Sync task (internal/tasks) uses.
package relay

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Relay is the collaborator interface spec §6 names: broadcast and
// confirmation-depth lookup. Both operations must be idempotent (spec §5
// invariant 3): repeated calls for the same transaction are safe.
type Relay interface {
	// SendTransaction broadcasts tx and returns its txid. Errors are
	// surfaced verbatim to the caller (spec §6).
	SendTransaction(ctx context.Context, tx *wire.MsgTx) (chainhash.Hash, error)
	// TransactionConfirmations reports the confirmation depth of txid, or
	// nil if it is unknown/unconfirmed.
	TransactionConfirmations(ctx context.Context, txid chainhash.Hash) (*uint32, error)
}
