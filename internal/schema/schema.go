// Package schema provides a typed view over the persistent indices of
// spec §3 ("Persistent indices (Schema)"), layered on top of
// internal/storage's raw Snapshot/Fork transactions.
package schema

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// reader is satisfied by both *storage.Snapshot and *storage.Fork.
type reader interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Schema is a read-only view over the service's persistent state.
type Schema struct {
	r reader
}

// New wraps a Snapshot or Fork with the typed accessors below.
func New(r reader) *Schema {
	return &Schema{r: r}
}

// ActualConfig returns the currently active committee configuration.
func (s *Schema) ActualConfig() (*anchoring.Config, error) {
	var raw []byte
	err := s.r.QueryRow("SELECT config_bytes FROM actual_config WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load actual_config: %w", err)
	}
	return DecodeConfig(raw)
}

// FollowingConfig returns the pending committee configuration awaiting
// promotion, or nil if none is set.
func (s *Schema) FollowingConfig() (*anchoring.Config, error) {
	var raw []byte
	err := s.r.QueryRow("SELECT config_bytes FROM following_config WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load following_config: %w", err)
	}
	return DecodeConfig(raw)
}

// AnchoringTxsChainLen returns the number of finalized anchoring
// transactions.
func (s *Schema) AnchoringTxsChainLen() (int, error) {
	var n int
	if err := s.r.QueryRow("SELECT COUNT(*) FROM anchoring_txs_chain").Scan(&n); err != nil {
		return 0, fmt.Errorf("count anchoring_txs_chain: %w", err)
	}
	return n, nil
}

// AnchoringTxAt returns the finalized anchoring transaction at chain index
// idx.
func (s *Schema) AnchoringTxAt(idx int) (*btc.Transaction, error) {
	var raw []byte
	err := s.r.QueryRow("SELECT tx_bytes FROM anchoring_txs_chain WHERE idx = ?", idx).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("anchoring transaction at index %d not found", idx)
	}
	if err != nil {
		return nil, fmt.Errorf("load anchoring transaction %d: %w", idx, err)
	}
	tx, err := codec.DecodeTransaction(raw)
	if err != nil {
		return nil, err
	}
	return btc.NewTransaction(tx), nil
}

// LastAnchoringTx returns the most recently finalized anchoring
// transaction, or nil if the chain is empty.
func (s *Schema) LastAnchoringTx() (*btc.Transaction, error) {
	n, err := s.AnchoringTxsChainLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.AnchoringTxAt(n - 1)
}

// InputSignatures returns every signature collected so far for input i of
// transaction txID.
func (s *Schema) InputSignatures(txID chainhash.Hash, input uint32) ([]btc.InputSignature, error) {
	rows, err := s.r.Query(
		"SELECT validator_index, signature FROM transaction_signatures WHERE tx_id = ? AND input_index = ?",
		txID.String(), input,
	)
	if err != nil {
		return nil, fmt.Errorf("query input signatures: %w", err)
	}
	defer rows.Close()

	var sigs []btc.InputSignature
	for rows.Next() {
		var sig btc.InputSignature
		if err := rows.Scan(&sig.ValidatorIndex, &sig.Signature); err != nil {
			return nil, fmt.Errorf("scan input signature: %w", err)
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate input signatures: %w", err)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].ValidatorIndex < sigs[j].ValidatorIndex })
	return sigs, nil
}

// HasSignature reports whether validatorIndex has already signed input of
// txID (SignInput handler dedup, spec §4.5 "AlreadySigned").
func (s *Schema) HasSignature(txID chainhash.Hash, input uint32, validatorIndex int) (bool, error) {
	var n int
	err := s.r.QueryRow(
		"SELECT COUNT(*) FROM transaction_signatures WHERE tx_id = ? AND input_index = ? AND validator_index = ?",
		txID.String(), input, validatorIndex,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check existing signature: %w", err)
	}
	return n > 0, nil
}

// UnspentFundingTransaction returns the declared, unconsumed funding UTXO,
// or nil if none is set.
func (s *Schema) UnspentFundingTransaction() (*btc.Transaction, error) {
	var raw []byte
	err := s.r.QueryRow("SELECT tx_bytes FROM unspent_funding_transaction WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load unspent_funding_transaction: %w", err)
	}
	tx, err := codec.DecodeTransaction(raw)
	if err != nil {
		return nil, err
	}
	return btc.NewTransaction(tx), nil
}

// IsFundingTransactionSpent reports whether txID is already in
// spent_funding_transactions.
func (s *Schema) IsFundingTransactionSpent(txID chainhash.Hash) (bool, error) {
	var n int
	err := s.r.QueryRow("SELECT COUNT(*) FROM spent_funding_transactions WHERE tx_id = ?", txID.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check spent_funding_transactions: %w", err)
	}
	return n > 0, nil
}

// AnchoredBlockAt returns the host-chain block hash observed at height and
// true, or a zero hash and false if none has been recorded yet.
func (s *Schema) AnchoredBlockAt(height uint64) ([32]byte, bool, error) {
	var raw []byte
	err := s.r.QueryRow("SELECT block_hash FROM anchored_blocks WHERE height = ?", height).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return [32]byte{}, false, nil
	}
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("load anchored block at height %d: %w", height, err)
	}
	var hash [32]byte
	copy(hash[:], raw)
	return hash, true, nil
}

// LatestAnchoredHeight returns the greatest height with a recorded block
// hash, and whether any height has been recorded at all.
func (s *Schema) LatestAnchoredHeight() (uint64, bool, error) {
	var height sql.NullInt64
	err := s.r.QueryRow("SELECT MAX(height) FROM anchored_blocks").Scan(&height)
	if err != nil {
		return 0, false, fmt.Errorf("load latest anchored height: %w", err)
	}
	if !height.Valid {
		return 0, false, nil
	}
	return uint64(height.Int64), true, nil
}

// ValidatorLECT returns a validator's belief of the anchoring chain tip.
func (s *Schema) ValidatorLECT(validatorIndex int) (msgHash, txID string, found bool, err error) {
	row := s.r.QueryRow("SELECT msg_hash, tx_id FROM validator_lects WHERE validator_index = ?", validatorIndex)
	if scanErr := row.Scan(&msgHash, &txID); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("load validator lect for %d: %w", validatorIndex, scanErr)
	}
	return msgHash, txID, true, nil
}

// Writer wraps a *storage.Fork with the schema's write-side helpers; only
// on-chain handler code should hold one.
type Writer struct {
	*Schema
	fork *storage.Fork
}

// NewWriter wraps a fork for on-chain handler execution.
func NewWriter(fork *storage.Fork) *Writer {
	return &Writer{Schema: New(fork), fork: fork}
}

// SetActualConfig installs cfg as the active committee configuration.
func (w *Writer) SetActualConfig(cfg *anchoring.Config) error {
	raw, err := EncodeConfig(cfg)
	if err != nil {
		return err
	}
	_, err = w.fork.Exec(
		`INSERT INTO actual_config (id, config_bytes, updated_at) VALUES (1, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET config_bytes = excluded.config_bytes, updated_at = excluded.updated_at`,
		raw,
	)
	if err != nil {
		return fmt.Errorf("set actual_config: %w", err)
	}
	return nil
}

// SetFollowingConfig installs cfg as the pending committee configuration.
func (w *Writer) SetFollowingConfig(cfg *anchoring.Config) error {
	raw, err := EncodeConfig(cfg)
	if err != nil {
		return err
	}
	_, err = w.fork.Exec(
		`INSERT INTO following_config (id, config_bytes, updated_at) VALUES (1, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET config_bytes = excluded.config_bytes, updated_at = excluded.updated_at`,
		raw,
	)
	if err != nil {
		return fmt.Errorf("set following_config: %w", err)
	}
	return nil
}

// ClearFollowingConfig removes the pending configuration slot, called once
// it has been promoted into actual_config.
func (w *Writer) ClearFollowingConfig() error {
	if _, err := w.fork.Exec("DELETE FROM following_config WHERE id = 1"); err != nil {
		return fmt.Errorf("clear following_config: %w", err)
	}
	return nil
}

// AppendAnchoringTx appends tx as the next link in the finalized anchoring
// chain.
func (w *Writer) AppendAnchoringTx(tx *btc.Transaction) error {
	n, err := w.AnchoringTxsChainLen()
	if err != nil {
		return err
	}
	raw, err := codec.EncodeTransaction(tx.MsgTx)
	if err != nil {
		return err
	}
	id := tx.ID()
	if _, err := w.fork.Exec(
		"INSERT INTO anchoring_txs_chain (idx, tx_id, tx_bytes) VALUES (?, ?, ?)", n, id.String(), raw,
	); err != nil {
		return fmt.Errorf("append anchoring transaction: %w", err)
	}
	return nil
}

// InsertSignature records validatorIndex's signature over input of txID.
// Any insert failure, including the unique-constraint violation of a
// signature already present, is returned wrapped as config.ErrAlreadySigned.
func (w *Writer) InsertSignature(txID chainhash.Hash, input uint32, validatorIndex int, signature []byte) error {
	_, err := w.fork.Exec(
		"INSERT INTO transaction_signatures (tx_id, input_index, validator_index, signature) VALUES (?, ?, ?, ?)",
		txID.String(), input, validatorIndex, signature,
	)
	if err != nil {
		return fmt.Errorf("%w: %s", config.ErrAlreadySigned, err)
	}
	return nil
}

// SetUnspentFundingTransaction declares tx as the current unconsumed
// funding UTXO.
func (w *Writer) SetUnspentFundingTransaction(tx *btc.Transaction) error {
	raw, err := codec.EncodeTransaction(tx.MsgTx)
	if err != nil {
		return err
	}
	id := tx.ID()
	_, err = w.fork.Exec(
		`INSERT INTO unspent_funding_transaction (id, tx_id, tx_bytes, updated_at) VALUES (1, ?, ?, datetime('now'))
		 ON CONFLICT(id) DO UPDATE SET tx_id = excluded.tx_id, tx_bytes = excluded.tx_bytes, updated_at = excluded.updated_at`,
		id.String(), raw,
	)
	if err != nil {
		return fmt.Errorf("set unspent_funding_transaction: %w", err)
	}
	return nil
}

// ConsumeFundingTransaction moves txID from unspent_funding_transaction
// into spent_funding_transactions.
func (w *Writer) ConsumeFundingTransaction(txID chainhash.Hash) error {
	if _, err := w.fork.Exec("DELETE FROM unspent_funding_transaction WHERE id = 1 AND tx_id = ?", txID.String()); err != nil {
		return fmt.Errorf("clear unspent_funding_transaction: %w", err)
	}
	if _, err := w.fork.Exec(
		"INSERT OR IGNORE INTO spent_funding_transactions (tx_id) VALUES (?)", txID.String(),
	); err != nil {
		return fmt.Errorf("insert spent_funding_transactions: %w", err)
	}
	return nil
}

// AppendAnchoredBlock records the host-chain block hash observed at
// height (spec §6: before_commit appends the latest block hash).
func (w *Writer) AppendAnchoredBlock(height uint64, hash [32]byte) error {
	_, err := w.fork.Exec(
		"INSERT OR REPLACE INTO anchored_blocks (height, block_hash) VALUES (?, ?)", height, hash[:],
	)
	if err != nil {
		return fmt.Errorf("append anchored block: %w", err)
	}
	return nil
}

// SetValidatorLECT updates a validator's belief of the anchoring chain tip.
func (w *Writer) SetValidatorLECT(validatorIndex int, msgHash, txID string) error {
	_, err := w.fork.Exec(
		`INSERT INTO validator_lects (validator_index, msg_hash, tx_id, updated_at) VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(validator_index) DO UPDATE SET msg_hash = excluded.msg_hash, tx_id = excluded.tx_id, updated_at = excluded.updated_at`,
		validatorIndex, msgHash, txID,
	)
	if err != nil {
		return fmt.Errorf("set validator lect: %w", err)
	}
	return nil
}
