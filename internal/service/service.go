// Package service provides the lifecycle glue the host-chain runtime
// drives directly (spec §6 "Lifecycle"): genesis initialization, the
// per-block before_commit hook, and the service's state_hash contribution
// to block header commitment.
package service

import (
	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
)

// Initialize installs cfg as the service's genesis configuration (spec
// §4.8 "initialize(params) validates the config and installs it as
// actual_config"). If cfg carries a legacy funding transaction, it is also
// placed into unspent_funding_transaction (spec §9 "Funding-tx-in-config
// leakage": honored at init, deprecated for new deployments in favor of
// AddFunds).
func Initialize(store *storage.Store, cfg *anchoring.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	fork, err := store.Fork()
	if err != nil {
		return err
	}
	w := schema.NewWriter(fork)

	if err := w.SetActualConfig(cfg); err != nil {
		fork.Rollback()
		return err
	}

	if cfg.FundingTransaction != nil {
		tx := btc.NewTransaction(cfg.FundingTransaction)
		if err := w.SetUnspentFundingTransaction(tx); err != nil {
			fork.Rollback()
			return err
		}
	}

	return fork.Commit()
}

// BeforeCommit appends the latest host-chain block hash to anchored_blocks
// (spec §6 "before_commit(fork) which appends the latest block hash"), the
// only input the proposal builder needs from block processing beyond the
// stored indices.
func BeforeCommit(fork *storage.Fork, height uint64, blockHash [32]byte) error {
	w := schema.NewWriter(fork)
	return w.AppendAnchoredBlock(height, blockHash)
}

// StateHash returns one content hash per persistent index, the service's
// contribution to the host chain's overall state hash commitment (spec §6
// "state_hash(snapshot) -> list of Hash"). Order is fixed so every
// validator computes an identical list.
func StateHash(sch *schema.Schema) ([][32]byte, error) {
	var hashes [][32]byte

	actualCfg, err := sch.ActualConfig()
	if err != nil {
		return nil, err
	}
	hashes = append(hashes, hashConfig(actualCfg))

	followingCfg, err := sch.FollowingConfig()
	if err != nil {
		return nil, err
	}
	hashes = append(hashes, hashConfig(followingCfg))

	n, err := sch.AnchoringTxsChainLen()
	if err != nil {
		return nil, err
	}
	var chainDigest []byte
	for i := 0; i < n; i++ {
		tx, err := sch.AnchoringTxAt(i)
		if err != nil {
			return nil, err
		}
		id := tx.ID()
		chainDigest = append(chainDigest, id[:]...)
	}
	hashes = append(hashes, [32]byte(codec.Hash(chainDigest)))

	unspent, err := sch.UnspentFundingTransaction()
	if err != nil {
		return nil, err
	}
	var fundingDigest []byte
	if unspent != nil {
		id := unspent.ID()
		fundingDigest = id[:]
	}
	hashes = append(hashes, [32]byte(codec.Hash(fundingDigest)))

	return hashes, nil
}

func hashConfig(cfg *anchoring.Config) [32]byte {
	if cfg == nil {
		return [32]byte(codec.Hash(nil))
	}
	raw, err := schema.EncodeConfig(cfg)
	if err != nil {
		return [32]byte(codec.Hash(nil))
	}
	return [32]byte(codec.Hash(raw))
}
