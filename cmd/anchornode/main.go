// Command anchornode runs the host-chain side of the anchoring service: the
// persistent store, the on-chain handlers reached through the private API,
// and the public/private HTTP endpoints of spec §6. It stands in for the
// service module a real BFT host-chain runtime would load and drive.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainkit/btcanchoring/internal/api"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/logging"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/service"
	"github.com/chainkit/btcanchoring/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.SetupWithPrefix(
		cfg.LogLevel,
		cfg.LogDir,
		"anchornode-%s-%s.log",
		"anchornode-",
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	slog.Info("anchornode starting",
		"port", cfg.Port,
		"network", cfg.Network,
		"dbPath", cfg.DBPath,
		"instanceName", cfg.InstanceName,
	)

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.RunMigrations(); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("storage ready", "path", cfg.DBPath)

	router := api.NewRouter(store, cfg.Network)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runBlockDriver(ctx, store)

	go func() {
		slog.Info("anchornode HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("anchornode shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

// runBlockDriver stands in for the host-chain runtime's own before_commit
// hook (spec §6), which in a real deployment appends the latest block hash
// on every committed block. No host chain is wired into this binary (spec
// §1 "Non-goals" scopes consensus out), so this ticker synthesizes
// successive block hashes at a fixed cadence purely so anchornode is
// runnable standalone; it is the only piece of this command not grounded
// in spec §6 directly. Real deployments replace this with the host
// runtime's call into service.BeforeCommit.
func runBlockDriver(ctx context.Context, store *storage.Store) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := advanceOneBlock(store); err != nil {
				slog.Error("block driver: advance block failed", "error", err)
			}
		}
	}
}

func advanceOneBlock(store *storage.Store) error {
	snap, err := store.Snapshot()
	if err != nil {
		return err
	}
	height, found, err := schema.New(snap).LatestAnchoredHeight()
	snap.Close()
	if err != nil {
		return err
	}

	next := uint64(0)
	if found {
		next = height + 1
	}

	fork, err := store.Fork()
	if err != nil {
		return err
	}
	if err := service.BeforeCommit(fork, next, syntheticBlockHash(next)); err != nil {
		fork.Rollback()
		return err
	}
	return fork.Commit()
}

// syntheticBlockHash derives a deterministic placeholder block hash for
// height, standing in for whatever real header hash the host chain would
// supply at before_commit time.
func syntheticBlockHash(height uint64) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return sha256.Sum256(buf[:])
}
