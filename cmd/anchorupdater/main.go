// Command anchorupdater is the validator daemon of spec §4.6/§4.7: it runs
// the ChainUpdater and BitcoinSync off-chain tasks on independent tickers,
// observing the shared store read-only and submitting signed message
// envelopes to anchornode's private API over HTTP.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainkit/btcanchoring/internal/api"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/hostkey"
	"github.com/chainkit/btcanchoring/internal/logging"
	"github.com/chainkit/btcanchoring/internal/relay"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/storage"
	"github.com/chainkit/btcanchoring/internal/tasks"
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
		"anchorupdater-%s-%s.log",
		"anchorupdater-",
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if cfg.ServiceKeyHex == "" || cfg.BitcoinKeyWIF == "" {
		slog.Error("anchorupdater requires ANCHOR_SERVICE_KEY and ANCHOR_BITCOIN_KEY_WIF")
		os.Exit(1)
	}

	serviceKey, err := hostkey.PrivateKeyFromBytes(mustHexDecode(cfg.ServiceKeyHex))
	if err != nil {
		slog.Error("failed to load service key", "error", err)
		os.Exit(1)
	}
	bitcoinKey, err := btc.PrivateKeyFromWIF(cfg.BitcoinKeyWIF)
	if err != nil {
		slog.Error("failed to load bitcoin key", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	slog.Info("anchorupdater starting",
		"network", cfg.Network,
		"dbPath", cfg.DBPath,
		"privateAPIURL", cfg.PrivateAPIURL,
		"serviceKey", serviceKey.PublicKey().String(),
		"bitcoinKey", bitcoinKey.PublicKey().String(),
	)

	heightFn := func() uint64 {
		snap, err := store.Snapshot()
		if err != nil {
			return 0
		}
		defer snap.Close()
		h, found, err := schema.New(snap).LatestAnchoredHeight()
		if err != nil || !found {
			return 0
		}
		return h
	}

	client := api.NewClient(cfg.PrivateAPIURL, heightFn)

	updater := &tasks.ChainUpdater{
		Store:      store,
		Client:     client,
		ServiceKey: serviceKey,
		BitcoinKey: bitcoinKey,
	}

	relayURLs := cfg.RelayURLList()
	if len(relayURLs) == 0 {
		slog.Error("anchorupdater requires at least one ANCHOR_RELAY_URLS entry")
		os.Exit(1)
	}
	sync := &tasks.BitcoinSync{
		Store: store,
		Relay: relay.NewEsploraClient(relayURLs[0]),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var lastConfirmed *uint64
	go runChainUpdater(ctx, updater, heightFn, time.Duration(cfg.ChainUpdaterInterval)*time.Second)
	go runBitcoinSync(ctx, sync, &lastConfirmed, time.Duration(cfg.SyncInterval)*time.Second)

	<-ctx.Done()
	slog.Info("anchorupdater shutting down")
}

// runChainUpdater invokes ChainUpdater.Process on a fixed interval (spec
// §4.6: "Single-shot process() invoked on a timer by each validator").
func runChainUpdater(ctx context.Context, u *tasks.ChainUpdater, heightFn func() uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h := heightFn()
			if err := u.Process(ctx, h); err != nil {
				slog.Warn("chain updater cycle", "height", h, "error", err)
			}
		}
	}
}

// runBitcoinSync invokes BitcoinSync.Process on a fixed interval (spec
// §4.7), threading the last confirmed index returned from one call into
// the floor of the next (spec §4.7 "subsequent calls advance one at a
// time").
func runBitcoinSync(ctx context.Context, s *tasks.BitcoinSync, lastConfirmed **uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			confirmed, err := s.Process(ctx, *lastConfirmed)
			if err != nil {
				slog.Warn("bitcoin sync cycle", "error", err)
				continue
			}
			if confirmed != nil {
				*lastConfirmed = confirmed
			}
		}
	}
}

func mustHexDecode(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		slog.Error("failed to decode hex key material", "error", err)
		os.Exit(1)
	}
	return b
}
