package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds process configuration loaded from environment variables.
// The same struct is shared by all three entry points (anchornode,
// anchorupdater, anchorctl); each binary only reads the fields it needs.
type Config struct {
	Network string `envconfig:"ANCHOR_NETWORK" default:"testnet"`

	DBPath   string `envconfig:"ANCHOR_DB_PATH" default:"./data/anchoring.sqlite"`
	Port     int    `envconfig:"ANCHOR_PORT" default:"8080"`
	LogLevel string `envconfig:"ANCHOR_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"ANCHOR_LOG_DIR" default:"./logs"`

	InstanceName string `envconfig:"ANCHOR_INSTANCE_NAME" default:"btc_anchoring"`

	// RelayURLs is a comma-separated list of Esplora-compatible base URLs
	// used by the BitcoinSync task and the relay rate limiter.
	RelayURLs string `envconfig:"ANCHOR_RELAY_URLS" default:"https://blockstream.info/testnet/api"`

	// ChainUpdaterInterval and SyncInterval govern how often the
	// anchorupdater daemon re-runs the two off-chain tasks of spec §4.6/§4.7.
	ChainUpdaterInterval int `envconfig:"ANCHOR_CHAIN_UPDATE_INTERVAL_SECONDS" default:"10"`
	SyncInterval         int `envconfig:"ANCHOR_SYNC_INTERVAL_SECONDS" default:"30"`

	// ServiceKeyHex and BitcoinKeyWIF identify the local validator operated
	// by anchorupdater: its host-chain signing key and its Bitcoin private key.
	ServiceKeyHex string `envconfig:"ANCHOR_SERVICE_KEY"`
	BitcoinKeyWIF string `envconfig:"ANCHOR_BITCOIN_KEY_WIF"`

	// PrivateAPIURL is where anchorupdater submits SignInput/AddFunds.
	PrivateAPIURL string `envconfig:"ANCHOR_PRIVATE_API_URL" default:"http://127.0.0.1:8080"`
}

// Load reads configuration from a .env file (if present) then from the
// environment. Real environment variables always win over .env values.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		} else {
			slog.Info("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	switch c.Network {
	case "mainnet", "testnet", "regtest", "signet":
	default:
		return fmt.Errorf("%w: network must be one of mainnet/testnet/regtest/signet, got %q", ErrInvalidConfig, c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.ChainUpdaterInterval < 1 {
		return fmt.Errorf("%w: chain updater interval must be >= 1 second", ErrInvalidConfig)
	}
	if c.SyncInterval < 1 {
		return fmt.Errorf("%w: sync interval must be >= 1 second", ErrInvalidConfig)
	}
	return nil
}

// RelayURLList splits RelayURLs on commas, trimming whitespace and dropping
// empty entries.
func (c *Config) RelayURLList() []string {
	var out []string
	for _, u := range strings.Split(c.RelayURLs, ",") {
		u = strings.TrimSpace(u)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
