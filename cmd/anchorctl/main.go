// Command anchorctl is the operator CLI: it installs the genesis
// committee configuration, generates and inspects validator keys, and
// reads back the current config/proposal without standing up the HTTP
// API (spec §4.8 "initialize(params)", §6 "current Config"/"current
// AnchoringProposalState").
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/hostkey"
	"github.com/chainkit/btcanchoring/internal/models"
	"github.com/chainkit/btcanchoring/internal/proposal"
	"github.com/chainkit/btcanchoring/internal/schema"
	"github.com/chainkit/btcanchoring/internal/service"
	"github.com/chainkit/btcanchoring/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "genkey":
		err = cmdGenKey(os.Args[2:])
	case "keyinfo":
		err = cmdKeyInfo(os.Args[2:])
	case "init":
		err = cmdInit(os.Args[2:])
	case "config":
		err = cmdConfig(os.Args[2:])
	case "proposal":
		err = cmdProposal(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "anchorctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: anchorctl <command> [flags]

commands:
  genkey                generate a fresh committee member keypair (bitcoin + service key)
  keyinfo               render base58/hex views of an existing keypair
  init                  install the genesis committee configuration into a store
  config                print the active committee configuration
  proposal              print the anchoring proposal at a given height`)
}

// committeeMemberJSON is the wire shape of one committee entry in the JSON
// file accepted by "init".
type committeeMemberJSON struct {
	BitcoinKeyHex string `json:"bitcoinKey"`
	ServiceKeyHex string `json:"serviceKey"`
}

func cmdGenKey(args []string) error {
	fs := flag.NewFlagSet("genkey", flag.ExitOnError)
	network := fs.String("network", "testnet", "bitcoin network: mainnet/testnet/regtest/signet")
	fs.Parse(args)

	net, err := btc.Network(*network).Params()
	if err != nil {
		return fmt.Errorf("invalid network: %w", err)
	}

	btcKey, err := btc.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate bitcoin key: %w", err)
	}
	svcKey, err := hostkey.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate service key: %w", err)
	}

	wif, err := btcKey.WIF(net)
	if err != nil {
		return fmt.Errorf("encode bitcoin WIF: %w", err)
	}

	fmt.Printf("bitcoinKeyWIF:     %s\n", wif)
	fmt.Printf("bitcoinKeyHex:     %s\n", btcKey.PublicKey().String())
	fmt.Printf("serviceKeyHex:     %s\n", hex.EncodeToString(svcKey.Bytes()))
	fmt.Printf("servicePublicKey:  %s\n", svcKey.PublicKey().String())
	return nil
}

func cmdKeyInfo(args []string) error {
	fs := flag.NewFlagSet("keyinfo", flag.ExitOnError)
	bitcoinHex := fs.String("bitcoin-key", "", "hex-encoded compressed bitcoin public key")
	serviceHex := fs.String("service-key", "", "hex-encoded compressed service public key")
	fs.Parse(args)

	if *bitcoinHex == "" || *serviceHex == "" {
		return fmt.Errorf("-bitcoin-key and -service-key are required")
	}

	bitcoinKey, err := btc.ParsePublicKeyHex(*bitcoinHex)
	if err != nil {
		return fmt.Errorf("parse bitcoin key: %w", err)
	}
	serviceKey, err := hostkey.ParsePublicKeyHex(*serviceHex)
	if err != nil {
		return fmt.Errorf("parse service key: %w", err)
	}

	view := models.NewAnchoringKeysView(anchoring.AnchoringKeys{BitcoinKey: bitcoinKey, ServiceKey: serviceKey})
	return printJSON(view)
}

func cmdInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dbPath := fs.String("db", "./data/anchoring.sqlite", "path to the SQLite store")
	network := fs.String("network", "testnet", "bitcoin network: mainnet/testnet/regtest/signet")
	interval := fs.Uint64("interval", 5000, "anchoring interval in host-chain blocks")
	feeRate := fs.Int64("fee", 10, "transaction fee in satoshis per virtual byte")
	committeePath := fs.String("committee", "", "path to a committee JSON file (array of {bitcoinKey, serviceKey} hex pairs)")
	fundingTxHex := fs.String("funding-tx", "", "optional hex-encoded legacy funding transaction (spec §9 funding-tx-in-config leakage)")
	fs.Parse(args)

	if *committeePath == "" {
		return fmt.Errorf("-committee is required")
	}

	raw, err := os.ReadFile(*committeePath)
	if err != nil {
		return fmt.Errorf("read committee file: %w", err)
	}
	var members []committeeMemberJSON
	if err := json.Unmarshal(raw, &members); err != nil {
		return fmt.Errorf("parse committee file: %w", err)
	}
	if len(members) == 0 {
		return fmt.Errorf("committee file must list at least one member")
	}

	keys := make([]anchoring.AnchoringKeys, len(members))
	for i, m := range members {
		bitcoinKey, err := btc.ParsePublicKeyHex(m.BitcoinKeyHex)
		if err != nil {
			return fmt.Errorf("committee member %d: parse bitcoin key: %w", i, err)
		}
		serviceKey, err := hostkey.ParsePublicKeyHex(m.ServiceKeyHex)
		if err != nil {
			return fmt.Errorf("committee member %d: parse service key: %w", i, err)
		}
		keys[i] = anchoring.AnchoringKeys{BitcoinKey: bitcoinKey, ServiceKey: serviceKey}
	}

	cfg := &anchoring.Config{
		Network:            btc.Network(*network),
		AnchoringKeys:      keys,
		AnchoringInterval:  *interval,
		TransactionFeeRate: *feeRate,
	}

	if *fundingTxHex != "" {
		fundingBytes, err := hex.DecodeString(*fundingTxHex)
		if err != nil {
			return fmt.Errorf("decode funding transaction hex: %w", err)
		}
		tx, err := codec.DecodeTransaction(fundingBytes)
		if err != nil {
			return fmt.Errorf("decode funding transaction: %w", err)
		}
		cfg.FundingTransaction = tx
	}

	store, err := storage.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if err := store.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if err := service.Initialize(store, cfg); err != nil {
		return fmt.Errorf("initialize genesis config: %w", err)
	}

	addr, err := cfg.AnchoringAddress()
	if err != nil {
		return fmt.Errorf("derive anchoring address: %w", err)
	}
	fmt.Printf("initialized committee of %d, quorum %d, anchoring address %s\n",
		len(keys), anchoring.ByzantineQuorum(len(keys)), addr.String())
	return nil
}

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	dbPath := fs.String("db", "./data/anchoring.sqlite", "path to the SQLite store")
	fs.Parse(args)

	store, err := storage.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	snap, err := store.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Close()

	cfg, err := schema.New(snap).ActualConfig()
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("service has not been initialized")
	}

	view, err := models.NewConfigView(cfg)
	if err != nil {
		return err
	}
	return printJSON(view)
}

func cmdProposal(args []string) error {
	fs := flag.NewFlagSet("proposal", flag.ExitOnError)
	dbPath := fs.String("db", "./data/anchoring.sqlite", "path to the SQLite store")
	height := fs.Uint64("height", 0, "host-chain height to build the proposal against")
	fs.Parse(args)

	store, err := storage.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	snap, err := store.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Close()

	prop, err := proposal.BuildFromSnapshot(schema.New(snap), *height)
	if err != nil {
		return err
	}

	out := map[string]any{
		"state":           proposalStateName(prop.State),
		"anchoringHeight": prop.AnchoringHeight,
	}
	switch prop.State {
	case proposal.StateInsufficientFunds:
		out["balance"] = prop.Balance
		out["totalFee"] = prop.TotalFee
	case proposal.StateAvailable:
		txBytes, err := codec.EncodeTransaction(prop.Tx)
		if err != nil {
			return err
		}
		id := btc.NewTransaction(prop.Tx).ID()
		out["txId"] = id.String()
		out["txHex"] = hex.EncodeToString(txBytes)
		out["totalFee"] = prop.TotalFee
	}
	return printJSON(out)
}

func proposalStateName(s proposal.State) string {
	switch s {
	case proposal.StateNone:
		return "none"
	case proposal.StateNoInitialFunds:
		return "no_initial_funds"
	case proposal.StateInsufficientFunds:
		return "insufficient_funds"
	case proposal.StateAvailable:
		return "available"
	default:
		return "unknown"
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
