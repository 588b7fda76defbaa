package schema

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/chainkit/btcanchoring/internal/anchoring"
	"github.com/chainkit/btcanchoring/internal/btc"
	"github.com/chainkit/btcanchoring/internal/codec"
	"github.com/chainkit/btcanchoring/internal/config"
	"github.com/chainkit/btcanchoring/internal/hostkey"
)

const (
	cfgNetworkField  = protowire.Number(1)
	cfgIntervalField = protowire.Number(2)
	cfgFeeField      = protowire.Number(3)
	cfgKeysField     = protowire.Number(4)
	cfgFundingField  = protowire.Number(5)

	keysBitcoinField = protowire.Number(1)
	keysServiceField = protowire.Number(2)
)

// EncodeConfig serializes an anchoring.Config to its canonical wire form,
// the representation stored in the actual_config/following_config slots.
func EncodeConfig(cfg *anchoring.Config) ([]byte, error) {
	var buf []byte
	buf = protowire.AppendTag(buf, cfgNetworkField, protowire.BytesType)
	buf = protowire.AppendBytes(buf, []byte(cfg.Network))

	buf = protowire.AppendTag(buf, cfgIntervalField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, cfg.AnchoringInterval)

	buf = protowire.AppendTag(buf, cfgFeeField, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(cfg.TransactionFeeRate))

	for _, k := range cfg.AnchoringKeys {
		var entry []byte
		entry = protowire.AppendTag(entry, keysBitcoinField, protowire.BytesType)
		entry = protowire.AppendBytes(entry, k.BitcoinKey.Bytes())
		entry = protowire.AppendTag(entry, keysServiceField, protowire.BytesType)
		entry = protowire.AppendBytes(entry, k.ServiceKey.Bytes())

		buf = protowire.AppendTag(buf, cfgKeysField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, entry)
	}

	if cfg.FundingTransaction != nil {
		txBytes, err := codec.EncodeTransaction(cfg.FundingTransaction)
		if err != nil {
			return nil, err
		}
		buf = protowire.AppendTag(buf, cfgFundingField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, txBytes)
	}

	return buf, nil
}

// DecodeConfig parses the wire form produced by EncodeConfig.
func DecodeConfig(data []byte) (*anchoring.Config, error) {
	cfg := &anchoring.Config{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: config: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case cfgNetworkField:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: config network: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			cfg.Network = btc.Network(b)
		case cfgIntervalField:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: config interval: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			cfg.AnchoringInterval = v
		case cfgFeeField:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: config fee: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			cfg.TransactionFeeRate = int64(v)
		case cfgKeysField:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: config keys: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			keys, err := decodeAnchoringKeys(b)
			if err != nil {
				return nil, err
			}
			cfg.AnchoringKeys = append(cfg.AnchoringKeys, keys)
		case cfgFundingField:
			b, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("%w: config funding: %s", config.ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			tx, err := codec.DecodeTransaction(b)
			if err != nil {
				return nil, err
			}
			cfg.FundingTransaction = tx
		default:
			if typ == protowire.BytesType {
				_, n := protowire.ConsumeBytes(data)
				data = data[n:]
			} else {
				_, n := protowire.ConsumeVarint(data)
				data = data[n:]
			}
		}
	}

	return cfg, nil
}

func decodeAnchoringKeys(data []byte) (anchoring.AnchoringKeys, error) {
	var keys anchoring.AnchoringKeys
	for len(data) > 0 {
		num, _, n := protowire.ConsumeTag(data)
		if n < 0 {
			return keys, fmt.Errorf("%w: anchoring_keys: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return keys, fmt.Errorf("%w: anchoring_keys field %d: %s", config.ErrDecode, num, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case keysBitcoinField:
			k, err := btc.ParsePublicKey(b)
			if err != nil {
				return keys, fmt.Errorf("%w: anchoring_keys bitcoin_key: %s", config.ErrDecode, err)
			}
			keys.BitcoinKey = k
		case keysServiceField:
			k, err := hostkey.ParsePublicKey(b)
			if err != nil {
				return keys, fmt.Errorf("%w: anchoring_keys service_key: %s", config.ErrDecode, err)
			}
			keys.ServiceKey = k
		default:
			return keys, fmt.Errorf("%w: anchoring_keys: unexpected field %d", config.ErrDecode, num)
		}
	}
	return keys, nil
}
