package codec

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/chainkit/btcanchoring/internal/config"
)

// EncodeTransaction serializes a Bitcoin transaction using canonical
// consensus encoding (including witness data), the representation stored
// in anchoring_txs_chain and carried inside SignInput/AddFunds bodies.
func EncodeTransaction(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTransaction parses the consensus encoding produced by
// EncodeTransaction.
func DecodeTransaction(data []byte) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(2)
	if err := tx.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%w: transaction: %s", config.ErrDecode, err)
	}
	return tx, nil
}

// Hash computes the stable double-SHA256 content hash of an arbitrary
// encoded value (spec §4.1: "hash(encode(x)) is a stable content hash").
func Hash(data []byte) chainhash.Hash {
	return chainhash.DoubleHashH(data)
}
