package btc

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

const (
	payloadMarker  byte = 0x45 // 'E'
	payloadVersion byte = 1
	payloadLen          = 1 + 1 + 8 + 32
)

// Payload is the fixed-width data embedded in an anchoring transaction's
// OP_RETURN output (spec §3, §6 "Wire formats").
type Payload struct {
	BlockHeight uint64
	BlockHash   [32]byte
}

// Encode serializes the payload to its wire form:
// marker(1) || version(1) || block_height LE(8) || block_hash(32).
func (p Payload) Encode() []byte {
	buf := make([]byte, payloadLen)
	buf[0] = payloadMarker
	buf[1] = payloadVersion
	binary.LittleEndian.PutUint64(buf[2:10], p.BlockHeight)
	copy(buf[10:42], p.BlockHash[:])
	return buf
}

// DecodePayload parses the wire form produced by Encode.
func DecodePayload(b []byte) (Payload, error) {
	var p Payload
	if len(b) != payloadLen {
		return p, fmt.Errorf("%w: payload must be %d bytes, got %d", errDecode, payloadLen, len(b))
	}
	if b[0] != payloadMarker {
		return p, fmt.Errorf("%w: unexpected payload marker 0x%02x", errDecode, b[0])
	}
	if b[1] != payloadVersion {
		return p, fmt.Errorf("%w: unsupported payload version %d", errDecode, b[1])
	}
	p.BlockHeight = binary.LittleEndian.Uint64(b[2:10])
	copy(p.BlockHash[:], b[10:42])
	return p, nil
}

// OpReturnScript builds the OP_RETURN scriptPubKey carrying the payload.
func OpReturnScript(p Payload) ([]byte, error) {
	return txscript.NullDataScript(p.Encode())
}

// ExtractPayload reads the payload back out of an OP_RETURN scriptPubKey.
func ExtractPayload(script []byte) (Payload, error) {
	data, err := txscript.ExtractPushDatas(0, script)
	if err != nil {
		return Payload{}, fmt.Errorf("parse OP_RETURN script: %w", err)
	}
	if len(data) != 1 {
		return Payload{}, fmt.Errorf("%w: OP_RETURN script does not carry a single payload push", errDecode)
	}
	return DecodePayload(data[0])
}
