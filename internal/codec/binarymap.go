// Package codec provides the canonical, bit-exact wire encoding for
// anchoring messages and small ordered maps, and the message envelope that
// carries a sender's signature over them.
package codec

import (
	"bytes"
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/chainkit/btcanchoring/internal/config"
)

// BinaryMap is a small map of byte-string keys to byte-string values with a
// canonical, deterministic wire encoding: entries sorted by key, each framed
// as a protobuf length-delimited (key, value) pair. Non-scalar domain types
// (validator indices, signatures, tx ids) are encoded to bytes by the caller
// before insertion, mirroring the source's protobuf-backed BinaryMap<K, V>.
type BinaryMap struct {
	entries map[string][]byte
}

// NewBinaryMap creates an empty BinaryMap.
func NewBinaryMap() *BinaryMap {
	return &BinaryMap{entries: make(map[string][]byte)}
}

// Set inserts or overwrites the value at key.
func (m *BinaryMap) Set(key, value []byte) {
	m.entries[string(key)] = append([]byte(nil), value...)
}

// Get returns the value at key and whether it was present.
func (m *BinaryMap) Get(key []byte) ([]byte, bool) {
	v, ok := m.entries[string(key)]
	return v, ok
}

// Len returns the number of entries.
func (m *BinaryMap) Len() int { return len(m.entries) }

// Keys returns the map's keys in canonical (ascending byte) order.
func (m *BinaryMap) Keys() [][]byte {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

const (
	binaryMapEntryField = protowire.Number(1)
	keyValueKeyField    = protowire.Number(1)
	keyValueValueField  = protowire.Number(2)
)

// Encode produces the canonical wire form: a length-delimited KeyValue
// submessage per entry, entries ordered by ascending key, so that
// identical maps always encode to identical bytes regardless of insertion
// order (spec §9 "Validator-index ordering" relies on this for signature
// maps keyed by validator index).
func (m *BinaryMap) Encode() []byte {
	var buf []byte
	for _, key := range m.Keys() {
		value := m.entries[string(key)]

		var kv []byte
		kv = protowire.AppendTag(kv, keyValueKeyField, protowire.BytesType)
		kv = protowire.AppendBytes(kv, key)
		kv = protowire.AppendTag(kv, keyValueValueField, protowire.BytesType)
		kv = protowire.AppendBytes(kv, value)

		buf = protowire.AppendTag(buf, binaryMapEntryField, protowire.BytesType)
		buf = protowire.AppendBytes(buf, kv)
	}
	return buf
}

// DecodeBinaryMap parses the wire form produced by Encode.
func DecodeBinaryMap(data []byte) (*BinaryMap, error) {
	m := NewBinaryMap()
	var lastKey []byte
	first := true

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: binary map: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]
		if num != binaryMapEntryField || typ != protowire.BytesType {
			return nil, fmt.Errorf("%w: binary map: unexpected field %d type %d", config.ErrDecode, num, typ)
		}

		entry, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: binary map entry: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]

		key, value, err := decodeKeyValue(entry)
		if err != nil {
			return nil, err
		}

		if !first && bytes.Compare(key, lastKey) <= 0 {
			return nil, fmt.Errorf("%w: binary map entries are not in canonical key order", config.ErrDecode)
		}
		first = false
		lastKey = key

		m.Set(key, value)
	}
	return m, nil
}

func decodeKeyValue(data []byte) (key, value []byte, err error) {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, nil, fmt.Errorf("%w: key_value: %s", config.ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]
		if typ != protowire.BytesType {
			return nil, nil, fmt.Errorf("%w: key_value: unexpected wire type %d", config.ErrDecode, typ)
		}
		b, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, nil, fmt.Errorf("%w: key_value field %d: %s", config.ErrDecode, num, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case keyValueKeyField:
			key = b
		case keyValueValueField:
			value = b
		default:
			return nil, nil, fmt.Errorf("%w: key_value: unexpected field %d", config.ErrDecode, num)
		}
	}
	if key == nil {
		return nil, nil, fmt.Errorf("%w: key_value missing key", config.ErrDecode)
	}
	return key, value, nil
}
