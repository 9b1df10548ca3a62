package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ValueSize is the length of a transaction value field in bytes (u256).
const ValueSize = 32

// Hex returns the 0x-prefixed lowercase hex encoding of arbitrary bytes.
func Hex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}

// ParseData decodes a 0x-prefixed or bare hex string of any even length.
func ParseData(s string) ([]byte, error) {
	raw := strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data %q: %w", s, err)
	}
	return b, nil
}

// ParseValue parses a hex-encoded u256 value, zero-padding short input on
// the left to 32 bytes. Input longer than 64 hex characters is an error.
func ParseValue(s string) ([ValueSize]byte, error) {
	var v [ValueSize]byte
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) > 2*ValueSize {
		return v, fmt.Errorf("value %q is longer than %d hex chars", s, 2*ValueSize)
	}
	padded := strings.Repeat("0", 2*ValueSize-len(raw)) + raw
	b, err := hex.DecodeString(padded)
	if err != nil {
		return v, fmt.Errorf("invalid value %q: %w", s, err)
	}
	copy(v[:], b)
	return v, nil
}
