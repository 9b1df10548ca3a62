// Package types defines core primitive types shared by the Stratus client.
package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressSize is the length of an address in bytes.
const AddressSize = 20

// Address represents a 160-bit account address (the low 20 bytes of the
// scheme hash of a public key).
type Address [AddressSize]byte

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Hex returns the 0x-prefixed lowercase hex encoding of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String returns the same representation as Hex.
func (a Address) String() string {
	return a.Hex()
}

// Bytes returns a copy of the address as a byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	copy(b, a[:])
	return b
}

// BytesToAddress converts a byte slice to an Address.
// The slice must be exactly AddressSize bytes.
func BytesToAddress(b []byte) (Address, error) {
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// ParseAddress parses a 0x-prefixed or bare hex address string.
// Short input is zero-padded on the left to 20 bytes; input longer than
// 40 hex characters is an error.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) > 2*AddressSize {
		return Address{}, fmt.Errorf("address %q is longer than %d hex chars", s, 2*AddressSize)
	}
	padded := strings.Repeat("0", 2*AddressSize-len(raw)) + raw
	b, err := hex.DecodeString(padded)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
