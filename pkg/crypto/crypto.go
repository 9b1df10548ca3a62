// Package crypto provides the pluggable signature schemes used by Stratus
// accounts: the chain-native SM suite (SM2/SM3) and the Ethereum-compatible
// suite (secp256k1/Keccak-256).
//
// The scheme is selected at runtime by the account's crypto type so both
// variants coexist in one binary.
package crypto

import (
	"fmt"
	"strings"

	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// Type identifies a signature scheme.
type Type uint8

const (
	// Sm is the chain-native scheme: SM2 signatures, SM3 hashing.
	Sm Type = iota
	// Eth is the Ethereum-compatible scheme: recoverable secp256k1
	// ECDSA signatures, Keccak-256 hashing.
	Eth
)

// String returns the canonical upper-case name of the type.
func (t Type) String() string {
	switch t {
	case Sm:
		return "SM"
	case Eth:
		return "ETH"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType parses a crypto type name, case-insensitively.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(s) {
	case "SM":
		return Sm, nil
	case "ETH":
		return Eth, nil
	default:
		return 0, fmt.Errorf("unknown crypto type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	switch t {
	case Sm, Eth:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("unknown crypto type %d", uint8(t))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scheme is the contract every signature scheme implements. An account's
// scheme is fixed at creation and recorded next to the key, so it is never
// ambiguous which variant signs or derives addresses for it.
type Scheme interface {
	// Type returns the scheme identifier.
	Type() Type

	// GenerateKeypair creates a fresh random keypair.
	GenerateKeypair() (pub, sk []byte, err error)

	// PublicFromSecret recomputes the public key from a secret key.
	PublicFromSecret(sk []byte) ([]byte, error)

	// Sign signs a message with the secret key. The scheme applies its
	// own hashing convention internally; sig is verifiable by Verify.
	Sign(sk, pub, msg []byte) ([]byte, error)

	// Verify reports whether sig is a valid signature over msg by the
	// holder of pub. It returns false on any parse error.
	Verify(pub, sig, msg []byte) bool

	// Hash computes the scheme digest of data.
	Hash(data []byte) types.Hash

	// DeriveAddress derives the account address from a public key.
	DeriveAddress(pub []byte) (types.Address, error)

	PublicKeySize() int
	SecretKeySize() int
	SignatureSize() int
}

// SchemeFor returns the scheme implementation for a crypto type.
// The type must be one produced by ParseType.
func SchemeFor(t Type) Scheme {
	switch t {
	case Sm:
		return smScheme{}
	case Eth:
		return ethScheme{}
	default:
		panic(fmt.Sprintf("crypto: no scheme for type %d", uint8(t)))
	}
}
