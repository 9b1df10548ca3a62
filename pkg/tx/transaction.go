// Package tx builds, canonically encodes and signs transactions for
// broadcast. It performs no network I/O: relative block heights are
// resolved by the caller and injected as absolute values, and the signed
// bytes are handed back for the transport layer to send.
package tx

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// MaxNonceLen bounds the free-form nonce string.
const MaxNonceLen = 128

// EncodingError reports a draft field that fails canonical encoding.
// It is a hard failure; the transaction is never best-effort encoded.
type EncodingError struct {
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode transaction field %s: %v", e.Field, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Transaction is a fully resolved draft: every field holds its final
// wire value. ValidUntilBlock is absolute; relative positions must be
// resolved before construction.
type Transaction struct {
	Version         uint32
	To              []byte // 20-byte address, or empty for contract creation
	Nonce           string
	Quota           uint64
	ValidUntilBlock uint64
	Data            []byte
	Value           [types.ValueSize]byte
	ChainID         [types.ValueSize]byte
}

// CanonicalBytes produces the deterministic signing encoding: fixed-width
// big-endian integers, length-prefixed variable fields, fixed-width value
// and chain id. Two equal transactions always encode to equal bytes.
func (t *Transaction) CanonicalBytes() ([]byte, error) {
	if l := len(t.To); l != 0 && l != types.AddressSize {
		return nil, &EncodingError{
			Field: "to",
			Err:   fmt.Errorf("must be empty or %d bytes, got %d", types.AddressSize, l),
		}
	}
	if t.Nonce == "" {
		return nil, &EncodingError{Field: "nonce", Err: fmt.Errorf("must not be empty")}
	}
	if len(t.Nonce) > MaxNonceLen {
		return nil, &EncodingError{
			Field: "nonce",
			Err:   fmt.Errorf("must be at most %d bytes, got %d", MaxNonceLen, len(t.Nonce)),
		}
	}
	if uint64(len(t.Data)) > math.MaxUint32 {
		return nil, &EncodingError{Field: "data", Err: fmt.Errorf("too large")}
	}

	size := 4 + // version
		1 + len(t.To) + // to length tag + address
		2 + len(t.Nonce) + // nonce length + bytes
		8 + // quota
		8 + // valid_until_block
		4 + len(t.Data) + // data length + bytes
		types.ValueSize + // value
		types.ValueSize // chain_id

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, t.Version)
	buf = append(buf, byte(len(t.To)))
	buf = append(buf, t.To...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(t.Nonce)))
	buf = append(buf, t.Nonce...)
	buf = binary.BigEndian.AppendUint64(buf, t.Quota)
	buf = binary.BigEndian.AppendUint64(buf, t.ValidUntilBlock)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(t.Data)))
	buf = append(buf, t.Data...)
	buf = append(buf, t.Value[:]...)
	buf = append(buf, t.ChainID[:]...)
	return buf, nil
}

// NewNonce returns a fresh random nonce: a decimal u64 drawn from the
// system entropy source. Uniqueness per sender is what matters; the
// remote protocol treats the nonce as an opaque string.
func NewNonce() (string, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return n.String(), nil
}

// Position is a block height, either absolute or relative to the chain
// tip at resolution time.
type Position struct {
	height   uint64
	delta    int64
	relative bool
}

// Absolute returns an absolute position.
func Absolute(height uint64) Position {
	return Position{height: height}
}

// Relative returns a position resolved against the current height.
func Relative(delta int64) Position {
	return Position{delta: delta, relative: true}
}

// ParsePosition parses "+N", "-N" or a plain decimal height.
func ParsePosition(s string) (Position, error) {
	if s == "" {
		return Position{}, fmt.Errorf("empty block height")
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		delta, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Position{}, fmt.Errorf("invalid relative height %q: %w", s, err)
		}
		return Relative(delta), nil
	}
	height, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Position{}, fmt.Errorf("invalid block height %q: %w", s, err)
	}
	return Absolute(height), nil
}

// Relative reports whether resolving this position needs the current
// chain height.
func (p Position) Relative() bool { return p.relative }

// Resolve turns the position into an absolute height against the given
// current height. A negative offset below genesis is an error.
func (p Position) Resolve(current uint64) (uint64, error) {
	if !p.relative {
		return p.height, nil
	}
	if p.delta < 0 {
		off := uint64(-p.delta)
		if off > current {
			return 0, fmt.Errorf("relative height %d is before genesis (current height %d)", p.delta, current)
		}
		return current - off, nil
	}
	return current + uint64(p.delta), nil
}

// String renders the position the way it parses.
func (p Position) String() string {
	if p.relative {
		return fmt.Sprintf("%+d", p.delta)
	}
	return strconv.FormatUint(p.height, 10)
}
