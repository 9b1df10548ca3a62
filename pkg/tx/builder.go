package tx

import (
	"fmt"

	"github.com/stratus-chain/stratus-cli/pkg/crypto"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// Signer is a resolved signing key. The keystore resolver produces one;
// this package only consumes it.
type Signer interface {
	Address() types.Address
	PublicKey() []byte
	Type() crypto.Type
	Hash(msg []byte) types.Hash
	Sign(msg []byte) ([]byte, error)
}

// Builder assembles a transaction draft field by field. Defaults for
// quota, value and data belong to the command layer and arrive through
// the same setters as user-supplied values.
type Builder struct {
	tx  Transaction
	err error
}

// NewBuilder starts a draft for the given protocol version and chain.
func NewBuilder(version uint32, chainID [types.ValueSize]byte) *Builder {
	return &Builder{tx: Transaction{Version: version, ChainID: chainID}}
}

// To sets the destination address. Leave unset for contract creation.
func (b *Builder) To(addr types.Address) *Builder {
	b.tx.To = addr.Bytes()
	return b
}

// Nonce sets the transaction nonce.
func (b *Builder) Nonce(nonce string) *Builder {
	b.tx.Nonce = nonce
	return b
}

// RandomNonce draws a fresh random nonce.
func (b *Builder) RandomNonce() *Builder {
	nonce, err := NewNonce()
	if err != nil && b.err == nil {
		b.err = err
	}
	b.tx.Nonce = nonce
	return b
}

// Quota sets the resource budget.
func (b *Builder) Quota(quota uint64) *Builder {
	b.tx.Quota = quota
	return b
}

// ValidUntil sets the absolute height after which the transaction is no
// longer eligible for inclusion.
func (b *Builder) ValidUntil(height uint64) *Builder {
	b.tx.ValidUntilBlock = height
	return b
}

// Data sets the call payload.
func (b *Builder) Data(data []byte) *Builder {
	b.tx.Data = data
	return b
}

// Value sets the transferred value.
func (b *Builder) Value(value [types.ValueSize]byte) *Builder {
	b.tx.Value = value
	return b
}

// Build validates the draft and returns the finished transaction.
func (b *Builder) Build() (*Transaction, error) {
	if b.err != nil {
		return nil, b.err
	}
	tx := b.tx
	// Validation lives in CanonicalBytes; run it once here so a bad
	// draft fails at build time, not at signing time.
	if _, err := tx.CanonicalBytes(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// SignedTransaction is a transaction plus its witness, ready to encode
// for broadcast.
type SignedTransaction struct {
	Tx        *Transaction
	Hash      types.Hash
	Sender    types.Address
	Signature []byte
}

// Sign hashes the canonical bytes with the signer's scheme and signs the
// digest. It is pure apart from signature randomness and safe to call
// from concurrent workers sharing one signer.
func Sign(t *Transaction, signer Signer) (*SignedTransaction, error) {
	canonical, err := t.CanonicalBytes()
	if err != nil {
		return nil, err
	}
	hash := signer.Hash(canonical)

	sig, err := signer.Sign(hash[:])
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	return &SignedTransaction{
		Tx:        t,
		Hash:      hash,
		Sender:    signer.Address(),
		Signature: sig,
	}, nil
}

// Sign finishes the draft and signs it in one step.
func (b *Builder) Sign(signer Signer) (*SignedTransaction, error) {
	t, err := b.Build()
	if err != nil {
		return nil, err
	}
	return Sign(t, signer)
}

// Encode produces the wire bytes handed to the transport layer: the
// canonical transaction followed by the sender address and signature.
func (s *SignedTransaction) Encode() ([]byte, error) {
	canonical, err := s.Tx.CanonicalBytes()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(canonical)+types.AddressSize+len(s.Signature))
	out = append(out, canonical...)
	out = append(out, s.Sender.Bytes()...)
	out = append(out, s.Signature...)
	return out, nil
}
