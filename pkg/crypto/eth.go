package crypto

import (
	"bytes"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// ETH scheme sizes.
const (
	EthPublicKeySize = 64 // uncompressed point without the 0x04 prefix
	EthSecretKeySize = 32 // scalar
	EthSignatureSize = 65 // r || s || recovery id
)

// ethScheme implements the Ethereum-compatible scheme. Sign hashes the
// message with Keccak-256 before signing, and the signature carries the
// recovery id in its last byte so the sender can be recovered on-chain.
type ethScheme struct{}

func (ethScheme) Type() Type { return Eth }
func (ethScheme) PublicKeySize() int { return EthPublicKeySize }
func (ethScheme) SecretKeySize() int { return EthSecretKeySize }
func (ethScheme) SignatureSize() int { return EthSignatureSize }

func (ethScheme) GenerateKeypair() ([]byte, []byte, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	pub := priv.PubKey().SerializeUncompressed()[1:]
	return pub, priv.Serialize(), nil
}

func (ethScheme) PublicFromSecret(sk []byte) ([]byte, error) {
	priv, err := ethParseSecret(sk)
	if err != nil {
		return nil, err
	}
	return priv.PubKey().SerializeUncompressed()[1:], nil
}

func (e ethScheme) Sign(sk, pub, msg []byte) ([]byte, error) {
	priv, err := ethParseSecret(sk)
	if err != nil {
		return nil, err
	}
	digest := e.Hash(msg)

	// SignCompact emits [header(1) | r(32) | s(32)] with
	// header = 27 + recovery id; the chain wants [r | s | id].
	compact := ecdsa.SignCompact(priv, digest[:], false)

	sig := make([]byte, EthSignatureSize)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

func (e ethScheme) Verify(pub, sig, msg []byte) bool {
	if len(sig) != EthSignatureSize || len(pub) != EthPublicKeySize {
		return false
	}
	digest := e.Hash(msg)

	compact := make([]byte, EthSignatureSize)
	compact[0] = sig[64] + 27
	copy(compact[1:], sig[:64])

	recovered, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return false
	}
	return bytes.Equal(recovered.SerializeUncompressed()[1:], pub)
}

func (ethScheme) Hash(data []byte) types.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (e ethScheme) DeriveAddress(pub []byte) (types.Address, error) {
	if len(pub) != EthPublicKeySize {
		return types.Address{}, fmt.Errorf("eth public key must be %d bytes, got %d", EthPublicKeySize, len(pub))
	}
	h := e.Hash(pub)
	var addr types.Address
	copy(addr[:], h[types.HashSize-types.AddressSize:])
	return addr, nil
}

func ethParseSecret(sk []byte) (*secp256k1.PrivateKey, error) {
	if len(sk) != EthSecretKeySize {
		return nil, fmt.Errorf("eth secret key must be %d bytes, got %d", EthSecretKeySize, len(sk))
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(sk); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("eth secret key out of range")
	}
	return secp256k1.NewPrivateKey(&scalar), nil
}
