package crypto

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/sm3"

	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// SM scheme sizes.
const (
	SmPublicKeySize = 64  // X || Y, 32 bytes each
	SmSecretKeySize = 32  // scalar
	SmSignatureSize = 128 // r || s || pubkey
)

// smScheme implements the chain-native SM2/SM3 scheme. Signatures carry
// the signer's public key in their tail so verifiers need no recovery.
type smScheme struct{}

func (smScheme) Type() Type { return Sm }
func (smScheme) PublicKeySize() int { return SmPublicKeySize }
func (smScheme) SecretKeySize() int { return SmSecretKeySize }
func (smScheme) SignatureSize() int { return SmSignatureSize }

func (smScheme) GenerateKeypair() ([]byte, []byte, error) {
	priv, err := sm2.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate sm2 key: %w", err)
	}
	sk := leftPad(priv.D.Bytes(), SmSecretKeySize)
	pub := smMarshalPub(priv.X, priv.Y)
	return pub, sk, nil
}

func (smScheme) PublicFromSecret(sk []byte) ([]byte, error) {
	priv, err := smParseSecret(sk)
	if err != nil {
		return nil, err
	}
	return smMarshalPub(priv.X, priv.Y), nil
}

func (smScheme) Sign(sk, pub, msg []byte) ([]byte, error) {
	if len(pub) != SmPublicKeySize {
		return nil, fmt.Errorf("sm public key must be %d bytes, got %d", SmPublicKeySize, len(pub))
	}
	priv, err := smParseSecret(sk)
	if err != nil {
		return nil, err
	}
	r, s, err := sm2.Sm2Sign(priv, msg, nil, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sm2 sign: %w", err)
	}

	sig := make([]byte, SmSignatureSize)
	copy(sig[:32], leftPad(r.Bytes(), 32))
	copy(sig[32:64], leftPad(s.Bytes(), 32))
	copy(sig[64:], pub)
	return sig, nil
}

func (smScheme) Verify(pub, sig, msg []byte) bool {
	if len(sig) != SmSignatureSize || len(pub) != SmPublicKeySize {
		return false
	}
	// The signature binds the signer's public key; it must match.
	if !bytes.Equal(sig[64:], pub) {
		return false
	}
	pubKey, err := smParsePub(pub)
	if err != nil {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	return sm2.Sm2Verify(pubKey, msg, nil, r, s)
}

func (smScheme) Hash(data []byte) types.Hash {
	var h types.Hash
	copy(h[:], sm3.Sm3Sum(data))
	return h
}

func (sc smScheme) DeriveAddress(pub []byte) (types.Address, error) {
	if len(pub) != SmPublicKeySize {
		return types.Address{}, fmt.Errorf("sm public key must be %d bytes, got %d", SmPublicKeySize, len(pub))
	}
	h := sc.Hash(pub)
	var addr types.Address
	copy(addr[:], h[types.HashSize-types.AddressSize:])
	return addr, nil
}

func smParseSecret(sk []byte) (*sm2.PrivateKey, error) {
	if len(sk) != SmSecretKeySize {
		return nil, fmt.Errorf("sm secret key must be %d bytes, got %d", SmSecretKeySize, len(sk))
	}
	curve := sm2.P256Sm2()
	d := new(big.Int).SetBytes(sk)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("sm secret key out of range")
	}
	priv := &sm2.PrivateKey{D: d}
	priv.Curve = curve
	priv.X, priv.Y = curve.ScalarBaseMult(leftPad(sk, SmSecretKeySize))
	return priv, nil
}

func smParsePub(pub []byte) (*sm2.PublicKey, error) {
	curve := sm2.P256Sm2()
	x := new(big.Int).SetBytes(pub[:32])
	y := new(big.Int).SetBytes(pub[32:])
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("sm public key is not on the curve")
	}
	return &sm2.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func smMarshalPub(x, y *big.Int) []byte {
	pub := make([]byte, SmPublicKeySize)
	copy(pub[:32], leftPad(x.Bytes(), 32))
	copy(pub[32:], leftPad(y.Bytes(), 32))
	return pub
}

// leftPad zero-extends b on the left to size bytes.
func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b[len(b)-size:]
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}
