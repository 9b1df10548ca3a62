package keystore

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters for the password KDF. These are part of the record
// format: changing them invalidates every encrypted record, the same way a
// record schema bump would.
const (
	SaltSize     = 32
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// deriveKey derives a 32-byte encryption key from password and salt.
func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// encryptSecret encrypts a secret key with a password using Argon2id +
// XChaCha20-Poly1305. The salt and nonce are returned separately; both are
// load-bearing record metadata, without them the ciphertext is
// permanently undecryptable.
func encryptSecret(secret, password []byte) (ciphertext, salt, nonce []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, nil, fmt.Errorf("generate salt: %w", err)
	}

	key := deriveKey(password, salt)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce, secret, nil)
	return ciphertext, salt, nonce, nil
}

// decryptSecret reverses encryptSecret. A wrong password fails the AEAD
// authentication check and is reported as ErrWrongPassword; garbage key
// material is never returned.
func decryptSecret(ciphertext, salt, nonce, password []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("kdf salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	if len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", chacha20poly1305.NonceSizeX, len(nonce))
	}

	key := deriveKey(password, salt)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}

// zero overwrites b in place.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
