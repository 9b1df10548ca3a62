package keystore

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/stratus-chain/stratus-cli/pkg/crypto"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// Account is one named identity held by the keystore. The address and
// public key are always resident; the plaintext secret key is resident
// only for unencrypted accounts or freshly generated/unlocked ones.
type Account struct {
	Name      string
	Type      crypto.Type
	Address   types.Address
	PublicKey []byte

	secretKey   []byte // plaintext; nil while locked
	encryptedSK []byte // nil for unencrypted accounts
	kdfSalt     []byte
	nonce       []byte
}

// Scheme returns the signature scheme this account was created under.
func (a *Account) Scheme() crypto.Scheme {
	return crypto.SchemeFor(a.Type)
}

// Encrypted reports whether the on-disk record stores the secret key
// encrypted under a password.
func (a *Account) Encrypted() bool {
	return a.encryptedSK != nil
}

// ExposedSecret returns the plaintext secret key if it is resident in
// this Account value, or nil. It never decrypts.
func (a *Account) ExposedSecret() []byte {
	if a.secretKey == nil {
		return nil
	}
	cp := make([]byte, len(a.secretKey))
	copy(cp, a.secretKey)
	return cp
}

// record is the on-disk TOML shape of one account. Plaintext records set
// secret_key; encrypted ones set encrypted_sk, kdf_salt and nonce. The
// address and public key are recorded for human readability but are never
// trusted verbatim: both are re-derived on load.
type record struct {
	CryptoType  crypto.Type `toml:"crypto_type"`
	Address     string      `toml:"address"`
	PublicKey   string      `toml:"public_key"`
	SecretKey   string      `toml:"secret_key,omitempty"`
	EncryptedSK string      `toml:"encrypted_sk,omitempty"`
	KDFSalt     string      `toml:"kdf_salt,omitempty"`
	Nonce       string      `toml:"nonce,omitempty"`
}

// marshalRecord encodes an account as TOML record bytes.
func marshalRecord(a *Account) ([]byte, error) {
	rec := record{
		CryptoType: a.Type,
		Address:    a.Address.Hex(),
		PublicKey:  types.Hex(a.PublicKey),
	}
	if a.Encrypted() {
		rec.EncryptedSK = types.Hex(a.encryptedSK)
		rec.KDFSalt = types.Hex(a.kdfSalt)
		rec.Nonce = types.Hex(a.nonce)
	} else {
		rec.SecretKey = types.Hex(a.secretKey)
	}
	data, err := toml.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal account record: %w", err)
	}
	return data, nil
}

// unmarshalRecord decodes and validates one account record. Any parse
// failure or re-derivation mismatch is a MalformedRecordError.
func unmarshalRecord(name, path string, data []byte) (*Account, error) {
	var rec record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return nil, &MalformedRecordError{Path: path, Err: err}
	}

	acct, err := accountFromRecord(name, rec)
	if err != nil {
		return nil, &MalformedRecordError{Path: path, Err: err}
	}
	return acct, nil
}

func accountFromRecord(name string, rec record) (*Account, error) {
	scheme := crypto.SchemeFor(rec.CryptoType)

	pub, err := types.ParseData(rec.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public_key: %w", err)
	}
	if len(pub) != scheme.PublicKeySize() {
		return nil, fmt.Errorf("public_key must be %d bytes for %s, got %d",
			scheme.PublicKeySize(), rec.CryptoType, len(pub))
	}

	addr, err := types.ParseAddress(rec.Address)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}

	// The recorded address is a convenience copy; the public key is the
	// source of truth.
	derived, err := scheme.DeriveAddress(pub)
	if err != nil {
		return nil, err
	}
	if derived != addr {
		return nil, fmt.Errorf("address %s does not derive from the recorded public key", rec.Address)
	}

	acct := &Account{
		Name:      name,
		Type:      rec.CryptoType,
		Address:   addr,
		PublicKey: pub,
	}

	switch {
	case rec.SecretKey != "" && rec.EncryptedSK != "":
		return nil, fmt.Errorf("record has both secret_key and encrypted_sk")

	case rec.SecretKey != "":
		sk, err := types.ParseData(rec.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("secret_key: %w", err)
		}
		derivedPub, err := scheme.PublicFromSecret(sk)
		if err != nil {
			return nil, fmt.Errorf("secret_key: %w", err)
		}
		if !bytes.Equal(derivedPub, pub) {
			return nil, fmt.Errorf("public key does not derive from the recorded secret key")
		}
		acct.secretKey = sk

	case rec.EncryptedSK != "":
		// Salt and nonce are load-bearing: without them the blob is
		// permanently undecryptable.
		ct, err := types.ParseData(rec.EncryptedSK)
		if err != nil {
			return nil, fmt.Errorf("encrypted_sk: %w", err)
		}
		salt, err := types.ParseData(rec.KDFSalt)
		if err != nil {
			return nil, fmt.Errorf("kdf_salt: %w", err)
		}
		if len(salt) != SaltSize {
			return nil, fmt.Errorf("kdf_salt must be %d bytes, got %d", SaltSize, len(salt))
		}
		nonce, err := types.ParseData(rec.Nonce)
		if err != nil {
			return nil, fmt.Errorf("nonce: %w", err)
		}
		if len(nonce) == 0 {
			return nil, fmt.Errorf("encrypted record is missing its nonce")
		}
		acct.encryptedSK = ct
		acct.kdfSalt = salt
		acct.nonce = nonce

	default:
		return nil, fmt.Errorf("record has neither secret_key nor encrypted_sk")
	}

	return acct, nil
}
