// Package keystore manages the on-disk account store: named keypairs,
// optional password encryption at rest, and the locked/unlocked state
// machine the signing pipeline depends on.
package keystore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/stratus-chain/stratus-cli/internal/log"
	"github.com/stratus-chain/stratus-cli/pkg/crypto"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

const (
	accountsDirName = "accounts"
	dirLockName     = ".lock"
	recordExt       = ".toml"
)

// Keystore owns the set of account records under one data directory.
// The directory is shared across process invocations; every mutating
// operation takes an exclusive file lock so two concurrent invocations
// cannot corrupt the account list.
type Keystore struct {
	dir     string // <datadir>/accounts
	dirLock *flock.Flock
	logger  zerolog.Logger

	mu       sync.Mutex
	accounts map[string]*Account
}

// Info is one row of List output. It never carries key material.
type Info struct {
	Name       string
	Address    types.Address
	CryptoType crypto.Type
	Encrypted  bool
}

// Exported is the plaintext keypair returned by Export.
type Exported struct {
	CryptoType crypto.Type
	Address    types.Address
	PublicKey  []byte
	SecretKey  []byte
}

// Open loads every account record under <dataDir>/accounts, creating the
// directory if needed. Records that fail to parse or validate are logged
// and skipped; they do not prevent the rest of the keystore from loading.
func Open(dataDir string) (*Keystore, error) {
	dir := filepath.Join(dataDir, accountsDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create accounts dir: %w", err)
	}

	ks := &Keystore{
		dir:      dir,
		dirLock:  flock.New(filepath.Join(dir, dirLockName)),
		logger:   log.Keystore,
		accounts: make(map[string]*Account),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read accounts dir: %w", err)
	}
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != recordExt {
			continue
		}
		name := strings.TrimSuffix(ent.Name(), recordExt)
		path := filepath.Join(dir, ent.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			ks.logger.Warn().Str("account", name).Err(err).Msg("cannot read account record")
			continue
		}
		acct, err := unmarshalRecord(name, path, data)
		if err != nil {
			ks.logger.Warn().Str("account", name).Err(err).Msg("skipping malformed account record")
			continue
		}
		ks.accounts[name] = acct
	}

	return ks, nil
}

// Generate creates a fresh keypair under the given scheme. With a
// password the record is stored encrypted (the account starts Locked on
// disk); without one it is stored plaintext. The returned Account keeps
// the plaintext secret resident so a fresh account is immediately usable.
func (ks *Keystore) Generate(name string, t crypto.Type, password []byte) (*Account, error) {
	scheme := crypto.SchemeFor(t)
	pub, sk, err := scheme.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	return ks.add(name, t, pub, sk, password)
}

// Import stores an externally supplied secret key as a new account.
func (ks *Keystore) Import(name string, sk []byte, t crypto.Type, password []byte) (*Account, error) {
	scheme := crypto.SchemeFor(t)
	pub, err := scheme.PublicFromSecret(sk)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key for crypto type %s: %w", t, err)
	}
	return ks.add(name, t, pub, sk, password)
}

func (ks *Keystore) add(name string, t crypto.Type, pub, sk, password []byte) (*Account, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	scheme := crypto.SchemeFor(t)
	addr, err := scheme.DeriveAddress(pub)
	if err != nil {
		return nil, err
	}

	acct := &Account{
		Name:      name,
		Type:      t,
		Address:   addr,
		PublicKey: pub,
		secretKey: append([]byte(nil), sk...),
	}
	if len(password) > 0 {
		ct, salt, nonce, err := encryptSecret(sk, password)
		if err != nil {
			return nil, err
		}
		acct.encryptedSK = ct
		acct.kdfSalt = salt
		acct.nonce = nonce
	}

	if err := ks.dirLock.Lock(); err != nil {
		return nil, fmt.Errorf("lock keystore dir: %w", err)
	}
	defer ks.dirLock.Unlock()

	ks.mu.Lock()
	defer ks.mu.Unlock()

	path := ks.recordPath(name)
	if _, ok := ks.accounts[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateAccount, name)
	}
	// Another invocation may have created the file since we loaded.
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateAccount, name)
	}

	if err := ks.writeRecord(acct); err != nil {
		return nil, err
	}
	ks.accounts[name] = acct

	ks.logger.Debug().
		Str("account", name).
		Str("address", addr.Hex()).
		Str("crypto", t.String()).
		Bool("encrypted", acct.Encrypted()).
		Msg("account saved")
	return acct, nil
}

// Get returns the account with the given name.
func (ks *Keystore) Get(name string) (*Account, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	acct, ok := ks.accounts[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return acct, nil
}

// List returns name, address, crypto type and encryption state for every
// account, sorted by name. Key material is never included.
func (ks *Keystore) List() []Info {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	infos := make([]Info, 0, len(ks.accounts))
	for _, acct := range ks.accounts {
		infos = append(infos, Info{
			Name:       acct.Name,
			Address:    acct.Address,
			CryptoType: acct.Type,
			Encrypted:  acct.Encrypted(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Unlock decrypts the account's secret key with the password and caches
// it for the session. Unlocking an unencrypted account is a no-op
// success: the key is already available. A wrong password leaves the
// account locked and returns ErrWrongPassword.
func (ks *Keystore) Unlock(name string, password []byte, cache *UnlockCache) error {
	acct, err := ks.Get(name)
	if err != nil {
		return err
	}
	if !acct.Encrypted() {
		return nil
	}

	sk, err := decryptSecret(acct.encryptedSK, acct.kdfSalt, acct.nonce, password)
	if err != nil {
		return err
	}

	// The AEAD already authenticated the ciphertext, so a mismatch here
	// means the record itself is corrupt, not that the password is wrong.
	derivedPub, err := acct.Scheme().PublicFromSecret(sk)
	if err != nil {
		return &MalformedRecordError{Path: ks.recordPath(name), Err: err}
	}
	if !bytes.Equal(derivedPub, acct.PublicKey) {
		return &MalformedRecordError{
			Path: ks.recordPath(name),
			Err:  fmt.Errorf("decrypted secret key does not match the recorded public key"),
		}
	}

	cache.Put(name, sk)
	zero(sk)
	return nil
}

// Lock purges the account's cached plaintext key. The on-disk record is
// already encrypted and is not touched. Locking an account that has no
// password is an error; locking an already-locked account is a no-op
// error so scripts notice, never a crash.
func (ks *Keystore) Lock(name string, cache *UnlockCache) error {
	acct, err := ks.Get(name)
	if err != nil {
		return err
	}
	if !acct.Encrypted() {
		return fmt.Errorf("cannot lock %q: %w", name, ErrNotEncrypted)
	}
	if !cache.Has(name) {
		return &AlreadyLockedError{Name: name}
	}
	cache.Drop(name)
	return nil
}

// Export returns the plaintext keypair. Encrypted accounts require the
// password (or a cached unlock from earlier in the session); without one
// the caller gets a LockedError directing them to supply -p.
func (ks *Keystore) Export(name string, password []byte, cache *UnlockCache) (*Exported, error) {
	acct, err := ks.Get(name)
	if err != nil {
		return nil, err
	}

	var sk []byte
	switch {
	case !acct.Encrypted():
		sk = acct.ExposedSecret()
	case len(password) > 0:
		sk, err = decryptSecret(acct.encryptedSK, acct.kdfSalt, acct.nonce, password)
		if err != nil {
			return nil, err
		}
	default:
		if cached, ok := cache.Get(name); ok {
			sk = cached
		} else {
			return nil, &LockedError{Name: name}
		}
	}

	return &Exported{
		CryptoType: acct.Type,
		Address:    acct.Address,
		PublicKey:  append([]byte(nil), acct.PublicKey...),
		SecretKey:  sk,
	}, nil
}

// Delete removes the account record from disk and memory and drops any
// cached unlock. The file is unlinked, not wiped: plaintext may remain
// on the storage medium afterwards.
func (ks *Keystore) Delete(name string, cache *UnlockCache) error {
	if err := ks.dirLock.Lock(); err != nil {
		return fmt.Errorf("lock keystore dir: %w", err)
	}
	defer ks.dirLock.Unlock()

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, ok := ks.accounts[name]; !ok {
		return &NotFoundError{Name: name}
	}
	if err := os.Remove(ks.recordPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove account record: %w", err)
	}
	delete(ks.accounts, name)
	cache.Drop(name)

	ks.logger.Debug().Str("account", name).Msg("account deleted")
	return nil
}

func (ks *Keystore) recordPath(name string) string {
	return filepath.Join(ks.dir, name+recordExt)
}

// writeRecord persists one account atomically: write to a temp file in
// the same directory, then rename over the target. A failure part-way
// leaves the previous record intact.
func (ks *Keystore) writeRecord(acct *Account) error {
	data, err := marshalRecord(acct)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(ks.dir, ".tmp-"+acct.Name+"-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp record: %w", err)
	}

	if err := os.Rename(tmpPath, ks.recordPath(acct.Name)); err != nil {
		return fmt.Errorf("rename record into place: %w", err)
	}
	return nil
}

// validateName rejects names that would escape the accounts directory or
// collide with keystore internals.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("account name must not be empty")
	}
	if strings.ContainsAny(name, "/\\") || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid account name %q", name)
	}
	return nil
}
