package keystore

import (
	"errors"
	"fmt"

	"github.com/stratus-chain/stratus-cli/pkg/crypto"
)

// Sentinel errors for conditions that need no extra context.
var (
	// ErrWrongPassword means decryption failed its authentication check.
	ErrWrongPassword = errors.New("wrong password")

	// ErrDuplicateAccount means an account with that name already exists.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrNotEncrypted means a lock was requested on an account that has
	// no password set.
	ErrNotEncrypted = errors.New("account has no password set, nothing to lock")
)

// NotFoundError reports a lookup for an account name that is not in the
// keystore. Profiles may reference deleted accounts; the dangling name
// surfaces here at resolution time.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("account %q not found", e.Name)
}

// LockedError reports an operation that needs key material from an
// encrypted account with no password supplied and no cached unlock.
type LockedError struct {
	Name string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account %q is locked, please supply a password (-p <password>)", e.Name)
}

// AlreadyLockedError reports a lock on an account whose key is not
// currently cached. It is a no-op condition, reported so scripts notice.
type AlreadyLockedError struct {
	Name string
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("account %q is already locked", e.Name)
}

// CryptoMismatchError reports an account whose scheme differs from the one
// the active context declares. Signing with the wrong scheme would produce
// a transaction the chain rejects, so resolution refuses up front.
type CryptoMismatchError struct {
	Name    string
	Account crypto.Type
	Context crypto.Type
}

func (e *CryptoMismatchError) Error() string {
	return fmt.Sprintf("account %q uses crypto type %s but the current context requires %s",
		e.Name, e.Account, e.Context)
}

// MalformedRecordError reports an on-disk record that failed to parse or
// failed its re-derivation checks. This is a data-corruption class error,
// distinct from user errors like a wrong password.
type MalformedRecordError struct {
	Path string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed account record %s: %v", e.Path, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}
