package keystore

import (
	"github.com/stratus-chain/stratus-cli/config"
	"github.com/stratus-chain/stratus-cli/pkg/crypto"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// Overrides carries per-invocation account selection. A set field beats
// the session's context setting, which beats the saved default; the
// precedence is applied here explicitly rather than through fallthrough
// state.
type Overrides struct {
	AccountName string
	Password    []byte
}

// Resolver turns the active context setting plus per-invocation
// overrides into a usable signing key.
type Resolver struct {
	Keystore *Keystore
	Cache    *UnlockCache
}

// Resolve selects the account, checks its scheme against the context,
// and obtains its secret key. Failure modes are distinguishable so the
// command layer can print an actionable message: NotFoundError,
// CryptoMismatchError, ErrWrongPassword, LockedError.
func (r *Resolver) Resolve(setting config.ContextSetting, ov Overrides) (*Signer, error) {
	name := setting.AccountName
	if ov.AccountName != "" {
		name = ov.AccountName
	}

	acct, err := r.Keystore.Get(name)
	if err != nil {
		return nil, err
	}
	if acct.Type != setting.CryptoType {
		return nil, &CryptoMismatchError{
			Name:    name,
			Account: acct.Type,
			Context: setting.CryptoType,
		}
	}

	var secret []byte
	switch {
	case !acct.Encrypted():
		secret = acct.ExposedSecret()

	case len(ov.Password) > 0:
		secret, err = decryptSecret(acct.encryptedSK, acct.kdfSalt, acct.nonce, ov.Password)
		if err != nil {
			return nil, err
		}
		// A supplied password also unlocks the account for the rest of
		// the session.
		r.Cache.Put(name, secret)

	default:
		cached, ok := r.Cache.Get(name)
		if !ok {
			return nil, &LockedError{Name: name}
		}
		secret = cached
	}

	return &Signer{
		name:    name,
		scheme:  acct.Scheme(),
		address: acct.Address,
		pub:     append([]byte(nil), acct.PublicKey...),
		secret:  secret,
	}, nil
}

// Signer is a resolved signing key. It is immutable and safe for
// concurrent use.
type Signer struct {
	name    string
	scheme  crypto.Scheme
	address types.Address
	pub     []byte
	secret  []byte
}

// Name returns the account name the signer was resolved from.
func (s *Signer) Name() string { return s.name }

// Address returns the signer's account address.
func (s *Signer) Address() types.Address { return s.address }

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() []byte { return append([]byte(nil), s.pub...) }

// Type returns the signer's crypto type.
func (s *Signer) Type() crypto.Type { return s.scheme.Type() }

// Hash computes the scheme digest of msg.
func (s *Signer) Hash(msg []byte) types.Hash { return s.scheme.Hash(msg) }

// Sign signs msg with the resolved secret key.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	return s.scheme.Sign(s.secret, s.pub, msg)
}

// Destroy zeroes the signer's secret key. The signer is unusable after.
func (s *Signer) Destroy() {
	zero(s.secret)
}
