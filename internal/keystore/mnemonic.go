package keystore

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/stratus-chain/stratus-cli/pkg/crypto"
)

// MnemonicEntropyBits is the entropy size for generated 24-word mnemonics.
const MnemonicEntropyBits = 256

// BIP-44 path for mnemonic-derived accounts: m/44'/60'/0'/0/0.
// BIP-32 derivation is defined over secp256k1, so mnemonic import always
// produces an ETH-scheme account; SM accounts are imported by raw key.
var mnemonicPath = []uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 60,
	bip32.FirstHardenedChild + 0,
	0,
	0,
}

// NewMnemonic creates a fresh 24-word BIP-39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ImportMnemonic derives the secret key at m/44'/60'/0'/0/0 from a BIP-39
// mnemonic and stores it as a new ETH-scheme account.
func (ks *Keystore) ImportMnemonic(name, mnemonic, passphrase string, password []byte) (*Account, error) {
	sk, err := secretFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(sk)
	return ks.Import(name, sk, crypto.Eth, password)
}

func secretFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	for _, idx := range mnemonicPath {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}

	// bip32 private keys are 33 bytes with a leading zero.
	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	sk := make([]byte, len(raw))
	copy(sk, raw)
	return sk, nil
}
