package keystore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stratus-chain/stratus-cli/pkg/crypto"
)

func openTestKeystore(t *testing.T) (*Keystore, string) {
	t.Helper()
	dir := t.TempDir()
	ks, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return ks, dir
}

func TestGenerateUnencrypted(t *testing.T) {
	for _, ct := range []crypto.Type{crypto.Sm, crypto.Eth} {
		t.Run(ct.String(), func(t *testing.T) {
			ks, _ := openTestKeystore(t)

			acct, err := ks.Generate("alice", ct, nil)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if acct.Encrypted() {
				t.Error("account without password reports encrypted")
			}
			if acct.ExposedSecret() == nil {
				t.Error("plaintext secret not resident")
			}

			scheme := crypto.SchemeFor(ct)
			derived, err := scheme.DeriveAddress(acct.PublicKey)
			if err != nil {
				t.Fatalf("DeriveAddress: %v", err)
			}
			if derived != acct.Address {
				t.Errorf("address %s does not derive from public key", acct.Address.Hex())
			}
		})
	}
}

func TestGenerateEncryptedRecordOnDisk(t *testing.T) {
	ks, dir := openTestKeystore(t)

	acct, err := ks.Generate("root", crypto.Sm, []byte("root"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !acct.Encrypted() {
		t.Fatal("account with password not encrypted")
	}

	data, err := os.ReadFile(filepath.Join(dir, "accounts", "root.toml"))
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	record := string(data)
	if !bytes.Contains(data, []byte("encrypted_sk")) {
		t.Error("record missing encrypted_sk field")
	}
	if bytes.Contains(data, []byte("secret_key")) {
		t.Error("encrypted record contains a plaintext secret_key field")
	}
	// The ciphertext must not be the plaintext key.
	sk := acct.ExposedSecret()
	if bytes.Contains(data, []byte(fmt.Sprintf("%x", sk))) {
		t.Error("record contains the plaintext secret key bytes")
	}
	if !bytes.Contains(data, []byte("crypto_type")) || !bytes.Contains(data, []byte("SM")) {
		t.Errorf("record does not name its crypto type:\n%s", record)
	}
}

func TestDuplicateName(t *testing.T) {
	ks, _ := openTestKeystore(t)

	if _, err := ks.Generate("alice", crypto.Sm, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	_, err := ks.Generate("alice", crypto.Eth, nil)
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Errorf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestValidateName(t *testing.T) {
	ks, _ := openTestKeystore(t)
	for _, name := range []string{"", "a/b", `a\b`, "..", ".hidden"} {
		if _, err := ks.Generate(name, crypto.Sm, nil); err == nil {
			t.Errorf("Generate(%q): expected name validation error", name)
		}
	}
}

func TestUnlockRoundTrip(t *testing.T) {
	ks, dir := openTestKeystore(t)
	if _, err := ks.Generate("root", crypto.Sm, []byte("root")); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Reload so the plaintext from generation is gone.
	ks, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	cache := NewUnlockCache()

	if err := ks.Unlock("root", []byte("wrong"), cache); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("wrong password: expected ErrWrongPassword, got %v", err)
	}
	if cache.Has("root") {
		t.Fatal("wrong password populated the unlock cache")
	}

	if err := ks.Unlock("root", []byte("root"), cache); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	sk, ok := cache.Get("root")
	if !ok {
		t.Fatal("unlock did not populate the cache")
	}

	acct, err := ks.Get("root")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	pub, err := acct.Scheme().PublicFromSecret(sk)
	if err != nil {
		t.Fatalf("PublicFromSecret: %v", err)
	}
	addr, err := acct.Scheme().DeriveAddress(pub)
	if err != nil {
		t.Fatalf("DeriveAddress: %v", err)
	}
	if addr != acct.Address {
		t.Error("unlocked key does not derive the stored address")
	}
}

func TestUnlockUnencryptedNoOp(t *testing.T) {
	ks, _ := openTestKeystore(t)
	if _, err := ks.Generate("alice", crypto.Eth, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	cache := NewUnlockCache()
	if err := ks.Unlock("alice", nil, cache); err != nil {
		t.Errorf("Unlock on unencrypted account: %v", err)
	}
}

func TestLockSemantics(t *testing.T) {
	ks, _ := openTestKeystore(t)
	if _, err := ks.Generate("root", crypto.Sm, []byte("root")); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := ks.Generate("plain", crypto.Sm, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	cache := NewUnlockCache()
	if err := ks.Unlock("root", []byte("root"), cache); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	if err := ks.Lock("root", cache); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if cache.Has("root") {
		t.Error("Lock left the key in the cache")
	}

	// Locking twice is a distinguishable no-op error, not a crash.
	var already *AlreadyLockedError
	if err := ks.Lock("root", cache); !errors.As(err, &already) {
		t.Errorf("second Lock: expected AlreadyLockedError, got %v", err)
	}

	if err := ks.Lock("plain", cache); !errors.Is(err, ErrNotEncrypted) {
		t.Errorf("Lock on unencrypted: expected ErrNotEncrypted, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	for _, ct := range []crypto.Type{crypto.Sm, crypto.Eth} {
		t.Run(ct.String(), func(t *testing.T) {
			ks, _ := openTestKeystore(t)
			cache := NewUnlockCache()

			if _, err := ks.Generate("orig", ct, nil); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			exported, err := ks.Export("orig", nil, cache)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}

			if _, err := ks.Import("copy", exported.SecretKey, ct, nil); err != nil {
				t.Fatalf("Import: %v", err)
			}
			reExported, err := ks.Export("copy", nil, cache)
			if err != nil {
				t.Fatalf("Export copy: %v", err)
			}

			if !bytes.Equal(exported.SecretKey, reExported.SecretKey) {
				t.Error("secret key changed across export/import round trip")
			}
			if !bytes.Equal(exported.PublicKey, reExported.PublicKey) {
				t.Error("public key changed across export/import round trip")
			}
			if exported.Address != reExported.Address {
				t.Error("address changed across export/import round trip")
			}
		})
	}
}

func TestExportLockedRequiresPassword(t *testing.T) {
	ks, dir := openTestKeystore(t)
	if _, err := ks.Generate("root", crypto.Eth, []byte("pw")); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ks, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	cache := NewUnlockCache()

	var locked *LockedError
	if _, err := ks.Export("root", nil, cache); !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if locked.Name != "root" {
		t.Errorf("LockedError names %q, want root", locked.Name)
	}

	if _, err := ks.Export("root", []byte("bad"), cache); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
	exported, err := ks.Export("root", []byte("pw"), cache)
	if err != nil {
		t.Fatalf("Export with password: %v", err)
	}
	if len(exported.SecretKey) == 0 {
		t.Error("export returned empty secret key")
	}
}

func TestDelete(t *testing.T) {
	ks, dir := openTestKeystore(t)
	cache := NewUnlockCache()

	if _, err := ks.Generate("gone", crypto.Sm, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := ks.Delete("gone", cache); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var notFound *NotFoundError
	if _, err := ks.Get("gone"); !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "accounts", "gone.toml")); !os.IsNotExist(err) {
		t.Error("record file still present after delete")
	}
	if err := ks.Delete("gone", cache); !errors.As(err, &notFound) {
		t.Errorf("second delete: expected NotFoundError, got %v", err)
	}
}

func TestListSortedWithoutKeyMaterial(t *testing.T) {
	ks, _ := openTestKeystore(t)
	for _, name := range []string{"charlie", "alice", "bob"} {
		if _, err := ks.Generate(name, crypto.Sm, nil); err != nil {
			t.Fatalf("Generate(%s): %v", name, err)
		}
	}

	infos := ks.List()
	if len(infos) != 3 {
		t.Fatalf("List returned %d accounts", len(infos))
	}
	for i, want := range []string{"alice", "bob", "charlie"} {
		if infos[i].Name != want {
			t.Errorf("infos[%d].Name = %q, want %q", i, infos[i].Name, want)
		}
	}
}

func TestReloadSkipsMalformedRecords(t *testing.T) {
	ks, dir := openTestKeystore(t)
	if _, err := ks.Generate("good", crypto.Sm, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	bad := filepath.Join(dir, "accounts", "bad.toml")
	if err := os.WriteFile(bad, []byte("not valid toml ["), 0600); err != nil {
		t.Fatalf("write bad record: %v", err)
	}

	ks, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := ks.Get("good"); err != nil {
		t.Errorf("good account lost after reload: %v", err)
	}
	var notFound *NotFoundError
	if _, err := ks.Get("bad"); !errors.As(err, &notFound) {
		t.Errorf("malformed record loaded: %v", err)
	}
}

func TestConcurrentGenerate(t *testing.T) {
	ks, dir := openTestKeystore(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ks.Generate(fmt.Sprintf("acct-%d", i), crypto.Eth, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Generate(acct-%d): %v", i, err)
		}
	}

	ks, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := len(ks.List()); got != n {
		t.Errorf("List after concurrent generate has %d accounts, want %d", got, n)
	}
}

func TestImportMnemonic(t *testing.T) {
	ks, _ := openTestKeystore(t)

	mnemonic, err := NewMnemonic()
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}
	acct, err := ks.ImportMnemonic("hd", mnemonic, "", nil)
	if err != nil {
		t.Fatalf("ImportMnemonic: %v", err)
	}
	if acct.Type != crypto.Eth {
		t.Errorf("mnemonic account type = %s, want ETH", acct.Type)
	}

	// Same mnemonic, same derived account.
	acct2, err := ks.ImportMnemonic("hd2", mnemonic, "", nil)
	if err != nil {
		t.Fatalf("ImportMnemonic again: %v", err)
	}
	if acct.Address != acct2.Address {
		t.Error("same mnemonic derived different addresses")
	}

	if _, err := ks.ImportMnemonic("bad", "definitely not a mnemonic", "", nil); err == nil {
		t.Error("invalid mnemonic accepted")
	}
}
