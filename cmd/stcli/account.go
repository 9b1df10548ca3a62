package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/stratus-chain/stratus-cli/internal/keystore"
	"github.com/stratus-chain/stratus-cli/pkg/crypto"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

func cmdAccount(s *session, args []string) {
	if len(args) == 0 {
		fatal("Usage: stcli account <generate|import|import-mnemonic|list|export|unlock|lock|delete>")
	}
	sub := args[0]
	subArgs := args[1:]

	switch sub {
	case "generate":
		accountGenerate(s, subArgs)
	case "import":
		accountImport(s, subArgs)
	case "import-mnemonic":
		accountImportMnemonic(s, subArgs)
	case "list":
		accountList(s)
	case "export":
		accountExport(s, subArgs)
	case "unlock":
		accountUnlock(s, subArgs)
	case "lock":
		accountLock(s, subArgs)
	case "delete":
		accountDelete(s, subArgs)
	default:
		fatal("unknown account subcommand %q", sub)
	}
}

// encryptionPassword merges the subcommand --password flag with the
// global -p flag. An empty result means the account stays unencrypted.
func encryptionPassword(s *session, flagValue string) []byte {
	if flagValue != "" {
		return []byte(flagValue)
	}
	return s.overrides.Password
}

func accountGenerate(s *session, args []string) {
	fs := flag.NewFlagSet("account generate", flag.ExitOnError)
	name := fs.String("name", "", "Account name")
	cryptoName := fs.String("crypto", "", "Crypto type (SM or ETH, default: context's)")
	password := fs.String("password", "", "Encrypt the account under this password")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: stcli account generate --name <n> [--crypto SM|ETH] [--password <pw>]")
	}
	ct := s.setting.CryptoType
	if *cryptoName != "" {
		parsed, err := crypto.ParseType(*cryptoName)
		if err != nil {
			fatal("%v", err)
		}
		ct = parsed
	}

	acct, err := s.ks.Generate(*name, ct, encryptionPassword(s, *password))
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s\t%s\t%s\n", acct.Name, acct.Address.Hex(), acct.Type)
}

func accountImport(s *session, args []string) {
	fs := flag.NewFlagSet("account import", flag.ExitOnError)
	name := fs.String("name", "", "Account name")
	key := fs.String("key", "", "Secret key (hex)")
	cryptoName := fs.String("crypto", "", "Crypto type (SM or ETH, default: context's)")
	password := fs.String("password", "", "Encrypt the account under this password")
	fs.Parse(args)

	if *name == "" || *key == "" {
		fatal("Usage: stcli account import --name <n> --key <hex> [--crypto SM|ETH] [--password <pw>]")
	}
	ct := s.setting.CryptoType
	if *cryptoName != "" {
		parsed, err := crypto.ParseType(*cryptoName)
		if err != nil {
			fatal("%v", err)
		}
		ct = parsed
	}
	sk, err := types.ParseData(*key)
	if err != nil {
		fatal("invalid secret key: %v", err)
	}

	acct, err := s.ks.Import(*name, sk, ct, encryptionPassword(s, *password))
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s\t%s\t%s\n", acct.Name, acct.Address.Hex(), acct.Type)
}

func accountImportMnemonic(s *session, args []string) {
	fs := flag.NewFlagSet("account import-mnemonic", flag.ExitOnError)
	name := fs.String("name", "", "Account name")
	mnemonic := fs.String("mnemonic", "", "BIP-39 mnemonic (omit to create a fresh one)")
	passphrase := fs.String("passphrase", "", "Optional BIP-39 passphrase")
	password := fs.String("password", "", "Encrypt the account under this password")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: stcli account import-mnemonic --name <n> [--mnemonic \"...\"] [--password <pw>]")
	}

	words := *mnemonic
	generated := false
	if words == "" {
		var err error
		words, err = keystore.NewMnemonic()
		if err != nil {
			fatal("%v", err)
		}
		generated = true
	}

	acct, err := s.ks.ImportMnemonic(*name, words, *passphrase, encryptionPassword(s, *password))
	if err != nil {
		fatal("%v", err)
	}
	if generated {
		// The mnemonic is the only way to recover this key; show it once.
		fmt.Fprintf(os.Stderr, "mnemonic: %s\n", words)
	}
	fmt.Printf("%s\t%s\t%s\n", acct.Name, acct.Address.Hex(), acct.Type)
}

func accountList(s *session) {
	for _, info := range s.ks.List() {
		state := "unencrypted"
		if info.Encrypted {
			state = "encrypted"
		}
		marker := " "
		if info.Name == s.setting.AccountName {
			marker = "*"
		}
		fmt.Printf("%s %s\t%s\t%s\t%s\n", marker, info.Name, info.Address.Hex(), info.CryptoType, state)
	}
}

func accountExport(s *session, args []string) {
	fs := flag.NewFlagSet("account export", flag.ExitOnError)
	name := fs.String("name", "", "Account name (default: context's)")
	fs.Parse(args)

	target := *name
	if target == "" {
		target = s.setting.AccountName
	}

	exported, err := s.ks.Export(target, s.overrides.Password, s.cache)
	var locked *keystore.LockedError
	if errors.As(err, &locked) {
		pw, perr := readPassword("Enter password: ")
		if perr != nil {
			fatal("read password: %v", perr)
		}
		exported, err = s.ks.Export(target, pw, s.cache)
	}
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("crypto_type: %s\n", exported.CryptoType)
	fmt.Printf("address: %s\n", exported.Address.Hex())
	fmt.Printf("public_key: %s\n", types.Hex(exported.PublicKey))
	fmt.Printf("secret_key: %s\n", types.Hex(exported.SecretKey))
}

func accountUnlock(s *session, args []string) {
	fs := flag.NewFlagSet("account unlock", flag.ExitOnError)
	name := fs.String("name", "", "Account name (default: context's)")
	fs.Parse(args)

	target := *name
	if target == "" {
		target = s.setting.AccountName
	}
	pw, err := s.passwordOrPrompt("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}

	if err := s.ks.Unlock(target, pw, s.cache); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s unlocked\n", target)
}

func accountLock(s *session, args []string) {
	fs := flag.NewFlagSet("account lock", flag.ExitOnError)
	name := fs.String("name", "", "Account name (default: context's)")
	fs.Parse(args)

	target := *name
	if target == "" {
		target = s.setting.AccountName
	}
	if err := s.ks.Lock(target, s.cache); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("%s locked\n", target)
}

func accountDelete(s *session, args []string) {
	fs := flag.NewFlagSet("account delete", flag.ExitOnError)
	name := fs.String("name", "", "Account name")
	force := fs.Bool("force", false, "Delete even if a context references this account")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: stcli account delete --name <n> [--force]")
	}

	// Deleting an account a saved context points at leaves that context
	// dangling; require an explicit --force so it cannot happen by
	// accident. The dangling reference itself fails at resolution time.
	if !*force {
		for ctxName, setting := range s.cfg.Contexts {
			if setting.AccountName == *name {
				fatal("account %q is referenced by context %q; pass --force to delete anyway", *name, ctxName)
			}
		}
	}

	if err := s.ks.Delete(*name, s.cache); err != nil {
		fatal("%v", err)
	}
	fmt.Fprintln(os.Stderr, "note: the record file was removed but not securely wiped")
	fmt.Printf("%s deleted\n", *name)
}
