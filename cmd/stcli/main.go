// stcli is a command-line client for stratus chain nodes: it manages
// local accounts, named connection contexts, and signs and sends
// transactions.
package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/stratus-chain/stratus-cli/config"
	"github.com/stratus-chain/stratus-cli/internal/keystore"
	"github.com/stratus-chain/stratus-cli/internal/log"
	"github.com/stratus-chain/stratus-cli/pkg/crypto"
)

// rpcTimeout bounds every network round trip.
const rpcTimeout = 30 * time.Second

// session is everything one invocation runs with: the loaded config,
// the effective context setting after overrides, the keystore and the
// unlock cache. It is built once in main and passed explicitly.
type session struct {
	cfg       *config.Config
	setting   config.ContextSetting
	ks        *keystore.Keystore
	cache     *keystore.UnlockCache
	overrides keystore.Overrides
	dataDir   string
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	dataDir := config.DefaultDataDir()
	contextName := ""
	accountName := ""
	password := ""
	controllerAddr := ""
	executorAddr := ""
	cryptoName := ""
	logLevel := "warn"

	// Scan global flags that appear before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "-c" && len(args) > 1:
			contextName = args[1]
			args = args[2:]
		case args[0] == "-u" && len(args) > 1:
			accountName = args[1]
			args = args[2:]
		case args[0] == "-p" && len(args) > 1:
			password = args[1]
			args = args[2:]
		case args[0] == "-r" && len(args) > 1:
			controllerAddr = args[1]
			args = args[2:]
		case args[0] == "-e" && len(args) > 1:
			executorAddr = args[1]
			args = args[2:]
		case args[0] == "--crypto" && len(args) > 1:
			cryptoName = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--crypto="):
			cryptoName = args[0][len("--crypto="):]
			args = args[1:]
		case args[0] == "--data-dir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--data-dir="):
			dataDir = args[0][len("--data-dir="):]
			args = args[1:]
		case args[0] == "--log-level" && len(args) > 1:
			logLevel = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--log-level="):
			logLevel = args[0][len("--log-level="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	log.Init(logLevel, false)

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Open(dataDir)
	if err != nil {
		fatal("%v", err)
	}

	var fieldOverrides config.FieldOverrides
	fieldOverrides.ControllerAddr = controllerAddr
	fieldOverrides.ExecutorAddr = executorAddr
	fieldOverrides.AccountName = accountName
	if cryptoName != "" {
		ct, err := crypto.ParseType(cryptoName)
		if err != nil {
			fatal("%v", err)
		}
		fieldOverrides.CryptoType = &ct
	}
	setting, err := config.Effective(cfg, contextName, fieldOverrides)
	if err != nil {
		fatal("%v", err)
	}

	ks, err := keystore.Open(dataDir)
	if err != nil {
		fatal("%v", err)
	}

	cache := keystore.NewUnlockCache()
	defer cache.Clear()

	s := &session{
		cfg:     cfg,
		setting: setting,
		ks:      ks,
		cache:   cache,
		overrides: keystore.Overrides{
			AccountName: accountName,
			Password:    []byte(password),
		},
		dataDir: dataDir,
	}
	if password == "" {
		s.overrides.Password = nil
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "account":
		cmdAccount(s, cmdArgs)
	case "context":
		cmdContext(s, cmdArgs)
	case "send":
		cmdSend(s, cmdArgs)
	case "create":
		cmdCreate(s, cmdArgs)
	case "call":
		cmdCall(s, cmdArgs)
	case "get":
		cmdGet(s, cmdArgs)
	case "add-node":
		cmdAddNode(s, cmdArgs)
	case "history":
		cmdHistory(s, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: stcli [global flags] <command> [flags]

Global flags:
  -c <context>        Use a named context for this invocation
  -u <account>        Sign with this account instead of the context's
  -p <password>       Password for the signing account
  -r <url>            Controller endpoint override
  -e <url>            Executor endpoint override
  --crypto <SM|ETH>   Crypto type override
  --data-dir <path>   Data directory (default: ~/.stratus-cli)
  --log-level <lvl>   debug, info, warn or error (default: warn)

Commands:
  account generate --name <n> [--password <pw>]
                                  Create a new account
  account import --name <n> --key <hex> [--password <pw>]
                                  Import a raw secret key
  account import-mnemonic --name <n> [--mnemonic "..."] [--password <pw>]
                                  Import (or create) a BIP-39 account (ETH)
  account list                    List accounts
  account export --name <n>       Print an account's keypair
  account unlock --name <n>       Check an account's password
  account lock --name <n>         Drop an account's session unlock
  account delete --name <n> [--force]
                                  Delete an account record

  context save --name <n> [flags] Save the current settings as a context
  context list                    List saved contexts
  context default --name <n>      Set the default context
  context delete --name <n>       Delete a context

  send --to <addr> [--value <hex>] [--data <hex>] [--quota <n>] [--until <pos>]
                                  Sign and send a transaction
  create --data <hex> [flags]     Deploy a contract
  call --to <addr> --data <hex>   Read-only contract call

  get version                     Node software version
  get block-number                Current height
  get block <height|hash>         Block details
  get tx <hash>                   Transaction details
  get receipt <hash>              Transaction receipt
  get peer-count                  Connected peer count
  get peers-info                  Connected peer details
  get system-config               Chain metadata

  add-node <multiaddr>            Ask the node to dial a peer
  history [-n <count>]            Recently sent transactions
`)
}

// ── Helpers ─────────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// passwordOrPrompt returns the global -p value if one was given,
// otherwise prompts on the terminal.
func (s *session) passwordOrPrompt(prompt string) ([]byte, error) {
	if len(s.overrides.Password) > 0 {
		return s.overrides.Password, nil
	}
	return readPassword(prompt)
}
