package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/stratus-chain/stratus-cli/internal/history"
	"github.com/stratus-chain/stratus-cli/internal/keystore"
	"github.com/stratus-chain/stratus-cli/internal/rpcclient"
	"github.com/stratus-chain/stratus-cli/pkg/tx"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

// Defaults applied when a send/create flag is omitted. The transaction
// core takes them as explicit inputs; they live here with the flags.
const (
	defaultQuota = 1073741824
	defaultUntil = "+95"
	defaultValue = "0x0"
	defaultData  = "0x"
)

func newRPCContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), rpcTimeout)
}

// resolveSigner obtains the signing key for the session, prompting for a
// password once if the account turns out to be locked.
func resolveSigner(s *session) *keystore.Signer {
	r := &keystore.Resolver{Keystore: s.ks, Cache: s.cache}

	signer, err := r.Resolve(s.setting, s.overrides)
	var locked *keystore.LockedError
	if errors.As(err, &locked) {
		pw, perr := readPassword("Enter password: ")
		if perr != nil {
			fatal("read password: %v", perr)
		}
		ov := s.overrides
		ov.Password = pw
		signer, err = r.Resolve(s.setting, ov)
	}
	if err != nil {
		fatal("%v", err)
	}
	return signer
}

// buildAndSend assembles, signs, broadcasts and records one transaction.
func buildAndSend(s *session, to *types.Address, valueHex, dataHex, quotaStr, untilStr string) {
	value, err := types.ParseValue(valueHex)
	if err != nil {
		fatal("invalid value: %v", err)
	}
	data, err := types.ParseData(dataHex)
	if err != nil {
		fatal("invalid data: %v", err)
	}
	quota, err := strconv.ParseUint(quotaStr, 10, 64)
	if err != nil {
		fatal("invalid quota: %v", err)
	}
	pos, err := tx.ParsePosition(untilStr)
	if err != nil {
		fatal("%v", err)
	}

	ctx, cancel := newRPCContext()
	defer cancel()
	client := rpcclient.New(s.setting.ControllerAddr)

	sysConfig, err := client.GetSystemConfig(ctx)
	if err != nil {
		fatal("get system config: %v", err)
	}
	chainID, err := types.ParseValue(sysConfig.ChainID)
	if err != nil {
		fatal("node returned malformed chain id: %v", err)
	}

	current := uint64(0)
	if pos.Relative() {
		current, err = client.GetBlockNumber(ctx)
		if err != nil {
			fatal("get block number: %v", err)
		}
	}
	until, err := pos.Resolve(current)
	if err != nil {
		fatal("%v", err)
	}

	builder := tx.NewBuilder(sysConfig.Version, chainID).
		RandomNonce().
		Quota(quota).
		ValidUntil(until).
		Data(data).
		Value(value)
	if to != nil {
		builder = builder.To(*to)
	}

	signer := resolveSigner(s)
	defer signer.Destroy()

	signed, err := builder.Sign(signer)
	if err != nil {
		fatal("%v", err)
	}
	raw, err := signed.Encode()
	if err != nil {
		fatal("%v", err)
	}

	hash, err := client.SendRawTransaction(ctx, raw)
	if err != nil {
		fatal("send transaction: %v", err)
	}
	fmt.Println(hash.Hex())

	recordHistory(s, signed, hash, valueHex, until)
}

// recordHistory appends the sent transaction to the local history store.
// History is best-effort bookkeeping; a failure is logged, not fatal,
// since the transaction is already on the wire.
func recordHistory(s *session, signed *tx.SignedTransaction, hash types.Hash, valueHex string, until uint64) {
	store, err := history.Open(s.dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open history store: %v\n", err)
		return
	}
	defer store.Close()

	var to types.Address
	if len(signed.Tx.To) == types.AddressSize {
		copy(to[:], signed.Tx.To)
	}
	entry := &history.Entry{
		Hash:       hash,
		Sender:     signed.Sender,
		To:         to,
		Value:      valueHex,
		ValidUntil: until,
		SentAt:     time.Now().UTC(),
	}
	if err := store.Record(entry); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot record history: %v\n", err)
	}
}

func cmdSend(s *session, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	toStr := fs.String("to", "", "Recipient address")
	value := fs.String("value", defaultValue, "Value to transfer (hex)")
	data := fs.String("data", defaultData, "Call data (hex)")
	quota := fs.String("quota", strconv.Itoa(defaultQuota), "Quota limit")
	until := fs.String("until", defaultUntil, "Valid-until height (absolute, +N or -N)")
	fs.Parse(args)

	if *toStr == "" {
		fatal("Usage: stcli send --to <addr> [--value <hex>] [--data <hex>] [--quota <n>] [--until <pos>]")
	}
	to, err := types.ParseAddress(*toStr)
	if err != nil {
		fatal("invalid recipient address: %v", err)
	}

	buildAndSend(s, &to, *value, *data, *quota, *until)
}

func cmdCreate(s *session, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	data := fs.String("data", "", "Contract bytecode (hex)")
	value := fs.String("value", defaultValue, "Value to transfer (hex)")
	quota := fs.String("quota", strconv.Itoa(defaultQuota), "Quota limit")
	until := fs.String("until", defaultUntil, "Valid-until height (absolute, +N or -N)")
	fs.Parse(args)

	if *data == "" || *data == defaultData {
		fatal("Usage: stcli create --data <hex> [--value <hex>] [--quota <n>] [--until <pos>]")
	}

	buildAndSend(s, nil, *value, *data, *quota, *until)
}

func cmdCall(s *session, args []string) {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	toStr := fs.String("to", "", "Contract address")
	dataStr := fs.String("data", "", "Call data (hex)")
	fromStr := fs.String("from", "", "Caller address (default: context account's, if any)")
	fs.Parse(args)

	if *toStr == "" || *dataStr == "" {
		fatal("Usage: stcli call --to <addr> --data <hex> [--from <addr>]")
	}
	to, err := types.ParseAddress(*toStr)
	if err != nil {
		fatal("invalid contract address: %v", err)
	}
	data, err := types.ParseData(*dataStr)
	if err != nil {
		fatal("invalid data: %v", err)
	}

	var from types.Address
	if *fromStr != "" {
		from, err = types.ParseAddress(*fromStr)
		if err != nil {
			fatal("invalid caller address: %v", err)
		}
	} else if acct, err := s.ks.Get(s.setting.AccountName); err == nil {
		from = acct.Address
	}

	ctx, cancel := newRPCContext()
	defer cancel()

	result, err := rpcclient.New(s.setting.ExecutorAddr).CallContract(ctx, from, to, data)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(result)
}

func cmdGet(s *session, args []string) {
	if len(args) == 0 {
		fatal("Usage: stcli get <version|block-number|block|tx|receipt|peer-count|peers-info|system-config>")
	}
	ctx, cancel := newRPCContext()
	defer cancel()
	client := rpcclient.New(s.setting.ControllerAddr)

	switch args[0] {
	case "version":
		version, err := client.GetVersion(ctx)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Println(version)

	case "block-number":
		height, err := client.GetBlockNumber(ctx)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Println(height)

	case "block":
		if len(args) < 2 {
			fatal("Usage: stcli get block <height|hash>")
		}
		var block *rpcclient.Block
		var err error
		if hash, herr := types.ParseHash(args[1]); herr == nil {
			block, err = client.GetBlockByHash(ctx, hash)
		} else {
			height, perr := strconv.ParseUint(args[1], 10, 64)
			if perr != nil {
				fatal("argument %q is neither a height nor a 32-byte hash", args[1])
			}
			block, err = client.GetBlockByNumber(ctx, height)
		}
		if err != nil {
			fatal("%v", err)
		}
		printJSON(block)

	case "tx":
		if len(args) < 2 {
			fatal("Usage: stcli get tx <hash>")
		}
		hash, err := types.ParseHash(args[1])
		if err != nil {
			fatal("invalid transaction hash: %v", err)
		}
		transaction, err := client.GetTransaction(ctx, hash)
		if err != nil {
			fatal("%v", err)
		}
		printJSON(transaction)

	case "receipt":
		if len(args) < 2 {
			fatal("Usage: stcli get receipt <hash>")
		}
		hash, err := types.ParseHash(args[1])
		if err != nil {
			fatal("invalid transaction hash: %v", err)
		}
		receipt, err := client.GetReceipt(ctx, hash)
		if err != nil {
			fatal("%v", err)
		}
		printJSON(receipt)

	case "peer-count":
		count, err := client.GetPeerCount(ctx)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Println(count)

	case "peers-info":
		info, err := client.GetPeersInfo(ctx)
		if err != nil {
			fatal("%v", err)
		}
		printJSON(info)

	case "system-config":
		sysConfig, err := client.GetSystemConfig(ctx)
		if err != nil {
			fatal("%v", err)
		}
		printJSON(sysConfig)

	default:
		fatal("unknown get subcommand %q", args[0])
	}
}

func cmdAddNode(s *session, args []string) {
	if len(args) != 1 {
		fatal("Usage: stcli add-node <multiaddr>")
	}
	ctx, cancel := newRPCContext()
	defer cancel()

	if err := rpcclient.New(s.setting.ControllerAddr).AddNode(ctx, args[0]); err != nil {
		fatal("%v", err)
	}
	fmt.Println("ok")
}

func cmdHistory(s *session, args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("n", 10, "Number of entries to show")
	fs.Parse(args)

	store, err := history.Open(s.dataDir)
	if err != nil {
		fatal("%v", err)
	}
	defer store.Close()

	entries, err := store.Recent(*limit)
	if err != nil {
		fatal("%v", err)
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s -> %s\tvalue=%s until=%d\t%s\n",
			e.Hash.Hex(), e.Sender.Hex(), e.To.Hex(),
			e.Value, e.ValidUntil, e.SentAt.Format(time.RFC3339))
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode output: %v", err)
	}
	fmt.Println(string(out))
}
