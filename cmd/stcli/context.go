package main

import (
	"flag"
	"fmt"
	"sort"

	"github.com/stratus-chain/stratus-cli/config"
	"github.com/stratus-chain/stratus-cli/pkg/crypto"
)

func cmdContext(s *session, args []string) {
	if len(args) == 0 {
		fatal("Usage: stcli context <save|list|default|delete>")
	}
	sub := args[0]
	subArgs := args[1:]

	switch sub {
	case "save":
		contextSave(s, subArgs)
	case "list":
		contextList(s)
	case "default":
		contextDefault(s, subArgs)
	case "delete":
		contextDelete(s, subArgs)
	default:
		fatal("unknown context subcommand %q", sub)
	}
}

func contextSave(s *session, args []string) {
	fs := flag.NewFlagSet("context save", flag.ExitOnError)
	name := fs.String("name", "", "Context name")
	controller := fs.String("controller", "", "Controller endpoint")
	executor := fs.String("executor", "", "Executor endpoint")
	account := fs.String("account", "", "Signing account name")
	cryptoName := fs.String("crypto", "", "Crypto type (SM or ETH)")
	consensusName := fs.String("consensus", "", "Consensus type (BFT, OVERLORD or RAFT)")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: stcli context save --name <n> [--controller <url>] [--executor <url>] [--account <n>] [--crypto SM|ETH] [--consensus <t>]")
	}

	// Start from the invocation's effective setting so saving without
	// flags snapshots what this session is using.
	setting := s.setting
	if existing, err := s.cfg.Context(*name); err == nil {
		setting = existing
	}
	if *controller != "" {
		setting.ControllerAddr = *controller
	}
	if *executor != "" {
		setting.ExecutorAddr = *executor
	}
	if *account != "" {
		setting.AccountName = *account
	}
	if *cryptoName != "" {
		ct, err := crypto.ParseType(*cryptoName)
		if err != nil {
			fatal("%v", err)
		}
		setting.CryptoType = ct
	}
	if *consensusName != "" {
		consensus, err := config.ParseConsensusType(*consensusName)
		if err != nil {
			fatal("%v", err)
		}
		setting.ConsensusType = consensus
	}

	s.cfg.Contexts[*name] = setting
	if err := s.cfg.Save(); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("context %s saved\n", *name)
}

func contextList(s *session) {
	names := make([]string, 0, len(s.cfg.Contexts))
	for name := range s.cfg.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		setting := s.cfg.Contexts[name]
		marker := " "
		if name == s.cfg.DefaultContext {
			marker = "*"
		}
		fmt.Printf("%s %s\tcontroller=%s executor=%s account=%s crypto=%s consensus=%s\n",
			marker, name,
			setting.ControllerAddr, setting.ExecutorAddr,
			setting.AccountName, setting.CryptoType, setting.ConsensusType)
	}
}

func contextDefault(s *session, args []string) {
	fs := flag.NewFlagSet("context default", flag.ExitOnError)
	name := fs.String("name", "", "Context name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: stcli context default --name <n>")
	}
	if _, err := s.cfg.Context(*name); err != nil {
		fatal("%v", err)
	}

	s.cfg.DefaultContext = *name
	if err := s.cfg.Save(); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("default context is now %s\n", *name)
}

func contextDelete(s *session, args []string) {
	fs := flag.NewFlagSet("context delete", flag.ExitOnError)
	name := fs.String("name", "", "Context name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: stcli context delete --name <n>")
	}
	if _, err := s.cfg.Context(*name); err != nil {
		fatal("%v", err)
	}
	if *name == s.cfg.DefaultContext {
		fatal("context %q is the default; pick another default first", *name)
	}

	delete(s.cfg.Contexts, *name)
	if err := s.cfg.Save(); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("context %s deleted\n", *name)
}
