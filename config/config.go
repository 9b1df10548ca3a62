// Package config handles the client configuration: named context
// settings (which node to talk to, which account signs, which schemes
// the chain runs) and the designated default context.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/stratus-chain/stratus-cli/pkg/crypto"
)

const (
	// FileName is the config file name inside the data directory.
	FileName = "config.toml"

	// DataDirName is the default data directory under $HOME.
	DataDirName = ".stratus-cli"

	// SchemaVersion is the on-disk config schema. There is no migration
	// across versions: an unknown version fails fast.
	SchemaVersion = 1

	// DefaultContextName is the context created on first run.
	DefaultContextName = "default"

	// DefaultAccountName is the account the default context points at.
	DefaultAccountName = "default"
)

// ErrIncompatible is returned when the config file's schema version is
// not the one this binary writes.
var ErrIncompatible = errors.New("incompatible config file, please remove it and run again")

// ConsensusType identifies the consensus engine of the target chain.
// The client only displays it; it never changes signing behavior.
type ConsensusType uint8

const (
	Bft ConsensusType = iota
	Overlord
	Raft
)

// String returns the canonical name of the consensus type.
func (t ConsensusType) String() string {
	switch t {
	case Bft:
		return "BFT"
	case Overlord:
		return "OVERLORD"
	case Raft:
		return "RAFT"
	default:
		return fmt.Sprintf("ConsensusType(%d)", uint8(t))
	}
}

// ParseConsensusType parses a consensus type name, case-insensitively.
func ParseConsensusType(s string) (ConsensusType, error) {
	switch strings.ToUpper(s) {
	case "BFT":
		return Bft, nil
	case "OVERLORD":
		return Overlord, nil
	case "RAFT":
		return Raft, nil
	default:
		return 0, fmt.Errorf("unknown consensus type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ConsensusType) MarshalText() ([]byte, error) {
	switch t {
	case Bft, Overlord, Raft:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("unknown consensus type %d", uint8(t))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ConsensusType) UnmarshalText(text []byte) error {
	parsed, err := ParseConsensusType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ContextSetting is one named connection profile. Profiles reference
// accounts by name; the reference is not validated here and fails lazily
// at resolution if the account has been deleted.
type ContextSetting struct {
	ControllerAddr string        `toml:"controller_addr"`
	ExecutorAddr   string        `toml:"executor_addr"`
	AccountName    string        `toml:"account_name"`
	CryptoType     crypto.Type   `toml:"crypto_type"`
	ConsensusType  ConsensusType `toml:"consensus_type"`
}

// DefaultContextSetting returns the setting written on first run.
func DefaultContextSetting() ContextSetting {
	return ContextSetting{
		ControllerAddr: "http://localhost:50004",
		ExecutorAddr:   "http://localhost:50002",
		AccountName:    DefaultAccountName,
		CryptoType:     crypto.Sm,
		ConsensusType:  Bft,
	}
}

// Config is the persisted client configuration.
type Config struct {
	Version        int                       `toml:"version"`
	DefaultContext string                    `toml:"default_context"`
	Contexts       map[string]ContextSetting `toml:"context_settings"`

	dataDir string
}

// Open reads the config under dataDir, writing a fresh default config on
// first run. A schema version this binary does not understand is a hard
// error, never a silent reinterpretation.
func Open(dataDir string) (*Config, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, FileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := defaultConfig(dataDir)
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: %s has schema version %d, expected %d",
			ErrIncompatible, path, cfg.Version, SchemaVersion)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]ContextSetting)
	}
	cfg.dataDir = dataDir
	return &cfg, nil
}

func defaultConfig(dataDir string) *Config {
	return &Config{
		Version:        SchemaVersion,
		DefaultContext: DefaultContextName,
		Contexts: map[string]ContextSetting{
			DefaultContextName: DefaultContextSetting(),
		},
		dataDir: dataDir,
	}
}

// DataDir returns the directory this config was loaded from.
func (c *Config) DataDir() string {
	return c.dataDir
}

// Context returns the named context setting.
func (c *Config) Context(name string) (ContextSetting, error) {
	setting, ok := c.Contexts[name]
	if !ok {
		return ContextSetting{}, fmt.Errorf("context %q not found", name)
	}
	return setting, nil
}

// Save writes the config atomically: temp file in the same directory,
// then rename over the target.
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(c.dataDir, FileName)

	tmp, err := os.CreateTemp(c.dataDir, ".tmp-config-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename config into place: %w", err)
	}
	return nil
}

// FieldOverrides carries per-invocation flag values. Zero-valued fields
// mean "not supplied".
type FieldOverrides struct {
	ControllerAddr string
	ExecutorAddr   string
	AccountName    string
	CryptoType     *crypto.Type
}

// Effective computes the setting one invocation runs under. Precedence
// is explicit: a flag override beats the selected context, which beats
// the saved default context.
func Effective(cfg *Config, contextOverride string, ov FieldOverrides) (ContextSetting, error) {
	name := cfg.DefaultContext
	if contextOverride != "" {
		name = contextOverride
	}
	setting, err := cfg.Context(name)
	if err != nil {
		return ContextSetting{}, err
	}

	if ov.ControllerAddr != "" {
		setting.ControllerAddr = ov.ControllerAddr
	}
	if ov.ExecutorAddr != "" {
		setting.ExecutorAddr = ov.ExecutorAddr
	}
	if ov.AccountName != "" {
		setting.AccountName = ov.AccountName
	}
	if ov.CryptoType != nil {
		setting.CryptoType = *ov.CryptoType
	}
	return setting, nil
}

// DefaultDataDir returns $HOME/.stratus-cli.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fall back to the working directory when HOME is unset.
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}
