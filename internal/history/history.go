// Package history records transactions this client has broadcast, so a
// later invocation can list what it sent without asking the node.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/stratus-chain/stratus-cli/internal/log"
	"github.com/stratus-chain/stratus-cli/pkg/types"
)

const storeDirName = "history"

// Entry is one sent transaction.
type Entry struct {
	Hash       types.Hash    `json:"hash"`
	Sender     types.Address `json:"sender"`
	To         types.Address `json:"to"`
	Value      string        `json:"value"`
	ValidUntil uint64        `json:"valid_until"`
	SentAt     time.Time     `json:"sent_at"`
}

// Store is a badger-backed log of sent transactions. Keys are ordered by
// send time so listing recent entries is a reverse prefix scan.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the history store under dataDir.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, storeDirName)
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger's built-in logging.

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("history store at %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("open history store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// key orders entries chronologically: nanosecond timestamp then hash to
// break ties between sends in the same nanosecond.
func key(e *Entry) []byte {
	k := make([]byte, 8+types.HashSize)
	binary.BigEndian.PutUint64(k, uint64(e.SentAt.UnixNano()))
	copy(k[8:], e.Hash[:])
	return k
}

// Record appends one sent transaction.
func (s *Store) Record(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(e), data)
	})
	if err != nil {
		return fmt.Errorf("record history entry: %w", err)
	}
	log.History.Debug().Str("hash", e.Hash.Hex()).Msg("transaction recorded")
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything.
func (s *Store) Recent(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the highest key.
		seek := make([]byte, 8+types.HashSize)
		for i := range seek {
			seek[i] = 0xff
		}
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode history entry: %w", err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Iteration order already matches, but ties within one nanosecond
	// come back in hash order; keep newest-first stable for callers.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].SentAt.After(entries[j].SentAt)
	})
	return entries, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}
