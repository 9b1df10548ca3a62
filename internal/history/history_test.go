package history

import (
	"testing"
	"time"

	"github.com/stratus-chain/stratus-cli/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(i int, at time.Time) *Entry {
	var hash types.Hash
	hash[0] = byte(i)
	var sender, to types.Address
	sender[0] = 0xaa
	to[0] = 0xbb
	return &Entry{
		Hash:       hash,
		Sender:     sender,
		To:         to,
		Value:      "0x0",
		ValidUntil: uint64(100 + i),
		SentAt:     at,
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		if err := s.Record(testEntry(i, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	entries, err := s.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recent(3) returned %d entries", len(entries))
	}
	// Newest first.
	for i, want := range []byte{4, 3, 2} {
		if entries[i].Hash[0] != want {
			t.Errorf("entries[%d].Hash[0] = %d, want %d", i, entries[i].Hash[0], want)
		}
	}
	if entries[0].ValidUntil != 104 {
		t.Errorf("ValidUntil = %d, want 104", entries[0].ValidUntil)
	}
}

func TestRecentUnlimited(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		if err := s.Record(testEntry(i, base.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	entries, err := s.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("Recent(0) returned %d entries, want 4", len(entries))
	}
}

func TestRecentEmpty(t *testing.T) {
	s := openTestStore(t)

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Recent on empty store returned %d entries", len(entries))
	}
}

func TestEntrySurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e := testEntry(1, time.Now().UTC())
	if err := s.Record(e); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	entries, err := s.Recent(1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Hash != e.Hash {
		t.Fatalf("entry did not survive reopen: %+v", entries)
	}
}
