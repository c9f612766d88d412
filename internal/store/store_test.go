package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/mtx/internal/shared"
	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStores(t *testing.T) {
	sqliteStore := func(t *testing.T) Store {
		s, err := NewSQLiteStore(openTestDB(t))
		if err != nil {
			t.Fatalf("failed to create sqlite store: %v", err)
		}
		return s
	}

	stores := map[string]func(t *testing.T) Store{
		"Memory": func(t *testing.T) Store { return NewMemoryStore() },
		"SQLite": sqliteStore,
	}

	for name, create := range stores {
		t.Run(name, func(t *testing.T) {
			s := create(t)

			if _, ok := s.Get("absent"); ok {
				t.Error("expected absent key to report not found")
			}

			key := ProviderKey(KeyToken, "spotify")
			if err := s.Set(key, "abc123"); err != nil {
				t.Fatalf("failed to set: %v", err)
			}
			if v, ok := s.Get(key); !ok || v != "abc123" {
				t.Errorf("expected abc123, got %q (found=%v)", v, ok)
			}

			if err := s.Set(key, "def456"); err != nil {
				t.Fatalf("failed to overwrite: %v", err)
			}
			if v, _ := s.Get(key); v != "def456" {
				t.Errorf("expected overwritten value def456, got %q", v)
			}

			if err := s.Remove(key); err != nil {
				t.Fatalf("failed to remove: %v", err)
			}
			if _, ok := s.Get(key); ok {
				t.Error("expected removed key to report not found")
			}

			if err := s.Remove("absent"); err != nil {
				t.Errorf("removing an absent key should be a no-op, got %v", err)
			}
		})
	}
}

func TestProviderKey(t *testing.T) {
	if got := ProviderKey(KeyVerifier, "tidal"); got != "verifiertidal" {
		t.Errorf("expected verifiertidal, got %s", got)
	}
}

func TestPendingSlot(t *testing.T) {
	t.Run("ClaimAndClear", func(t *testing.T) {
		slot := NewPendingSlot(NewMemoryStore())

		if _, ok := slot.Current(); ok {
			t.Error("fresh slot should be empty")
		}

		if err := slot.Claim("spotify"); err != nil {
			t.Fatalf("failed to claim empty slot: %v", err)
		}
		if current, ok := slot.Current(); !ok || current != "spotify" {
			t.Errorf("expected spotify pending, got %q (ok=%v)", current, ok)
		}

		if err := slot.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if _, ok := slot.Current(); ok {
			t.Error("cleared slot should be empty")
		}
	})

	t.Run("ClaimConflict", func(t *testing.T) {
		slot := NewPendingSlot(NewMemoryStore())

		if err := slot.Claim("spotify"); err != nil {
			t.Fatalf("failed to claim: %v", err)
		}

		err := slot.Claim("tidal")
		if !errors.Is(err, shared.ErrLoginPending) {
			t.Errorf("expected ErrLoginPending, got %v", err)
		}

		// The holder cannot re-claim either; restarting a login must
		// clear the slot explicitly first.
		if err := slot.Claim("spotify"); !errors.Is(err, shared.ErrLoginPending) {
			t.Errorf("expected ErrLoginPending on re-claim, got %v", err)
		}

		if err := slot.Clear(); err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if err := slot.Claim("spotify"); err != nil {
			t.Errorf("claim after clear should succeed, got %v", err)
		}
	})

	t.Run("ClearEmpty", func(t *testing.T) {
		slot := NewPendingSlot(NewMemoryStore())
		if err := slot.Clear(); err != nil {
			t.Errorf("clearing an empty slot should be a no-op, got %v", err)
		}
	})
}
