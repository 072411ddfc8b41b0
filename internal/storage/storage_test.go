package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/eugenenazirov/signcfg/internal/signing"
)

func TestNewMemoryStorageIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if _, err := store.GetSnapshot(); !errors.Is(err, ErrNotResolved) {
		t.Fatalf("expected ErrNotResolved, got %v", err)
	}
}

func TestSetSnapshotUpdatesState(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Summary:    signing.Summary{Environment: "local", Missing: []string{signing.FieldStoreFile}},
		ResolvedAt: at,
	}
	if err := store.SetSnapshot(snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// ensure mutation safety
	snap.Summary.Missing[0] = "mutated"

	got, err := store.GetSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary.Environment != "local" || !got.ResolvedAt.Equal(at) {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Summary.Missing[0] != signing.FieldStoreFile {
		t.Fatalf("expected defensive copy on write, got %v", got.Summary.Missing)
	}

	got.Summary.Missing[0] = "mutated"
	again, _ := store.GetSnapshot()
	if again.Summary.Missing[0] != signing.FieldStoreFile {
		t.Fatalf("expected defensive copy on read, got %v", again.Summary.Missing)
	}
}

func TestSetSnapshotRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	if err := store.SetSnapshot(Snapshot{Error: "boom"}); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func(offset int) {
			defer wg.Done()
			snap := Snapshot{Summary: signing.Summary{Environment: "ci", StoreFile: fmt.Sprintf("k%d.jks", offset)}}
			if err := store.SetSnapshot(snap); err != nil {
				t.Errorf("SetSnapshot failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			if _, err := store.GetSnapshot(); err != nil && !errors.Is(err, ErrNotResolved) {
				t.Errorf("GetSnapshot failed: %v", err)
			}
		}()
	}

	wg.Wait()

	// final read should succeed
	if _, err := store.GetSnapshot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
