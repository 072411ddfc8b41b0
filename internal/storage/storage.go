package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/eugenenazirov/signcfg/internal/signing"
)

var (
	// ErrNotResolved indicates no resolution has been recorded yet.
	ErrNotResolved = errors.New("signing configuration has not been resolved yet")
	// ErrInvalidSnapshot indicates the snapshot lacks a build environment.
	ErrInvalidSnapshot = errors.New("snapshot must name a build environment")
)

// Snapshot is the outcome of the latest resolution, redacted.
type Snapshot struct {
	Summary    signing.Summary
	ResolvedAt time.Time
	// Error holds the resolution failure, if any.
	Error string
}

// Storage provides access to the latest resolution snapshot.
type Storage interface {
	GetSnapshot() (Snapshot, error)
	SetSnapshot(snapshot Snapshot) error
}

// MemoryStorage keeps the snapshot in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewMemoryStorage initialises empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// GetSnapshot returns a defensive copy of the current snapshot.
func (s *MemoryStorage) GetSnapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return Snapshot{}, ErrNotResolved
	}
	return cloneSnapshot(*s.snapshot), nil
}

// SetSnapshot validates and stores the provided snapshot.
func (s *MemoryStorage) SetSnapshot(snapshot Snapshot) error {
	if snapshot.Summary.Environment == "" {
		return ErrInvalidSnapshot
	}

	cloned := cloneSnapshot(snapshot)
	s.mu.Lock()
	s.snapshot = &cloned
	s.mu.Unlock()

	return nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	out := src
	if src.Summary.Missing != nil {
		out.Summary.Missing = append([]string(nil), src.Summary.Missing...)
	}
	return out
}
