package session

import (
	"errors"
	"slices"
	"sync"
)

var (
	// ErrCapacityExhausted is returned by Append once the store holds its
	// configured maximum number of entries.
	ErrCapacityExhausted = errors.New("session store capacity exhausted")
	// ErrInvalidEntry is returned when appending a nil entry or one without an id.
	ErrInvalidEntry = errors.New("invalid history entry")
)

// Store is the in-memory history log shared by every connection of the room.
//
// All operations take the same lock, so Append and Clear are linearizable: an
// entry racing with a clear is either removed by it or survives it, never lost
// half-way.
type Store struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
}

// NewStore creates an empty store. A maxEntries of zero or less means unbounded.
func NewStore(maxEntries int) *Store {
	return &Store{maxEntries: maxEntries}
}

// Append adds the entry at the end of the log and returns its id.
func (s *Store) Append(entry Entry) (EntryID, error) {
	if entry == nil || entry.EntryID() == "" {
		return "", ErrInvalidEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		return "", ErrCapacityExhausted
	}
	s.entries = append(s.entries, entry)
	return entry.EntryID(), nil
}

// Snapshot returns a copy of the full history in insertion order.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Clear empties the log and returns what it held, so callers can release the
// resources those entries reference.
func (s *Store) Clear() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.entries
	s.entries = nil
	return removed
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
