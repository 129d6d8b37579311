// Package store keeps every record matched since the process started.
package store

import (
	"sync"

	"ipreporter/internal/models"
)

// Store is an append-only, ordered record collection shared between the
// capture goroutine and the UI. Every access takes the lock.
type Store struct {
	mu      sync.Mutex
	records []models.Record
}

// New creates an empty store.
func New() *Store {
	return &Store{records: make([]models.Record, 0, 64)}
}

// Append adds rec after all previously appended records.
func (s *Store) Append(rec models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Snapshot returns a point-in-time copy in append order.
func (s *Store) Snapshot() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Make a copy so exports never alias the live slice.
	result := make([]models.Record, len(s.records))
	copy(result, s.records)
	return result
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
