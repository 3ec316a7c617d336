package model

import "sync/atomic"

// Store provides thread-safe access to the active coefficient table so a
// refreshed table can swap in without locking readers.
type Store struct {
	table atomic.Pointer[Table]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the active table, or nil if none has been loaded.
func (s *Store) Get() *Table {
	return s.table.Load()
}

// Set atomically replaces the active table.
func (s *Store) Set(t *Table) {
	s.table.Store(t)
}
