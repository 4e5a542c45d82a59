package upload

import "sync"

// Slot holds the one temporary object an upload field is waiting to
// swap in.
type Slot struct {
	mu     sync.Mutex
	id     string
	staged string
}

// Set records a freshly staged object, replacing any previous one.
func (s *Slot) Set(id, staged string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.staged = staged
}

// Pending returns the server id of the staged object.
func (s *Slot) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != ""
}

// Staged returns the staged filename of the pending object.
func (s *Slot) Staged() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged
}

// Commit clears the slot once the object has been swapped into a treasure.
func (s *Slot) Commit() (string, bool) {
	return s.Clear()
}

// Clear empties the slot and returns the id it held.
func (s *Slot) Clear() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id
	s.id, s.staged = "", ""
	return id, id != ""
}

