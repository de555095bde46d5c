// Package objects resolves the ordered list of design objects an export run
// covers and keeps the per-project lists edited between runs.
package objects

import (
	"context"
	"strings"
	"sync"
)

// List is an ordered sequence of object identifiers. Order is export order
// and duplicates are kept.
type List []string

// Clone returns an independent copy.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	return append(List(nil), l...)
}

// Joined renders the identifiers separated by single spaces.
func (l List) Joined() string {
	return strings.Join(l, " ")
}

// Store persists one List per project code.
type Store interface {
	// Get returns the stored list and whether one exists for the project.
	Get(ctx context.Context, projectCode string) (List, bool, error)
	// Set replaces the stored list for the project.
	Set(ctx context.Context, projectCode string, list List) error
}

// MemoryStore keeps lists for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string]List
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: map[string]List{}}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, projectCode string) (List, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.lists[projectKey(projectCode)]
	return list.Clone(), ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, projectCode string, list List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if list == nil {
		list = List{}
	}
	s.lists[projectKey(projectCode)] = list.Clone()
	return nil
}

func projectKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
