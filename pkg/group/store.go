// Package group holds the in-memory table of channel metadata, keyed by
// the lowercased channel name.
package group

import (
	"sort"
	"strings"
	"sync"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// Store maps lowercased group names to their metadata. A group lives in
// the store iff its broker member set is non-empty; the command layer
// keeps the two in lockstep.
type Store struct {
	mu     sync.RWMutex
	groups map[string]*model.Group
}

// NewStore creates an empty group store.
func NewStore() *Store {
	return &Store{
		groups: make(map[string]*model.Group),
	}
}

// Get looks a group up case-insensitively. It never fails: when the group
// does not exist a fresh default-initialized Group carrying the requested
// display name is returned, and the caller decides whether to persist it
// with Update.
func (s *Store) Get(name string) *model.Group {
	s.mu.RLock()
	g, ok := s.groups[model.Key(name)]
	s.mu.RUnlock()
	if ok {
		return g
	}
	return model.NewGroup(name)
}

// Update upserts a group keyed by its lowercased name.
func (s *Store) Update(g *model.Group) {
	s.mu.Lock()
	s.groups[g.Key()] = g
	s.mu.Unlock()
}

// Exists reports whether a group is in the store.
func (s *Store) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[model.Key(name)]
	return ok
}

// GetGroups returns all groups sorted by display name.
func (s *Store) GetGroups() []*model.Group {
	s.mu.RLock()
	out := make([]*model.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// Delete removes a group from the store.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	delete(s.groups, model.Key(name))
	s.mu.Unlock()
}
