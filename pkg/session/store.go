// Package session holds the in-memory table of connection state and the
// keyed timeout tracker.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// ErrNoSuchSession is returned when a session id is not in the store.
var ErrNoSuchSession = errors.New("session: no such session")

// Store is the in-memory session table. The map itself is guarded here;
// mutation of Session fields is serialized by the server's state lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*model.Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[model.SessionID]*model.Session),
	}
}

// New creates a session with a fresh identifier, applies the initial
// field setter, and returns the id. IDs are drawn from the UUID space and
// never collide in practice.
func (s *Store) New(apply func(*model.Session)) model.SessionID {
	id := model.SessionID(uuid.NewString())

	sess := &model.Session{ID: id, Beep: model.BeepOn}
	if apply != nil {
		apply(sess)
	}
	sess.ID = id

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return id
}

// Get retrieves a session by id.
func (s *Store) Get(id model.SessionID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNoSuchSession
	}
	return sess, nil
}

// Update applies a field mutation to an existing session. The record is
// merged in place, never replaced.
func (s *Store) Update(id model.SessionID, apply func(*model.Session)) error {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNoSuchSession
	}
	apply(sess)
	return nil
}

// Delete removes a session record.
func (s *Store) Delete(id model.SessionID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// FindNick returns the session owning a nickname, case-insensitively.
// Nickname uniqueness is enforced by the command layer, not here.
func (s *Store) FindNick(nick string) (model.SessionID, bool) {
	needle := strings.ToLower(nick)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, sess := range s.sessions {
		if sess.Nick != "" && strings.ToLower(sess.Nick) == needle {
			return id, true
		}
	}
	return "", false
}

// GetNicks returns all sessions that currently have a nickname set.
func (s *Store) GetNicks() []*model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.Nick != "" {
			out = append(out, sess)
		}
	}
	return out
}

// All returns a snapshot of every session.
func (s *Store) All() []*model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Count returns the number of sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
