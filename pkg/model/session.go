// Package model defines the core domain types for the chat server.
package model

import (
	"strings"
	"time"
)

// SessionID is an opaque, unguessable session identifier.
type SessionID string

// BeepMode controls whether a session accepts beeps.
type BeepMode int

const (
	BeepOn      BeepMode = iota // beeps delivered
	BeepOff                     // beeps rejected
	BeepVerbose                 // beeps rejected and the target is told who tried
)

func (m BeepMode) String() string {
	switch m {
	case BeepOn:
		return "on"
	case BeepOff:
		return "off"
	case BeepVerbose:
		return "verbose"
	default:
		return "unknown"
	}
}

// ParseBeepMode converts a command argument to a BeepMode.
// Unrecognized values default to BeepOn.
func ParseBeepMode(s string) BeepMode {
	switch strings.ToLower(s) {
	case "off", "n":
		return BeepOff
	case "verbose", "v":
		return BeepVerbose
	default:
		return BeepOn
	}
}

// Session represents one connected client's server-side state (in-memory
// only). Field mutation is serialized by the server's state lock.
type Session struct {
	ID SessionID

	// Network identity.
	Address  string // bare IP
	Hostname string // resolved name, falls back to the IP
	TLS      bool

	// Login identity. Nick is empty until the client logs in.
	LoginID       string
	Nick          string
	Authenticated bool

	// Current group display name, empty when not in a group.
	Group string

	SignOn      time.Time
	LastMessage time.Time // last message received from this client
	LastAlive   time.Time // last activity of any kind
	LastPing    time.Time // last keepalive probe sent
	AwaySince   time.Time
	Away        string // away message, empty when not away

	Beep BeepMode

	// Per-session lists, keyed by lowercased nick.
	hushed map[string]string
	notify map[string]string
}

// LoggedIn reports whether the session completed the login handshake.
func (s *Session) LoggedIn() bool {
	return s.Nick != ""
}

// Idle returns the elapsed time since the session's last activity.
func (s *Session) Idle(now time.Time) time.Duration {
	return now.Sub(s.LastAlive)
}

// ToggleHush adds or removes a nick from the hush list and reports whether
// the nick is hushed afterwards.
func (s *Session) ToggleHush(nick string) bool {
	if s.hushed == nil {
		s.hushed = make(map[string]string)
	}
	key := strings.ToLower(nick)
	if _, ok := s.hushed[key]; ok {
		delete(s.hushed, key)
		return false
	}
	s.hushed[key] = nick
	return true
}

// Hushes reports whether the session hushes the given nick.
func (s *Session) Hushes(nick string) bool {
	_, ok := s.hushed[strings.ToLower(nick)]
	return ok
}

// ToggleNotify adds or removes a nick from the notify list and reports
// whether the nick is watched afterwards.
func (s *Session) ToggleNotify(nick string) bool {
	if s.notify == nil {
		s.notify = make(map[string]string)
	}
	key := strings.ToLower(nick)
	if _, ok := s.notify[key]; ok {
		delete(s.notify, key)
		return false
	}
	s.notify[key] = nick
	return true
}

// Watches reports whether the session watches the given nick for
// sign-on/sign-off notifications.
func (s *Session) Watches(nick string) bool {
	_, ok := s.notify[strings.ToLower(nick)]
	return ok
}
