package model

import (
	"sort"
	"strings"
)

// Visibility controls whether a group appears in listings.
type Visibility int

const (
	Visible   Visibility = iota // listed with members
	Secret                      // listed without its name
	Invisible                   // not listed at all
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "visible"
	case Secret:
		return "secret"
	case Invisible:
		return "invisible"
	default:
		return "unknown"
	}
}

// Control is a group's access-control mode. Each mode gates two independent
// capabilities: who may enter and who may speak.
type Control int

const (
	Public     Control = iota // anyone enters, anyone speaks
	Moderated                 // moderator is informational only
	Restricted                // entry requires moderator or an invitation
	Controlled                // speaking requires a talker-list entry
)

func (c Control) String() string {
	switch c {
	case Public:
		return "public"
	case Moderated:
		return "moderated"
	case Restricted:
		return "restricted"
	case Controlled:
		return "controlled"
	default:
		return "unknown"
	}
}

// Volume is a group's announcement verbosity. Quiet suppresses join/part
// and message-arrival announcements entirely.
type Volume int

const (
	Quiet Volume = iota
	Normal
	Loud
)

func (v Volume) String() string {
	switch v {
	case Quiet:
		return "quiet"
	case Normal:
		return "normal"
	case Loud:
		return "loud"
	default:
		return "unknown"
	}
}

// ListEntry is one invitation or talker-list entry. A registered-only entry
// matches only actors that are currently authenticated.
type ListEntry struct {
	Display    string
	Registered bool
}

// MemberList is a case-insensitive set of invitation/talker entries.
type MemberList map[string]ListEntry

// Add inserts or replaces an entry.
func (l MemberList) Add(name string, registered bool) {
	l[strings.ToLower(name)] = ListEntry{Display: name, Registered: registered}
}

// Remove deletes an entry and reports whether it existed.
func (l MemberList) Remove(name string) bool {
	key := strings.ToLower(name)
	if _, ok := l[key]; !ok {
		return false
	}
	delete(l, key)
	return true
}

// Matches reports whether name is on the list, honoring the registered-only
// flag: a plain entry always matches, a registered-only entry matches only
// when the actor is authenticated.
func (l MemberList) Matches(name string, authenticated bool) bool {
	e, ok := l[strings.ToLower(name)]
	if !ok {
		return false
	}
	return !e.Registered || authenticated
}

// Names returns the display names, sorted.
func (l MemberList) Names() []string {
	names := make([]string, 0, len(l))
	for _, e := range l {
		names = append(names, e.Display)
	}
	sort.Strings(names)
	return names
}

// Group is the metadata of one channel. Identity is the lowercased name;
// Name preserves the display form of whoever created it.
type Group struct {
	Name       string
	Visibility Visibility
	Control    Control
	Volume     Volume
	Moderator  SessionID // empty = no moderator
	Topic      string

	InvitedNicks     MemberList
	InvitedAddresses MemberList
	TalkerNicks      MemberList
	TalkerAddresses  MemberList
}

// NewGroup returns a default-initialized group: visible, public, loud,
// no moderator, no topic.
func NewGroup(name string) *Group {
	return &Group{
		Name:             name,
		Visibility:       Visible,
		Control:          Public,
		Volume:           Loud,
		InvitedNicks:     make(MemberList),
		InvitedAddresses: make(MemberList),
		TalkerNicks:      make(MemberList),
		TalkerAddresses:  make(MemberList),
	}
}

// Key returns the case-insensitive identity key for a group name.
func Key(name string) string {
	return strings.ToLower(name)
}

// Key returns the group's identity key.
func (g *Group) Key() string {
	return Key(g.Name)
}

// IsModerator reports whether the given session moderates this group.
func (g *Group) IsModerator(id SessionID) bool {
	return g.Moderator != "" && g.Moderator == id
}

// ClearInvitations empties both invitation lists.
func (g *Group) ClearInvitations() {
	g.InvitedNicks = make(MemberList)
	g.InvitedAddresses = make(MemberList)
}

// ClearTalkers empties both talker lists.
func (g *Group) ClearTalkers() {
	g.TalkerNicks = make(MemberList)
	g.TalkerAddresses = make(MemberList)
}

// addressCandidates derives the strings an address entry is checked
// against: bare IP, bare hostname, loginid@ip, loginid@host.
func addressCandidates(s *Session) []string {
	return []string{
		s.Address,
		s.Hostname,
		s.LoginID + "@" + s.Address,
		s.LoginID + "@" + s.Hostname,
	}
}

// MayEnter reports whether the session may join the group. Only restricted
// groups limit entry: the moderator, invited nicks, and invited addresses
// get in.
func (g *Group) MayEnter(s *Session) bool {
	if g.Control != Restricted {
		return true
	}
	if g.IsModerator(s.ID) {
		return true
	}
	if g.InvitedNicks.Matches(s.Nick, s.Authenticated) {
		return true
	}
	for _, addr := range addressCandidates(s) {
		if g.InvitedAddresses.Matches(addr, s.Authenticated) {
			return true
		}
	}
	return false
}

// MaySpeak reports whether the session may send open messages to the
// group. Only controlled groups limit speaking: the moderator, talker
// nicks, and talker addresses may speak.
func (g *Group) MaySpeak(s *Session) bool {
	if g.Control != Controlled {
		return true
	}
	if g.IsModerator(s.ID) {
		return true
	}
	if g.TalkerNicks.Matches(s.Nick, s.Authenticated) {
		return true
	}
	for _, addr := range addressCandidates(s) {
		if g.TalkerAddresses.Matches(addr, s.Authenticated) {
			return true
		}
	}
	return false
}
