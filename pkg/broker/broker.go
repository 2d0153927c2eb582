// Package broker maps sessions to groups and delivers encoded packets to
// per-session outbound queues.
package broker

import (
	"log/slog"
	"sync"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// Sink is a per-session outbound queue. Push appends one encoded packet;
// the connection handler drains its own sink strictly in FIFO order.
type Sink interface {
	Push(packet []byte)
}

// Broker tracks which sessions belong to which groups and owns each
// session's delivery sink. Group names are case-folded before lookup.
type Broker struct {
	mu     sync.RWMutex
	sinks  map[model.SessionID]Sink
	groups map[string]map[model.SessionID]bool
}

// New creates an empty broker.
func New() *Broker {
	return &Broker{
		sinks:  make(map[model.SessionID]Sink),
		groups: make(map[string]map[model.SessionID]bool),
	}
}

// AddSession registers a delivery sink. Returns false if the session is
// already registered; callers must check.
func (b *Broker) AddSession(id model.SessionID, sink Sink) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.sinks[id]; ok {
		return false
	}
	b.sinks[id] = sink
	return true
}

// RemoveSession drops the session's sink and removes it from every group
// it was in, pruning groups whose membership becomes empty.
func (b *Broker) RemoveSession(id model.SessionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.sinks, id)
	for key, members := range b.groups {
		if members[id] {
			delete(members, id)
			if len(members) == 0 {
				delete(b.groups, key)
			}
		}
	}
}

// Join adds a session to a group and reports whether this created the
// group (first member).
func (b *Broker) Join(id model.SessionID, group string) bool {
	key := model.Key(group)

	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.groups[key]
	if !ok {
		members = make(map[model.SessionID]bool)
		b.groups[key] = members
	}
	members[id] = true
	return !ok
}

// Part removes a session from a group and reports whether the group still
// has members afterwards. A false return means the caller must also delete
// the group's metadata.
func (b *Broker) Part(id model.SessionID, group string) bool {
	key := model.Key(group)

	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.groups[key]
	if !ok {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(b.groups, key)
		return false
	}
	return true
}

// GetSubscribers returns the member-id set of a group.
func (b *Broker) GetSubscribers(group string) []model.SessionID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	members := b.groups[model.Key(group)]
	out := make([]model.SessionID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Deliver enqueues a packet onto one session's sink. Delivering to an
// unknown session is a no-op: disconnects race against in-flight routing,
// so this is expected and only logged.
func (b *Broker) Deliver(id model.SessionID, packet []byte) {
	b.mu.RLock()
	sink, ok := b.sinks[id]
	b.mu.RUnlock()

	if !ok {
		slog.Warn("delivery to unknown session dropped", "session", id)
		return
	}
	sink.Push(packet)
}

// ToChannel delivers a packet to every member of a group and returns the
// number of recipients.
func (b *Broker) ToChannel(group string, packet []byte) int {
	return b.toChannel("", group, packet)
}

// ToChannelFrom delivers a packet to every member of a group except the
// sender and returns the number of recipients. Callers use a zero count to
// surface "message sent to empty audience" to the user.
func (b *Broker) ToChannelFrom(sender model.SessionID, group string, packet []byte) int {
	return b.toChannel(sender, group, packet)
}

func (b *Broker) toChannel(exclude model.SessionID, group string, packet []byte) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for id := range b.groups[model.Key(group)] {
		if id == exclude {
			continue
		}
		if sink, ok := b.sinks[id]; ok {
			sink.Push(packet)
			count++
		}
	}
	return count
}

// Broadcast delivers a packet to all registered sessions.
func (b *Broker) Broadcast(packet []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sink := range b.sinks {
		sink.Push(packet)
	}
}
