package server

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/config"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/datastore"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := datastore.NewProviderFactory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	cfg := config.Default()
	cfg.MOTD = nil
	srv := New(cfg, Dependencies{Store: st})
	t.Cleanup(srv.cancel)
	return srv
}

// newTestConn registers a session and its delivery queue without a real
// socket. The write loop is not running, so pushed packets stay queued
// for inspection.
func newTestConn(t *testing.T, s *Server) *conn {
	t.Helper()

	id := s.core.Sessions.New(func(sess *model.Session) {
		sess.Address = "203.0.113.10"
		sess.Hostname = "client.example.org"
		sess.LastAlive = time.Now()
	})
	c := &conn{
		id:   id,
		out:  make(chan []byte, outboundQueueSize),
		quit: make(chan struct{}),
	}
	if !s.core.Broker.AddSession(id, c) {
		t.Fatal("duplicate session registration")
	}
	return c
}

// drain empties the connection's outbound queue.
func drain(c *conn) [][]byte {
	var out [][]byte
	for {
		select {
		case p := <-c.out:
			out = append(out, p)
		default:
			return out
		}
	}
}

func tags(packets [][]byte) string {
	var b strings.Builder
	for _, p := range packets {
		b.WriteByte(icb.Tag(p))
	}
	return b.String()
}

// loginPacket runs a complete login handshake through the dispatcher.
func loginPacket(t *testing.T, s *Server, c *conn, loginid, nick, group string) {
	t.Helper()

	payload := []byte(loginid + "\x01" + nick + "\x01" + group + "\x01login")
	s.dispatch(c, icb.TagLogin, payload)

	sess, err := s.core.Sessions.Get(c.id)
	if err != nil || !sess.LoggedIn() {
		t.Fatalf("login failed: %v (packets: %q)", err, tags(drain(c)))
	}
	drain(c)
}

func TestDispatchLoginAndOpenMessage(t *testing.T) {
	s := newTestServer(t)
	alice := newTestConn(t, s)
	bob := newTestConn(t, s)
	loginPacket(t, s, alice, "alice", "alice", "")
	loginPacket(t, s, bob, "bob", "bob", "")
	drain(alice)

	s.dispatch(alice, icb.TagOpen, []byte("hello\x00"))

	got := drain(bob)
	found := false
	for _, p := range got {
		if icb.Tag(p) == icb.TagOpen {
			f := icb.Strings(icb.Split(p[2:]))
			if f[0] == "alice" && f[1] == "hello" {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("open message not delivered, bob got %q", tags(got))
	}
	if s.metrics.OpenMessages.Load() != 1 {
		t.Errorf("OpenMessages = %d", s.metrics.OpenMessages.Load())
	}
}

func TestDispatchRejectsCommandsBeforeLogin(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)

	s.dispatch(c, icb.TagOpen, []byte("hello\x00"))
	got := drain(c)
	if len(got) != 1 || icb.Tag(got[0]) != icb.TagError {
		t.Errorf("packets = %q, want one error", tags(got))
	}

	s.dispatch(c, icb.TagCommand, []byte("g\x01club\x00"))
	got = drain(c)
	if len(got) != 1 || icb.Tag(got[0]) != icb.TagError {
		t.Errorf("packets = %q, want one error", tags(got))
	}
}

func TestDispatchMalformedLoginDropsConnection(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)

	s.dispatch(c, icb.TagLogin, []byte("alice\x01alice"))
	got := drain(c)
	if tags(got) != "eg" {
		t.Errorf("packets = %q, want error then exit", tags(got))
	}
	if s.metrics.ProtocolErrors.Load() != 1 {
		t.Errorf("ProtocolErrors = %d", s.metrics.ProtocolErrors.Load())
	}
}

func TestDispatchUnknownTagDropsConnection(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)

	s.dispatch(c, 'z', []byte("whatever\x00"))
	if got := tags(drain(c)); got != "eg" {
		t.Errorf("packets = %q, want error then exit", got)
	}
}

func TestDispatchPing(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)

	s.dispatch(c, icb.TagPing, nil)
	got := drain(c)
	if len(got) != 1 || icb.Tag(got[0]) != icb.TagPong {
		t.Errorf("packets = %q, want one pong", tags(got))
	}
}

func TestLoginListAndQuit(t *testing.T) {
	s := newTestServer(t)
	alice := newTestConn(t, s)
	loginPacket(t, s, alice, "alice", "alice", "")

	probe := newTestConn(t, s)
	s.dispatch(probe, icb.TagLogin, []byte("probe\x01probe\x01\x01w"))

	got := drain(probe)
	if len(got) < 2 {
		t.Fatalf("packets = %q", tags(got))
	}
	if icb.Tag(got[len(got)-1]) != icb.TagExit {
		t.Errorf("last packet = %q, want exit", icb.Tag(got[len(got)-1]))
	}
	sess, _ := s.core.Sessions.Get(probe.id)
	if sess.LoggedIn() {
		t.Error("list probe must not log in")
	}
}

func TestHandleCommandUnknown(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)
	loginPacket(t, s, c, "alice", "alice", "")

	s.dispatch(c, icb.TagCommand, []byte("frobnicate\x01x\x00"))
	got := drain(c)
	if len(got) != 1 || icb.Tag(got[0]) != icb.TagError {
		t.Errorf("packets = %q, want one error", tags(got))
	}
	if s.metrics.CommandErrors.Load() != 1 {
		t.Errorf("CommandErrors = %d", s.metrics.CommandErrors.Load())
	}
}

func TestPrivateMessageCommand(t *testing.T) {
	s := newTestServer(t)
	alice := newTestConn(t, s)
	bob := newTestConn(t, s)
	loginPacket(t, s, alice, "alice", "alice", "")
	loginPacket(t, s, bob, "bob", "bob", "")

	s.dispatch(alice, icb.TagCommand, []byte("m\x01bob psst\x00"))

	got := drain(bob)
	found := false
	for _, p := range got {
		if icb.Tag(p) == icb.TagPersonal {
			f := icb.Strings(icb.Split(p[2:]))
			if f[0] == "alice" && f[1] == "psst" {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("private message not delivered: %q", tags(got))
	}
	if s.metrics.PrivateMessages.Load() != 1 {
		t.Errorf("PrivateMessages = %d", s.metrics.PrivateMessages.Load())
	}
}

func TestServerCommandRegister(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)
	loginPacket(t, s, c, "alice", "alice", "")

	s.dispatch(c, icb.TagCommand, []byte("m\x01server p secret\x00"))

	sess, _ := s.core.Sessions.Get(c.id)
	if !sess.Authenticated {
		t.Error("registration via server message did not authenticate")
	}
	ok, err := s.core.Nicks.NonTx().CheckPassword("alice", "secret")
	if err != nil || !ok {
		t.Errorf("CheckPassword() = %v, %v", ok, err)
	}
}

func TestGroupCommand(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)
	loginPacket(t, s, c, "alice", "alice", "")

	s.dispatch(c, icb.TagCommand, []byte("g\x01club\x00"))
	sess, _ := s.core.Sessions.Get(c.id)
	if sess.Group != "club" {
		t.Errorf("group = %q, want club", sess.Group)
	}
}

func TestTickSendsKeepalive(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)
	loginPacket(t, s, c, "alice", "alice", "")

	sess, _ := s.core.Sessions.Get(c.id)
	now := time.Now()
	sess.LastAlive = now.Add(-s.cfg.Timeouts.Ping.Duration() - time.Minute)

	s.tick(now)
	got := drain(c)
	pings := 0
	for _, p := range got {
		if icb.Tag(p) == icb.TagPing {
			pings++
		}
	}
	if pings != 1 {
		t.Errorf("pings = %d, want 1 (packets %q)", pings, tags(got))
	}

	// The probe is not repeated until the interval elapses again.
	s.tick(now)
	if got := tags(drain(c)); strings.Contains(got, "l") {
		t.Errorf("premature second probe: %q", got)
	}
}

func TestTickDropsDeadConnection(t *testing.T) {
	s := newTestServer(t)
	c := newTestConn(t, s)
	loginPacket(t, s, c, "alice", "alice", "")

	sess, _ := s.core.Sessions.Get(c.id)
	now := time.Now()
	sess.LastAlive = now.Add(-s.cfg.Timeouts.Connection.Duration() - time.Minute)

	s.tick(now)
	got := tags(drain(c))
	if !strings.Contains(got, "g") {
		t.Errorf("packets = %q, want an exit", got)
	}
}

func TestNextWakeTracksEarliestDeadline(t *testing.T) {
	s := newTestServer(t)
	now := time.Now()

	// No sessions: fall back to the polling ceiling.
	if got := s.nextWake(now); got != maxTimerSleep {
		t.Errorf("nextWake() = %v, want %v", got, maxTimerSleep)
	}

	c := newTestConn(t, s)
	loginPacket(t, s, c, "alice", "alice", "")
	sess, _ := s.core.Sessions.Get(c.id)

	// Three seconds shy of the ping deadline.
	sess.LastAlive = now.Add(-s.cfg.Timeouts.Ping.Duration() + 3*time.Second)
	got := s.nextWake(now)
	if got < minTimerSleep || got > 3*time.Second {
		t.Errorf("nextWake() = %v, want at most 3s", got)
	}

	// A deadline in the past clamps to the floor instead of spinning.
	sess.LastAlive = now.Add(-s.cfg.Timeouts.Connection.Duration() - time.Minute)
	if got := s.nextWake(now); got != minTimerSleep {
		t.Errorf("nextWake() = %v, want %v", got, minTimerSleep)
	}
}

func TestSplitWord(t *testing.T) {
	tests := []struct {
		in    string
		first string
		rest  string
	}{
		{"", "", ""},
		{"one", "one", ""},
		{"one two", "one", "two"},
		{"one two three", "one", "two three"},
		{"  padded   words  ", "padded", "words"},
	}
	for _, tt := range tests {
		first, rest := splitWord(tt.in)
		if first != tt.first || rest != tt.rest {
			t.Errorf("splitWord(%q) = %q, %q", tt.in, first, rest)
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.TotalConnections.Add(3)
	m.ActiveConnections.Add(2)
	m.OpenMessages.Add(7)

	snap := m.Snapshot()
	if snap.TotalConnections != 3 || snap.ActiveConnections != 2 || snap.OpenMessages != 7 {
		t.Errorf("snapshot = %+v", snap)
	}
	if !strings.Contains(m.JSON(), "\"open_messages\": 7") {
		t.Errorf("JSON = %s", m.JSON())
	}
}
