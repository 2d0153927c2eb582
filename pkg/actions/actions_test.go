package actions

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/broker"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/config"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/datastore"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/group"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/session"
)

// recordSink captures delivered packets for inspection.
type recordSink struct {
	packets [][]byte
}

func (r *recordSink) Push(p []byte) {
	r.packets = append(r.packets, p)
}

func (r *recordSink) reset() {
	r.packets = nil
}

// fields decodes a packet's payload into string fields.
func fields(p []byte) []string {
	return icb.Strings(icb.Split(p[2:]))
}

// statuses returns the texts of all 'd' notices with the given category.
func (r *recordSink) statuses(category string) []string {
	var out []string
	for _, p := range r.packets {
		if icb.Tag(p) != icb.TagStatus {
			continue
		}
		f := fields(p)
		if len(f) == 2 && f[0] == category {
			out = append(out, f[1])
		}
	}
	return out
}

// tagCount counts delivered packets with the given tag.
func (r *recordSink) tagCount(tag byte) int {
	n := 0
	for _, p := range r.packets {
		if icb.Tag(p) == tag {
			n++
		}
	}
	return n
}

func newTestCore(t *testing.T) (*Core, *datastore.ProviderFactory) {
	t.Helper()

	db, err := datastore.NewProviderFactory(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	cfg := config.Default()
	cfg.MOTD = nil
	return NewCore(cfg, session.NewStore(), group.NewStore(), broker.New(), db), db
}

func connect(t *testing.T, c *Core) (model.SessionID, *recordSink) {
	t.Helper()

	sink := &recordSink{}
	id := c.Sessions.New(func(s *model.Session) {
		s.Address = "203.0.113.10"
		s.Hostname = "client.example.org"
	})
	if !c.Broker.AddSession(id, sink) {
		t.Fatal("duplicate session registration")
	}
	return id, sink
}

// login connects and signs a user on, discarding the handshake packets.
func login(t *testing.T, c *Core, loginid, nick, groupName string) (model.SessionID, *recordSink) {
	t.Helper()

	id, sink := connect(t, c)
	if err := c.Login(id, loginid, nick, "", groupName); err != nil {
		t.Fatalf("Login(%s) error = %v", nick, err)
	}
	sink.reset()
	return id, sink
}

func createAccount(t *testing.T, c *Core, nick, password string) {
	t.Helper()
	if err := c.Nicks.NonTx().Create(nick, password); err != nil {
		t.Fatalf("Create(%s) error = %v", nick, err)
	}
}

// fixedClock pins the core's clock and returns a function to advance it.
func fixedClock(c *Core, start time.Time) func(time.Duration) {
	now := start
	c.now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}
