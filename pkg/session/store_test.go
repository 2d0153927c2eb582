package session

import (
	"testing"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

func TestNewAssignsUniqueIDs(t *testing.T) {
	s := NewStore()

	seen := make(map[model.SessionID]bool)
	for i := 0; i < 10000; i++ {
		id := s.New(nil)
		if seen[id] {
			t.Fatalf("duplicate session id after %d creations", i)
		}
		seen[id] = true
	}
	if s.Count() != 10000 {
		t.Errorf("Count() = %d, want 10000", s.Count())
	}
}

func TestGetAndUpdate(t *testing.T) {
	s := NewStore()
	id := s.New(func(sess *model.Session) {
		sess.LoginID = "joe"
		sess.Address = "10.0.0.1"
	})

	sess, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess.LoginID != "joe" || sess.Address != "10.0.0.1" {
		t.Errorf("initial fields not applied: %+v", sess)
	}
	if sess.Beep != model.BeepOn {
		t.Errorf("default beep mode = %v, want on", sess.Beep)
	}

	if err := s.Update(id, func(sess *model.Session) { sess.Nick = "Joe" }); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	sess, _ = s.Get(id)
	if sess.Nick != "Joe" {
		t.Errorf("Nick = %q after update, want Joe", sess.Nick)
	}
	// Merge semantics: untouched fields survive.
	if sess.LoginID != "joe" {
		t.Errorf("LoginID = %q after update, want joe", sess.LoginID)
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore()
	if _, err := s.Get("nope"); err != ErrNoSuchSession {
		t.Errorf("Get() error = %v, want ErrNoSuchSession", err)
	}
	if err := s.Update("nope", func(*model.Session) {}); err != ErrNoSuchSession {
		t.Errorf("Update() error = %v, want ErrNoSuchSession", err)
	}
}

func TestFindNick(t *testing.T) {
	s := NewStore()
	id := s.New(func(sess *model.Session) { sess.Nick = "Alice" })
	s.New(nil) // anonymous session has no nick

	got, ok := s.FindNick("aLiCe")
	if !ok || got != id {
		t.Errorf("FindNick(aLiCe) = (%v, %v), want (%v, true)", got, ok, id)
	}
	if _, ok := s.FindNick("bob"); ok {
		t.Error("FindNick(bob) = true, want false")
	}
}

func TestDeleteFreesNick(t *testing.T) {
	s := NewStore()
	id := s.New(func(sess *model.Session) { sess.Nick = "Alice" })
	s.Delete(id)

	if _, ok := s.FindNick("alice"); ok {
		t.Error("FindNick() = true after Delete")
	}
	if _, err := s.Get(id); err != ErrNoSuchSession {
		t.Errorf("Get() error = %v after Delete, want ErrNoSuchSession", err)
	}
}

func TestGetNicks(t *testing.T) {
	s := NewStore()
	s.New(func(sess *model.Session) { sess.Nick = "a" })
	s.New(func(sess *model.Session) { sess.Nick = "b" })
	s.New(nil)

	nicks := s.GetNicks()
	if len(nicks) != 2 {
		t.Errorf("GetNicks() returned %d sessions, want 2", len(nicks))
	}
}

func TestTimeoutTable(t *testing.T) {
	tab := NewTimeoutTable()
	now := time.Now()
	tab.now = func() time.Time { return now }

	tab.Set("alice|bob", time.Minute)
	if !tab.Active("alice|bob") {
		t.Error("Active() = false right after Set")
	}
	if tab.Active("other") {
		t.Error("Active() = true for unknown key")
	}

	now = now.Add(2 * time.Minute)
	if tab.Active("alice|bob") {
		t.Error("Active() = true after expiry")
	}

	tab.Set("x", time.Minute)
	tab.Remove("x")
	if tab.Active("x") {
		t.Error("Active() = true after Remove")
	}

	tab.Set("a", time.Second)
	tab.Set("b", time.Hour)
	now = now.Add(time.Minute)
	if removed := tab.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if !tab.Active("b") {
		t.Error("Cleanup() dropped an unexpired key")
	}
}
