package datastore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/datastore"
)

func newTestDb(t *testing.T) *datastore.ProviderFactory {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := datastore.NewProviderFactory(dbPath)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("error closing database: %v", err)
		}
	})
	return st
}

func TestCreateAndLookup(t *testing.T) {
	st := newTestDb(t)
	db := st.NonTx()

	if err := db.Create("alice", "hunter2"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exists, err := db.Exists("ALICE")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false (case-insensitive lookup expected)")
	}

	a, err := db.Lookup("alice")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if a == nil {
		t.Fatal("Lookup() = nil for existing account")
	}
	if a.Secure || a.Admin || a.Protected {
		t.Errorf("fresh account flags = %+v, want all false", a)
	}
	if !a.Signon.IsZero() {
		t.Error("fresh account has a signon timestamp")
	}
	if a.MboxLimit != datastore.DefaultMboxLimit {
		t.Errorf("MboxLimit = %d, want %d", a.MboxLimit, datastore.DefaultMboxLimit)
	}

	missing, err := db.Lookup("nobody")
	if err != nil {
		t.Fatalf("Lookup(nobody) error = %v", err)
	}
	if missing != nil {
		t.Error("Lookup() != nil for unknown account")
	}
}

func TestCreateRejectsInvalidNick(t *testing.T) {
	st := newTestDb(t)
	db := st.NonTx()

	for _, nick := range []string{"", "way-too-long-nick", "' OR '1'='1"} {
		if err := db.Create(nick, "pw"); err == nil {
			t.Errorf("Create(%q) error = nil, want validation error", nick)
		}
	}
}

func TestCheckPassword(t *testing.T) {
	st := newTestDb(t)
	db := st.NonTx()

	if err := db.Create("bob", "secret"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		nick     string
		password string
		want     bool
	}{
		{"correct", "bob", "secret", true},
		{"wrong password", "bob", "nope", false},
		{"unknown nick", "ghost", "secret", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := db.CheckPassword(tt.nick, tt.password)
			if err != nil {
				t.Fatalf("CheckPassword() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", ok, tt.want)
			}
		})
	}

	if err := db.SetPassword("bob", "changed"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if ok, _ := db.CheckPassword("bob", "secret"); ok {
		t.Error("old password still accepted after SetPassword")
	}
	if ok, _ := db.CheckPassword("bob", "changed"); !ok {
		t.Error("new password rejected after SetPassword")
	}
}

func TestLastLoginAndTimestamps(t *testing.T) {
	st := newTestDb(t)
	db := st.NonTx()

	if err := db.Create("carol", "pw"); err != nil {
		t.Fatal(err)
	}

	loginid, host, err := db.GetLastLogin("carol")
	if err != nil {
		t.Fatalf("GetLastLogin() error = %v", err)
	}
	if loginid != "" || host != "" {
		t.Errorf("GetLastLogin() = (%q, %q) before first login, want empty", loginid, host)
	}

	if err := db.SetLastLogin("carol", "cj", "example.org"); err != nil {
		t.Fatalf("SetLastLogin() error = %v", err)
	}
	loginid, host, _ = db.GetLastLogin("carol")
	if loginid != "cj" || host != "example.org" {
		t.Errorf("GetLastLogin() = (%q, %q), want (cj, example.org)", loginid, host)
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := db.SetSignon("carol", now); err != nil {
		t.Fatalf("SetSignon() error = %v", err)
	}
	if err := db.SetSignoff("carol", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetSignoff() error = %v", err)
	}

	a, _ := db.Lookup("carol")
	if !a.Signon.Equal(now) {
		t.Errorf("Signon = %v, want %v", a.Signon, now)
	}
	if !a.Signoff.Equal(now.Add(time.Hour)) {
		t.Errorf("Signoff = %v, want %v", a.Signoff, now.Add(time.Hour))
	}
}

func TestMailbox(t *testing.T) {
	st := newTestDb(t)
	db := st.NonTx()

	if err := db.SaveMessage("dave", "alice", "hello"); err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	if err := db.SaveMessage("dave", "bob", "hi there"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMessage("other", "alice", "not for dave"); err != nil {
		t.Fatal(err)
	}

	count, err := db.CountMessages("DAVE")
	if err != nil {
		t.Fatalf("CountMessages() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountMessages() = %d, want 2", count)
	}

	msgs, err := db.GetMessages("dave")
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("GetMessages() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Sender != "alice" || msgs[0].Body != "hello" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Sender != "bob" {
		t.Errorf("messages not ordered oldest first: %+v", msgs)
	}

	if err := db.DeleteMessages("dave"); err != nil {
		t.Fatalf("DeleteMessages() error = %v", err)
	}
	count, _ = db.CountMessages("dave")
	if count != 0 {
		t.Errorf("CountMessages() = %d after delete, want 0", count)
	}
	count, _ = db.CountMessages("other")
	if count != 1 {
		t.Errorf("DeleteMessages() touched another receiver's mailbox")
	}
}

func TestTxCommitAndRollback(t *testing.T) {
	st := newTestDb(t)
	ctx := context.Background()

	tx, err := st.Tx(ctx)
	if err != nil {
		t.Fatalf("Tx() error = %v", err)
	}
	if err := tx.Create("eve", "pw"); err != nil {
		t.Fatalf("Create() in tx error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if exists, _ := st.NonTx().Exists("eve"); exists {
		t.Error("rolled-back account is visible")
	}

	tx, err = st.Tx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.Create("eve", "pw"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if exists, _ := st.NonTx().Exists("eve"); !exists {
		t.Error("committed account is not visible")
	}
}
