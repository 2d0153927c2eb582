package datastore

import (
	"context"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// DataProviderFactory hands out plain and transaction-scoped access to the
// nickname database. A scope obtained via Tx commits only on explicit
// success; abandoning it rolls back.
type DataProviderFactory interface {
	NonTx() NickDb
	Tx(context.Context) (NickDbTx, error)
}

type NickDbTx interface {
	NickDb
	Rollback() error
	Commit() error
}

// NickDb is the persistence interface for registered nicknames and their
// mailboxes. The chat core consumes it but does not own its internals;
// the default implementation is SQLite.
type NickDb interface {
	AccountReadProvider
	AccountWriteProvider
	MailReadProvider
	MailWriteProvider

	Close() error
}

// Account is a registered nickname's stored profile.
type Account struct {
	Nick          string
	Secure        bool // unsecured auto-login disabled
	Admin         bool
	Protected     bool // may not be booted
	LastLoginID   string
	LastLoginHost string
	Signon        time.Time // zero when never signed on
	Signoff       time.Time
	MboxLimit     int
	CreatedAt     time.Time
}

type AccountReadProvider interface {
	Exists(nick string) (bool, error)
	Lookup(nick string) (*Account, error) // nil, nil when absent
	IsSecure(nick string) (bool, error)
	IsAdmin(nick string) (bool, error)
	IsProtected(nick string) (bool, error)
	CheckPassword(nick, password string) (bool, error)
	GetLastLogin(nick string) (loginid, host string, err error)
}

type AccountWriteProvider interface {
	Create(nick, password string) error
	SetPassword(nick, password string) error
	SetSignon(nick string, t time.Time) error
	SetSignoff(nick string, t time.Time) error
	SetLastLogin(nick, loginid, host string) error
}

type MailReadProvider interface {
	CountMessages(nick string) (int, error)
	GetMessages(nick string) ([]model.MailMessage, error)
}

type MailWriteProvider interface {
	SaveMessage(receiver, sender, body string) error
	DeleteMessages(nick string) error
}

// Compile-time check: the SQLite factory satisfies the interface.
var _ DataProviderFactory = (*ProviderFactory)(nil)
