// Package datastore implements the nickname database on SQLite.
package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/crypto"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// DefaultMboxLimit is the mailbox quota assigned to new accounts.
const DefaultMboxLimit = 25

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type baseProvider struct {
	DB
}

func (p *baseProvider) Close() error {
	return nil
}

type nonTxProvider struct {
	baseProvider
}

type txProvider struct {
	baseProvider
	tx *sql.Tx
}

func (c *txProvider) Rollback() error {
	return c.tx.Rollback()
}

func (c *txProvider) Commit() error {
	return c.tx.Commit()
}

// ProviderFactory provides database access for accounts and mailboxes.
type ProviderFactory struct {
	DB *sql.DB
}

func (sf *ProviderFactory) NonTx() NickDb {
	return &nonTxProvider{
		baseProvider: baseProvider{
			DB: sf.DB,
		},
	}
}

func (sf *ProviderFactory) Tx(ctx context.Context) (NickDbTx, error) {
	tx, err := sf.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &txProvider{
		baseProvider: baseProvider{
			DB: tx,
		},
		tx: tx,
	}, nil
}

// NewProviderFactory opens (or creates) a SQLite database and runs
// migrations.
func NewProviderFactory(dbPath string) (*ProviderFactory, error) {
	DB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := DB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	if _, err := DB.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: enable FK: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := DB.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	s := &ProviderFactory{DB: DB}
	if err := s.migrate(); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (sf *ProviderFactory) Close() error {
	return sf.DB.Close()
}

func (sf *ProviderFactory) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS nicks (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		nick            TEXT    NOT NULL UNIQUE COLLATE NOCASE CHECK(length(nick) > 0 AND length(nick) <= 12),
		password_hash   BLOB    NOT NULL,
		salt            BLOB    NOT NULL,
		is_secure       INTEGER NOT NULL DEFAULT 0,
		is_admin        INTEGER NOT NULL DEFAULT 0,
		is_protected    INTEGER NOT NULL DEFAULT 0,
		last_login_id   TEXT    NOT NULL DEFAULT '',
		last_login_host TEXT    NOT NULL DEFAULT '',
		signon          TEXT,
		signoff         TEXT,
		mbox_limit      INTEGER NOT NULL DEFAULT 25,
		created_at      TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		receiver   TEXT    NOT NULL COLLATE NOCASE,
		sender     TEXT    NOT NULL,
		body       TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver);
	`
	ctx := context.Background()
	if err := sf.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := sf.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := sf.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("datastore: migrate: %w", err)
			}
		}
		if err := sf.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (sf *ProviderFactory) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := sf.DB.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := sf.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := sf.DB.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (sf *ProviderFactory) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := sf.DB.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

func (sf *ProviderFactory) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := sf.DB.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

// ---- Accounts ----

// Exists reports whether a nickname is registered.
func (s *baseProvider) Exists(nick string) (bool, error) {
	var count int
	err := s.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM nicks WHERE nick = ?", nick).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("datastore: exists: %w", err)
	}
	return count > 0, nil
}

// Lookup retrieves an account profile, or nil when the nick is unknown.
func (s *baseProvider) Lookup(nick string) (*Account, error) {
	a := &Account{}
	var secureInt, adminInt, protectedInt int
	var signon, signoff *string
	var createdAt string
	err := s.QueryRowContext(context.Background(),
		`SELECT nick, is_secure, is_admin, is_protected, last_login_id, last_login_host,
			signon, signoff, mbox_limit, created_at
		 FROM nicks WHERE nick = ?`, nick).
		Scan(&a.Nick, &secureInt, &adminInt, &protectedInt, &a.LastLoginID, &a.LastLoginHost,
			&signon, &signoff, &a.MboxLimit, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("datastore: lookup: %w", err)
	}
	a.Secure = secureInt != 0
	a.Admin = adminInt != 0
	a.Protected = protectedInt != 0
	if signon != nil {
		if a.Signon, err = parseDBTime(*signon); err != nil {
			return nil, fmt.Errorf("datastore: lookup: %w", err)
		}
	}
	if signoff != nil {
		if a.Signoff, err = parseDBTime(*signoff); err != nil {
			return nil, fmt.Errorf("datastore: lookup: %w", err)
		}
	}
	if a.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, fmt.Errorf("datastore: lookup: %w", err)
	}
	return a, nil
}

func (s *baseProvider) accountFlag(nick, column string) (bool, error) {
	var v int
	// column is one of three fixed names, never user input.
	err := s.QueryRowContext(context.Background(), "SELECT "+column+" FROM nicks WHERE nick = ?", nick).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("datastore: read %s: %w", column, err)
	}
	return v != 0, nil
}

// IsSecure reports whether unsecured auto-login is disabled for a nick.
func (s *baseProvider) IsSecure(nick string) (bool, error) {
	return s.accountFlag(nick, "is_secure")
}

// IsAdmin reports whether a nick has administrative rights.
func (s *baseProvider) IsAdmin(nick string) (bool, error) {
	return s.accountFlag(nick, "is_admin")
}

// IsProtected reports whether a nick may not be booted.
func (s *baseProvider) IsProtected(nick string) (bool, error) {
	return s.accountFlag(nick, "is_protected")
}

// CheckPassword verifies a password against the stored Argon2id hash.
// Unknown nicks simply fail the check.
func (s *baseProvider) CheckPassword(nick, password string) (bool, error) {
	var hash, salt []byte
	err := s.QueryRowContext(context.Background(), "SELECT password_hash, salt FROM nicks WHERE nick = ?", nick).
		Scan(&hash, &salt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("datastore: check password: %w", err)
	}
	return crypto.VerifyPassword(password, salt, hash), nil
}

// GetLastLogin returns the loginid+host recorded on the last successful
// sign-on; both empty when never signed on.
func (s *baseProvider) GetLastLogin(nick string) (string, string, error) {
	var loginid, host string
	err := s.QueryRowContext(context.Background(), "SELECT last_login_id, last_login_host FROM nicks WHERE nick = ?", nick).
		Scan(&loginid, &host)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("datastore: get last login: %w", err)
	}
	return loginid, host, nil
}

// Create registers a nickname with the given password.
func (s *baseProvider) Create(nick, password string) error {
	if err := model.ValidateNick(nick); err != nil {
		return fmt.Errorf("datastore: create account: %w", err)
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return fmt.Errorf("datastore: create account: %w", err)
	}
	hash := crypto.HashPassword(password, salt)

	_, err = s.ExecContext(context.Background(),
		"INSERT INTO nicks (nick, password_hash, salt, mbox_limit) VALUES (?, ?, ?, ?)",
		nick, hash, salt, DefaultMboxLimit)
	if err != nil {
		return fmt.Errorf("datastore: create account: %w", err)
	}
	return nil
}

// SetPassword replaces the stored hash with a freshly salted one.
func (s *baseProvider) SetPassword(nick, password string) error {
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return fmt.Errorf("datastore: set password: %w", err)
	}
	hash := crypto.HashPassword(password, salt)

	_, err = s.ExecContext(context.Background(),
		"UPDATE nicks SET password_hash = ?, salt = ? WHERE nick = ?", hash, salt, nick)
	if err != nil {
		return fmt.Errorf("datastore: set password: %w", err)
	}
	return nil
}

// SetSignon records a sign-on timestamp.
func (s *baseProvider) SetSignon(nick string, t time.Time) error {
	_, err := s.ExecContext(context.Background(),
		"UPDATE nicks SET signon = ? WHERE nick = ?", formatDBTime(t), nick)
	if err != nil {
		return fmt.Errorf("datastore: set signon: %w", err)
	}
	return nil
}

// SetSignoff records a sign-off timestamp.
func (s *baseProvider) SetSignoff(nick string, t time.Time) error {
	_, err := s.ExecContext(context.Background(),
		"UPDATE nicks SET signoff = ? WHERE nick = ?", formatDBTime(t), nick)
	if err != nil {
		return fmt.Errorf("datastore: set signoff: %w", err)
	}
	return nil
}

// SetLastLogin records the loginid+host of a successful sign-on.
func (s *baseProvider) SetLastLogin(nick, loginid, host string) error {
	_, err := s.ExecContext(context.Background(),
		"UPDATE nicks SET last_login_id = ?, last_login_host = ? WHERE nick = ?", loginid, host, nick)
	if err != nil {
		return fmt.Errorf("datastore: set last login: %w", err)
	}
	return nil
}

// ---- Mailbox ----

// CountMessages returns the number of stored messages for a receiver.
func (s *baseProvider) CountMessages(nick string) (int, error) {
	var count int
	err := s.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM messages WHERE receiver = ?", nick).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("datastore: count messages: %w", err)
	}
	return count, nil
}

// GetMessages returns a receiver's stored messages, oldest first.
func (s *baseProvider) GetMessages(nick string) ([]model.MailMessage, error) {
	rows, err := s.QueryContext(context.Background(),
		"SELECT id, receiver, sender, body, created_at FROM messages WHERE receiver = ? ORDER BY id", nick)
	if err != nil {
		return nil, fmt.Errorf("datastore: get messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []model.MailMessage
	for rows.Next() {
		var m model.MailMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Receiver, &m.Sender, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("datastore: scan message: %w", err)
		}
		if m.CreatedAt, err = parseDBTime(createdAt); err != nil {
			return nil, fmt.Errorf("datastore: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SaveMessage stores a mailbox message.
func (s *baseProvider) SaveMessage(receiver, sender, body string) error {
	_, err := s.ExecContext(context.Background(),
		"INSERT INTO messages (receiver, sender, body) VALUES (?, ?, ?)", receiver, sender, body)
	if err != nil {
		return fmt.Errorf("datastore: save message: %w", err)
	}
	return nil
}

// DeleteMessages drops all stored messages for a receiver.
func (s *baseProvider) DeleteMessages(nick string) error {
	_, err := s.ExecContext(context.Background(), "DELETE FROM messages WHERE receiver = ?", nick)
	if err != nil {
		return fmt.Errorf("datastore: delete messages: %w", err)
	}
	return nil
}
