package actions

import (
	"context"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// Register authenticates the session's nickname: a password check when
// the account exists, otherwise a fresh registration.
func (c *Core) Register(id model.SessionID, password string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if password == "" {
		return &CommandError{Message: "Usage: p password"}
	}
	if s.Authenticated {
		c.status(id, "Register", "Nick already registered.")
		return nil
	}

	db := c.Nicks.NonTx()
	exists, err := db.Exists(s.Nick)
	if err != nil {
		return err
	}
	if exists {
		ok, err := db.CheckPassword(s.Nick, password)
		if err != nil {
			return err
		}
		if !ok {
			return &CommandError{Message: "Authorization failure."}
		}
	} else {
		tx, err := c.Nicks.Tx(context.Background())
		if err != nil {
			return err
		}
		defer tx.Rollback() //nolint:errcheck // no-op after commit
		if err := tx.Create(s.Nick, password); err != nil {
			return &CommandError{Message: err.Error()}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	s.Authenticated = true
	if err := c.recordSignon(s); err != nil {
		return err
	}
	c.status(id, "Register", "Nick registered.")
	return nil
}

// ChangePassword replaces the stored password after verifying the old
// one.
func (c *Core) ChangePassword(id model.SessionID, oldPassword, newPassword string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if !s.Authenticated {
		return &CommandError{Message: "You must authenticate first."}
	}
	if newPassword == "" {
		return &CommandError{Message: "Usage: cp old-password new-password"}
	}

	db := c.Nicks.NonTx()
	ok, err := db.CheckPassword(s.Nick, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return &CommandError{Message: "Authorization failure."}
	}
	if err := db.SetPassword(s.Nick, newPassword); err != nil {
		return err
	}
	c.status(id, "Pass", "Password changed.")
	return nil
}
