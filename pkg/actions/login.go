package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// Login performs the login handshake: identity validation, the message
// of the day, optional authentication, nickname collision handling, the
// 'a' acknowledgement, and the initial group join.
func (c *Core) Login(id model.SessionID, loginid, nick, password, groupName string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if s.LoggedIn() {
		return &CommandError{Message: "You are already signed on."}
	}
	if err := model.ValidateLoginID(loginid); err != nil {
		return &CommandError{Message: err.Error()}
	}
	if err := model.ValidateNick(nick); err != nil {
		return &CommandError{Message: err.Error()}
	}
	if strings.EqualFold(nick, c.Cfg.ServerNick) {
		return Errorf("Nickname %s is reserved.", nick)
	}

	s.LoginID = loginid
	s.Hostname = strings.TrimSpace(s.Hostname)

	for _, line := range c.Cfg.MOTD {
		c.output(id, line)
	}

	authenticated, err := c.authenticate(id, s, nick, password)
	if err != nil {
		return err
	}

	// One live session per nickname. An authenticated claim displaces the
	// holder; an anonymous one is rejected.
	if otherID, ok := c.Sessions.FindNick(nick); ok && otherID != id {
		if !authenticated {
			return Errorf("Nickname %s is already in use.", nick)
		}
		c.autoRenameSession(otherID)
	}

	now := c.now()
	s.Nick = nick
	s.Authenticated = authenticated
	s.SignOn = now
	s.LastAlive = now

	if authenticated {
		if err := c.recordSignon(s); err != nil {
			return err
		}
		c.status(id, "Register", "Nick registered.")
		if count, err := c.Nicks.NonTx().CountMessages(nick); err == nil && count > 0 {
			c.status(id, "Message", fmt.Sprintf("You have %d message(s).", count))
		}
	}

	c.notifyWatchers(nick, "signed on")
	c.Broker.Deliver(id, icb.LoginOK())

	if groupName == "" {
		groupName = c.Cfg.DefaultGroup
	}
	err = c.JoinGroup(id, groupName)
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && model.Key(groupName) != model.Key(c.Cfg.DefaultGroup) {
		// A rejected initial group falls back to the default group.
		c.Broker.Deliver(id, icb.Error(cmdErr.Message))
		return c.JoinGroup(id, c.Cfg.DefaultGroup)
	}
	return err
}

// authenticate runs the three login flows in order: unsecured auto-login,
// the password-less prompts, and the password check. An admin account
// aborts the whole login on a wrong password.
func (c *Core) authenticate(id model.SessionID, s *model.Session, nick, password string) (bool, error) {
	db := c.Nicks.NonTx()
	exists, err := db.Exists(nick)
	if err != nil {
		return false, err
	}

	if exists && c.Cfg.EnableUnsecureLogin && password == "" {
		secure, err := db.IsSecure(nick)
		if err != nil {
			return false, err
		}
		admin, err := db.IsAdmin(nick)
		if err != nil {
			return false, err
		}
		if !secure && !admin {
			lid, host, err := db.GetLastLogin(nick)
			if err != nil {
				return false, err
			}
			if lid != "" && lid == s.LoginID && strings.EqualFold(host, s.Hostname) {
				return true, nil
			}
		}
	}

	if password == "" {
		if exists {
			c.status(id, "Register", "Send password to authenticate your nickname.")
		} else {
			c.status(id, "No Pass", "Your nickname does not have a password.")
			c.status(id, "No Pass", "For help type /m server ?")
		}
		return false, nil
	}

	ok, err := db.CheckPassword(nick, password)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if exists {
		admin, err := db.IsAdmin(nick)
		if err != nil {
			return false, err
		}
		if admin {
			// Admin nicks are never handed out half-authenticated.
			return false, &CommandError{Message: "Authorization failure."}
		}
	}
	c.status(id, "Register", "Authorization failure.")
	return false, nil
}

// recordSignon stores the signon timestamp and last-login identity in one
// scope so the account row never carries half of a login.
func (c *Core) recordSignon(s *model.Session) error {
	tx, err := c.Nicks.Tx(context.Background())
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := tx.SetSignon(s.Nick, c.now()); err != nil {
		return err
	}
	if err := tx.SetLastLogin(s.Nick, s.LoginID, s.Hostname); err != nil {
		return err
	}
	return tx.Commit()
}

// Rename changes the session's nickname. Authentication never survives a
// rename; the new nick is re-authenticated from scratch.
func (c *Core) Rename(id model.SessionID, newNick string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if err := model.ValidateNick(newNick); err != nil {
		return &CommandError{Message: err.Error()}
	}
	if strings.EqualFold(newNick, c.Cfg.ServerNick) {
		return Errorf("Nickname %s is reserved.", newNick)
	}
	if otherID, ok := c.Sessions.FindNick(newNick); ok && otherID != id {
		return Errorf("Nickname %s is already in use.", newNick)
	}
	if s.Nick == newNick {
		return Errorf("You are already known as %s.", newNick)
	}
	if strings.EqualFold(s.Nick, newNick) {
		// Case-only change, no announcements or re-authentication.
		s.Nick = newNick
		return nil
	}

	oldNick := s.Nick
	if s.Group != "" {
		g := c.Groups.Get(s.Group)
		c.announce(g, "Name", fmt.Sprintf("%s changed nickname to %s", oldNick, newNick))
		if g.IsModerator(id) {
			c.announce(g, "Mod", fmt.Sprintf("%s is the moderator.", newNick))
		}
	}

	db := c.Nicks.NonTx()
	if s.Authenticated {
		if err := db.SetSignoff(oldNick, c.now()); err != nil {
			return err
		}
	}
	s.Nick = newNick
	s.Authenticated = false

	c.notifyWatchers(oldNick, "signed off")
	c.notifyWatchers(newNick, "signed on")

	account, err := db.Lookup(newNick)
	if err != nil {
		return err
	}
	switch {
	case account == nil:
		c.status(id, "No Pass", "To register your nickname type /m server p password")
	case !account.Secure && !account.Admin && c.Cfg.EnableUnsecureLogin &&
		account.LastLoginID == s.LoginID && strings.EqualFold(account.LastLoginHost, s.Hostname):
		s.Authenticated = true
		if err := c.recordSignon(s); err != nil {
			return err
		}
		c.status(id, "Register", "Nick registered.")
	case account.Admin:
		// Admin nicks may not linger unauthenticated; the claim is
		// renamed away instead.
		c.autoRenameSession(id)
		return Errorf("Nickname %s requires a password.", newNick)
	default:
		c.status(id, "Register", "Send password to authenticate your nickname.")
	}
	return nil
}

// Drop disconnects the live session holding a registered nickname. The
// caller proves ownership with the account password; this is how a nick
// is reclaimed from a dead connection.
func (c *Core) Drop(id model.SessionID, nick, password string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}

	exists, err := c.Nicks.NonTx().Exists(nick)
	if err != nil {
		return err
	}
	if !exists {
		return Errorf("%s is not registered.", nick)
	}
	targetID, ok := c.Sessions.FindNick(nick)
	if !ok {
		return Errorf("%s is not signed on.", nick)
	}
	if targetID == id {
		return &CommandError{Message: "You can't drop yourself."}
	}

	ok, err = c.Nicks.NonTx().CheckPassword(nick, password)
	if err != nil {
		return err
	}
	if !ok {
		return &CommandError{Message: "Authorization failure."}
	}

	c.status(targetID, "Drop", fmt.Sprintf("Dropped by %s.", s.Nick))
	c.Broker.Deliver(targetID, icb.Exit())
	c.status(id, "Drop", fmt.Sprintf("%s dropped.", nick))
	return nil
}

// SignOff tears the logged-in identity down: signoff bookkeeping, group
// departure with announcement, and watcher notification. Safe to call on
// a session that never logged in.
func (c *Core) SignOff(id model.SessionID) {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return
	}
	if !s.LoggedIn() {
		return
	}

	if s.Authenticated {
		_ = c.Nicks.NonTx().SetSignoff(s.Nick, c.now())
	}
	c.leaveGroup(s, "Sign-off",
		fmt.Sprintf("%s (%s@%s) has signed off.", s.Nick, s.LoginID, s.Hostname))
	c.notifyWatchers(s.Nick, "signed off")
	s.Nick = ""
	s.Authenticated = false
}

// Teardown finalizes a closed connection: sign off, drop the delivery
// sink, and forget the session.
func (c *Core) Teardown(id model.SessionID) {
	c.SignOff(id)
	c.Broker.RemoveSession(id)
	c.Sessions.Delete(id)
}
