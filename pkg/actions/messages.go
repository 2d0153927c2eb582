package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// OpenMessage sends a public message to the sender's group. Quiet groups
// and controlled groups without a talker entry reject it; so does an
// empty audience.
func (c *Core) OpenMessage(id model.SessionID, text string) error {
	s, g, err := c.currentGroup(id)
	if err != nil {
		return err
	}
	if g.Volume == model.Quiet {
		return Errorf("Group %s is quiet.", g.Name)
	}
	if !g.MaySpeak(s) {
		return &CommandError{Message: "You do not have permission to talk in this group."}
	}

	if c.Broker.ToChannelFrom(id, g.Name, icb.Open(s.Nick, text)) == 0 {
		return &CommandError{Message: "No one else in group!"}
	}
	s.LastMessage = c.now()
	return nil
}

// PrivateMessage sends a 'c' packet to one nickname. Being hushed by the
// target silently drops the message; an away target triggers a throttled
// away notice back to the sender.
func (c *Core) PrivateMessage(id model.SessionID, nick, text string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	targetID, ok := c.Sessions.FindNick(nick)
	if !ok {
		return Errorf("%s is not signed on.", nick)
	}
	target, err := c.Sessions.Get(targetID)
	if err != nil {
		return err
	}

	if !target.Hushes(s.Nick) {
		c.Broker.Deliver(targetID, icb.Personal(s.Nick, text))
	}
	s.LastMessage = c.now()

	if target.Away != "" {
		key := string(id) + "|" + string(targetID)
		if !c.AwayNotices.Active(key) {
			c.status(id, "Away", fmt.Sprintf("%s (since %s): %s",
				target.Nick, target.AwaySince.Format("15:04"), target.Away))
			c.AwayNotices.Set(key, c.Cfg.Timeouts.AwayNotice.Duration())
		}
	}
	return nil
}

// BeepUser sends a 'k' beep to one nickname, honoring the target's beep
// mode.
func (c *Core) BeepUser(id model.SessionID, nick string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	targetID, ok := c.Sessions.FindNick(nick)
	if !ok {
		return Errorf("%s is not signed on.", nick)
	}
	target, err := c.Sessions.Get(targetID)
	if err != nil {
		return err
	}
	if target.Hushes(s.Nick) {
		return nil
	}

	switch target.Beep {
	case model.BeepOff:
		return Errorf("%s has beeps turned off.", target.Nick)
	case model.BeepVerbose:
		c.status(targetID, "Beep", fmt.Sprintf("%s tried to beep you.", s.Nick))
		return Errorf("%s has beeps turned off.", target.Nick)
	default:
		c.Broker.Deliver(targetID, icb.Beep(s.Nick))
	}
	return nil
}

// WriteMessage stores a mailbox message for a registered nickname. A full
// mailbox rejects the message; the owner learns about it at most once per
// throttle window.
func (c *Core) WriteMessage(id model.SessionID, nick, text string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return &CommandError{Message: "Usage: write nickname message-text"}
	}

	db := c.Nicks.NonTx()
	account, err := db.Lookup(nick)
	if err != nil {
		return err
	}
	if account == nil {
		return Errorf("%s is not registered.", nick)
	}

	count, err := db.CountMessages(account.Nick)
	if err != nil {
		return err
	}
	if count >= account.MboxLimit {
		key := "mbox|" + strings.ToLower(account.Nick)
		if !c.MboxNotices.Active(key) {
			if targetID, ok := c.Sessions.FindNick(account.Nick); ok {
				c.status(targetID, "Message", "Your mailbox is full.")
			}
			c.MboxNotices.Set(key, c.Cfg.Timeouts.MboxNotice.Duration())
		}
		return Errorf("%s's mailbox is full.", account.Nick)
	}

	if err := db.SaveMessage(account.Nick, s.Nick, text); err != nil {
		return err
	}
	c.status(id, "Message", fmt.Sprintf("Message left for %s.", account.Nick))

	if targetID, ok := c.Sessions.FindNick(account.Nick); ok && targetID != id {
		if target, err := c.Sessions.Get(targetID); err == nil && target.Authenticated {
			c.status(targetID, "Message", fmt.Sprintf("You have a new message from %s.", s.Nick))
		}
	}
	return nil
}

// ReadMessages delivers and deletes the session's stored messages in one
// scope: the reader either gets all of them exactly once or the mailbox
// is left untouched.
func (c *Core) ReadMessages(id model.SessionID) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if !s.Authenticated {
		return &CommandError{Message: "You must authenticate to read messages."}
	}

	tx, err := c.Nicks.Tx(context.Background())
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	messages, err := tx.GetMessages(s.Nick)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		if err := tx.Commit(); err != nil {
			return err
		}
		return &StatusError{Category: "Message", Message: "You have no messages."}
	}
	if err := tx.DeleteMessages(s.Nick); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, m := range messages {
		c.status(id, "Message", fmt.Sprintf("%s (%s): %s",
			m.Sender, m.CreatedAt.Format("2006-01-02 15:04"), m.Body))
	}
	return nil
}
