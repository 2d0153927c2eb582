package actions

import (
	"fmt"
	"strings"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// Away marks the session away. With no text an already-away session gets
// its current message re-announced; otherwise a default message is set.
func (c *Core) Away(id model.SessionID, text string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		if s.Away != "" {
			c.status(id, "Away", fmt.Sprintf("You are still away: %s", s.Away))
			return nil
		}
		text = "(no reason)"
	}

	s.Away = text
	s.AwaySince = c.now()
	c.status(id, "Away", fmt.Sprintf("You are now away: %s", text))
	return nil
}

// NoAway clears the away state.
func (c *Core) NoAway(id model.SessionID) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if s.Away == "" {
		c.status(id, "Away", "You were not away.")
		return nil
	}
	s.Away = ""
	s.AwaySince = time.Time{}
	c.status(id, "Away", "You are no longer away.")
	return nil
}

// SetNoBeep sets the beep suppression mode: "on" rejects beeps, "off"
// accepts them, "verbose" rejects and reports the sender.
func (c *Core) SetNoBeep(id model.SessionID, arg string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on":
		s.Beep = model.BeepOff
		c.status(id, "No-Beep", "No-Beep is now on.")
	case "off":
		s.Beep = model.BeepOn
		c.status(id, "No-Beep", "No-Beep is now off.")
	case "verbose":
		s.Beep = model.BeepVerbose
		c.status(id, "No-Beep", "No-Beep is now verbose.")
	default:
		return &CommandError{Message: "Usage: nobeep on|off|verbose"}
	}
	return nil
}

// Hush toggles a nickname on the session's hush list. Hushed nicks cannot
// reach the session with private messages or beeps.
func (c *Core) Hush(id model.SessionID, nick string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if err := model.ValidateNick(nick); err != nil {
		return &CommandError{Message: err.Error()}
	}

	if s.ToggleHush(nick) {
		c.status(id, "Hush", fmt.Sprintf("%s hushed.", nick))
	} else {
		c.status(id, "Hush", fmt.Sprintf("%s unhushed.", nick))
	}
	return nil
}

// Notify toggles a nickname on the session's watch list. Watched nicks
// trigger a notice when they sign on or off.
func (c *Core) Notify(id model.SessionID, nick string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if err := model.ValidateNick(nick); err != nil {
		return &CommandError{Message: err.Error()}
	}

	if s.ToggleNotify(nick) {
		c.status(id, "Notify", fmt.Sprintf("You are now watching %s.", nick))
	} else {
		c.status(id, "Notify", fmt.Sprintf("You are no longer watching %s.", nick))
	}
	return nil
}

// Touch records client activity for the idle bookkeeping.
func (c *Core) Touch(id model.SessionID) {
	if s, err := c.Sessions.Get(id); err == nil {
		s.LastAlive = c.now()
	}
}
