package actions

import (
	"fmt"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// DemoteIdleModerators strips moderation from moderators idle longer
// than the configured limit, handing it to the most recently active
// member when there is one.
func (c *Core) DemoteIdleModerators() {
	limit := c.Cfg.Timeouts.IdleMod.Duration()
	if limit <= 0 {
		return
	}
	now := c.now()

	for _, g := range c.Groups.GetGroups() {
		if g.Moderator == "" {
			continue
		}
		mod, err := c.Sessions.Get(g.Moderator)
		if err != nil {
			g.Moderator = ""
			c.Groups.Update(g)
			continue
		}
		if mod.Idle(now) < limit {
			continue
		}
		next := c.selectNewModerator(g, g.Moderator)
		if next == nil || next.Idle(now) >= limit {
			continue
		}
		g.Moderator = next.ID
		c.Groups.Update(g)
		c.announce(g, "Pass", fmt.Sprintf("%s is now mod.", next.Nick))
		c.status(mod.ID, "Pass", fmt.Sprintf("You lost moderation of %s to %s.", g.Name, next.Nick))
	}
}

// MoveIdlers drops members idle longer than the configured limit into the
// idle group. The idle and boot groups themselves are exempt.
func (c *Core) MoveIdlers() {
	limit := c.Cfg.Timeouts.IdleBoot.Duration()
	if limit <= 0 {
		return
	}
	now := c.now()
	idleKey := model.Key(c.Cfg.IdleGroup)
	bootKey := model.Key(c.Cfg.BootGroup)

	for _, s := range c.Sessions.GetNicks() {
		if s.Group == "" {
			continue
		}
		key := model.Key(s.Group)
		if key == idleKey || key == bootKey {
			continue
		}
		if s.Idle(now) < limit {
			continue
		}
		g := c.Groups.Get(s.Group)
		c.announceFrom(s.ID, g, "Idle-Boot", fmt.Sprintf("%s was moved to group %s.", s.Nick, c.Cfg.IdleGroup))
		c.status(s.ID, "Idle-Boot", fmt.Sprintf("You were idle too long and moved to group %s.", c.Cfg.IdleGroup))
		c.moveSession(s, c.Cfg.IdleGroup)
	}
}
