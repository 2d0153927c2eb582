package actions

import (
	"fmt"
	"strings"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// JoinGroup moves a session into a group, creating the group if it does
// not exist yet. Entry checks run before the old group is left, so a
// failed join leaves the session where it was.
func (c *Core) JoinGroup(id model.SessionID, name string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}
	if err := model.ValidateGroupName(name); err != nil {
		return &CommandError{Message: err.Error()}
	}
	if s.Group != "" && model.Key(s.Group) == model.Key(name) {
		return Errorf("You are already in group %s.", s.Group)
	}

	exists := c.Groups.Exists(name)
	g := c.Groups.Get(name)
	if exists && !g.MayEnter(s) {
		return Errorf("%s is restricted.", g.Name)
	}

	if s.Group != "" {
		c.leaveGroup(s, "Depart",
			fmt.Sprintf("%s (%s@%s) just left.", s.Nick, s.LoginID, s.Hostname))
	}

	c.Broker.Join(id, name)
	if !exists {
		g = c.createGroup(name, s)
		c.Groups.Update(g)
	}
	s.Group = g.Name

	c.announceFrom(id, g, "Sign-on",
		fmt.Sprintf("%s (%s@%s) entered group.", s.Nick, s.LoginID, s.Hostname))
	if g.IsModerator(id) {
		c.status(id, "Status", fmt.Sprintf("You are now mod of group %s.", g.Name))
	} else {
		c.status(id, "Status", fmt.Sprintf("You are now in group %s.", g.Name))
	}
	return nil
}

// createGroup builds the metadata of a freshly created group. Ordinary
// groups make their founder the moderator; the well-known groups stay
// moderatorless and carry fixed settings.
func (c *Core) createGroup(name string, founder *model.Session) *model.Group {
	g := model.NewGroup(name)
	switch model.Key(name) {
	case model.Key(c.Cfg.DefaultGroup):
		g.Topic = c.Cfg.DefaultTopic
	case model.Key(c.Cfg.IdleGroup):
		g.Volume = model.Quiet
	case model.Key(c.Cfg.BootGroup):
		g.Volume = model.Quiet
		g.Visibility = model.Secret
	default:
		g.Moderator = founder.ID
	}
	return g
}

// leaveGroup removes a session from its current group, announcing the
// departure unless text is empty. Empty groups are deleted; a departing
// moderator hands moderation to the most recently active member.
func (c *Core) leaveGroup(s *model.Session, category, text string) {
	if s.Group == "" {
		return
	}
	g := c.Groups.Get(s.Group)
	remaining := c.Broker.Part(s.ID, s.Group)
	s.Group = ""

	if !remaining {
		c.Groups.Delete(g.Name)
		return
	}
	if text != "" {
		c.announce(g, category, text)
	}
	if g.IsModerator(s.ID) {
		c.passModerator(g)
	}
}

// passModerator hands moderation to the most recently active member.
// Ties break on the smallest session id so the outcome is deterministic.
func (c *Core) passModerator(g *model.Group) {
	next := c.selectNewModerator(g, g.Moderator)
	if next == nil {
		g.Moderator = ""
		c.Groups.Update(g)
		return
	}
	g.Moderator = next.ID
	c.Groups.Update(g)
	c.announce(g, "Pass", fmt.Sprintf("%s is now mod.", next.Nick))
}

func (c *Core) selectNewModerator(g *model.Group, exclude model.SessionID) *model.Session {
	var best *model.Session
	for _, id := range c.Broker.GetSubscribers(g.Name) {
		if id == exclude {
			continue
		}
		s, err := c.Sessions.Get(id)
		if err != nil || s.Nick == "" {
			continue
		}
		if best == nil ||
			s.LastAlive.After(best.LastAlive) ||
			(s.LastAlive.Equal(best.LastAlive) && s.ID < best.ID) {
			best = s
		}
	}
	return best
}

// currentGroup resolves the session and its group, failing when the
// session is not in one.
func (c *Core) currentGroup(id model.SessionID) (*model.Session, *model.Group, error) {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if s.Group == "" {
		return nil, nil, &CommandError{Message: "You aren't in a group."}
	}
	return s, c.Groups.Get(s.Group), nil
}

// requireModerator resolves the session and its group and checks that the
// session moderates it.
func (c *Core) requireModerator(id model.SessionID) (*model.Session, *model.Group, error) {
	s, g, err := c.currentGroup(id)
	if err != nil {
		return nil, nil, err
	}
	if !g.IsModerator(id) {
		return nil, nil, &CommandError{Message: "You aren't the moderator."}
	}
	return s, g, nil
}

// Topic reports the group's topic or, for the moderator of a moderated
// group, changes it. Any member may change the topic of a moderatorless
// group.
func (c *Core) Topic(id model.SessionID, text string) error {
	s, g, err := c.currentGroup(id)
	if err != nil {
		return err
	}

	if text == "" {
		if g.Topic == "" {
			c.status(id, "Topic", "The topic is not set.")
		} else {
			c.status(id, "Topic", fmt.Sprintf("The topic is: %s", g.Topic))
		}
		return nil
	}

	if g.Moderator != "" && !g.IsModerator(id) {
		return &CommandError{Message: "You aren't the moderator."}
	}
	if len(text) > model.MaxTopicLength {
		text = text[:model.MaxTopicLength]
	}
	g.Topic = text
	c.Groups.Update(g)
	c.announce(g, "Topic", fmt.Sprintf("%s changed the topic to \"%s\"", s.Nick, text))
	return nil
}

// ChangeStatus applies one-letter group flags: visibility (v/s/i),
// control (p/m/r/c), and volume (q/n/l). Moderator only. With no flags
// the current settings are reported.
func (c *Core) ChangeStatus(id model.SessionID, flags string) error {
	flags = strings.TrimSpace(flags)
	if flags == "" {
		_, g, err := c.currentGroup(id)
		if err != nil {
			return err
		}
		c.status(id, "Status", fmt.Sprintf("Group %s is %s, %s, and %s.",
			g.Name, g.Visibility, g.Control, g.Volume))
		return nil
	}

	s, g, err := c.requireModerator(id)
	if err != nil {
		return err
	}
	for _, field := range strings.Fields(flags) {
		for _, flag := range field {
			if err := c.applyStatusFlag(s, g, flag); err != nil {
				return err
			}
		}
	}
	c.Groups.Update(g)
	return nil
}

func (c *Core) applyStatusFlag(actor *model.Session, g *model.Group, flag rune) error {
	switch flag {
	case 'v':
		c.setVisibility(actor, g, model.Visible)
	case 's':
		c.setVisibility(actor, g, model.Secret)
	case 'i':
		c.setVisibility(actor, g, model.Invisible)
	case 'p':
		c.setControl(actor, g, model.Public)
	case 'm':
		c.setControl(actor, g, model.Moderated)
	case 'r':
		c.setControl(actor, g, model.Restricted)
	case 'c':
		c.setControl(actor, g, model.Controlled)
	case 'q':
		c.setVolume(actor, g, model.Quiet)
	case 'n':
		c.setVolume(actor, g, model.Normal)
	case 'l':
		c.setVolume(actor, g, model.Loud)
	default:
		return Errorf("Option %c unknown.", flag)
	}
	return nil
}

func (c *Core) setVisibility(actor *model.Session, g *model.Group, v model.Visibility) {
	if g.Visibility == v {
		return
	}
	g.Visibility = v
	c.announce(g, "Change", fmt.Sprintf("%s made group %s.", actor.Nick, v))
}

func (c *Core) setVolume(actor *model.Session, g *model.Group, v model.Volume) {
	if g.Volume == v {
		return
	}
	// Announce before muting so members learn the group went quiet.
	if v == model.Quiet {
		c.announce(g, "Change", fmt.Sprintf("%s made group quiet.", actor.Nick))
	}
	g.Volume = v
	if v != model.Quiet {
		c.announce(g, "Change", fmt.Sprintf("%s made group %s.", actor.Nick, v))
	}
}

// setControl switches the access-control mode. Entering restricted
// snapshots the current members into the invitation list so nobody is
// locked out of a group they already sit in, and clears the talker
// list; leaving restricted or controlled clears the respective list.
// Talker entries granted in other modes survive a switch to controlled.
func (c *Core) setControl(actor *model.Session, g *model.Group, mode model.Control) {
	if g.Control == mode {
		return
	}
	wasRestricted := g.Control == model.Restricted
	wasControlled := g.Control == model.Controlled
	g.Control = mode

	if mode == model.Restricted {
		g.ClearInvitations()
		g.ClearTalkers()
		for _, id := range c.Broker.GetSubscribers(g.Name) {
			if m, err := c.Sessions.Get(id); err == nil && m.Nick != "" {
				g.InvitedNicks.Add(m.Nick, false)
			}
		}
	}
	if wasRestricted && mode != model.Restricted {
		g.ClearInvitations()
	}
	if wasControlled && mode != model.Controlled {
		g.ClearTalkers()
	}

	if mode == model.Public {
		c.announce(g, "Change", fmt.Sprintf("%s made group public.", actor.Nick))
	} else {
		c.announce(g, "Change", fmt.Sprintf("%s is now %s.", actor.Nick, mode))
	}
}

// Invite puts a nickname or address on the group's invitation list.
// Flags: -q suppress notifying the invitee, -r registered-only entry,
// -s address entry instead of nickname.
func (c *Core) Invite(id model.SessionID, args []string) error {
	s, g, err := c.requireModerator(id)
	if err != nil {
		return err
	}
	quiet, registered, address, name, err := parseListFlags(args, "q", "r", "s")
	if err != nil {
		return err
	}
	if name == "" {
		return &CommandError{Message: "Usage: invite {-q} {-r} {-s} nickname"}
	}

	if address {
		g.InvitedAddresses.Add(name, registered)
	} else {
		g.InvitedNicks.Add(name, registered)
	}
	c.Groups.Update(g)
	c.status(id, "FYI", fmt.Sprintf("%s invited.", name))

	if !address && !quiet {
		if targetID, ok := c.Sessions.FindNick(name); ok {
			c.status(targetID, "RSVP",
				fmt.Sprintf("You are invited to group %s by %s.", g.Name, s.Nick))
		}
	}
	return nil
}

// Cancel removes an invitation. Flag: -s address entry.
func (c *Core) Cancel(id model.SessionID, args []string) error {
	_, g, err := c.requireModerator(id)
	if err != nil {
		return err
	}
	_, _, address, name, err := parseListFlags(args, "", "", "s")
	if err != nil {
		return err
	}
	if name == "" {
		return &CommandError{Message: "Usage: cancel {-s} nickname"}
	}

	list := g.InvitedNicks
	if address {
		list = g.InvitedAddresses
	}
	if !list.Remove(name) {
		return Errorf("%s isn't invited.", name)
	}
	c.Groups.Update(g)
	c.status(id, "FYI", fmt.Sprintf("%s cancelled.", name))
	return nil
}

// Talk grants or revokes speaking permission in a controlled group.
// Flags: -d delete the entry, -r registered-only, -s address entry.
func (c *Core) Talk(id model.SessionID, args []string) error {
	_, g, err := c.requireModerator(id)
	if err != nil {
		return err
	}
	del, registered, address, name, err := parseListFlags(args, "d", "r", "s")
	if err != nil {
		return err
	}
	if name == "" {
		return &CommandError{Message: "Usage: talk {-d} {-r} {-s} nickname"}
	}

	list := g.TalkerNicks
	if address {
		list = g.TalkerAddresses
	}
	if del {
		if !list.Remove(name) {
			return Errorf("%s can't talk anyway.", name)
		}
		c.status(id, "FYI", fmt.Sprintf("%s can't talk anymore.", name))
	} else {
		list.Add(name, registered)
		c.status(id, "FYI", fmt.Sprintf("%s can talk now.", name))
	}
	c.Groups.Update(g)
	return nil
}

// parseListFlags scans leading -x flags off an argument vector and returns
// the three recognized toggles plus the remaining name. The three flag
// letters are positional so Invite, Cancel, and Talk can share the parser.
func parseListFlags(args []string, first, second, third string) (a, b, cc bool, name string, err error) {
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			name = strings.Join(args[i:], " ")
			return a, b, cc, strings.TrimSpace(name), nil
		}
		switch strings.TrimPrefix(arg, "-") {
		case first:
			a = true
		case second:
			b = true
		case third:
			cc = true
		default:
			return false, false, false, "", Errorf("Option %s unknown.", arg)
		}
	}
	return a, b, cc, "", nil
}

// Boot throws a member out of the group and into the boot group.
// Protected registered nicks cannot be booted.
func (c *Core) Boot(id model.SessionID, nick string) error {
	s, g, err := c.requireModerator(id)
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
	if target.Group == "" || model.Key(target.Group) != g.Key() {
		return Errorf("%s is not in your group.", nick)
	}
	if target.Authenticated {
		protected, err := c.Nicks.NonTx().IsProtected(target.Nick)
		if err != nil {
			return err
		}
		if protected {
			c.announce(g, "Boot", fmt.Sprintf("%s tried to boot %s.", s.Nick, target.Nick))
			return Errorf("You can't boot %s.", target.Nick)
		}
	}

	c.announce(g, "Boot", fmt.Sprintf("%s was booted.", target.Nick))
	c.status(targetID, "Boot", fmt.Sprintf("%s booted you.", s.Nick))
	c.moveSession(target, c.Cfg.BootGroup)
	return nil
}

// moveSession silently parts the session's group and drops it into dest,
// creating dest if needed.
func (c *Core) moveSession(s *model.Session, dest string) {
	c.leaveGroup(s, "", "")

	exists := c.Groups.Exists(dest)
	c.Broker.Join(s.ID, dest)
	g := c.Groups.Get(dest)
	if !exists {
		g = c.createGroup(dest, s)
		c.Groups.Update(g)
	}
	s.Group = g.Name
	c.status(s.ID, "Status", fmt.Sprintf("You are now in group %s.", g.Name))
}

// Pass hands moderation to another member, or relinquishes it entirely
// when no nickname is given.
func (c *Core) Pass(id model.SessionID, nick string) error {
	s, g, err := c.requireModerator(id)
	if err != nil {
		return err
	}

	if nick == "" {
		g.Moderator = ""
		c.Groups.Update(g)
		c.announce(g, "Pass", fmt.Sprintf("%s relinquished moderation.", s.Nick))
		return nil
	}

	targetID, ok := c.Sessions.FindNick(nick)
	if !ok {
		return Errorf("%s is not signed on.", nick)
	}
	target, err := c.Sessions.Get(targetID)
	if err != nil {
		return err
	}
	if target.Group == "" || model.Key(target.Group) != g.Key() {
		return Errorf("%s is not in your group.", nick)
	}

	g.Moderator = targetID
	c.Groups.Update(g)
	c.announce(g, "Pass", fmt.Sprintf("%s passed moderation to %s.", s.Nick, target.Nick))
	c.status(targetID, "Pass", fmt.Sprintf("%s has passed moderation of %s to you.", s.Nick, g.Name))
	return nil
}
