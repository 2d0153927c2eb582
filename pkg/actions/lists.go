package actions

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

// Who lists groups and their members as 'i' output. An empty argument
// lists everything the caller may see; a group name limits the listing
// to that group.
func (c *Core) Who(id model.SessionID, arg string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}

	groups := c.Groups.GetGroups()
	if arg != "" {
		g := c.Groups.Get(arg)
		if !c.Groups.Exists(arg) || !c.maySee(s, g) {
			return Errorf("The group %s doesn't exist.", arg)
		}
		groups = []*model.Group{g}
	}

	users, shown := 0, 0
	for _, g := range groups {
		member := s.Group != "" && model.Key(s.Group) == g.Key()
		if g.Visibility == model.Invisible && !member {
			continue
		}
		shown++
		c.listGroup(id, s, g, member)
		users += len(c.Broker.GetSubscribers(g.Name))
	}
	c.output(id, fmt.Sprintf("Total: %d users in %d groups", users, shown))
	return nil
}

// maySee reports whether a session may address a group in listings.
func (c *Core) maySee(s *model.Session, g *model.Group) bool {
	if g.Visibility == model.Visible {
		return true
	}
	return s.Group != "" && model.Key(s.Group) == g.Key()
}

func (c *Core) listGroup(id model.SessionID, viewer *model.Session, g *model.Group, member bool) {
	masked := g.Visibility == model.Secret && !member

	name := g.Name
	topic := g.Topic
	if topic == "" {
		topic = "(None)"
	}
	modNick := "(None)"
	if g.Moderator != "" {
		if m, err := c.Sessions.Get(g.Moderator); err == nil {
			modNick = m.Nick
		}
	}
	if masked {
		name, modNick, topic = "-SECRET-", "(None)", "(None)"
	}
	flags := fmt.Sprintf("%c%c%c",
		g.Visibility.String()[0], g.Control.String()[0], g.Volume.String()[0])

	c.output(id, fmt.Sprintf("Group: %-8s (%s) Mod: %-12s Topic: %s", name, flags, modNick, topic))

	if masked {
		return
	}

	members := make([]*model.Session, 0)
	for _, mid := range c.Broker.GetSubscribers(g.Name) {
		if m, err := c.Sessions.Get(mid); err == nil && m.Nick != "" {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return strings.ToLower(members[i].Nick) < strings.ToLower(members[j].Nick)
	})

	now := c.now()
	for _, m := range members {
		modFlag := " "
		if g.IsModerator(m.ID) {
			modFlag = "m"
		}
		c.Broker.Deliver(id, icb.CmdOut("wl",
			modFlag,
			m.Nick,
			strconv.FormatInt(int64(m.Idle(now).Seconds()), 10),
			"0",
			strconv.FormatInt(m.SignOn.Unix(), 10),
			m.LoginID,
			m.Hostname,
		))
	}
}

// Whois reports what is known about a nickname: the live session, the
// stored account, or both.
func (c *Core) Whois(id model.SessionID, nick string) error {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return err
	}

	var live *model.Session
	if targetID, ok := c.Sessions.FindNick(nick); ok {
		live, _ = c.Sessions.Get(targetID)
	}
	account, err := c.Nicks.NonTx().Lookup(nick)
	if err != nil {
		return err
	}
	if live == nil && account == nil {
		return Errorf("%s is not signed on.", nick)
	}

	if live != nil {
		c.output(id, fmt.Sprintf("%s is %s@%s", live.Nick, live.LoginID, live.Hostname))
		if live.Group != "" {
			g := c.Groups.Get(live.Group)
			groupName := g.Name
			if !c.maySee(s, g) {
				groupName = "-SECRET-"
			}
			c.output(id, fmt.Sprintf("Group: %s", groupName))
		}
		c.output(id, fmt.Sprintf("Idle: %s", formatElapsed(live.Idle(c.now()))))
		if live.Away != "" {
			c.output(id, fmt.Sprintf("Away: %s (since %s)", live.Away, live.AwaySince.Format("15:04")))
		}
	}
	if account != nil {
		if live != nil && live.Authenticated {
			c.output(id, fmt.Sprintf("%s is registered.", account.Nick))
		} else {
			c.output(id, fmt.Sprintf("%s is registered but not signed on with that identity.", account.Nick))
		}
		if !account.Signon.IsZero() {
			c.output(id, fmt.Sprintf("Last signon: %s", account.Signon.Format("2006-01-02 15:04")))
		}
		if !account.Signoff.IsZero() {
			c.output(id, fmt.Sprintf("Last signoff: %s", account.Signoff.Format("2006-01-02 15:04")))
		}
	}
	return nil
}

// formatElapsed renders a duration the way listings show idle times.
func formatElapsed(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm%ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh%dm", secs/3600, (secs%3600)/60)
	}
}

// Help lists the commands the server understands.
func (c *Core) Help(id model.SessionID) {
	for _, line := range []string{
		"Commands:",
		"  g group        join a group",
		"  name nickname  change your nickname",
		"  m nick text    send a private message",
		"  beep nick      beep a user",
		"  topic [text]   show or set the group topic",
		"  status [flags] show or change group flags (vsipmrcqnl)",
		"  invite nick    invite to a restricted group",
		"  cancel nick    cancel an invitation",
		"  talk nick      allow talking in a controlled group",
		"  boot nick      kick a member out of the group",
		"  pass [nick]    pass or relinquish moderation",
		"  drop nick pw   disconnect a dead session holding your nick",
		"  w [group]      list groups and members",
		"  whois nick     show user details",
		"  away [text]    mark yourself away",
		"  noaway         clear your away state",
		"  nobeep mode    set beep suppression (on, off, verbose)",
		"  hush nick      toggle ignoring a user",
		"  notify nick    toggle sign-on notifications",
		"  p password     register your nickname",
		"  cp old new     change your password",
		"  write nick txt leave a message",
		"  read           read your messages",
		"  motd           show the message of the day",
	} {
		c.output(id, line)
	}
}

// MOTD re-sends the message of the day.
func (c *Core) MOTD(id model.SessionID) {
	for _, line := range c.Cfg.MOTD {
		c.output(id, line)
	}
}
