package actions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/crypto"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
)

var trailingCounter = regexp.MustCompile(`-[0-9]+$`)

// autoRenameSession frees a session's nickname after an authenticated
// claim displaces it. The session keeps its group and loses its
// authenticated flag; the new nick is announced to it and its group.
func (c *Core) autoRenameSession(id model.SessionID) string {
	s, err := c.Sessions.Get(id)
	if err != nil {
		return ""
	}

	oldNick := s.Nick
	newNick := c.freeNick(s.Nick, s.LoginID)
	if s.Authenticated {
		_ = c.Nicks.NonTx().SetSignoff(oldNick, c.now())
	}
	s.Nick = newNick
	s.Authenticated = false

	c.status(id, "Name", fmt.Sprintf("Your nickname is now %s.", newNick))
	if s.Group != "" {
		g := c.Groups.Get(s.Group)
		if g.Volume != model.Quiet {
			c.Broker.ToChannelFrom(id, g.Name,
				icb.Status("Name", fmt.Sprintf("%s changed nickname to %s", oldNick, newNick)))
		}
	}
	return newNick
}

// freeNick derives an unused nickname: counter suffixes on the current
// nick, then on the loginid, then on random tokens. The random source
// always yields a valid base, so the search terminates.
func (c *Core) freeNick(nick, loginid string) string {
	if n, ok := c.deriveNick(nick); ok {
		return n
	}
	if n, ok := c.deriveNick(loginid); ok {
		return n
	}
	for {
		token, err := crypto.GenerateToken(4)
		if err != nil {
			panic(fmt.Sprintf("actions: random source unavailable: %v", err))
		}
		if n, ok := c.deriveNick(token); ok {
			return n
		}
	}
}

// deriveNick tries base-1 through base-10, clipping the base so the
// candidate stays within the nickname length limit.
func (c *Core) deriveNick(base string) (string, bool) {
	base = trailingCounter.ReplaceAllString(base, "")
	if len(base) > model.MaxNickLength {
		base = base[:model.MaxNickLength]
	}
	if model.ValidateNick(base) != nil {
		return "", false
	}
	for i := 1; i <= 10; i++ {
		suffix := "-" + strconv.Itoa(i)
		stem := base
		if len(stem)+len(suffix) > model.MaxNickLength {
			stem = stem[:model.MaxNickLength-len(suffix)]
		}
		candidate := stem + suffix
		if strings.EqualFold(candidate, c.Cfg.ServerNick) {
			continue
		}
		if _, taken := c.Sessions.FindNick(candidate); !taken {
			return candidate, true
		}
	}
	return "", false
}
