// Package actions implements the chat commands on top of the session,
// group, and broker state. All methods run under the server's state lock;
// they mutate shared state and enqueue outbound packets but never block
// on network I/O.
package actions

import (
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/broker"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/config"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/datastore"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/group"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/session"
)

// Core bundles the shared state the commands operate on.
type Core struct {
	Cfg      *config.Config
	Sessions *session.Store
	Groups   *group.Store
	Broker   *broker.Broker
	Nicks    datastore.DataProviderFactory

	// Notice throttles, keyed per sender/target pair.
	AwayNotices *session.TimeoutTable
	MboxNotices *session.TimeoutTable

	now func() time.Time // test hook
}

// NewCore wires the command layer together.
func NewCore(cfg *config.Config, sessions *session.Store, groups *group.Store, b *broker.Broker, nicks datastore.DataProviderFactory) *Core {
	return &Core{
		Cfg:         cfg,
		Sessions:    sessions,
		Groups:      groups,
		Broker:      b,
		Nicks:       nicks,
		AwayNotices: session.NewTimeoutTable(),
		MboxNotices: session.NewTimeoutTable(),
		now:         time.Now,
	}
}

// status sends a 'd' notice to one session.
func (c *Core) status(id model.SessionID, category, text string) {
	c.Broker.Deliver(id, icb.Status(category, text))
}

// output sends a generic 'i' command-output line to one session.
func (c *Core) output(id model.SessionID, text string) {
	c.Broker.Deliver(id, icb.CmdOut("co", text))
}

// announce sends a 'd' notice to every member of a group unless the group
// is quiet.
func (c *Core) announce(g *model.Group, category, text string) {
	if g.Volume == model.Quiet {
		return
	}
	c.Broker.ToChannel(g.Name, icb.Status(category, text))
}

// announceFrom is announce excluding one member.
func (c *Core) announceFrom(sender model.SessionID, g *model.Group, category, text string) {
	if g.Volume == model.Quiet {
		return
	}
	c.Broker.ToChannelFrom(sender, g.Name, icb.Status(category, text))
}

// notifyWatchers tells every session watching the nick that it signed on
// or off.
func (c *Core) notifyWatchers(nick, what string) {
	if nick == "" {
		return
	}
	for _, w := range c.Sessions.GetNicks() {
		if w.Watches(nick) {
			c.status(w.ID, "Notify", nick+" has "+what+".")
		}
	}
}
