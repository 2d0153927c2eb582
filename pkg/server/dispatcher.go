package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/actions"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/version"
)

// protocolError marks malformed input. It is reported as an error packet
// followed by an exit packet: the client loses the connection.
type protocolError struct {
	msg string
}

func (e *protocolError) Error() string {
	return e.msg
}

// dispatch runs one inbound packet through the command layer under the
// state lock and reports the outcome to the client.
func (s *Server) dispatch(c *conn, tag byte, payload []byte) {
	fields := icb.Strings(icb.Split(payload))

	s.stateMu.Lock()
	err := s.handle(c, tag, fields)
	s.stateMu.Unlock()

	s.report(c, err)
}

func (s *Server) handle(c *conn, tag byte, fields []string) error {
	s.core.Touch(c.id)

	switch tag {
	case icb.TagLogin:
		return s.handleLoginPacket(c, fields)

	case icb.TagOpen:
		if err := s.requireLogin(c); err != nil {
			return err
		}
		if len(fields) < 1 || fields[0] == "" {
			return &protocolError{msg: "Empty message."}
		}
		if err := s.core.OpenMessage(c.id, fields[0]); err != nil {
			return err
		}
		s.metrics.OpenMessages.Add(1)
		return nil

	case icb.TagCommand:
		if err := s.requireLogin(c); err != nil {
			return err
		}
		return s.handleCommand(c, fields)

	case icb.TagPing:
		s.core.Broker.Deliver(c.id, icb.Pong())
		return nil

	case icb.TagPong:
		// Touch already recorded the liveness.
		return nil

	default:
		return &protocolError{msg: fmt.Sprintf("Unexpected packet type %q.", tag)}
	}
}

func (s *Server) requireLogin(c *conn) error {
	sess, err := s.core.Sessions.Get(c.id)
	if err != nil {
		return err
	}
	if !sess.LoggedIn() {
		return &actions.CommandError{Message: "Login first."}
	}
	return nil
}

// handleLoginPacket parses the 'a' packet: loginid, nick, group, command,
// and an optional password. The command is "login" for the handshake or
// "w" for a list-and-quit probe.
func (s *Server) handleLoginPacket(c *conn, fields []string) error {
	if len(fields) < 4 {
		return &protocolError{msg: "Malformed login packet."}
	}
	loginid, nick, groupName, command := fields[0], fields[1], fields[2], fields[3]
	password := ""
	if len(fields) > 4 {
		password = fields[4]
	}

	switch strings.ToLower(command) {
	case "login":
		if err := s.core.Login(c.id, loginid, nick, password, groupName); err != nil {
			s.metrics.FailedLogins.Add(1)
			return err
		}
		s.metrics.SuccessfulLogins.Add(1)
		return nil
	case "w":
		if err := s.core.Who(c.id, ""); err != nil {
			return err
		}
		c.Push(icb.Exit())
		return nil
	default:
		return &protocolError{msg: fmt.Sprintf("Unknown login command %q.", command)}
	}
}

// handleCommand parses the 'h' packet: command name and a single argument
// field.
func (s *Server) handleCommand(c *conn, fields []string) error {
	if len(fields) < 1 || fields[0] == "" {
		return &protocolError{msg: "Malformed command packet."}
	}
	name := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch name {
	case "g":
		return s.core.JoinGroup(c.id, strings.TrimSpace(arg))

	case "name":
		if err := s.core.Rename(c.id, strings.TrimSpace(arg)); err != nil {
			return err
		}
		s.metrics.Renames.Add(1)
		return nil

	case "m", "msg":
		nick, text := splitWord(arg)
		if nick == "" || text == "" {
			return usage("m nickname text")
		}
		if strings.EqualFold(nick, s.cfg.ServerNick) {
			return s.serverCommand(c, text)
		}
		if err := s.core.PrivateMessage(c.id, nick, text); err != nil {
			return err
		}
		s.metrics.PrivateMessages.Add(1)
		return nil

	case "beep":
		nick, _ := splitWord(arg)
		if nick == "" {
			return usage("beep nickname")
		}
		return s.core.BeepUser(c.id, nick)

	case "topic":
		return s.core.Topic(c.id, strings.TrimSpace(arg))

	case "status":
		return s.core.ChangeStatus(c.id, arg)

	case "invite":
		return s.core.Invite(c.id, strings.Fields(arg))

	case "cancel":
		return s.core.Cancel(c.id, strings.Fields(arg))

	case "talk":
		return s.core.Talk(c.id, strings.Fields(arg))

	case "boot":
		nick, _ := splitWord(arg)
		if nick == "" {
			return usage("boot nickname")
		}
		if err := s.core.Boot(c.id, nick); err != nil {
			return err
		}
		s.metrics.Boots.Add(1)
		return nil

	case "pass":
		nick, _ := splitWord(arg)
		return s.core.Pass(c.id, nick)

	case "drop":
		nick, password := splitWord(arg)
		if nick == "" || password == "" {
			return usage("drop nickname password")
		}
		return s.core.Drop(c.id, nick, password)

	case "w":
		return s.core.Who(c.id, strings.TrimSpace(arg))

	case "whois":
		nick, _ := splitWord(arg)
		if nick == "" {
			return usage("whois nickname")
		}
		return s.core.Whois(c.id, nick)

	case "away":
		return s.core.Away(c.id, arg)

	case "noaway":
		return s.core.NoAway(c.id)

	case "nobeep":
		return s.core.SetNoBeep(c.id, arg)

	case "hush":
		nick, _ := splitWord(arg)
		if nick == "" {
			return usage("hush nickname")
		}
		return s.core.Hush(c.id, nick)

	case "notify":
		nick, _ := splitWord(arg)
		if nick == "" {
			return usage("notify nickname")
		}
		return s.core.Notify(c.id, nick)

	case "p":
		return s.core.Register(c.id, strings.TrimSpace(arg))

	case "cp":
		oldPw, newPw := splitWord(arg)
		return s.core.ChangePassword(c.id, oldPw, newPw)

	case "write":
		nick, text := splitWord(arg)
		if nick == "" {
			return usage("write nickname message-text")
		}
		return s.core.WriteMessage(c.id, nick, text)

	case "read":
		return s.core.ReadMessages(c.id)

	case "motd":
		s.core.MOTD(c.id)
		return nil

	case "help", "?":
		s.core.Help(c.id)
		return nil

	case "v", "version":
		c.Push(icb.CmdOut("co", s.cfg.ServerID+" "+version.Full()))
		return nil

	default:
		return actions.Errorf("Unknown command %s.", name)
	}
}

// serverCommand runs a command addressed to the server nick via a private
// message, the way old clients register nicknames.
func (s *Server) serverCommand(c *conn, text string) error {
	name, rest := splitWord(text)
	switch strings.ToLower(name) {
	case "p":
		pw, _ := splitWord(rest)
		return s.core.Register(c.id, pw)
	case "cp":
		oldPw, newPw := splitWord(rest)
		return s.core.ChangePassword(c.id, oldPw, newPw)
	case "read":
		return s.core.ReadMessages(c.id)
	case "write":
		nick, body := splitWord(rest)
		if nick == "" {
			return usage("m server write nickname message-text")
		}
		return s.core.WriteMessage(c.id, nick, body)
	case "?", "help":
		s.core.Help(c.id)
		return nil
	default:
		return actions.Errorf("I don't understand %q. Try /m server ?", name)
	}
}

// report maps a command outcome onto the wire: business-rule violations
// become error packets, informational rejections become notices, protocol
// violations and internal failures cost the connection.
func (s *Server) report(c *conn, err error) {
	if err == nil {
		return
	}

	var cmdErr *actions.CommandError
	var statusErr *actions.StatusError
	var protoErr *protocolError
	switch {
	case errors.As(err, &cmdErr):
		s.metrics.CommandErrors.Add(1)
		c.Push(icb.Error(cmdErr.Message))
	case errors.As(err, &statusErr):
		c.Push(icb.Status(statusErr.Category, statusErr.Message))
	case errors.As(err, &protoErr):
		s.metrics.ProtocolErrors.Add(1)
		c.Push(icb.Error(protoErr.msg))
		c.Push(icb.Exit())
	default:
		slog.Error("command failed", "session", c.id, "err", err)
		c.Push(icb.Exit())
	}
}

func usage(text string) error {
	return &actions.CommandError{Message: "Usage: " + text}
}

// splitWord splits off the first space-separated word.
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}
