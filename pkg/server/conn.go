package server

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/icb"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/version"
)

const (
	// outboundQueueSize bounds the per-connection delivery queue. A client
	// that stops reading gets disconnected instead of stalling the server.
	outboundQueueSize = 256

	readBufferSize = 512
	writeTimeout   = 30 * time.Second
	resolveTimeout = 2 * time.Second
)

// conn is one client connection. It implements broker.Sink: Push enqueues
// a packet, the write loop drains the queue in FIFO order.
type conn struct {
	id      model.SessionID
	netConn net.Conn

	out  chan []byte
	quit chan struct{}

	closeOnce sync.Once
}

// Push enqueues one encoded packet. A full queue means the client stopped
// reading; the connection is dropped rather than blocking the caller.
func (c *conn) Push(packet []byte) {
	select {
	case c.out <- packet:
	default:
		slog.Warn("outbound queue full, dropping connection", "session", c.id)
		c.close()
	}
}

// close shuts the socket down and stops the write loop. Idempotent; the
// read loop unblocks with an error and runs the teardown.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.quit)
		_ = c.netConn.Close()
	})
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.quit:
			return
		case p := <-c.out:
			_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.netConn.Write(p); err != nil {
				c.close()
				return
			}
			// An exit packet is the last thing a client gets.
			if icb.Tag(p) == icb.TagExit {
				c.close()
				return
			}
		}
	}
}

// handleConn owns one connection's lifecycle: session creation, the
// protocol banner, the read loop, and the teardown.
func (s *Server) handleConn(netConn net.Conn) {
	address, hostname := resolveHost(netConn.RemoteAddr().String())

	id := s.core.Sessions.New(func(sess *model.Session) {
		sess.Address = address
		sess.Hostname = hostname
		sess.LastAlive = time.Now()
	})
	c := &conn{
		id:      id,
		netConn: netConn,
		out:     make(chan []byte, outboundQueueSize),
		quit:    make(chan struct{}),
	}
	if !s.core.Broker.AddSession(id, c) {
		slog.Error("session id collision", "session", id)
		s.core.Sessions.Delete(id)
		_ = netConn.Close()
		return
	}
	s.registerConn(c)

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "remote", address, "session", id)

	go c.writeLoop()
	c.Push(icb.Proto(version.Protocol, s.cfg.Hostname, s.cfg.ServerID))

	decoder := icb.NewDecoder()
	decoder.Listen(func(tag byte, payload []byte) {
		s.metrics.PacketsIn.Add(1)
		s.dispatch(c, tag, payload)
	})

	buf := make([]byte, readBufferSize)
	for {
		n, err := netConn.Read(buf)
		if n > 0 {
			decoder.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}

	c.close()
	s.unregisterConn(id)

	s.stateMu.Lock()
	s.core.Teardown(id)
	s.stateMu.Unlock()

	s.metrics.ActiveConnections.Add(-1)
	s.metrics.TotalDisconnects.Add(1)
	slog.Debug("connection closed", "remote", address, "session", id)
}

// resolveHost splits the remote address and reverse-resolves the IP,
// falling back to the bare IP when the lookup fails.
func resolveHost(remoteAddr string) (address, hostname string) {
	address = remoteAddr
	if ip, _, err := net.SplitHostPort(remoteAddr); err == nil {
		address = ip
	}
	hostname = address

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	if names, err := net.DefaultResolver.LookupAddr(ctx, address); err == nil && len(names) > 0 {
		hostname = strings.TrimSuffix(names[0], ".")
	}
	return address, hostname
}
