// Package server implements the ICB chat server: the TCP listener,
// per-connection packet I/O, and the command dispatcher.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/actions"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/broker"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/config"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/datastore"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/group"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/model"
	"github.com/20centaurifux/fuchsschwanz-sub000/pkg/session"
)

// Server owns the chat state and the listener. All command handling runs
// under stateMu: the command layer is written for single-threaded access
// and the per-connection goroutines funnel through the dispatcher.
type Server struct {
	cfg     *config.Config
	core    *actions.Core
	metrics *Metrics

	stateMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	listener net.Listener

	connMu sync.Mutex
	conns  map[model.SessionID]*conn
	wg     sync.WaitGroup
}

// Dependencies holds external dependencies for the server. The caller
// keeps ownership of Store and closes it after Run returns.
type Dependencies struct {
	Store datastore.DataProviderFactory
}

// New wires a server together.
func New(cfg *config.Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		core:    actions.NewCore(cfg, session.NewStore(), group.NewStore(), broker.New(), deps.Store),
		metrics: NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[model.SessionID]*conn),
	}
}

// Run starts the server and blocks until a shutdown signal.
func (s *Server) Run() error {
	if s.core.Nicks == nil {
		return fmt.Errorf("server: missing store dependency")
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	slog.Info("server listening", "addr", s.cfg.ListenAddr, "hostname", s.cfg.Hostname)

	go s.acceptLoop()
	go s.timerLoop()

	s.StartMetricsHTTP()
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-s.ctx.Done():
	}

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown stops accepting, disconnects all clients, and waits for the
// connection goroutines to drain.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}

	s.connMu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connMu.Unlock()
	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				slog.Error("accept error", "err", err)
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(netConn)
		}()
	}
}

func (s *Server) registerConn(c *conn) {
	s.connMu.Lock()
	s.conns[c.id] = c
	s.connMu.Unlock()
}

func (s *Server) unregisterConn(id model.SessionID) {
	s.connMu.Lock()
	delete(s.conns, id)
	s.connMu.Unlock()
}
