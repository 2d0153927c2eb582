package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("icbd_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("icbd_connections_active", "Current open connections.", "gauge",
		m.ActiveConnections.Load())
	write("icbd_connections_total", "Lifetime TCP connections accepted.", "counter",
		m.TotalConnections.Load())
	write("icbd_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("icbd_logins_total", "Completed login handshakes.", "counter",
		m.SuccessfulLogins.Load())
	write("icbd_logins_failed_total", "Rejected login handshakes.", "counter",
		m.FailedLogins.Load())

	write("icbd_packets_in_total", "Decoded inbound packets.", "counter",
		m.PacketsIn.Load())
	write("icbd_open_messages_total", "Public messages relayed.", "counter",
		m.OpenMessages.Load())
	write("icbd_private_messages_total", "Private messages relayed.", "counter",
		m.PrivateMessages.Load())
	write("icbd_command_errors_total", "Commands rejected with an error packet.", "counter",
		m.CommandErrors.Load())
	write("icbd_protocol_errors_total", "Malformed packets that dropped a connection.", "counter",
		m.ProtocolErrors.Load())

	write("icbd_boots_total", "Members booted out of a group.", "counter",
		m.Boots.Load())
	write("icbd_renames_total", "Completed nickname changes.", "counter",
		m.Renames.Load())

	// Live gauges read from the state stores.
	s.stateMu.Lock()
	sessions := int64(s.core.Sessions.Count())
	groups := int64(len(s.core.Groups.GetGroups()))
	s.stateMu.Unlock()

	write("icbd_sessions_active", "Sessions in the store.", "gauge", sessions)
	write("icbd_groups_active", "Groups with at least one member.", "gauge", groups)
}
