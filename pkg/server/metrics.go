package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime TCP connections accepted
	ActiveConnections atomic.Int64 // current open connections
	TotalDisconnects  atomic.Int64 // total client disconnects (clean + unclean)

	// Login counters
	SuccessfulLogins atomic.Int64 // completed login handshakes
	FailedLogins     atomic.Int64 // rejected login handshakes

	// Traffic counters
	PacketsIn       atomic.Int64 // decoded inbound packets
	OpenMessages    atomic.Int64 // public messages relayed
	PrivateMessages atomic.Int64 // private messages relayed
	CommandErrors   atomic.Int64 // commands rejected with an error packet
	ProtocolErrors  atomic.Int64 // malformed packets that dropped a connection

	// Moderation counters
	Boots   atomic.Int64 // members booted out of a group
	Renames atomic.Int64 // completed nickname changes
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable
// struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	SuccessfulLogins int64 `json:"successful_logins"`
	FailedLogins     int64 `json:"failed_logins"`

	PacketsIn       int64 `json:"packets_in"`
	OpenMessages    int64 `json:"open_messages"`
	PrivateMessages int64 `json:"private_messages"`
	CommandErrors   int64 `json:"command_errors"`
	ProtocolErrors  int64 `json:"protocol_errors"`

	Boots   int64 `json:"boots"`
	Renames int64 `json:"renames"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		SuccessfulLogins:  m.SuccessfulLogins.Load(),
		FailedLogins:      m.FailedLogins.Load(),
		PacketsIn:         m.PacketsIn.Load(),
		OpenMessages:      m.OpenMessages.Load(),
		PrivateMessages:   m.PrivateMessages.Load(),
		CommandErrors:     m.CommandErrors.Load(),
		ProtocolErrors:    m.ProtocolErrors.Load(),
		Boots:             m.Boots.Load(),
		Renames:           m.Renames.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"logins", s.SuccessfulLogins,
		"open_msgs", s.OpenMessages,
		"private_msgs", s.PrivateMessages,
		"errors", s.CommandErrors,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
