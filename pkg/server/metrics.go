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
	ActiveConnections atomic.Int64 // current active connections
	SuccessfulAuths   atomic.Int64 // completed handshakes
	FailedAuths       atomic.Int64 // rejected handshakes (bad mode, taken name, bad credentials, duplicate login)
	TotalDisconnects  atomic.Int64 // total client disconnects (clean + unclean)

	// Chat counters
	MessagesRelayed atomic.Int64 // inbound lines fanned out to other sessions
	MessagesSaved   atomic.Int64 // chat lines persisted to the message log
	SaveFailures    atomic.Int64 // message log writes that failed

	// Broadcast counters
	BroadcastsSent    atomic.Int64 // broadcast events (messages + join/leave notices)
	BroadcastFailures atomic.Int64 // per-recipient write failures during fan-out
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulAuths   int64 `json:"successful_auths"`
	FailedAuths       int64 `json:"failed_auths"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	MessagesRelayed int64 `json:"messages_relayed"`
	MessagesSaved   int64 `json:"messages_saved"`
	SaveFailures    int64 `json:"save_failures"`

	BroadcastsSent    int64 `json:"broadcasts_sent"`
	BroadcastFailures int64 `json:"broadcast_failures"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		SuccessfulAuths:   m.SuccessfulAuths.Load(),
		FailedAuths:       m.FailedAuths.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		MessagesRelayed:   m.MessagesRelayed.Load(),
		MessagesSaved:     m.MessagesSaved.Load(),
		SaveFailures:      m.SaveFailures.Load(),
		BroadcastsSent:    m.BroadcastsSent.Load(),
		BroadcastFailures: m.BroadcastFailures.Load(),
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
		"messages_relayed", s.MessagesRelayed,
		"messages_saved", s.MessagesSaved,
		"broadcast_failures", s.BroadcastFailures,
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
