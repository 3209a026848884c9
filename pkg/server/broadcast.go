package server

import (
	"log/slog"
	"time"

	"github.com/NicolasHaas/chatroom/pkg/protocol"
)

// Broadcaster fans one message out to every registered connection except an
// excluded sender.
type Broadcaster struct {
	registry *Registry
	metrics  *Metrics
	now      func() time.Time
}

// NewBroadcaster creates a broadcaster over registry.
func NewBroadcaster(registry *Registry, metrics *Metrics) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Broadcast writes "HH:MM:SS text" to every registry entry except
// excludeUsername. The timestamp is taken once per broadcast, so every
// recipient sees the same clock value for one event.
//
// Fan-out is best-effort: a write failure against one recipient (a stale or
// dead connection) is logged and counted, never propagated to the caller,
// and never blocks delivery to the remaining recipients.
func (b *Broadcaster) Broadcast(text, excludeUsername string) {
	line := protocol.Stamp(b.now(), text)
	for username, conn := range b.registry.Snapshot() {
		if username == excludeUsername {
			continue
		}
		if err := conn.WriteLine(line); err != nil {
			b.metrics.BroadcastFailures.Add(1)
			slog.Error("broadcast write failed", "user", username, "err", err)
		}
	}
	b.metrics.BroadcastsSent.Add(1)
}
