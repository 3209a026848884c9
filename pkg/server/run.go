package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicolasHaas/chatroom/pkg/protocol"
)

// Run starts the server and blocks until a shutdown signal.
func (s *Server) Run() error {
	defer func() {
		if s.accounts != nil {
			_ = s.accounts.Close()
		}
		if s.messages != nil {
			_ = s.messages.Close()
		}
	}()

	if err := s.Start(); err != nil {
		return err
	}

	// Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	// Periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown stops accepting, notifies every connected session best-effort,
// closes all tracked transports, and clears the registry. In-flight
// messages are not drained.
func (s *Server) Shutdown() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}

	for username, conn := range s.registry.Snapshot() {
		if err := conn.Prompt(protocol.ReplyShutdown); err != nil {
			slog.Debug("shutdown notice failed", "user", username, "err", err)
		}
	}
	for _, conn := range s.registry.Clear() {
		_ = conn.Close()
	}
	slog.Info("server stopped")
}
