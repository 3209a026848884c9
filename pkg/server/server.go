// Package server implements the chatroom server: the per-connection
// authentication state machine, the shared session registry, and the
// broadcast fan-out.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/NicolasHaas/chatroom/pkg/datastore"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of both stores and will Close() them on shutdown.
type Dependencies struct {
	Accounts datastore.AccountStore
	Messages datastore.MessageStore
}

// Server is the chatroom server.
type Server struct {
	cfg         Config
	registry    *Registry
	broadcaster *Broadcaster
	metrics     *Metrics
	accounts    datastore.AccountStore
	messages    datastore.MessageStore
	ln          net.Listener
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	registry := NewRegistry()
	metrics := NewMetrics()
	return &Server{
		cfg:         cfg,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, metrics),
		metrics:     metrics,
		accounts:    deps.Accounts,
		messages:    deps.Messages,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start binds the listener and starts accepting connections in the
// background. Failure to bind is the only fatal startup error.
func (s *Server) Start() error {
	if s.accounts == nil || s.messages == nil {
		return fmt.Errorf("server: missing store dependency")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.ln = ln
	slog.Info("chatroom listening", "addr", ln.Addr().String())

	go s.acceptLoop(ln)
	return nil
}

// acceptLoop accepts connections until the listener closes. One failed
// accept never stops the loop, and a session is never awaited here.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				slog.Error("accept error", "err", err)
				continue
			}
		}

		s.metrics.TotalConnections.Add(1)
		s.metrics.ActiveConnections.Add(1)
		go func() {
			defer func() {
				s.metrics.ActiveConnections.Add(-1)
				s.metrics.TotalDisconnects.Add(1)
			}()
			newSession(s, conn).run()
		}()
	}
}
