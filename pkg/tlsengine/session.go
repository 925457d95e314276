// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tlsengine

import (
	"context"
	"log/slog"
	"net"

	"github.com/absmach/mhttp/pkg/bytespan"
	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/metrics"
	"github.com/google/uuid"
)

// Config holds the per-session settings.
type Config struct {
	// Role is client or server.
	Role Role

	// Executor runs delegated tasks. When nil they run on the calling goroutine.
	Executor *Executor

	// Policy seeds the buffer sizes. Zero fields take DefaultSizingPolicy.
	Policy SizingPolicy

	// SessionID identifies the session in logs and errors. Generated when empty.
	SessionID string

	// Logger for session events
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Session drives one Engine over one Transport. It owns the four working
// buffers and must only be used from one goroutine at a time.
type Session struct {
	config    Config
	engine    Engine
	transport Transport
	policy    SizingPolicy
	remote    string

	// outApp is in read mode and empty: handshake wraps carry no plaintext.
	outApp *bytespan.Buffer
	// outRecord, inApp and inRecord are kept in write mode between calls.
	outRecord *bytespan.Buffer
	inApp     *bytespan.Buffer
	inRecord  *bytespan.Buffer

	closed bool
}

// NewSession creates a session. The session closes transport when it is
// closed or fails.
func NewSession(cfg Config, engine Engine, transport Transport) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.New().String()
	}
	policy := cfg.Policy.withDefaults()
	policy.Refresh(engine)

	s := &Session{
		config:    cfg,
		engine:    engine,
		transport: transport,
		policy:    policy,
		outApp:    bytespan.Wrap(nil),
		outRecord: bytespan.Allocate(policy.PacketBufferSize),
		inApp:     bytespan.Allocate(policy.ApplicationBufferSize),
		inRecord:  bytespan.Allocate(policy.PacketBufferSize),
	}
	if c, ok := transport.(interface{ RemoteAddr() net.Addr }); ok && c.RemoteAddr() != nil {
		s.remote = c.RemoteAddr().String()
	}
	s.config.Logger = cfg.Logger.With(
		slog.String("session_id", cfg.SessionID),
		slog.String("role", cfg.Role.String()),
	)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.config.SessionID
}

// Role returns the role fixed at creation.
func (s *Session) Role() Role {
	return s.config.Role
}

// Engine returns the underlying engine.
func (s *Session) Engine() Engine {
	return s.engine
}

// Policy returns the current sizing hints.
func (s *Session) Policy() SizingPolicy {
	return s.policy
}

// IsClosed reports whether Close has run.
func (s *Session) IsClosed() bool {
	return s.closed
}

// Close sends a close notification, drives the engine until it is sent and
// closes the transport. It does not wait for the peer's notification.
// Calling Close again is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.engine.CloseOutbound()
	if err := s.drive(ctx); err != nil {
		s.config.Logger.Debug("close exchange incomplete", slog.String("error", err.Error()))
	}
	if err := s.transport.Close(); err != nil {
		return s.wrapErr("close", err)
	}
	s.config.Logger.Debug("TLS session closed")
	return nil
}

// abort tears the connection down without a close exchange.
func (s *Session) abort() {
	if s.closed {
		return
	}
	s.closed = true
	s.engine.CloseOutbound()
	if err := s.transport.Close(); err != nil {
		s.config.Logger.Debug("failed to close transport", slog.String("error", err.Error()))
	}
}

func (s *Session) wrapErr(op string, err error) error {
	return mherrors.New(op, s.config.Role.String(), s.config.SessionID, s.remote, err)
}

func (s *Session) enlarge(b *bytespan.Buffer, proposed int, kind string) *bytespan.Buffer {
	nb := bytespan.Enlarge(b, proposed)
	s.config.Metrics.BufferEnlarged(kind)
	s.config.Logger.Debug("buffer enlarged",
		slog.String("buffer", kind),
		slog.Int("from", b.Cap()),
		slog.Int("to", nb.Cap()))
	return nb
}
