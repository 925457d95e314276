// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/absmach/mhttp/pkg/handler"
	"github.com/absmach/mhttp/pkg/metrics"
	"github.com/absmach/mhttp/pkg/pool"
	"github.com/absmach/mhttp/pkg/ratelimit"
	"github.com/absmach/mhttp/pkg/tlsengine"
	"github.com/absmach/mhttp/pkg/tlsengine/gotls"
	"github.com/google/uuid"
)

// ErrShutdownTimeout is returned when graceful shutdown exceeds the configured timeout.
var ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

// Config holds the TCP server configuration.
type Config struct {
	// Address is the listen address (host:port)
	Address string

	// TLS enables TLS on every connection when set
	TLS *gotls.Context

	// Executor runs TLS delegated tasks. When nil they run on the connection goroutine.
	Executor *tlsengine.Executor

	// Pool provides message assemblers. A private pool is created when nil.
	Pool *pool.Pool

	// Limiter admits new connections per remote host. Optional.
	Limiter *ratelimit.Limiter

	// ReadBufferSize is the size of plaintext reads when TLS is off.
	ReadBufferSize int

	// ShutdownTimeout is the maximum time to wait for active connections to drain
	// during graceful shutdown. After this timeout, remaining connections are
	// forcefully closed.
	ShutdownTimeout time.Duration

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Logger for server events
	Logger *slog.Logger
}

// Server accepts connections and turns them into request/response
// exchanges with a handler.
type Server struct {
	config  Config
	handler handler.Handler
	wg      sync.WaitGroup
}

// New creates a new TCP server with the given configuration and handler.
func New(cfg Config, h handler.Handler) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 4096
	}
	if cfg.Pool == nil {
		cfg.Pool = pool.New(pool.Config{Metrics: cfg.Metrics})
	}

	return &Server{
		config:  cfg,
		handler: h,
	}
}

// Listen listens on the configured address and serves until ctx is cancelled.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener and blocks until ctx is cancelled.
// It implements graceful shutdown with connection draining.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	address := listener.Addr().String()
	if s.config.TLS != nil {
		s.config.Logger.Info("TLS enabled", slog.String("address", address))
	}
	s.config.Logger.Info("TCP server started", slog.String("address", address))

	// Connections outlive ctx until the drain timeout.
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.config.Logger.Error("failed to accept connection", slog.String("error", err.Error()))
				continue
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if err := s.handleConn(connCtx, conn); err != nil {
					s.config.Logger.Debug("connection handler error",
						slog.String("remote", conn.RemoteAddr().String()),
						slog.String("error", err.Error()))
				}
			}()
		}
	}()

	<-ctx.Done()
	s.config.Logger.Info("shutdown signal received, closing listener")

	if err := listener.Close(); err != nil {
		s.config.Logger.Error("error closing listener", slog.String("error", err.Error()))
	}
	<-acceptDone

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Logger.Info("all connections closed gracefully")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		s.config.Logger.Warn("shutdown timeout exceeded, forcing connection closure")
		connCancel()
		select {
		case <-done:
		case <-time.After(1 * time.Second):
		}
		return ErrShutdownTimeout
	}
}

func (s *Server) transport() string {
	if s.config.TLS != nil {
		return "tls"
	}
	return "tcp"
}

// handleConn admits the connection, runs the TLS handshake when enabled and
// then serves messages until the peer closes or an error occurs.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) error {
	remote := conn.RemoteAddr().String()
	if s.config.Limiter != nil && !s.config.Limiter.Allow(remote) {
		s.config.Metrics.ConnectionLimited("host")
		conn.Close()
		return fmt.Errorf("%w: %s", ratelimit.ErrRateLimitExceeded, remote)
	}

	// Unblocks pending reads on forced shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	return s.config.Metrics.ObserveConnection(s.transport(), func() error {
		return s.serveConn(ctx, conn)
	})
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	hctx := &handler.Context{
		SessionID:  uuid.New().String(),
		RemoteAddr: conn.RemoteAddr().String(),
		Secure:     s.config.TLS != nil,
	}
	logger := s.config.Logger.With(slog.String("session", hctx.SessionID))

	mc, err := s.open(ctx, conn, hctx, logger)
	if err != nil {
		conn.Close()
		return err
	}
	defer func() {
		if err := mc.close(context.Background()); err != nil {
			logger.Debug("close failed", slog.String("error", err.Error()))
		}
	}()

	if err := s.handler.OnConnect(ctx, hctx); err != nil {
		return fmt.Errorf("connection rejected: %w", err)
	}
	defer func() {
		if err := s.handler.OnDisconnect(context.Background(), hctx); err != nil {
			logger.Error("disconnect handler error", slog.String("error", err.Error()))
		}
	}()

	logger.Debug("connection established", slog.String("client", hctx.RemoteAddr))
	err = s.exchange(ctx, mc, hctx, logger)
	logger.Debug("connection closed")
	return err
}

// open wraps conn in the plaintext or TLS message transport.
func (s *Server) open(ctx context.Context, conn net.Conn, hctx *handler.Context, logger *slog.Logger) (messageConn, error) {
	if s.config.TLS == nil {
		return &plainConn{conn: conn, size: s.config.ReadBufferSize}, nil
	}

	engine := s.config.TLS.NewEngine("")
	sess := tlsengine.NewSession(tlsengine.Config{
		Role:      tlsengine.Server,
		Executor:  s.config.Executor,
		Policy:    s.config.TLS.SizingPolicy(),
		SessionID: hctx.SessionID,
		Logger:    logger,
		Metrics:   s.config.Metrics,
	}, engine, conn)
	if err := sess.Handshake(ctx); err != nil {
		return nil, err
	}
	if certs := engine.ConnectionState().PeerCertificates; len(certs) > 0 {
		hctx.Cert = certs[0]
	}
	return &tlsConn{sess: sess}, nil
}

// wantsClose reports whether the request asked to end the connection.
func wantsClose(value string, ok bool) bool {
	return ok && strings.EqualFold(strings.TrimSpace(value), "close")
}
