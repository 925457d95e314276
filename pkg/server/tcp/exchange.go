// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/absmach/mhttp/pkg/bytespan"
	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/handler"
	"github.com/absmach/mhttp/pkg/message"
	"github.com/absmach/mhttp/pkg/status"
	"github.com/absmach/mhttp/pkg/tlsengine"
)

// messageConn reads plaintext chunks and writes whole messages.
type messageConn interface {
	read(ctx context.Context) (*bytespan.Buffer, error)
	write(ctx context.Context, msg []byte) error
	close(ctx context.Context) error
}

type plainConn struct {
	conn net.Conn
	size int
}

func (c *plainConn) read(context.Context) (*bytespan.Buffer, error) {
	b := bytespan.Allocate(c.size)
	n, err := b.FillFrom(c.conn)
	if n == 0 && err != nil {
		if errors.Is(err, io.EOF) {
			return nil, mherrors.ErrConnectionClosed
		}
		return nil, err
	}
	b.Flip()
	return b, nil
}

func (c *plainConn) write(_ context.Context, msg []byte) error {
	_, err := bytespan.Wrap(msg).DrainTo(c.conn)
	return err
}

func (c *plainConn) close(context.Context) error {
	return c.conn.Close()
}

type tlsConn struct {
	sess *tlsengine.Session
}

func (c *tlsConn) read(ctx context.Context) (*bytespan.Buffer, error) {
	return c.sess.Read(ctx)
}

func (c *tlsConn) write(ctx context.Context, msg []byte) error {
	return c.sess.Write(ctx, bytespan.Wrap(msg))
}

func (c *tlsConn) close(ctx context.Context) error {
	return c.sess.Close(ctx)
}

// endOfInput is an empty read that marks the message complete.
func endOfInput() *bytespan.Buffer {
	b := bytespan.Allocate(1)
	b.Flip()
	return b
}

// exchange serves one message at a time until the peer closes.
func (s *Server) exchange(ctx context.Context, mc messageConn, hctx *handler.Context, logger *slog.Logger) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		a, err := s.config.Pool.Get(ctx)
		if err != nil {
			return err
		}
		resp, keep, err := s.serveOne(ctx, mc, a, hctx, logger)
		s.config.Pool.Put(a)
		if err != nil {
			if errors.Is(err, mherrors.ErrConnectionClosed) {
				return nil
			}
			return err
		}
		if resp == nil {
			return nil
		}
		if err := mc.write(ctx, resp.Bytes()); err != nil {
			return err
		}
		if !keep {
			return nil
		}
	}
}

// serveOne assembles one request and asks the handler for its response.
// keep is false when the connection must end after the response.
func (s *Server) serveOne(ctx context.Context, mc messageConn, a *message.Assembler, hctx *handler.Context, logger *slog.Logger) (resp *message.Response, keep bool, err error) {
	for complete := false; !complete; {
		chunk, err := mc.read(ctx)
		if err != nil {
			if !errors.Is(err, mherrors.ErrConnectionClosed) || a.Len() == 0 {
				return nil, false, err
			}
			// The peer stopped sending; what we have is the message.
			chunk = endOfInput()
		}
		if complete, err = a.AcceptChunk(chunk); err != nil {
			return nil, false, err
		}
	}

	req, err := a.Request()
	s.config.Metrics.ObserveMessage("request", a.Len(), err)
	if err != nil {
		logger.Debug("malformed request", slog.String("error", err.Error()))
		return handler.Text(status.BadRequest, status.BadRequest.Reason), false, nil
	}
	if hctx.Secure {
		req.Scheme = "https"
	}
	hctx.Params = nil

	resp, err = s.handler.ServeMessage(ctx, hctx, req)
	if err != nil {
		logger.Error("handler failed", slog.String("method", req.Method), slog.String("path", req.Path), slog.String("error", err.Error()))
		return handler.Text(status.InternalServerError, status.InternalServerError.Reason), false, nil
	}
	if resp == nil {
		return nil, false, nil
	}
	s.config.Metrics.ObserveMessage("response", len(resp.Body), nil)
	return resp, !wantsClose(req.Headers.Get("Connection")), nil
}
