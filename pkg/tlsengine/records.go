// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tlsengine

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/absmach/mhttp/pkg/bytespan"
	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/metrics"
)

// WrapAll encrypts every plaintext buffer into its own record buffer, in
// read mode and ready to be written to the transport. Inputs are drained.
//
// When the engine reports Closed the session is closed and the call returns
// ErrConnectionClosed without any records.
func (s *Session) WrapAll(ctx context.Context, plaintext ...*bytespan.Buffer) ([]*bytespan.Buffer, error) {
	if s.closed {
		return nil, mherrors.ErrConnectionClosed
	}
	records := make([]*bytespan.Buffer, 0, len(plaintext))
	for _, src := range plaintext {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dst := bytespan.Allocate(s.policy.PacketBufferSize)
		consumed := 0

	wrap:
		for {
			res, err := s.engine.Wrap(src, dst)
			if err != nil {
				s.config.Logger.Error("engine failed to wrap application data", slog.String("error", err.Error()))
				s.abort()
				return nil, s.wrapErr("wrap", mherrors.Mark(mherrors.ErrTLSRecordFault, err))
			}
			consumed += res.Consumed

			switch res.Status {
			case OK:
				if !src.HasRemaining() {
					break wrap
				}
				if res.Consumed == 0 && res.Produced == 0 {
					s.abort()
					return nil, s.wrapErr("wrap", mherrors.Mark(mherrors.ErrProtocolInvariantViolation, errors.New("wrap made no progress")))
				}
			case Overflow:
				s.policy.Refresh(s.engine)
				dst = s.enlarge(dst, s.engine.PacketBufferSize(), metrics.BufferWrapOutput)
			case Underflow:
				s.abort()
				return nil, s.wrapErr("wrap", mherrors.Mark(mherrors.ErrProtocolInvariantViolation, errors.New("buffer underflow after wrap")))
			case Closed:
				if err := s.Close(ctx); err != nil {
					s.config.Logger.Debug("close after wrap failed", slog.String("error", err.Error()))
				}
				return nil, mherrors.ErrConnectionClosed
			}
		}

		dst.Flip()
		records = append(records, dst)
		s.config.Metrics.ObserveRecord("wrap", consumed)
	}
	return records, nil
}

// UnwrapOne decrypts from ciphertext, which is in read mode and advanced
// past what the engine consumed. The returned buffer is in read mode and
// empty when more ciphertext is needed. Its capacity is the plaintext
// staging capacity, so a record that filled the staging area reads as a
// full buffer.
//
// When the peer has closed the session is closed and the call returns
// ErrConnectionClosed.
func (s *Session) UnwrapOne(ctx context.Context, ciphertext *bytespan.Buffer) (*bytespan.Buffer, error) {
	if s.closed {
		return nil, mherrors.ErrConnectionClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.engine.Unwrap(ciphertext, s.inApp)
		if err != nil {
			s.config.Logger.Error("rejected inbound record", slog.String("error", err.Error()))
			s.abort()
			return nil, s.wrapErr("unwrap", mherrors.Mark(mherrors.ErrTLSRecordFault, err))
		}

		switch res.Status {
		case OK:
			s.inApp.Flip()
			plain := bytespan.Allocate(s.inApp.Cap())
			plain.Put(s.inApp.Bytes())
			plain.Flip()
			s.inApp.Clear()
			s.config.Metrics.ObserveRecord("unwrap", plain.Remaining())
			return plain, nil
		case Overflow:
			s.policy.Refresh(s.engine)
			s.inApp = s.enlarge(s.inApp, s.engine.ApplicationBufferSize(), metrics.BufferInboundApp)
		case Underflow:
			return bytespan.Wrap(nil), nil
		case Closed:
			if err := s.Close(ctx); err != nil {
				s.config.Logger.Debug("close after unwrap failed", slog.String("error", err.Error()))
			}
			return nil, mherrors.ErrConnectionClosed
		default:
			s.abort()
			return nil, s.wrapErr("unwrap", mherrors.Mark(mherrors.ErrProtocolInvariantViolation, errors.New("unknown unwrap status "+res.Status.String())))
		}
	}
}

// Read returns the next non-empty plaintext buffer, reading records from
// the transport as needed. Records already buffered by the engine are
// delivered before the transport is read again.
func (s *Session) Read(ctx context.Context) (*bytespan.Buffer, error) {
	for {
		s.inRecord.Flip()
		before := s.inRecord.Remaining()
		plain, err := s.UnwrapOne(ctx, s.inRecord)
		progressed := s.inRecord.Remaining() < before
		s.inRecord.Compact()
		if err != nil {
			return nil, err
		}
		if plain.HasRemaining() {
			return plain, nil
		}
		if progressed && s.inRecord.Position() > 0 {
			continue
		}

		if !s.inRecord.HasRemaining() || s.inRecord.Cap() < s.engine.PacketBufferSize() {
			s.inRecord = s.enlarge(s.inRecord, s.engine.PacketBufferSize(), metrics.BufferInboundRecord)
		}
		if _, err := s.inRecord.FillFrom(s.transport); err != nil {
			if !errors.Is(err, io.EOF) {
				s.abort()
				return nil, s.wrapErr("read", err)
			}
			if err := s.engine.CloseInbound(); err != nil {
				s.config.Logger.Warn("end of stream without close notification, forcing inbound close",
					slog.String("error", err.Error()))
			}
			if err := s.Close(ctx); err != nil {
				s.config.Logger.Debug("close after end of stream failed", slog.String("error", err.Error()))
			}
			return nil, mherrors.ErrConnectionClosed
		}
	}
}

// Write wraps the plaintext buffers and writes every record to the transport.
func (s *Session) Write(ctx context.Context, plaintext ...*bytespan.Buffer) error {
	records, err := s.WrapAll(ctx, plaintext...)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := rec.DrainTo(s.transport); err != nil {
			s.abort()
			return s.wrapErr("write", err)
		}
	}
	return nil
}
