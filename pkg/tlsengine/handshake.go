// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tlsengine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	mherrors "github.com/absmach/mhttp/pkg/errors"
	"github.com/absmach/mhttp/pkg/metrics"
)

// Handshake drives the engine until the handshake is finished. On failure
// the transport is closed and the error matches ErrTLSHandshakeFailure.
func (s *Session) Handshake(ctx context.Context) error {
	if s.closed {
		return mherrors.ErrConnectionClosed
	}
	start := time.Now()
	s.config.Logger.Debug("TLS handshake started", slog.String("remote", s.remote))

	err := s.drive(ctx)
	if err == nil && (s.engine.IsInboundDone() || s.engine.IsOutboundDone()) {
		err = errors.New("connection closed during handshake")
	}
	s.policy.Refresh(s.engine)
	s.config.Metrics.ObserveHandshake(s.config.Role.String(), start, err)
	if err != nil {
		s.abort()
		if !errors.Is(err, mherrors.ErrTLSHandshakeFailure) {
			err = mherrors.Mark(mherrors.ErrTLSHandshakeFailure, err)
		}
		return s.wrapErr("handshake", err)
	}

	s.config.Logger.Debug("TLS handshake finished", slog.Duration("duration", time.Since(start)))
	return nil
}

// drive runs the handshake state machine until the engine reports Finished
// or NotHandshaking. A rejected record forces an outbound close; the
// resulting close exchange is still driven and the fault is returned at the end.
func (s *Session) drive(ctx context.Context) error {
	var fault error
	skipRead := false
	hs := s.engine.HandshakeStatus()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch hs {
		case Finished, NotHandshaking:
			return fault

		case NeedUnwrap:
			if !skipRead {
				if !s.inRecord.HasRemaining() {
					s.inRecord = s.enlarge(s.inRecord, s.engine.PacketBufferSize(), metrics.BufferInboundRecord)
				}
				if _, err := s.inRecord.FillFrom(s.transport); err != nil {
					if !errors.Is(err, io.EOF) {
						return mherrors.Mark(mherrors.ErrTLSHandshakeFailure, err)
					}
					if s.engine.IsInboundDone() && s.engine.IsOutboundDone() {
						return firstErr(fault, mherrors.ErrTLSHandshakeFailure)
					}
					if err := s.engine.CloseInbound(); err != nil {
						s.config.Logger.Warn("end of stream without close notification, forcing inbound close",
							slog.String("error", err.Error()))
					}
					s.engine.CloseOutbound()
					hs = s.engine.HandshakeStatus()
					continue
				}
			}
			skipRead = false

			s.inRecord.Flip()
			res, err := s.engine.Unwrap(s.inRecord, s.inApp)
			s.inRecord.Compact()
			if err != nil {
				s.config.Logger.Error("rejected inbound record, closing outbound", slog.String("error", err.Error()))
				fault = mherrors.Mark(mherrors.ErrTLSRecordFault, err)
				s.engine.CloseOutbound()
				hs = s.engine.HandshakeStatus()
				continue
			}

			switch res.Status {
			case OK:
				// Leftover bytes may already hold the next record.
				skipRead = res.Consumed > 0 && s.inRecord.Position() > 0
				hs = res.HandshakeStatus
			case Overflow:
				s.inApp = s.enlarge(s.inApp, s.engine.ApplicationBufferSize(), metrics.BufferInboundApp)
				skipRead = true
				hs = s.engine.HandshakeStatus()
			case Underflow:
				if s.inRecord.Cap() < s.engine.PacketBufferSize() {
					s.inRecord = s.enlarge(s.inRecord, s.engine.PacketBufferSize(), metrics.BufferInboundRecord)
				}
				hs = s.engine.HandshakeStatus()
			case Closed:
				if s.engine.IsOutboundDone() {
					return firstErr(fault, mherrors.ErrTLSHandshakeFailure)
				}
				s.engine.CloseOutbound()
				hs = s.engine.HandshakeStatus()
			default:
				return mherrors.Mark(mherrors.ErrProtocolInvariantViolation, errors.New("unknown unwrap status "+res.Status.String()))
			}

		case NeedWrap:
			s.outRecord.Clear()
			res, err := s.engine.Wrap(s.outApp, s.outRecord)
			if err != nil {
				s.config.Logger.Error("engine failed to produce record, closing outbound", slog.String("error", err.Error()))
				fault = mherrors.Mark(mherrors.ErrTLSRecordFault, err)
				s.engine.CloseOutbound()
				hs = s.engine.HandshakeStatus()
				continue
			}

			switch res.Status {
			case OK:
				s.outRecord.Flip()
				if _, err := s.outRecord.DrainTo(s.transport); err != nil {
					return mherrors.Mark(mherrors.ErrTLSHandshakeFailure, err)
				}
				hs = res.HandshakeStatus
			case Overflow:
				s.outRecord = s.enlarge(s.outRecord, s.engine.PacketBufferSize(), metrics.BufferOutboundRecord)
				hs = s.engine.HandshakeStatus()
			case Underflow:
				return mherrors.Mark(mherrors.ErrProtocolInvariantViolation, errors.New("buffer underflow after wrap"))
			case Closed:
				s.outRecord.Flip()
				if _, err := s.outRecord.DrainTo(s.transport); err != nil {
					s.config.Logger.Error("failed to send close notification", slog.String("error", err.Error()))
				}
				s.inRecord.Clear()
				hs = s.engine.HandshakeStatus()
			default:
				return mherrors.Mark(mherrors.ErrProtocolInvariantViolation, errors.New("unknown wrap status "+res.Status.String()))
			}

		case NeedTask:
			var tasks []func()
			for task := s.engine.DelegatedTask(); task != nil; task = s.engine.DelegatedTask() {
				tasks = append(tasks, task)
			}
			if err := s.runTasks(ctx, tasks); err != nil {
				return err
			}
			hs = s.engine.HandshakeStatus()

		default:
			return mherrors.Mark(mherrors.ErrProtocolInvariantViolation, errors.New("unknown handshake status "+hs.String()))
		}
	}
}

func (s *Session) runTasks(ctx context.Context, tasks []func()) error {
	if len(tasks) == 0 {
		return nil
	}
	defer s.config.Metrics.TasksRun(len(tasks))
	if s.config.Executor == nil {
		for _, task := range tasks {
			task()
		}
		return nil
	}
	return s.config.Executor.Run(ctx, tasks...)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
