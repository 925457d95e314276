// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package bytespan provides the owned cursor buffer used across mhttp and the
// primitive scans over it.
//
// # Buffers
//
// A Buffer has a fixed capacity and three cursors: position, limit and an
// optional mark. Network reads fill a buffer in write mode, Flip turns it
// into read mode, Compact keeps unread bytes and returns to write mode.
// Growing is never done in place: Enlarge allocates and copies forward.
//
// # Scans
//
//   - ReadLine: up to and including '\n'
//   - ReadUntilToken: up to a token, mark kept for retry
//   - Concatenate: many buffers into one owned buffer
//   - CopyRemaining: owned copy of the unread part
//
// Running out of bytes is the normal "need more data" outcome and is
// reported with ok == false. Errors only come from charset decoding.
package bytespan
