// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package message reassembles HTTP/1.x messages from network reads and
// exposes them as Request and Response views.
//
// An Assembler receives the buffers of successive reads through
// AcceptChunk. Every buffer is copied, so the caller may reuse its read
// buffer immediately. Completion is judged per read: a read that filled its
// buffer edge to edge means more is coming, a shorter read ends the message.
//
//	asm := message.NewAssembler()
//	for {
//		buf := readFromConn()
//		done, err := asm.AcceptChunk(buf)
//		if err != nil || done {
//			break
//		}
//	}
//	req, err := asm.Request()
//
// The head is parsed once, lazily, on the first Request or Response call.
// Headers keep their order and may repeat. The body is everything after the
// blank line with no length or chunked decoding applied.
package message
