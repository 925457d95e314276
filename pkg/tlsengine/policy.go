// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tlsengine

// SizingPolicy holds the buffer size hints used to allocate new buffers.
// Each Session owns its own copy and only ever grows it.
type SizingPolicy struct {
	ApplicationBufferSize int
	PacketBufferSize      int
}

// DefaultSizingPolicy fits one maximum TLS record.
var DefaultSizingPolicy = SizingPolicy{
	ApplicationBufferSize: 16 * 1024,
	PacketBufferSize:      16*1024 + 5 + 2048,
}

// Refresh raises the hints to the values e currently reports.
func (p *SizingPolicy) Refresh(e Engine) {
	if n := e.ApplicationBufferSize(); n > p.ApplicationBufferSize {
		p.ApplicationBufferSize = n
	}
	if n := e.PacketBufferSize(); n > p.PacketBufferSize {
		p.PacketBufferSize = n
	}
}

func (p SizingPolicy) withDefaults() SizingPolicy {
	if p.ApplicationBufferSize <= 0 {
		p.ApplicationBufferSize = DefaultSizingPolicy.ApplicationBufferSize
	}
	if p.PacketBufferSize <= 0 {
		p.PacketBufferSize = DefaultSizingPolicy.PacketBufferSize
	}
	return p
}
