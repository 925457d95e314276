// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gotls

import (
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/absmach/mhttp/pkg/tlsengine"
)

// Context is a factory of engines sharing one TLS configuration and role.
type Context struct {
	config *tls.Config
	role   tlsengine.Role

	sizing    sync.Once
	sizeHints tlsengine.SizingPolicy
}

// NewServerContext loads the server identity from keystoreFile and, when
// truststoreFile is set, the authorities accepted for client certificates.
// Clients may still connect without a certificate.
func NewServerContext(keystoreFile, keystorePassword, truststoreFile, truststorePassword string) (*Context, error) {
	cert, err := LoadKeyPair(keystoreFile, keystorePassword)
	if err != nil {
		return nil, fmt.Errorf("load server key store: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if truststoreFile != "" {
		pool, err := LoadTrustPool(truststoreFile, truststorePassword)
		if err != nil {
			return nil, fmt.Errorf("load server trust store: %w", err)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return &Context{config: cfg, role: tlsengine.Server}, nil
}

// NewServerContextFromConfig uses cfg as is for server engines.
func NewServerContextFromConfig(cfg *tls.Config) *Context {
	return &Context{config: cfg.Clone(), role: tlsengine.Server}
}

// NewClientContext creates client engines from cfg. A nil cfg verifies the
// server against the system roots.
func NewClientContext(cfg *tls.Config) *Context {
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &Context{config: cfg.Clone(), role: tlsengine.Client}
}

// Role of the engines this context creates.
func (c *Context) Role() tlsengine.Role { return c.role }

// NewEngine starts a new engine. serverName sets the name a client verifies
// and sends as SNI when the configuration does not already set one; servers
// ignore it.
func (c *Context) NewEngine(serverName string) *Engine {
	cfg := c.config
	if c.role == tlsengine.Client && cfg.ServerName == "" && serverName != "" {
		cfg = cfg.Clone()
		cfg.ServerName = serverName
	}
	return newEngine(cfg, c.role)
}

// SizingPolicy returns the buffer size hints reported by a probe engine
// from this context. The probe is created once and closed right away.
func (c *Context) SizingPolicy() tlsengine.SizingPolicy {
	c.sizing.Do(func() {
		probe := newEngine(c.config, c.role)
		defer probe.CloseOutbound()
		c.sizeHints = tlsengine.SizingPolicy{
			ApplicationBufferSize: probe.ApplicationBufferSize(),
			PacketBufferSize:      probe.PacketBufferSize(),
		}
	})
	return c.sizeHints
}
