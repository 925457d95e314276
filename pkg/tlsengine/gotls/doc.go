// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package gotls implements tlsengine.Engine on top of crypto/tls.
//
// A Context is built once from key and trust stores (PEM or PKCS#12) and
// creates one Engine per connection:
//
//	ctx, err := gotls.NewServerContext("server.pem", "", "ca.pem", "")
//	...
//	sess := tlsengine.NewSession(tlsengine.Config{
//		Role:   ctx.Role(),
//		Policy: ctx.SizingPolicy(),
//	}, ctx.NewEngine(""), conn)
//	if err := sess.Handshake(context.Background()); err != nil { ... }
package gotls
