// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package netutil provides net.Conn wrappers shared by the proxy and the dialers.
package netutil

import (
	"bufio"
	"net"
	"time"
)

// BufferedConn is a net.Conn that first returns the data buffered in a bufio.Reader.
// It is used after a protocol handshake that may have read past the message boundary.
type BufferedConn struct {
	net.Conn
	r *bufio.Reader
}

// NewBufferedConn returns conn unchanged if br has no buffered data.
func NewBufferedConn(conn net.Conn, br *bufio.Reader) net.Conn {
	if br == nil || br.Buffered() == 0 {
		return conn
	}
	return &BufferedConn{Conn: conn, r: br}
}

func (c *BufferedConn) Read(p []byte) (int, error) {
	if c.r != nil {
		if c.r.Buffered() > 0 {
			return c.r.Read(p)
		}
		c.r = nil
	}
	return c.Conn.Read(p)
}

// IdleTimeoutConn extends the read or write deadline before every read or write.
// A zero timeout leaves deadlines untouched.
type IdleTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func NewIdleTimeoutConn(conn net.Conn, timeout time.Duration) *IdleTimeoutConn {
	return &IdleTimeoutConn{Conn: conn, timeout: timeout}
}

// SetIdleTimeout must not be called concurrently with Read or Write.
func (c *IdleTimeoutConn) SetIdleTimeout(d time.Duration) {
	c.timeout = d
}

func (c *IdleTimeoutConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *IdleTimeoutConn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
