// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package ratelimit

import (
	"context"
	"net"

	"golang.org/x/time/rate"
)

// Conn delays reads and writes so that the limiters are respected.
type Conn struct {
	net.Conn
	rxLimiter *rate.Limiter
	txLimiter *rate.Limiter
}

func (c *Conn) Read(b []byte) (n int, err error) {
	n, err = c.Conn.Read(b)
	if n > 0 && c.rxLimiter != nil {
		c.rxLimiter.WaitN(context.Background(), n) //nolint:errcheck // n is always below burst size
	}
	return
}

func (c *Conn) Write(b []byte) (n int, err error) {
	if c.txLimiter != nil {
		for off := 0; off < len(b); {
			chunk := b[off:]
			if len(chunk) > c.txLimiter.Burst() {
				chunk = chunk[:c.txLimiter.Burst()]
			}
			c.txLimiter.WaitN(context.Background(), len(chunk)) //nolint:errcheck // chunk fits in burst
			m, err := c.Conn.Write(chunk)
			n += m
			if err != nil {
				return n, err
			}
			off += m
		}
		return n, nil
	}
	return c.Conn.Write(b)
}
