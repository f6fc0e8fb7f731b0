// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ratelimit limits bandwidth of network connections accepted by a listener.
package ratelimit

import (
	"net"

	"golang.org/x/time/rate"
)

const defaultMaxBurstSize = 4 * 1024 * 1024 // Must be bigger than the biggest single read or write.

func newRateLimiter(bandwidth int64) *rate.Limiter {
	if bandwidth <= 0 {
		return nil
	}
	// Use defaultMaxBurstSize up to 2GBit/s (256MiB/s) then scale
	maxBurstSize := bandwidth / 64
	if maxBurstSize < defaultMaxBurstSize {
		maxBurstSize = defaultMaxBurstSize
	}
	return rate.NewLimiter(rate.Limit(bandwidth), int(maxBurstSize))
}

// Listener shares read and write limiters among all accepted connections.
type Listener struct {
	net.Listener
	rxLimiter *rate.Limiter
	txLimiter *rate.Limiter
}

// NewListener wraps l so that accepted connections read at most rxBandwidth
// and write at most txBandwidth bytes per second in total.
// Zero or negative bandwidth disables the limit in that direction.
func NewListener(l net.Listener, rxBandwidth, txBandwidth int64) net.Listener {
	if rxBandwidth <= 0 && txBandwidth <= 0 {
		return l
	}
	return &Listener{
		Listener:  l,
		rxLimiter: newRateLimiter(rxBandwidth),
		txLimiter: newRateLimiter(txBandwidth),
	}
}

func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	return &Conn{
		Conn:      c,
		rxLimiter: l.rxLimiter,
		txLimiter: l.txLimiter,
	}, nil
}
