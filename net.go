// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saucelabs/localproxy/ratelimit"
)

type DialConfig struct {
	// DialTimeout is the maximum amount of time a dial will wait for
	// connect to complete.
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive period, negative disables keep-alive probes.
	KeepAlive time.Duration

	PromRegistry  prometheus.Registerer
	PromNamespace string
}

func DefaultDialConfig() *DialConfig {
	return &DialConfig{
		DialTimeout:   30 * time.Second,
		KeepAlive:     30 * time.Second,
		PromNamespace: "localproxy",
	}
}

// Dialer dials the upstream proxy and records dial metrics.
type Dialer struct {
	nd      net.Dialer
	metrics *dialerMetrics
}

func NewDialer(cfg *DialConfig) *Dialer {
	return &Dialer{
		nd: net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		},
		metrics: newDialerMetrics(cfg.PromRegistry, cfg.PromNamespace),
	}
}

// DialContext dials address, failures are returned as *UpstreamConnectError.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.nd.DialContext(ctx, network, address)
	if err != nil {
		d.metrics.error()
		return nil, &UpstreamConnectError{Addr: address, Err: err}
	}

	d.metrics.dial()
	return &trackedConn{
		Conn:    conn,
		onClose: d.metrics.close,
	}, nil
}

// trackedConn calls onClose exactly once.
type trackedConn struct {
	net.Conn
	onClose func()
	once    sync.Once
}

func (c *trackedConn) Close() error {
	c.once.Do(c.onClose)
	return c.Conn.Close()
}

// ListenConfig configures the client facing listener.
type ListenConfig struct {
	Address    string
	ReadLimit  int64
	WriteLimit int64
}

// Listen binds the address and applies optional bandwidth limits to accepted connections.
func Listen(ctx context.Context, cfg ListenConfig) (net.Listener, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, err
	}
	return ratelimit.NewListener(l, cfg.ReadLimit, cfg.WriteLimit), nil
}
