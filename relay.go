// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// CloseReason tells why a relay ended.
type CloseReason string

const (
	ClientClosed   CloseReason = "client_closed"
	UpstreamClosed CloseReason = "upstream_closed"
	IdleTimeout    CloseReason = "idle"
	RelayError     CloseReason = "error"
	RelayCanceled  CloseReason = "canceled"
)

const defaultRelayBufferSize = 8 * 1024

type RelayConfig struct {
	// IdleTimeout closes the relay when no data flows in either direction.
	// Zero disables the timeout.
	IdleTimeout time.Duration

	// BufferSize is the maximum chunk size copied in one read.
	BufferSize int
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		IdleTimeout: 60 * time.Second,
		BufferSize:  defaultRelayBufferSize,
	}
}

// RelayStats describes a finished relay.
type RelayStats struct {
	ClientToUpstream int64
	UpstreamToClient int64
	Duration         time.Duration
	Reason           CloseReason
	// Err is set when Reason is RelayError.
	Err error
}

var relayBufPool = sync.Pool{ //nolint:gochecknoglobals // shared buffers
	New: func() any {
		b := make([]byte, defaultRelayBufferSize)
		return &b
	},
}

func getRelayBuf(size int) (buf []byte, put func()) {
	if size != defaultRelayBufferSize {
		return make([]byte, size), func() {}
	}
	bp := relayBufPool.Get().(*[]byte) //nolint:forcetypeassert // pool only holds *[]byte
	return *bp, func() { relayBufPool.Put(bp) }
}

// Relay copies bytes between client and upstream in both directions until one side closes,
// an error occurs, the idle timeout fires or ctx is canceled.
// Bytes are forwarded in order, unmodified.
// Both connections are closed when Relay returns.
func Relay(ctx context.Context, client, upstream net.Conn, cfg RelayConfig) RelayStats {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultRelayBufferSize
	}

	start := time.Now()

	var (
		once   sync.Once
		reason CloseReason
		rerr   error
	)
	finish := func(r CloseReason, err error) {
		once.Do(func() {
			reason, rerr = r, err
			client.Close()
			upstream.Close()
		})
	}

	touch := func() {}
	if cfg.IdleTimeout > 0 {
		it := newIdleTimer(cfg.IdleTimeout, func() { finish(IdleTimeout, nil) })
		defer it.stop()
		touch = it.reset
	}

	stop := context.AfterFunc(ctx, func() { finish(RelayCanceled, nil) })
	defer stop()

	var (
		wg     sync.WaitGroup
		c2u    int64
		u2c    int64
		c2uErr error
		u2cErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		var eof bool
		c2u, eof, c2uErr = copyChunks(upstream, client, cfg.BufferSize, touch)
		if eof {
			finish(ClientClosed, nil)
		} else {
			finish(RelayError, c2uErr)
		}
	}()
	go func() {
		defer wg.Done()
		var eof bool
		u2c, eof, u2cErr = copyChunks(client, upstream, cfg.BufferSize, touch)
		if eof {
			finish(UpstreamClosed, nil)
		} else {
			finish(RelayError, u2cErr)
		}
	}()
	wg.Wait()

	return RelayStats{
		ClientToUpstream: c2u,
		UpstreamToClient: u2c,
		Duration:         time.Since(start),
		Reason:           reason,
		Err:              rerr,
	}
}

// copyChunks copies src to dst one read at a time and calls touch after every chunk.
// It returns eof=true when src reached EOF.
func copyChunks(dst io.Writer, src io.Reader, size int, touch func()) (n int64, eof bool, err error) {
	buf, put := getRelayBuf(size)
	defer put()

	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			touch()
			nw, werr := dst.Write(buf[:nr])
			n += int64(nw)
			if werr != nil {
				return n, false, werr
			}
			if nw != nr {
				return n, false, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return n, true, nil
			}
			return n, false, rerr
		}
	}
}

// idleTimer is shared by both copy directions, activity in either one resets it.
type idleTimer struct {
	mu sync.Mutex
	t  *time.Timer
	d  time.Duration
}

func newIdleTimer(d time.Duration, f func()) *idleTimer {
	return &idleTimer{
		t: time.AfterFunc(d, f),
		d: d,
	}
}

func (it *idleTimer) reset() {
	it.mu.Lock()
	it.t.Reset(it.d)
	it.mu.Unlock()
}

func (it *idleTimer) stop() {
	it.mu.Lock()
	it.t.Stop()
	it.mu.Unlock()
}
