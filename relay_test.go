// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

type closeRecorder struct {
	net.Conn
	closed atomic.Int32
}

func (c *closeRecorder) Close() error {
	c.closed.Add(1)
	return c.Conn.Close()
}

type failingWriteConn struct {
	net.Conn
	err error
}

func (c *failingWriteConn) Write(_ []byte) (int, error) {
	return 0, c.err
}

// relayPipes returns the browser and server ends and the conns passed to Relay.
func relayPipes() (browser, server net.Conn, client, upstream *closeRecorder) {
	browser, c := net.Pipe()
	u, server := net.Pipe()
	return browser, server, &closeRecorder{Conn: c}, &closeRecorder{Conn: u}
}

func runRelay(ctx context.Context, client, upstream net.Conn, cfg RelayConfig) <-chan RelayStats {
	ch := make(chan RelayStats, 1)
	go func() {
		ch <- Relay(ctx, client, upstream, cfg)
	}()
	return ch
}

func waitStats(t *testing.T, ch <-chan RelayStats) RelayStats {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(10 * time.Second):
		t.Fatal("relay did not finish")
	}
	return RelayStats{}
}

func assertClosedOnce(t *testing.T, conns ...*closeRecorder) {
	t.Helper()
	for i, c := range conns {
		if n := c.closed.Load(); n != 1 {
			t.Errorf("conn %d closed %d times, want 1", i, n)
		}
	}
}

func TestRelayForwardsBytesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	browser, server, client, upstream := relayPipes()
	defer server.Close()

	req := make([]byte, 10_000)
	res := make([]byte, 10_000)
	rand.Read(req)
	rand.Read(res)

	statsCh := runRelay(context.Background(), client, upstream, DefaultRelayConfig())

	expectRead := func(c net.Conn, want []byte) func() error {
		return func() error {
			got := make([]byte, len(want))
			if _, err := io.ReadFull(c, got); err != nil {
				return err
			}
			if !bytes.Equal(got, want) {
				return errors.New("data mismatch")
			}
			return nil
		}
	}

	var eg errgroup.Group
	eg.Go(func() error {
		_, err := browser.Write(req)
		return err
	})
	eg.Go(expectRead(server, req))
	eg.Go(func() error {
		_, err := server.Write(res)
		return err
	})
	eg.Go(expectRead(browser, res))
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}

	browser.Close()

	s := waitStats(t, statsCh)
	if s.Reason != ClientClosed {
		t.Fatalf("reason=%s, want %s", s.Reason, ClientClosed)
	}
	if s.ClientToUpstream != int64(len(req)) || s.UpstreamToClient != int64(len(res)) {
		t.Fatalf("unexpected byte counts %+v", s)
	}
	assertClosedOnce(t, client, upstream)
}

func TestRelayUpstreamClosed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	browser, server, client, upstream := relayPipes()
	defer browser.Close()

	statsCh := runRelay(context.Background(), client, upstream, DefaultRelayConfig())

	if _, err := server.Write([]byte("bye")); err != nil {
		t.Fatal(err)
	}
	go io.Copy(io.Discard, browser) //nolint:errcheck // drained until relay closes the client
	server.Close()

	s := waitStats(t, statsCh)
	if s.Reason != UpstreamClosed {
		t.Fatalf("reason=%s, want %s", s.Reason, UpstreamClosed)
	}
	if s.UpstreamToClient != 3 {
		t.Fatalf("upstream to client=%d, want 3", s.UpstreamToClient)
	}
	assertClosedOnce(t, client, upstream)
}

func TestRelayIdleTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	browser, server, client, upstream := relayPipes()
	defer browser.Close()
	defer server.Close()

	const idle = 100 * time.Millisecond
	start := time.Now()
	s := waitStats(t, runRelay(context.Background(), client, upstream, RelayConfig{IdleTimeout: idle}))
	elapsed := time.Since(start)

	if s.Reason != IdleTimeout {
		t.Fatalf("reason=%s, want %s", s.Reason, IdleTimeout)
	}
	if elapsed < idle || elapsed > idle+2*time.Second {
		t.Fatalf("relay closed after %s, want about %s", elapsed, idle)
	}
	assertClosedOnce(t, client, upstream)
}

func TestRelayActivityResetsIdleTimer(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	browser, server, client, upstream := relayPipes()
	defer browser.Close()
	defer server.Close()

	const idle = 300 * time.Millisecond
	statsCh := runRelay(context.Background(), client, upstream, RelayConfig{IdleTimeout: idle})

	go io.Copy(io.Discard, server) //nolint:errcheck // drained until relay closes the upstream

	// Keep the tunnel busy for longer than the idle timeout.
	for i := 0; i < 10; i++ {
		if _, err := fmt.Fprintf(browser, "ping %d\n", i); err != nil {
			t.Fatal(err)
		}
		time.Sleep(idle / 4)
	}
	select {
	case s := <-statsCh:
		t.Fatalf("relay closed while active: %+v", s)
	default:
	}

	s := waitStats(t, statsCh)
	if s.Reason != IdleTimeout {
		t.Fatalf("reason=%s, want %s", s.Reason, IdleTimeout)
	}
	if s.Duration < 10*idle/4 {
		t.Fatalf("relay duration %s is shorter than the activity period", s.Duration)
	}
}

func TestRelayCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	browser, server, client, upstream := relayPipes()
	defer browser.Close()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	statsCh := runRelay(ctx, client, upstream, DefaultRelayConfig())
	cancel()

	s := waitStats(t, statsCh)
	if s.Reason != RelayCanceled {
		t.Fatalf("reason=%s, want %s", s.Reason, RelayCanceled)
	}
	assertClosedOnce(t, client, upstream)
}

func TestRelayWriteError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	browser, server, client, upstream := relayPipes()
	defer browser.Close()
	defer server.Close()

	boom := errors.New("boom")
	failing := &closeRecorder{Conn: &failingWriteConn{Conn: upstream, err: boom}}
	statsCh := runRelay(context.Background(), client, failing, DefaultRelayConfig())

	if _, err := browser.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	s := waitStats(t, statsCh)
	if s.Reason != RelayError {
		t.Fatalf("reason=%s, want %s", s.Reason, RelayError)
	}
	if !errors.Is(s.Err, boom) {
		t.Fatalf("err=%v, want %v", s.Err, boom)
	}
	assertClosedOnce(t, client, failing)
}
