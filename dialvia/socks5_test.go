// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dialvia

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"testing"
	"time"
)

func TestSOCKS5ProxyDialer(t *testing.T) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		d := SOCKS5Proxy((&net.Dialer{Timeout: 5 * time.Second}).DialContext, &url.URL{Scheme: "socks5", Host: l.Addr().String()})

		donec := make(chan struct{})
		go func() {
			_, err := d.DialContext(ctx, "tcp", "foobar.com:80")
			if !errors.Is(err, context.Canceled) {
				t.Errorf("got %v, want %v", err, context.Canceled)
			}
			close(donec)
		}()

		cancel()
		select {
		case <-time.After(10 * time.Second):
			t.Fatal("timeout")
		case <-donec:
		}
	})

	t.Run("username password", func(t *testing.T) {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			t.Fatal(err)
		}
		defer l.Close()

		errCh := make(chan error, 1)
		go func() {
			errCh <- serveOne(l, func(conn net.Conn) error {
				// Greeting: VER NMETHODS METHODS...
				hdr := make([]byte, 2)
				if _, err := io.ReadFull(conn, hdr); err != nil {
					return err
				}
				methods := make([]byte, hdr[1])
				if _, err := io.ReadFull(conn, methods); err != nil {
					return err
				}
				// Choose username/password authentication.
				if _, err := conn.Write([]byte{0x05, 0x02}); err != nil {
					return err
				}

				// VER ULEN UNAME PLEN PASSWD
				b := make([]byte, 2)
				if _, err := io.ReadFull(conn, b); err != nil {
					return err
				}
				user := make([]byte, b[1])
				if _, err := io.ReadFull(conn, user); err != nil {
					return err
				}
				if _, err := io.ReadFull(conn, b[:1]); err != nil {
					return err
				}
				pass := make([]byte, b[0])
				if _, err := io.ReadFull(conn, pass); err != nil {
					return err
				}
				if string(user) != "alice" || string(pass) != "secret" {
					conn.Write([]byte{0x01, 0x01})
					return errors.New("bad credentials")
				}
				// Report failure, the test only checks the authentication step.
				_, err := conn.Write([]byte{0x01, 0x01})
				return err
			})
		}()

		d := SOCKS5Proxy((&net.Dialer{Timeout: 5 * time.Second}).DialContext, &url.URL{
			Scheme: "socks5",
			Host:   l.Addr().String(),
			User:   url.UserPassword("alice", "secret"),
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := d.DialContext(ctx, "tcp", "foobar.com:80"); err == nil {
			t.Fatal("expected authentication failure")
		}
		if err := <-errCh; err != nil {
			t.Fatal(err)
		}
	})
}
