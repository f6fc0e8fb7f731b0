// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package ratelimit

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestNewListenerNoLimits(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if got := NewListener(l, 0, 0); got != l {
		t.Fatal("expected listener to be returned unchanged")
	}
}

func TestListenerLimitsWrite(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	rl := NewListener(l, 0, 1024*1024)
	defer rl.Close()

	go func() {
		c, err := rl.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		if _, ok := c.(*Conn); !ok {
			t.Errorf("expected *Conn, got %T", c)
		}
		c.Write(make([]byte, 64*1024)) //nolint:errcheck // read side checks the size
	}()

	c, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))

	n, err := io.Copy(io.Discard, c)
	if err != nil {
		t.Fatal(err)
	}
	if n != 64*1024 {
		t.Fatalf("expected %d bytes, got %d", 64*1024, n)
	}
}
