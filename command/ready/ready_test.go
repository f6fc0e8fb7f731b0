// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package ready

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestReady(t *testing.T) {
	var ready atomic.Bool
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/readyz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer s.Close()

	run := func() error {
		cmd := Command()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs([]string{"--api-address", strings.TrimPrefix(s.URL, "http://")})
		return cmd.Execute()
	}

	if err := run(); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected unexpected status code error, got %v", err)
	}

	ready.Store(true)
	if err := run(); err != nil {
		t.Fatal(err)
	}
}

func TestReadyInvalidAddress(t *testing.T) {
	cmd := Command()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--api-address", "localhost"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error")
	}
}
