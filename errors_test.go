// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/saucelabs/localproxy/dialvia"
)

func TestClassifyError(t *testing.T) {
	timeout := &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := []struct {
		name  string
		err   error
		code  int
		label string
	}{
		{
			name:  "bad request",
			err:   badRequest("bad_request_uri", "bad uri"),
			code:  http.StatusBadRequest,
			label: "bad_request_uri",
		},
		{
			name:  "connect refused",
			err:   &UpstreamConnectError{Addr: "proxy:8080", Err: refused},
			code:  http.StatusBadGateway,
			label: "upstream_connect",
		},
		{
			name:  "connect timeout",
			err:   &UpstreamConnectError{Addr: "proxy:8080", Err: timeout},
			code:  http.StatusBadGateway,
			label: "upstream_connect_timeout",
		},
		{
			name:  "wrapped connect",
			err:   fmt.Errorf("proxyconnect: %w", &UpstreamConnectError{Addr: "proxy:8080", Err: refused}),
			code:  http.StatusBadGateway,
			label: "upstream_connect",
		},
		{
			name:  "upstream status",
			err:   wrapTunnelError(&dialvia.StatusError{Proto: "HTTP/1.1", Status: "407 Proxy Authentication Required", StatusCode: 407}),
			code:  http.StatusBadGateway,
			label: "upstream_status_407",
		},
		{
			name:  "upstream protocol",
			err:   &UpstreamProtocolError{Err: errors.New("malformed HTTP response")},
			code:  http.StatusBadGateway,
			label: "upstream_protocol",
		},
		{
			name:  "tls",
			err:   errors.New("tls: first record does not look like a TLS handshake"),
			code:  http.StatusBadGateway,
			label: "tls",
		},
		{
			name:  "net timeout",
			err:   timeout,
			code:  http.StatusBadGateway,
			label: "net_timeout",
		},
		{
			name:  "transport timeout",
			err:   wrapTransportError(fmt.Errorf("read response: %w", timeout)),
			code:  http.StatusBadGateway,
			label: "net_timeout",
		},
		{
			name:  "tunnel deadline",
			err:   wrapTunnelError(fmt.Errorf("proxy CONNECT example.com:443: %w", context.DeadlineExceeded)),
			code:  http.StatusBadGateway,
			label: "net_timeout",
		},
		{
			name:  "transport tls",
			err:   wrapTransportError(&net.OpError{Op: "proxyconnect", Net: "tcp", Err: tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}}),
			code:  http.StatusBadGateway,
			label: "tls",
		},
		{
			name:  "tunnel tls",
			err:   wrapTunnelError(errors.New("tls: handshake failure")),
			code:  http.StatusBadGateway,
			label: "tls",
		},
		{
			name:  "transport protocol",
			err:   wrapTransportError(errors.New("malformed HTTP response")),
			code:  http.StatusBadGateway,
			label: "upstream_protocol",
		},
		{
			name:  "net",
			err:   refused,
			code:  http.StatusBadGateway,
			label: "net",
		},
		{
			name:  "other",
			err:   context.Canceled,
			code:  http.StatusInternalServerError,
			label: "other",
		},
	}

	for i := range tests {
		tc := tests[i]
		t.Run(tc.name, func(t *testing.T) {
			code, msg, label := classifyError(tc.err)
			if code != tc.code {
				t.Errorf("code = %d, want %d", code, tc.code)
			}
			if label != tc.label {
				t.Errorf("label = %q, want %q", label, tc.label)
			}
			if msg == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestTimeoutMessage(t *testing.T) {
	for _, err := range []error{
		&UpstreamConnectError{Addr: "proxy:8080", Err: os.ErrDeadlineExceeded},
		wrapTunnelError(context.DeadlineExceeded),
		wrapTransportError(&net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}),
	} {
		code, msg, _ := classifyError(err)
		if code != http.StatusBadGateway {
			t.Errorf("%v: code = %d", err, code)
		}
		if !strings.HasPrefix(msg, "timed out") {
			t.Errorf("%v: message = %q", err, msg)
		}
	}
}

func TestUpstreamProtocolErrorMessage(t *testing.T) {
	err := wrapTunnelError(&dialvia.StatusError{Proto: "HTTP/1.1", Status: "403 Forbidden", StatusCode: 403})

	var pe *UpstreamProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected UpstreamProtocolError, got %T", err)
	}
	if pe.StatusCode != http.StatusForbidden {
		t.Fatalf("status code = %d", pe.StatusCode)
	}
	if !strings.Contains(err.Error(), "403 Forbidden") {
		t.Fatalf("unexpected message %q", err)
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Field: "upstream", Err: errors.New("missing")}
	if got, want := err.Error(), "configuration: upstream: missing"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
