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
	"net"
	"net/http"
	"strconv"

	"github.com/saucelabs/localproxy/dialvia"
	"github.com/saucelabs/localproxy/header"
)

// connectEstablished is sent to the client once the upstream tunnel is ready.
const connectEstablished = "HTTP/1.1 200 Connection Established\r\n\r\n"

type tunnelDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// newTunnelDialer returns a dialer that opens a tunnel to the target through the upstream proxy.
func newTunnelDialer(up *UpstreamConfig, d *Dialer, connectHeaders header.Headers, tlsCfg *tls.Config) tunnelDialer {
	dial := dialvia.ContextDialerFunc(d.DialContext)

	switch up.Scheme {
	case "socks5":
		return dialvia.SOCKS5Proxy(dial, up.URL())
	case "https":
		if tlsCfg == nil {
			tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return withConnectHeaders(dialvia.HTTPSProxy(dial, up.URL(), tlsCfg), connectHeaders)
	default:
		return withConnectHeaders(dialvia.HTTPProxy(dial, up.URL()), connectHeaders)
	}
}

func withConnectHeaders(d *dialvia.HTTPProxyDialer, hs header.Headers) *dialvia.HTTPProxyDialer {
	if len(hs) > 0 {
		d.ConnectRequestModifier = func(req *http.Request) error {
			hs.ModifyRequest(req)
			return nil
		}
	}
	return d
}

// validateConnectTarget checks that target is host:port with a numeric port.
func validateConnectTarget(target string) error {
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		return &requestError{code: http.StatusBadGateway, label: "bad_connect_target", err: err}
	}
	if host == "" {
		return &requestError{code: http.StatusBadGateway, label: "bad_connect_target", err: errors.New("missing host in CONNECT target")}
	}
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		return &requestError{code: http.StatusBadGateway, label: "bad_connect_target", err: errors.New("invalid port in CONNECT target")}
	}
	return nil
}

// wrapTunnelError maps dialer errors to the upstream error types.
func wrapTunnelError(err error) error {
	var ce *UpstreamConnectError
	if errors.As(err, &ce) {
		return ce
	}
	var se *dialvia.StatusError
	if errors.As(err, &se) {
		return &UpstreamProtocolError{StatusLine: se.StatusLine(), StatusCode: se.StatusCode, Err: err}
	}
	return wrapUpstreamError(err)
}
