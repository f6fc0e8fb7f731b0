// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dialvia

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/saucelabs/localproxy/internal/netutil"
	"github.com/saucelabs/localproxy/middleware"
)

// StatusError is returned when the proxy answers CONNECT with a status other than 200.
type StatusError struct {
	Proto      string
	Status     string
	StatusCode int
}

// StatusLine returns the status line as sent by the proxy, e.g. "HTTP/1.1 407 Proxy Authentication Required".
func (e *StatusError) StatusLine() string {
	return e.Proto + " " + e.Status
}

func (e *StatusError) Error() string {
	return "proxy CONNECT failed: " + e.StatusLine()
}

// HTTPProxyDialer tunnels connections through an HTTP or HTTPS proxy with the CONNECT method.
// If the proxy URL has userinfo, it is sent as Proxy-Authorization Basic credentials.
type HTTPProxyDialer struct {
	dial      ContextDialerFunc
	proxyURL  *url.URL
	tlsConfig *tls.Config

	// ConnectRequestModifier is called on the CONNECT request before it is sent.
	ConnectRequestModifier func(req *http.Request) error
}

func HTTPProxy(dial ContextDialerFunc, proxyURL *url.URL) *HTTPProxyDialer {
	if dial == nil {
		panic("dial is required")
	}
	if proxyURL == nil {
		panic("proxy URL is required")
	}
	if proxyURL.Scheme != "http" {
		panic("proxy URL scheme must be http")
	}

	return &HTTPProxyDialer{
		dial:     dial,
		proxyURL: proxyURL,
	}
}

func HTTPSProxy(dial ContextDialerFunc, proxyURL *url.URL, tlsConfig *tls.Config) *HTTPProxyDialer {
	if dial == nil {
		panic("dial is required")
	}
	if proxyURL == nil {
		panic("proxy URL is required")
	}
	if proxyURL.Scheme != "https" {
		panic("proxy URL scheme must be https")
	}
	if tlsConfig == nil {
		panic("TLS config is required")
	}

	tlsConfig = tlsConfig.Clone()
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = proxyURL.Hostname()
	}
	tlsConfig.NextProtos = []string{"http/1.1"}

	return &HTTPProxyDialer{
		dial:      dial,
		proxyURL:  proxyURL,
		tlsConfig: tlsConfig,
	}
}

// DialContext returns a connection to addr tunnelled through the proxy.
// Any status other than 200 results in *StatusError.
func (d *HTTPProxyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	res, conn, err := d.DialContextR(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		conn.Close()
		return nil, &StatusError{
			Proto:      res.Proto,
			Status:     res.Status,
			StatusCode: res.StatusCode,
		}
	}

	return conn, nil
}

var aLongTimeAgo = time.Unix(1, 0) //nolint:gochecknoglobals // constant

// DialContextR is like DialContext but returns the proxy response regardless of the status code.
// The caller is responsible for closing the response body and the connection.
// The returned connection yields any bytes the proxy sent after the response header.
func (d *HTTPProxyDialer) DialContextR(ctx context.Context, network, addr string) (*http.Response, net.Conn, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, nil, fmt.Errorf("unsupported network: %s", network)
	}

	defaultPort := "80"
	if d.proxyURL.Scheme == "https" {
		defaultPort = "443"
	}
	conn, err := d.dial(ctx, "tcp", proxyAddr(d.proxyURL.Hostname(), d.proxyURL.Port(), defaultPort))
	if err != nil {
		return nil, nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	res, tconn, err := d.handshake(ctx, conn, addr)
	if err != nil {
		conn.Close()
		if cerr := contextError(ctx, err); cerr != nil {
			return nil, nil, fmt.Errorf("proxy CONNECT %s: %w", addr, cerr)
		}
		return nil, nil, err
	}

	if !stop() {
		res.Body.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("proxy CONNECT %s: %w", addr, ctx.Err())
	}
	conn.SetDeadline(time.Time{})

	return res, tconn, nil
}

// contextError returns the context error that caused err, if any.
// The connection deadline may expire slightly before the context does.
func contextError(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return nil
}

func (d *HTTPProxyDialer) handshake(ctx context.Context, conn net.Conn, addr string) (*http.Response, net.Conn, error) {
	if d.proxyURL.Scheme == "https" {
		tc := tls.Client(conn, d.tlsConfig)
		if err := tc.HandshakeContext(ctx); err != nil {
			return nil, nil, err
		}
		conn = tc
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Host: addr},
		Host:   addr,
		Header: http.Header{},
	}

	// Don't send the default Go HTTP client User-Agent.
	req.Header.Set("User-Agent", "")
	if u := d.proxyURL.User; u != nil {
		pass, _ := u.Password()
		req.Header.Set(middleware.ProxyAuthorizationHeader, middleware.BasicAuthValue(u.Username(), pass))
	}

	if cm := d.ConnectRequestModifier; cm != nil {
		if err := cm(req); err != nil {
			return nil, nil, err
		}
	}

	pbw := bufio.NewWriterSize(conn, 1024)
	if err := req.Write(pbw); err != nil {
		return nil, nil, err
	}
	if err := pbw.Flush(); err != nil {
		return nil, nil, err
	}

	pbr := bufio.NewReaderSize(conn, 1024)
	res, err := http.ReadResponse(pbr, req) //nolint:bodyclose // caller is responsible for closing the response body
	if err != nil {
		return nil, nil, err
	}

	return res, netutil.NewBufferedConn(conn, pbr), nil
}
