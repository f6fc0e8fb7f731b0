// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saucelabs/localproxy/header"
	"github.com/saucelabs/localproxy/internal/netutil"
	"github.com/saucelabs/localproxy/log"
	"github.com/saucelabs/localproxy/middleware"
	"go.uber.org/multierr"
)

type ProxyConfig struct {
	// Addr is the host:port the proxy listens on.
	Addr string

	// BasicAuth, if set, requires clients to send matching Proxy-Authorization credentials.
	BasicAuth *url.Userinfo

	// ReadHeaderTimeout bounds reading the client request line and headers.
	ReadHeaderTimeout time.Duration

	// ConnectTimeout bounds connecting to the upstream proxy and the CONNECT handshake.
	ConnectTimeout time.Duration

	// IdleTimeout closes tunnels and forwarded exchanges with no traffic for this long.
	IdleTimeout time.Duration

	// ResponseHeaderTimeout bounds waiting for the upstream response header of a forwarded request.
	ResponseHeaderTimeout time.Duration

	// ShutdownTimeout is how long Run waits for active connections after the context is canceled.
	ShutdownTimeout time.Duration

	// MaxRequestBodySize is the largest forwarded request body.
	MaxRequestBodySize int64

	// ReadLimit and WriteLimit cap client bandwidth in bytes per second, zero means unlimited.
	ReadLimit  int64
	WriteLimit int64

	// RequestHeaders modify forwarded requests, ConnectHeaders modify CONNECT requests sent upstream.
	RequestHeaders header.Headers
	ConnectHeaders header.Headers

	// InsecureSkipVerify disables certificate verification of an https upstream proxy.
	InsecureSkipVerify bool

	PromRegistry  prometheus.Registerer
	PromNamespace string
}

func DefaultProxyConfig() *ProxyConfig {
	return &ProxyConfig{
		Addr:                  "127.0.0.1:8888",
		ReadHeaderTimeout:     30 * time.Second,
		ConnectTimeout:        30 * time.Second,
		IdleTimeout:           60 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ShutdownTimeout:       30 * time.Second,
		MaxRequestBodySize:    DefaultMaxRequestBodySize,
		PromNamespace:         "localproxy",
	}
}

func (c *ProxyConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return &ConfigurationError{Field: "address", Err: err}
	}
	if c.BasicAuth != nil && c.BasicAuth.Username() == "" {
		return &ConfigurationError{Field: "basic-auth", Err: errors.New("username is required")}
	}
	for name, d := range map[string]time.Duration{
		"read-header-timeout":     c.ReadHeaderTimeout,
		"connect-timeout":         c.ConnectTimeout,
		"idle-timeout":            c.IdleTimeout,
		"response-header-timeout": c.ResponseHeaderTimeout,
		"shutdown-timeout":        c.ShutdownTimeout,
	} {
		if d < 0 {
			return &ConfigurationError{Field: name, Err: errors.New("must not be negative")}
		}
	}
	if c.MaxRequestBodySize <= 0 {
		return &ConfigurationError{Field: "max-request-body-size", Err: errors.New("must be positive")}
	}
	return nil
}

// Proxy is a local HTTP proxy that relays all traffic through an upstream proxy.
type Proxy struct {
	config    ProxyConfig
	upstream  *UpstreamConfig
	log       log.Logger
	metrics   *proxyMetrics
	forwarder *Forwarder
	tunnel    tunnelDialer
	basicAuth *middleware.BasicAuth

	listener net.Listener

	// drainCtx is canceled when shutdown starts, idle kept alive connections are closed.
	drainCtx   context.Context
	startDrain context.CancelFunc
	// connCtx is canceled to force close all client connections.
	connCtx    context.Context
	cancelConn context.CancelFunc
	wg         sync.WaitGroup
	activeConn atomic.Int64
	running    atomic.Bool
	closeOnce  sync.Once
}

// NewProxy binds the listen address and prepares the proxy.
// It is the caller's responsibility to call Close or Run on the returned proxy.
func NewProxy(cfg *ProxyConfig, up *UpstreamConfig, log log.Logger) (*Proxy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if up == nil {
		return nil, &ConfigurationError{Field: "upstream", Err: errors.New("upstream proxy is required")}
	}

	d := NewDialer(&DialConfig{
		DialTimeout:   cfg.ConnectTimeout,
		KeepAlive:     30 * time.Second,
		PromRegistry:  cfg.PromRegistry,
		PromNamespace: cfg.PromNamespace,
	})

	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // user option
	}

	fcfg := &ForwarderConfig{
		IdleTimeout:           cfg.IdleTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		MaxRequestBodySize:    cfg.MaxRequestBodySize,
		RequestHeaders:        cfg.RequestHeaders,
		ConnectHeaders:        cfg.ConnectHeaders,
	}

	p := &Proxy{
		config:    *cfg,
		upstream:  up,
		log:       log,
		metrics:   newProxyMetrics(cfg.PromRegistry, cfg.PromNamespace),
		forwarder: NewForwarder(fcfg, up, d, tlsCfg),
		tunnel:    newTunnelDialer(up, d, cfg.ConnectHeaders, tlsCfg),
	}
	if cfg.BasicAuth != nil {
		p.basicAuth = middleware.NewProxyBasicAuth()
	}
	p.drainCtx, p.startDrain = context.WithCancel(context.Background())
	p.connCtx, p.cancelConn = context.WithCancel(context.Background())

	l, err := Listen(context.Background(), ListenConfig{
		Address:    cfg.Addr,
		ReadLimit:  cfg.ReadLimit,
		WriteLimit: cfg.WriteLimit,
	})
	if err != nil {
		p.startDrain()
		p.cancelConn()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	p.listener = l

	auth := "no"
	if up.HasCredentials() {
		auth = "yes"
	}
	p.log.Infof("PROXY server listen address=%s", l.Addr())
	p.log.Infof("upstream proxy=%s authentication=%s", up, auth)

	return p, nil
}

// Addr returns the address the proxy is listening on.
func (p *Proxy) Addr() string {
	return p.listener.Addr().String()
}

// Ready reports whether the proxy is accepting connections.
func (p *Proxy) Ready() bool {
	return p.running.Load()
}

// Run accepts connections until ctx is canceled or Close is called.
// On cancellation it stops accepting, waits up to ShutdownTimeout for
// active connections to finish and then closes the remaining ones.
func (p *Proxy) Run(ctx context.Context) error {
	p.running.Store(true)
	defer p.running.Store(false)

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.serve()
	}()

	select {
	case err := <-errCh:
		p.Close()
		p.wg.Wait()
		return err
	case <-ctx.Done():
	}

	p.running.Store(false)
	p.startDrain()
	p.log.Infof("shutting down, waiting up to %s for %d active connections", p.config.ShutdownTimeout, p.activeConn.Load())
	lerr := p.listener.Close()
	serr := <-errCh

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.config.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		p.log.Infof("shutdown timeout, closing %d active connections", p.activeConn.Load())
		p.cancelConn()
		<-done
	}
	p.cancelConn()

	if errors.Is(lerr, net.ErrClosed) {
		lerr = nil
	}
	return multierr.Combine(serr, lerr)
}

func (p *Proxy) serve() error {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				p.log.Errorf("accept error=%s", err)
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return err
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.handleConn(conn)
		}()
	}
}

// Close stops accepting connections and closes all active connections.
func (p *Proxy) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.listener.Close()
		p.startDrain()
		p.cancelConn()
	})
	return err
}

func (p *Proxy) handleConn(raw net.Conn) {
	p.metrics.connOpened()
	p.activeConn.Add(1)
	defer func() {
		p.activeConn.Add(-1)
		p.metrics.connClosed()
	}()

	ctx := p.connCtx
	conn := netutil.NewIdleTimeoutConn(raw, 0)
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	br := bufio.NewReader(conn)
	for first := true; ; first = false {
		conn.SetIdleTimeout(0)
		conn.SetDeadline(time.Time{})
		if !first && !p.awaitRequest(conn, br) {
			return
		}

		if t := p.config.ReadHeaderTimeout; t > 0 {
			conn.SetReadDeadline(time.Now().Add(t))
		}
		req, err := http.ReadRequest(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			p.log.Debugf("read request from %s error=%s", raw.RemoteAddr(), err)
			var ne net.Error
			if errors.As(err, &ne) {
				p.metrics.error("client_read")
				return
			}
			p.writeError(conn, badRequest("bad_request", "malformed request: %v", err))
			return
		}
		conn.SetReadDeadline(time.Time{})

		if !p.authenticated(req) {
			p.log.Infof("%s %s proxy authentication required", req.Method, redactedTarget(req))
			p.writeAuthRequired(conn)
			return
		}

		if req.Method == http.MethodConnect {
			p.handleConnect(ctx, conn, br, req)
			return
		}

		if p.drainCtx.Err() != nil {
			req.Close = true
		}
		conn.SetIdleTimeout(p.config.IdleTimeout)
		if !p.handleForward(ctx, conn, req) {
			return
		}
	}
}

// awaitRequest waits up to IdleTimeout for the next request on a kept alive connection.
// It returns false when the client went away or the proxy is shutting down.
func (p *Proxy) awaitRequest(conn net.Conn, br *bufio.Reader) bool {
	if t := p.config.IdleTimeout; t > 0 {
		conn.SetReadDeadline(time.Now().Add(t))
	}
	stop := context.AfterFunc(p.drainCtx, func() { conn.SetReadDeadline(aLongTimeAgo) })
	_, err := br.Peek(1)
	if !stop() || err != nil {
		return false
	}
	return true
}

func (p *Proxy) authenticated(req *http.Request) bool {
	if p.basicAuth == nil {
		return true
	}
	pass, _ := p.config.BasicAuth.Password()
	return p.basicAuth.AuthenticatedRequest(req, p.config.BasicAuth.Username(), pass)
}

// handleForward forwards a single request and reports whether the connection may be reused.
func (p *Proxy) handleForward(ctx context.Context, conn net.Conn, req *http.Request) bool {
	start := time.Now()
	target := redactedTarget(req)

	code, keepAlive, err := p.forwarder.Forward(ctx, conn, req)
	if err != nil {
		if code == 0 {
			code = p.writeError(conn, err)
			p.log.Errorf("%s %s error=%s", req.Method, target, err)
		} else {
			p.metrics.error("client_write")
			p.log.Debugf("%s %s copy response error=%s", req.Method, target, err)
		}
	}
	p.metrics.request(req.Method, code)
	p.log.Infof("%s %s status=%d duration=%s", req.Method, target, code, time.Since(start).Round(time.Millisecond))

	return err == nil && keepAlive
}

func (p *Proxy) handleConnect(ctx context.Context, conn net.Conn, br *bufio.Reader, req *http.Request) {
	target := req.URL.Host
	if target == "" {
		target = req.Host
	}

	if err := validateConnectTarget(target); err != nil {
		p.metrics.tunnel("failed")
		p.writeError(conn, err)
		p.log.Errorf("CONNECT %s error=%s", target, err)
		return
	}

	dctx, cancel := p.connectContext(ctx)
	upConn, err := p.tunnel.DialContext(dctx, "tcp", target)
	cancel()
	if err != nil {
		err = wrapTunnelError(err)
		p.metrics.tunnel("failed")
		p.writeError(conn, err)
		p.log.Errorf("CONNECT %s error=%s", target, err)
		return
	}

	if t := p.config.ConnectTimeout; t > 0 {
		conn.SetWriteDeadline(time.Now().Add(t))
	}
	if _, err := io.WriteString(conn, connectEstablished); err != nil {
		upConn.Close()
		p.metrics.tunnel("failed")
		p.log.Debugf("CONNECT %s write response error=%s", target, err)
		return
	}
	conn.SetWriteDeadline(time.Time{})

	p.metrics.tunnel("established")
	p.log.Infof("CONNECT %s tunnel established", target)

	cfg := DefaultRelayConfig()
	cfg.IdleTimeout = p.config.IdleTimeout
	s := Relay(ctx, netutil.NewBufferedConn(conn, br), upConn, cfg)
	p.metrics.tunnelClosed(s)

	if s.Reason == RelayError {
		p.log.Debugf("CONNECT %s relay error=%s", target, s.Err)
	}
	p.log.Infof("CONNECT %s tunnel closed reason=%s sent=%d received=%d duration=%s",
		target, s.Reason, s.ClientToUpstream, s.UpstreamToClient, s.Duration.Round(time.Millisecond))
}

func (p *Proxy) connectContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t := p.config.ConnectTimeout; t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return context.WithCancel(ctx)
}

// writeError sends an error response generated by the proxy and returns its status code.
func (p *Proxy) writeError(w io.Writer, err error) int {
	code, msg, label := classifyError(err)
	p.metrics.error(label)

	body := msg + "\n"
	res := &http.Response{
		StatusCode: code,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			"Content-Type": []string{"text/plain; charset=utf-8"},
			ErrorHeader:    []string{msg},
		},
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(strings.NewReader(body)),
		Close:         true,
	}
	if err := res.Write(w); err != nil {
		p.log.Debugf("write error response error=%s", err)
	}

	return code
}

func (p *Proxy) writeAuthRequired(w io.Writer) {
	p.metrics.error("proxy_auth_required")

	name, value := p.basicAuth.Challenge()
	res := &http.Response{
		StatusCode: http.StatusProxyAuthRequired,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			name: []string{value},
		},
		Body:  http.NoBody,
		Close: true,
	}
	if err := res.Write(w); err != nil {
		p.log.Debugf("write error response error=%s", err)
	}
}

var aLongTimeAgo = time.Unix(1, 0) //nolint:gochecknoglobals // constant

// redactedTarget returns the request target suitable for logging.
func redactedTarget(req *http.Request) string {
	if req.Method == http.MethodConnect {
		return req.Host
	}
	if req.URL.IsAbs() {
		return req.URL.Redacted()
	}
	return req.RequestURI
}
