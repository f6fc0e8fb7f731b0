// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/saucelabs/localproxy/header"
	"github.com/saucelabs/localproxy/internal/netutil"
	"golang.org/x/net/http/httpguts"
)

// DefaultMaxRequestBodySize is the largest request body the forwarder buffers.
const DefaultMaxRequestBodySize = 32 << 20

type ForwarderConfig struct {
	// IdleTimeout bounds every read and write on the upstream connection.
	IdleTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for the upstream response header after the request is written.
	ResponseHeaderTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake with an https upstream proxy.
	TLSHandshakeTimeout time.Duration

	// MaxRequestBodySize is the largest request body accepted, larger bodies are rejected with 413.
	MaxRequestBodySize int64

	// RequestHeaders are applied to every forwarded request after hop-by-hop headers are removed.
	RequestHeaders header.Headers

	// ConnectHeaders are added to CONNECT requests the transport sends for https targets.
	ConnectHeaders header.Headers
}

func DefaultForwarderConfig() *ForwarderConfig {
	return &ForwarderConfig{
		IdleTimeout:           60 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxRequestBodySize:    DefaultMaxRequestBodySize,
	}
}

// Forwarder sends plain HTTP requests in absolute form to the upstream proxy
// and writes the upstream response back to the client.
type Forwarder struct {
	config    ForwarderConfig
	upstream  *UpstreamConfig
	transport *http.Transport
}

func NewForwarder(cfg *ForwarderConfig, up *UpstreamConfig, d *Dialer, tlsCfg *tls.Config) *Forwarder {
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return netutil.NewIdleTimeoutConn(conn, cfg.IdleTimeout), nil
	}

	tr := &http.Transport{
		Proxy:                 http.ProxyURL(up.URL()),
		DialContext:           dial,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		DisableCompression:    true,
		// Every forwarded request gets its own upstream connection.
		MaxIdleConnsPerHost: -1,
		ForceAttemptHTTP2:   false,
	}
	if len(cfg.ConnectHeaders) > 0 {
		tr.GetProxyConnectHeader = func(_ context.Context, _ *url.URL, _ string) (http.Header, error) {
			h := make(http.Header)
			cfg.ConnectHeaders.Apply(h)
			return h, nil
		}
	}

	return &Forwarder{
		config:    *cfg,
		upstream:  up,
		transport: tr,
	}
}

// Forward sends req to the upstream proxy and copies the response to w.
// It returns the status code written to w, zero means nothing was written
// and the caller is responsible for sending an error response.
// keepAlive reports whether the client connection may serve another request,
// it is false when the client asked to close or the response body is delimited by close.
func (f *Forwarder) Forward(ctx context.Context, w io.Writer, req *http.Request) (code int, keepAlive bool, err error) {
	if !forwardableMethod(req.Method) {
		return 0, false, &requestError{
			code:  http.StatusNotImplemented,
			label: "method_not_supported",
			err:   fmt.Errorf("method %s is not supported", req.Method),
		}
	}
	if !req.URL.IsAbs() || req.URL.Host == "" {
		return 0, false, badRequest("bad_request_uri", "request URI %q is not in absolute form", req.RequestURI)
	}
	if s := req.URL.Scheme; s != "http" && s != "https" {
		return 0, false, badRequest("bad_request_uri", "unsupported URL scheme %q", s)
	}

	body, err := readRequestBody(req, f.config.MaxRequestBodySize)
	if err != nil {
		return 0, false, err
	}

	out := f.outRequest(ctx, req, body)
	res, err := f.transport.RoundTrip(out)
	if err != nil {
		return 0, false, wrapTransportError(err)
	}
	defer res.Body.Close()

	keepAlive = !req.Close && selfDelimited(req.Method, res)
	if err := writeResponse(w, req.Method, res, keepAlive); err != nil {
		return res.StatusCode, false, err
	}
	return res.StatusCode, keepAlive, nil
}

func (f *Forwarder) outRequest(ctx context.Context, req *http.Request, body []byte) *http.Request {
	u := *req.URL
	out := &http.Request{
		Method:        req.Method,
		URL:           &u,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        req.Header.Clone(),
		Host:          req.Host,
		ContentLength: int64(len(body)),
	}
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if len(body) > 0 {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	removeHopHeaders(out.Header)
	// Go's default User-Agent must not be added to requests that had none.
	if _, ok := out.Header["User-Agent"]; !ok {
		out.Header.Set("User-Agent", "")
	}
	f.config.RequestHeaders.ModifyRequest(out)

	return out.WithContext(ctx)
}

func forwardableMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodDelete, http.MethodPatch, http.MethodOptions:
		return true
	default:
		return false
	}
}

// readRequestBody buffers the whole body so that it is sent upstream with a Content-Length.
func readRequestBody(req *http.Request, limit int64) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	tooLarge := &requestError{
		code:  http.StatusRequestEntityTooLarge,
		label: "body_too_large",
		err:   fmt.Errorf("request body exceeds %d bytes", limit),
	}
	if req.ContentLength > limit {
		return nil, tooLarge
	}

	b, err := io.ReadAll(io.LimitReader(req.Body, limit+1))
	if err != nil {
		return nil, badRequest("bad_request_body", "read request body: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, tooLarge
	}
	return b, nil
}

// Hop-by-hop headers, see RFC 9110 section 7.6.1.
var hopHeaders = []string{ //nolint:gochecknoglobals // read-only
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// removeHopHeaders removes hop-by-hop headers and headers listed in Connection.
// The client's Proxy-Authorization is always dropped, upstream credentials are added by the transport.
func removeHopHeaders(h http.Header) {
	for _, f := range h["Connection"] {
		for _, sf := range strings.Split(f, ",") {
			if sf = textproto.TrimString(sf); httpguts.ValidHeaderFieldName(sf) {
				h.Del(sf)
			}
		}
	}

	keepTrailers := httpguts.HeaderValuesContainsToken(h["Te"], "trailers")
	for _, k := range hopHeaders {
		h.Del(k)
	}
	if keepTrailers {
		h.Set("Te", "trailers")
	}
}

// selfDelimited reports whether the client can find the end of the response without a connection close.
func selfDelimited(method string, res *http.Response) bool {
	if method == http.MethodHead || !bodyAllowed(res.StatusCode) {
		return true
	}
	return res.ContentLength >= 0
}

func bodyAllowed(code int) bool {
	return code >= 200 && code != http.StatusNoContent && code != http.StatusNotModified
}

// writeResponse writes res to w without Transfer-Encoding and Connection headers.
// With keepAlive the status line is HTTP/1.1 and the body length is announced in Content-Length.
// Otherwise the status line is HTTP/1.0, so the client expects the connection to close
// and a body of unknown length is delimited by the close.
func writeResponse(w io.Writer, method string, res *http.Response, keepAlive bool) error {
	bw := bufio.NewWriterSize(w, 4*1024)

	status := res.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode))
	}
	proto := "HTTP/1.0"
	if keepAlive {
		proto = "HTTP/1.1"
	}
	if _, err := fmt.Fprintf(bw, "%s %s\r\n", proto, status); err != nil {
		return err
	}

	h := res.Header.Clone()
	h.Del("Transfer-Encoding")
	h.Del("Connection")
	if keepAlive && method != http.MethodHead && bodyAllowed(res.StatusCode) && h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
	}
	if err := h.Write(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}

	if method != http.MethodHead {
		if _, err := io.Copy(bw, res.Body); err != nil {
			return fmt.Errorf("copy response body: %w", err)
		}
	}

	return bw.Flush()
}

// wrapTransportError maps errors returned by http.Transport to the upstream error types.
func wrapTransportError(err error) error {
	var ce *UpstreamConnectError
	if errors.As(err, &ce) {
		return ce
	}
	return wrapUpstreamError(err)
}
