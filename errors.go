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
	"strconv"
	"strings"
)

// ConfigurationError is returned for invalid or missing configuration.
// The message never contains credentials.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return "configuration: " + e.Field + ": " + e.Err.Error()
	}
	return "configuration: " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// UpstreamConnectError is returned when the upstream proxy cannot be reached.
type UpstreamConnectError struct {
	Addr string
	Err  error
}

func (e *UpstreamConnectError) Error() string {
	return fmt.Sprintf("connect to upstream proxy %s: %v", e.Addr, e.Err)
}

func (e *UpstreamConnectError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the connection attempt timed out.
func (e *UpstreamConnectError) Timeout() bool {
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// UpstreamProtocolError is returned when the upstream proxy refuses a request,
// answers with something that is not valid HTTP, or closes the connection early.
type UpstreamProtocolError struct {
	// StatusLine is set when the upstream answered CONNECT with a non 200 status.
	StatusLine string
	StatusCode int
	Err        error
}

func (e *UpstreamProtocolError) Error() string {
	if e.StatusLine != "" {
		return "upstream proxy refused CONNECT: " + e.StatusLine
	}
	return "upstream proxy protocol error: " + e.Err.Error()
}

func (e *UpstreamProtocolError) Unwrap() error {
	return e.Err
}

// requestError is a client error detected before anything is sent upstream.
type requestError struct {
	code  int
	label string
	err   error
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

func badRequest(label string, format string, args ...any) error {
	return &requestError{code: http.StatusBadRequest, label: label, err: fmt.Errorf(format, args...)}
}

// ErrorHeader is set on every response generated by the proxy itself.
const ErrorHeader = "X-Localproxy-Error"

type errorHandler func(err error) (code int, msg, label string)

// errorHandlers are tried in order, the first one returning a non-zero code wins.
var errorHandlers = []errorHandler{ //nolint:gochecknoglobals // read-only
	handleRequestError,
	handleUpstreamConnectError,
	handleUpstreamProtocolError,
	handleTLSError,
	handleNetError,
}

func handleRequestError(err error) (code int, msg, label string) {
	var re *requestError
	if errors.As(err, &re) {
		return re.code, re.err.Error(), re.label
	}
	return
}

func handleUpstreamConnectError(err error) (code int, msg, label string) {
	var ce *UpstreamConnectError
	if !errors.As(err, &ce) {
		return
	}
	if ce.Timeout() {
		return http.StatusBadGateway, "timed out connecting to upstream proxy", "upstream_connect_timeout"
	}
	return http.StatusBadGateway, "failed to connect to upstream proxy", "upstream_connect"
}

func handleUpstreamProtocolError(err error) (code int, msg, label string) {
	var pe *UpstreamProtocolError
	if !errors.As(err, &pe) {
		return
	}
	if pe.StatusCode != 0 {
		return http.StatusBadGateway, "upstream proxy refused the request: " + pe.StatusLine, "upstream_status_" + strconv.Itoa(pe.StatusCode)
	}
	return http.StatusBadGateway, "invalid response from upstream proxy", "upstream_protocol"
}

func isTLSError(err error) bool {
	var (
		rhe tls.RecordHeaderError
		cve *tls.CertificateVerificationError
	)
	return errors.As(err, &rhe) || errors.As(err, &cve) || strings.Contains(err.Error(), "tls: ")
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// wrapUpstreamError wraps an error from talking to the upstream proxy in UpstreamProtocolError.
// TLS failures, timeouts and cancellation are returned as is so that they keep their own classification.
func wrapUpstreamError(err error) error {
	if errors.Is(err, context.Canceled) || isTLSError(err) || isTimeout(err) {
		return err
	}
	return &UpstreamProtocolError{Err: err}
}

func handleTLSError(err error) (code int, msg, label string) {
	if isTLSError(err) {
		return http.StatusBadGateway, "TLS handshake failed", "tls"
	}
	return
}

func handleNetError(err error) (code int, msg, label string) {
	var ne net.Error
	if !errors.As(err, &ne) {
		return
	}
	if ne.Timeout() {
		return http.StatusBadGateway, "timed out waiting for upstream proxy", "net_timeout"
	}
	return http.StatusBadGateway, "network error", "net"
}

// classifyError returns the status code, client message and metric label for err.
func classifyError(err error) (code int, msg, label string) {
	for _, h := range errorHandlers {
		if code, msg, label = h(err); code != 0 {
			return
		}
	}
	return http.StatusInternalServerError, "internal proxy error", "other"
}
