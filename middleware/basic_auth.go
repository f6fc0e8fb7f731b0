// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	AuthorizationHeader      = "Authorization"
	ProxyAuthorizationHeader = "Proxy-Authorization"

	// Realm is announced in authentication challenges.
	Realm = "localproxy"
)

// BasicAuth checks Basic Authentication credentials sent in a configurable header.
// Use Authorization for servers and Proxy-Authorization for proxies.
//
// See https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Proxy-Authorization
type BasicAuth struct {
	header string
}

func NewBasicAuth() *BasicAuth {
	return &BasicAuth{header: AuthorizationHeader}
}

func NewProxyBasicAuth() *BasicAuth {
	return &BasicAuth{header: ProxyAuthorizationHeader}
}

// AuthenticatedRequest returns true if the request carries the expected credentials.
// Uses constant-time comparison in order to mitigate timing attacks.
func (ba *BasicAuth) AuthenticatedRequest(r *http.Request, expectedUser, expectedPass string) bool {
	user, pass, ok := ba.BasicAuth(r)
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(expectedUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(expectedPass)) == 1
	return userOK && passOK
}

// BasicAuth returns the username and password provided in the request's authorization header.
func (ba *BasicAuth) BasicAuth(r *http.Request) (username, password string, ok bool) {
	auth := r.Header.Get(ba.header)
	if auth == "" {
		return "", "", false
	}
	return ParseBasicAuth(auth)
}

// ParseBasicAuth parses an HTTP Basic Authentication string.
// "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==" returns ("Aladdin", "open sesame", true).
func ParseBasicAuth(auth string) (username, password string, ok bool) {
	const prefix = "Basic "
	// Case insensitive prefix match.
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", "", false
	}
	c, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(c), ":")
}

// BasicAuthValue returns the value of an authorization header for the credentials.
// The credentials are joined with a single colon and base64 encoded, they are not URL encoded.
// See RFC 7617, Section 2.
func BasicAuthValue(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// SetBasicAuth sets the request's authorization header.
func (ba *BasicAuth) SetBasicAuth(r *http.Request, username, password string) {
	r.Header.Set(ba.header, BasicAuthValue(username, password))
}

// Challenge returns the header name and value that ask the client for credentials.
func (ba *BasicAuth) Challenge() (name, value string) {
	name = "WWW-Authenticate"
	if ba.header == ProxyAuthorizationHeader {
		name = "Proxy-Authenticate"
	}
	return name, `Basic realm="` + Realm + `"`
}

// Wrap wraps the provided http.Handler with basic authentication.
// Unauthenticated requests get 407 Proxy Authentication Required for proxy auth
// and 401 Unauthorized otherwise.
func (ba *BasicAuth) Wrap(h http.Handler, expectedUser, expectedPass string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ba.AuthenticatedRequest(r, expectedUser, expectedPass) {
			w.Header().Set(ba.Challenge())
			if ba.header == ProxyAuthorizationHeader {
				w.WriteHeader(http.StatusProxyAuthRequired)
			} else {
				w.WriteHeader(http.StatusUnauthorized)
			}
			return
		}

		r.Header.Del(ba.header)
		h.ServeHTTP(w, r)
	})
}
