// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dialvia

import (
	"context"
	"errors"
	"net"
	"net/url"

	"golang.org/x/net/proxy"
)

// SOCKS5ProxyDialer tunnels connections through a SOCKS5 proxy.
// Userinfo of the proxy URL is used for username/password authentication.
type SOCKS5ProxyDialer struct {
	cd proxy.ContextDialer
}

func SOCKS5Proxy(dial ContextDialerFunc, proxyURL *url.URL) *SOCKS5ProxyDialer {
	if dial == nil {
		panic("dial is required")
	}
	if proxyURL == nil || proxyURL.Scheme != "socks5" {
		panic("socks5 proxy URL is required")
	}

	var auth *proxy.Auth
	if u := proxyURL.User; u != nil {
		auth = &proxy.Auth{User: u.Username()}
		auth.Password, _ = u.Password()
	}

	// SOCKS5 only fails for unsupported networks, the returned dialer implements ContextDialer.
	sd, err := proxy.SOCKS5("tcp", proxyAddr(proxyURL.Hostname(), proxyURL.Port(), "1080"), auth, dial)
	if err != nil {
		panic(err)
	}
	cd, ok := sd.(proxy.ContextDialer)
	if !ok {
		panic("socks5 dialer does not support context")
	}

	return &SOCKS5ProxyDialer{cd: cd}
}

func (d *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, errors.New("socks5: unsupported network " + network)
	}
	return d.cd.DialContext(ctx, network, addr)
}
