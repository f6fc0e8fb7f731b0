// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package localproxy provides a local HTTP proxy that relays all traffic through an upstream proxy.
// Clients that cannot send credentials to a proxy, such as browsers driven by Playwright,
// talk to the local proxy without authentication and the local proxy adds
// Proxy-Authorization when talking to the upstream.
// Plain HTTP requests are forwarded, CONNECT requests are tunnelled byte for byte.
package localproxy
