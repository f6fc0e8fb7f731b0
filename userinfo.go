// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"errors"
	"net/url"
	"strings"
)

// ParseUserInfo parses "username:password" credentials protecting the local proxy or the API server.
// Both parts are URL decoded so that a colon can be passed as %3A.
// An empty value returns nil.
func ParseUserInfo(val string) (*url.Userinfo, error) {
	if val == "" {
		return nil, nil //nolint:nilnil // nil disables authentication
	}

	u, p, ok := strings.Cut(val, ":")
	if !ok {
		return nil, errors.New("expected username:password")
	}

	var err error
	if u, err = url.PathUnescape(u); err != nil {
		return nil, errors.New("invalid username encoding")
	}
	if p, err = url.PathUnescape(p); err != nil {
		return nil, errors.New("invalid password encoding")
	}
	if u == "" {
		return nil, errors.New("username cannot be empty")
	}
	if p == "" {
		return nil, errors.New("password cannot be empty")
	}

	return url.UserPassword(u, p), nil
}
