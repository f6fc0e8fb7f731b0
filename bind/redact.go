// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/saucelabs/localproxy"
	"github.com/saucelabs/localproxy/header"
)

func RedactUpstream(up *localproxy.UpstreamConfig) string {
	if up == nil {
		return ""
	}
	return up.Redacted()
}

func RedactUserinfo(ui *url.Userinfo) string {
	if ui == nil {
		return ""
	}
	if _, has := ui.Password(); has {
		return ui.Username() + ":xxxxx"
	}
	return ui.Username()
}

// sensitiveHeaders have their values redacted.
var sensitiveHeaders = []string{ //nolint:gochecknoglobals // read-only
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
}

func RedactHeader(h header.Header) string {
	if h.Action == header.Add {
		for _, s := range sensitiveHeaders {
			if strings.EqualFold(h.Name, s) {
				return fmt.Sprintf("%q", h.Name+":xxxxx")
			}
		}
	}
	return fmt.Sprintf("%q", h.String())
}
