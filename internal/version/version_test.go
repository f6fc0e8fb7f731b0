// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	buildCommit = "1223423321234sdf"
	buildTime = "2024-09-21T12:49:39-07:00"
	buildVersion = "v0.0.1"
	t.Cleanup(func() {
		buildCommit, buildTime, buildVersion = "unknown", "unknown", "devel"
	})

	got := Get()
	if got.Version != "v0.0.1" || got.Commit != "1223423321234sdf" {
		t.Fatalf("unexpected version %+v", got)
	}
	for _, w := range []string{"v0.0.1", "1223423321234sdf", "2024-09-21"} {
		if !strings.Contains(got.String(), w) {
			t.Errorf("String() = %q, expected to contain %q", got.String(), w)
		}
	}
}
