// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestDefaultLong(t *testing.T) {
	tests := []struct {
		short, long string
		want        string
	}{
		{short: "", long: "", want: ""},
		{short: "Run", long: "", want: "Run."},
		{short: "Run", long: "More.", want: "Run.\n\nMore."},
		{short: "Run", long: "Run.\n\nMore.", want: "Run.\n\nMore."},
	}

	for _, tc := range tests {
		cmd := &cobra.Command{Short: tc.short, Long: tc.long}
		DefaultLong(cmd)
		if cmd.Long != tc.want {
			t.Errorf("DefaultLong(%q, %q) = %q, want %q", tc.short, tc.long, cmd.Long, tc.want)
		}
	}
}

func TestWalk(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	a := &cobra.Command{Use: "a"}
	a.AddCommand(&cobra.Command{Use: "b"})
	root.AddCommand(a)

	var got []string
	Walk(root, func(c *cobra.Command) {
		got = append(got, c.Name())
	})
	if len(got) != 3 || got[0] != "root" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("unexpected order %v", got)
	}
}
