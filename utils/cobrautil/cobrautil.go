// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"strings"

	"github.com/spf13/cobra"
)

// Walk calls fn for cmd and all its subcommands, parents first.
func Walk(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, c := range cmd.Commands() {
		Walk(c, fn)
	}
}

// DefaultLong prefixes the long description with the short description.
// Commands whose long description already starts with it are left as is.
func DefaultLong(cmd *cobra.Command) {
	if cmd.Short == "" {
		return
	}

	short := cmd.Short + "."
	switch {
	case cmd.Long == "":
		cmd.Long = short
	case !strings.HasPrefix(cmd.Long, short):
		cmd.Long = short + "\n\n" + cmd.Long
	}
}

// NoHelpSubcommand replaces the help subcommand with a hidden one, --help still works.
func NoHelpSubcommand(cmd *cobra.Command) {
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
}
