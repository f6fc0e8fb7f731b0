// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package templates

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const wrapLimit = 80

// UsageFunc returns a cobra usage function that prints flags in groups.
func UsageFunc(g FlagGroups, envName func(string) string) func(cmd *cobra.Command) error {
	return func(cmd *cobra.Command) error {
		w := cmd.OutOrStderr()
		writeUsage(w, cmd, g, envName)
		return nil
	}
}

func writeUsage(w io.Writer, cmd *cobra.Command, g FlagGroups, envName func(string) string) {
	fmt.Fprintf(w, "Usage:\n  %s\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprint(w, "\nCommands:\n")
		for _, c := range cmd.Commands() {
			if !c.IsAvailableCommand() {
				continue
			}
			fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
		}
	}

	if cmd.Example != "" {
		fmt.Fprintf(w, "\nExamples:\n%s\n", strings.TrimRight(cmd.Example, "\n"))
	}

	p := NewHelpFlagPrinter(w, envName, wrapLimit)
	for _, gf := range SplitFlagSet(g, cmd.Flags()) {
		if !gf.Flags.HasAvailableFlags() {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", gf.Name)
		gf.Flags.VisitAll(func(f *pflag.Flag) {
			if f.Hidden {
				return
			}
			p.PrintHelpFlag(f)
		})
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "Use \"%s [command] --help\" for more information about a command.\n", cmd.CommandPath())
	}
}
