// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"fmt"

	"github.com/saucelabs/localproxy/utils/cobrautil/templates"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ConfigFileCommand returns a hidden command that prints a commented YAML config file with all the flags of fs.
// Each entry names the environment variable BindAll reads for it.
func ConfigFileCommand(g templates.FlagGroups, fs *pflag.FlagSet, envPrefix, configFileFlagName string) *cobra.Command {
	return &cobra.Command{
		Use:    "config-file",
		Short:  "Print a config file template",
		Args:   cobra.NoArgs,
		Hidden: true,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			p := templates.NewYamlFlagPrinter(w, func(name string) string {
				return EnvName(envPrefix, name)
			}, 80)

			for _, gf := range templates.SplitFlagSet(g, fs) {
				header := true
				gf.Flags.VisitAll(func(f *pflag.Flag) {
					if f.Hidden || f.Name == configFileFlagName || f.Name == "help" {
						return
					}
					if header {
						fmt.Fprintf(w, "# --- %s ---\n\n", gf.Name)
						header = false
					}
					p.PrintHelpFlag(f)
				})
			}
		},
	}
}
