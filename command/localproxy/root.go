// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"github.com/saucelabs/localproxy/bind"
	"github.com/saucelabs/localproxy/command/ready"
	"github.com/saucelabs/localproxy/command/run"
	"github.com/saucelabs/localproxy/command/version"
	"github.com/saucelabs/localproxy/utils/cobrautil"
	"github.com/saucelabs/localproxy/utils/cobrautil/templates"
	"github.com/spf13/cobra"
)

const (
	EnvPrefix          = "LOCALPROXY"
	ConfigFileFlagName = "config-file"
)

func FlagGroups() templates.FlagGroups {
	return templates.FlagGroups{
		{
			Name: "API server options",
			Prefix: []string{
				"api",
			},
		},
		{
			Name: "Upstream options",
			Prefix: []string{
				"upstream",
				"connect-timeout",
				"connect-header",
				"response-header-timeout",
				"insecure",
			},
		},
		{
			Name: "Proxy options",
			Prefix: []string{
				"address",
				"basic-auth",
				"read-header-timeout",
				"idle-timeout",
				"shutdown-timeout",
				"max-request-body-size",
				"read-limit",
				"write-limit",
				"header",
			},
		},
		{
			Name:   "Logging options",
			Prefix: []string{"log"},
		},
		{
			Name:   "Options",
			Prefix: []string{"config-file"},
		},
	}
}

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "localproxy",
		Short: "Local HTTP proxy that relays traffic through an authenticated upstream proxy",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cobrautil.BindAll(cmd, EnvPrefix, ConfigFileFlagName)
		},
	}
	bind.ConfigFile(cmd.PersistentFlags(), new(string))

	r := run.Command()
	r.AddCommand(cobrautil.ConfigFileCommand(FlagGroups(), r.Flags(), EnvPrefix, ConfigFileFlagName))

	cmd.AddCommand(
		r,
		ready.Command(),
		version.Command(),
	)

	envName := func(flagName string) string {
		return cobrautil.EnvName(EnvPrefix, flagName)
	}
	cmd.SetUsageFunc(templates.UsageFunc(FlagGroups(), envName))
	cobrautil.NoHelpSubcommand(cmd)
	cobrautil.Walk(cmd, cobrautil.DefaultLong)

	return cmd
}
