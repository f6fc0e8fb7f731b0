// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var envReplacer = strings.NewReplacer(".", "_", "-", "_") //nolint:gochecknoglobals // read-only

// BindAll updates the command flags that were not set on the command line
// with values from environment variables and the config file.
// Environment variables are named <envPrefix>_<FLAG_NAME>, see EnvName.
// The config file format is determined by its extension, files without an extension are read as YAML.
func BindAll(cmd *cobra.Command, envPrefix, configFileFlagName string) error {
	v := viper.New()

	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		return err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	v.SetEnvKeyReplacer(envReplacer)
	v.SetEnvPrefix(envReplacer.Replace(strings.ToUpper(envPrefix)))
	v.AutomaticEnv()

	if configFileFlagName != "" {
		if f := v.GetString(configFileFlagName); f != "" {
			if filepath.Ext(f) == "" {
				v.SetConfigType("yaml")
			}
			v.SetConfigFile(f)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config file %s: %w", f, err)
			}
		}
	}

	var errs []string
	update := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Changed || !v.IsSet(f.Name) {
				return
			}
			if err := fs.Set(f.Name, flagString(v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Sprintf("--%s: %s", f.Name, err))
			}
		})
	}
	update(cmd.PersistentFlags())
	update(cmd.Flags())

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}
	return nil
}

// flagString formats a viper value so that it can be passed to pflag Set.
// Lists from config files are joined with commas.
func flagString(val any) string {
	if l, ok := val.([]any); ok {
		s := make([]string, len(l))
		for i := range l {
			s[i] = fmt.Sprint(l[i])
		}
		return strings.Join(s, ",")
	}
	return fmt.Sprint(val)
}
