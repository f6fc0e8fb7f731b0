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

	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/pflag"
)

// YamlFlagPrinter prints flags as commented out entries of a YAML config file.
type YamlFlagPrinter struct {
	out       io.Writer
	envName   func(flagName string) string
	wrapLimit uint
}

// NewYamlFlagPrinter returns a printer, if envName is not nil the environment variable is printed below the usage.
func NewYamlFlagPrinter(out io.Writer, envName func(string) string, wrapLimit uint) *YamlFlagPrinter {
	return &YamlFlagPrinter{
		out:       out,
		envName:   envName,
		wrapLimit: wrapLimit,
	}
}

func (p *YamlFlagPrinter) PrintHelpFlag(f *pflag.Flag) {
	_, usage := flagNameAndUsage(f)
	if f.Deprecated != "" {
		usage += " DEPRECATED: " + f.Deprecated
	}

	def := f.DefValue
	if def == "[]" {
		def = ""
	}
	if def != "" {
		def = " " + def
	}

	wrapped := wordwrap.WrapString(usage, p.wrapLimit-2)
	fmt.Fprintf(p.out, "# %s\n#\n", strings.ReplaceAll(wrapped, "\n", "\n# "))
	if p.envName != nil {
		fmt.Fprintf(p.out, "# Environment variable: %s\n#\n", p.envName(f.Name))
	}
	fmt.Fprintf(p.out, "#%s:%s\n\n", f.Name, def)
}
