// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package templates

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/pflag"
)

const offset = 10

// HelpFlagPrinter prints flags in the help output, one flag per paragraph, with usage wrapped to wrapLimit.
type HelpFlagPrinter struct {
	out       io.Writer
	envName   func(flagName string) string
	wrapLimit uint
}

// NewHelpFlagPrinter returns a printer writing to out.
// If envName is not nil the environment variable of each flag is printed next to its default value.
func NewHelpFlagPrinter(out io.Writer, envName func(string) string, wrapLimit uint) *HelpFlagPrinter {
	return &HelpFlagPrinter{
		out:       out,
		envName:   envName,
		wrapLimit: wrapLimit,
	}
}

func (p *HelpFlagPrinter) PrintHelpFlag(f *pflag.Flag) {
	var buf bytes.Buffer
	p.writeFlag(&buf, f)

	lines := strings.SplitN(buf.String(), "\n", 2)
	s := lines[0]
	if len(lines) > 1 {
		s += "\n" + wordwrap.WrapString(strings.ReplaceAll(lines[1], "\n", " "), p.wrapLimit-offset)
	}

	fmt.Fprint(p.out, strings.ReplaceAll(s, "\n", "\n\t")+"\n\n")
}

func (p *HelpFlagPrinter) writeFlag(out io.Writer, f *pflag.Flag) {
	name, usage := flagNameAndUsage(f)

	if f.Shorthand != "" && f.ShorthandDeprecated == "" {
		fmt.Fprintf(out, "  -%s, --%s%s", f.Shorthand, f.Name, name)
	} else {
		fmt.Fprintf(out, "      --%s%s", f.Name, name)
	}

	switch def := f.DefValue; {
	case def == "" || def == "[]":
	case f.Value.Type() == "string":
		fmt.Fprintf(out, " (default '%s')", def)
	default:
		fmt.Fprintf(out, " (default %s)", def)
	}
	if p.envName != nil {
		fmt.Fprintf(out, " (env %s)", p.envName(f.Name))
	}

	fmt.Fprintf(out, "\n%s", usage)
	if f.Deprecated != "" {
		fmt.Fprintf(out, " (DEPRECATED: %s)", f.Deprecated)
	}
}

// flagNameAndUsage splits the usage string into the value placeholder and the description.
// A usage string may start with the placeholder, e.g. "<host:port>The address to listen on.".
func flagNameAndUsage(f *pflag.Flag) (name, usage string) {
	name, usage = pflag.UnquoteUsage(f)

	if vt := findValueType(usage); vt > 0 {
		name = usage[:vt]
		usage = strings.TrimSpace(usage[vt:])
	} else if name != "" && f.Value.Type() != "bool" {
		name = "<" + name + ">"
	} else {
		name = ""
	}
	if name != "" {
		name = " " + name
	}

	return name, usage
}

// findValueType returns the length of the leading placeholder in usage.
// The placeholder is a sequence of balanced <> or [] groups and ends at the first upper case letter.
func findValueType(usage string) int {
	runes := []rune(usage)
	if len(runes) == 0 {
		return 0
	}

	var (
		a, b  rune
		stack int
	)
	update := func(r rune) {
		switch r {
		case '<':
			a, b = '<', '>'
			stack = 1
		case '[':
			a, b = '[', ']'
			stack = 1
		}
	}
	update(runes[0])

	if stack == 0 {
		return 0
	}

	for i := 1; i < len(runes); i++ {
		if stack == 0 {
			if unicode.IsUpper(runes[i]) {
				return len(string(runes[:i]))
			}
			update(runes[i])
		} else {
			switch runes[i] {
			case a:
				stack++
			case b:
				stack--
			}
		}
	}

	if stack > 0 {
		panic("unbalanced brackets in usage string")
	}

	return len(usage)
}
