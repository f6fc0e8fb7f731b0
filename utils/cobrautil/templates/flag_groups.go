// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package templates

import (
	"strings"

	"github.com/spf13/pflag"
)

// FlagGroup is a named section of the help output.
// A flag belongs to the first group with a matching name prefix.
type FlagGroup struct {
	Name   string
	Prefix []string
}

type FlagGroups []FlagGroup

func (g FlagGroup) match(name string) bool {
	for _, p := range g.Prefix {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// GroupedFlags are the flags of a single group.
type GroupedFlags struct {
	Name  string
	Flags *pflag.FlagSet
}

// SplitFlagSet splits a flag set by group, in group order.
// Flags that match no group are returned in a trailing "Other options" group.
// Empty groups are omitted.
func SplitFlagSet(g FlagGroups, fs *pflag.FlagSet) []GroupedFlags {
	groups := make([]GroupedFlags, len(g)+1)
	for i := range g {
		groups[i] = GroupedFlags{Name: g[i].Name, Flags: pflag.NewFlagSet(g[i].Name, pflag.ContinueOnError)}
	}
	groups[len(g)] = GroupedFlags{Name: "Other options", Flags: pflag.NewFlagSet("other", pflag.ContinueOnError)}

	fs.VisitAll(func(f *pflag.Flag) {
		for i := range g {
			if g[i].match(f.Name) {
				groups[i].Flags.AddFlag(f)
				return
			}
		}
		groups[len(g)].Flags.AddFlag(f)
	})

	result := groups[:0]
	for _, gf := range groups {
		if gf.Flags.HasFlags() {
			result = append(result, gf)
		}
	}
	return result
}
