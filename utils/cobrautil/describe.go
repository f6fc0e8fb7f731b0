// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type DescribeFormat int

const (
	Plain DescribeFormat = iota
	JSON
	YAML
)

// DescribeFlags renders the current flag values.
// Values are rendered with their String method, flags created with a redact function never expose secrets.
func DescribeFlags(fs *pflag.FlagSet, format DescribeFormat) (string, error) {
	return FlagsDescriber{
		Format: format,
	}.DescribeFlags(fs)
}

type FlagsDescriber struct {
	Format          DescribeFormat
	ShowChangedOnly bool
	ShowHidden      bool
}

func (d FlagsDescriber) DescribeFlags(fs *pflag.FlagSet) (string, error) {
	args := make(map[string]any, fs.NFlag())
	var keys []string

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		if f.Hidden && !d.ShowHidden {
			return
		}
		if d.ShowChangedOnly && !f.Changed {
			return
		}
		keys = append(keys, f.Name)

		switch v := f.Value.(type) {
		case sliceValue:
			if d.Format == Plain {
				args[f.Name] = strings.Join(v.GetSlice(), ",")
			} else {
				args[f.Name] = v.GetSlice()
			}
		default:
			if f.Value.Type() == "bool" {
				args[f.Name] = f.Value.String() == "true"
			} else {
				args[f.Name] = f.Value.String()
			}
		}
	})
	sort.Strings(keys)

	switch d.Format {
	case Plain:
		var sb strings.Builder
		for _, name := range keys {
			fmt.Fprintf(&sb, "%s=%v\n", name, args[name])
		}
		return sb.String(), nil
	case JSON:
		b, err := json.Marshal(args)
		return string(b), err
	case YAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(args); err != nil {
			return "", err
		}
		if err := enc.Close(); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return "", errors.New("unknown format")
	}
}

type sliceValue interface {
	GetSlice() []string
}
