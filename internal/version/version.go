// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package version holds build information set with -ldflags at build time.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	buildVersion = "devel"
	buildTime    = "unknown"
	buildCommit  = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Time      string `json:"time"`
	Commit    string `json:"commit"`
	GoArch    string `json:"go_arch"`
	GoOS      string `json:"go_os"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   buildVersion,
		Time:      buildTime,
		Commit:    buildCommit,
		GoArch:    runtime.GOARCH,
		GoOS:      runtime.GOOS,
		GoVersion: runtime.Version(),
	}
}

// String prints the version in a tabular form.
func (v Info) String() string {
	buf := new(strings.Builder)
	fmt.Fprintln(buf, "Version:\t", v.Version)
	fmt.Fprintln(buf, "Built time:\t", v.Time)
	fmt.Fprintln(buf, "Git commit:\t", v.Commit)
	fmt.Fprintln(buf, "Go Arch:\t", v.GoArch)
	fmt.Fprintln(buf, "Go OS:\t\t", v.GoOS)
	fmt.Fprintln(buf, "Go Version:\t", v.GoVersion)
	return buf.String()
}
