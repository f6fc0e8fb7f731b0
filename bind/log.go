// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"fmt"
	"strings"

	"github.com/mmatczuk/anyflag"
	"github.com/saucelabs/localproxy/log"
	"github.com/spf13/pflag"
)

// NamedParam is a value scoped to a named logger, it renders as "name:value".
type NamedParam[T fmt.Stringer] struct {
	Name  string
	Param *T
}

func (p NamedParam[T]) String() string {
	if p.Name == "" {
		return (*p.Param).String()
	}
	return p.Name + ":" + (*p.Param).String()
}

type logLevelFlag struct {
	*anyflag.SliceValue[NamedParam[log.Level]]
	update func()
}

func (f logLevelFlag) Set(val string) (err error) {
	err = f.SliceValue.Set(val)

	if err == nil {
		f.update()
	}

	return
}

func (f logLevelFlag) Replace(vals []string) (err error) {
	err = f.SliceValue.Replace(vals)

	if err == nil {
		f.update()
	}

	return
}

var parseLevel = anyflag.EnumParser[log.Level](log.ErrorLevel, log.InfoLevel, log.DebugLevel) //nolint:gochecknoglobals // read-only

// LogLevel binds the log-level flag.
// A plain level sets cfg.Level and the level of every named logger,
// "name:level" sets the level of a single named logger.
func LogLevel(fs *pflag.FlagSet, cfg *log.Config, loggers []NamedParam[log.Level]) {
	var src []NamedParam[log.Level]

	names := make([]string, 0, len(loggers))
	for _, l := range loggers {
		names = append(names, l.Name)
	}

	parse := func(val string) (NamedParam[log.Level], error) {
		name, level, ok := strings.Cut(val, ":")
		if !ok {
			name, level = "", val
		}
		if name != "" && !contains(names, name) {
			return NamedParam[log.Level]{}, fmt.Errorf("unknown logger %q, expected one of %s", name, strings.Join(names, ", "))
		}
		l, err := parseLevel(level)
		if err != nil {
			return NamedParam[log.Level]{}, err
		}
		return NamedParam[log.Level]{Name: name, Param: &l}, nil
	}

	f := logLevelFlag{
		SliceValue: anyflag.NewSliceValue[NamedParam[log.Level]](nil, &src, parse),
		update: func() {
			logLevelUpdate(cfg, loggers, src)
		},
	}

	fs.Var(f, "log-level", "<[name:]error|info|debug>"+
		"Log level. "+
		"Use name:level to set the level of a single logger, the loggers are: "+strings.Join(names, ", ")+". "+
		"The flag can be specified multiple times. ")
}

func logLevelUpdate(cfg *log.Config, dst, src []NamedParam[log.Level]) {
	// The last unnamed level is the default.
	for i := len(src) - 1; i >= 0; i-- {
		if src[i].Name == "" {
			cfg.Level = *src[i].Param
			break
		}
	}

	for i := range dst {
		*dst[i].Param = cfg.Level
		for j := len(src) - 1; j >= 0; j-- {
			if src[j].Name == dst[i].Name {
				*dst[i].Param = *src[j].Param
				break
			}
		}
	}
}

func contains(s []string, v string) bool {
	for i := range s {
		if s[i] == v {
			return true
		}
	}
	return false
}
