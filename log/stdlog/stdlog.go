// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package stdlog

import (
	"io"
	"log"
	"os"

	llog "github.com/saucelabs/localproxy/log"
)

// Option is a function that modifies the Logger.
type Option func(*Logger)

// WithLevel allows to set the logging level.
func WithLevel(level llog.Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

// WithOnError allows to set a function that is called when an error is logged.
// The function receives the name of the logger.
func WithOnError(f func(name string)) Option {
	return func(l *Logger) {
		l.onError = f
	}
}

// WithWriter overrides the output configured in Config.
func WithWriter(w io.Writer) Option {
	return func(l *Logger) {
		l.log.SetOutput(w)
	}
}

func Default() *Logger {
	return New(llog.DefaultConfig())
}

func New(cfg *llog.Config, opts ...Option) *Logger {
	var w io.Writer = os.Stdout
	if cfg.File != nil {
		w = cfg.File
	}

	l := &Logger{
		log:   log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC),
		level: cfg.Level,
	}
	l.setPrefixes("")

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Logger implements the localproxy log.Logger interface using the standard log package.
type Logger struct {
	log   *log.Logger
	name  string
	level llog.Level

	errorPfx string
	infoPfx  string
	debugPfx string

	onError func(name string)
}

// Named returns a copy of the logger that prefixes every message with the name.
func (sl Logger) Named(name string, opts ...Option) *Logger { //nolint:gocritic // we pass by value to get a copy
	sl.name = name
	sl.setPrefixes(name)
	for _, opt := range opts {
		opt(&sl)
	}
	return &sl
}

func (sl *Logger) setPrefixes(name string) {
	if name != "" {
		name = "[" + name + "] "
	}
	sl.errorPfx = name + "[ERROR] "
	sl.infoPfx = name + "[INFO] "
	sl.debugPfx = name + "[DEBUG] "
}

func (sl *Logger) Errorf(format string, args ...any) {
	if sl.onError != nil {
		sl.onError(sl.name)
	}
	if sl.level < llog.ErrorLevel {
		return
	}
	sl.log.Printf(sl.errorPfx+format, args...)
}

func (sl *Logger) Infof(format string, args ...any) {
	if sl.level < llog.InfoLevel {
		return
	}
	sl.log.Printf(sl.infoPfx+format, args...)
}

func (sl *Logger) Debugf(format string, args ...any) {
	if sl.level < llog.DebugLevel {
		return
	}
	sl.log.Printf(sl.debugPfx+format, args...)
}

// Unwrap returns the underlying log.Logger pointer.
func (sl *Logger) Unwrap() *log.Logger {
	return sl.log
}
