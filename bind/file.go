// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"os"

	"github.com/mmatczuk/anyflag"
	"github.com/spf13/pflag"
)

// fileValue renders the file name, or nothing when no file is set.
type fileValue struct {
	*anyflag.Value[*os.File]
	f **os.File
}

func (v fileValue) String() string {
	if *v.f == nil {
		return ""
	}
	return (*v.f).Name()
}

// NewFileFlag returns a flag value that opens the file with open when set.
func NewFileFlag(f **os.File, open func(val string) (*os.File, error)) pflag.Value {
	if f == nil {
		panic("nil pointer")
	}
	return fileValue{
		Value: anyflag.NewValue[*os.File](*f, f, open),
		f:     f,
	}
}
