// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package version

import (
	"encoding/json"
	"fmt"

	"github.com/saucelabs/localproxy/internal/version"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := version.Get()
			w := cmd.OutOrStdout()

			if asJSON {
				return json.NewEncoder(w).Encode(v)
			}
			_, err := fmt.Fprint(w, v)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version information as JSON.")

	return cmd
}
