// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mmatczuk/anyflag"
	"github.com/spf13/cobra"
)

type testConfig struct {
	Address string
	Timeout time.Duration
	Headers []string
	IPs     []netip.Addr
}

var testConfigFiles = map[string]string{ //nolint:gochecknoglobals // test data
	"yaml": `
address: 127.0.0.1:9999
timeout: 5s
headers:
  - "X-A: 1"
  - "-X-B"
ips:
  - 127.0.0.1
  - 127.0.0.2
`,
	"json": `{
  "address": "127.0.0.1:9999",
  "timeout": "5s",
  "headers": ["X-A: 1", "-X-B"],
  "ips": ["127.0.0.1", "127.0.0.2"]
}`,
	"toml": `
address = "127.0.0.1:9999"
timeout = "5s"
headers = ["X-A: 1", "-X-B"]
ips = ["127.0.0.1", "127.0.0.2"]
`,
}

func newTestCommand(cfg *testConfig, configFile string) *cobra.Command {
	cmd := &cobra.Command{}
	fs := cmd.Flags()
	fs.String("config-file", configFile, "")
	fs.StringVar(&cfg.Address, "address", "localhost:8888", "")
	fs.DurationVar(&cfg.Timeout, "timeout", time.Second, "")
	fs.StringSliceVar(&cfg.Headers, "headers", nil, "")
	fs.Var(anyflag.NewSliceValue[netip.Addr](nil, &cfg.IPs, netip.ParseAddr), "ips", "")
	return cmd
}

func TestBindAllConfigFile(t *testing.T) {
	expected := testConfig{
		Address: "127.0.0.1:9999",
		Timeout: 5 * time.Second,
		Headers: []string{"X-A: 1", "-X-B"},
		IPs: []netip.Addr{
			netip.MustParseAddr("127.0.0.1"),
			netip.MustParseAddr("127.0.0.2"),
		},
	}
	ipcmp := cmp.Comparer(func(a, b netip.Addr) bool {
		return a == b
	})

	for ext, content := range testConfigFiles {
		ext, content := ext, content
		t.Run(ext, func(t *testing.T) {
			f := filepath.Join(t.TempDir(), "config."+ext)
			if err := os.WriteFile(f, []byte(content), 0o600); err != nil {
				t.Fatal(err)
			}

			var cfg testConfig
			if err := BindAll(newTestCommand(&cfg, f), "TEST", "config-file"); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(expected, cfg, ipcmp); diff != "" {
				t.Fatalf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBindAllPrecedence(t *testing.T) {
	f := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(f, []byte(testConfigFiles["yaml"]), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_TIMEOUT", "7s")
	t.Setenv("TEST_ADDRESS", "127.0.0.1:7777")

	var cfg testConfig
	cmd := newTestCommand(&cfg, f)
	if err := cmd.Flags().Set("address", "127.0.0.1:1111"); err != nil {
		t.Fatal(err)
	}
	if err := BindAll(cmd, "test", "config-file"); err != nil {
		t.Fatal(err)
	}

	if cfg.Address != "127.0.0.1:1111" {
		t.Errorf("flag should win, got address %q", cfg.Address)
	}
	if cfg.Timeout != 7*time.Second {
		t.Errorf("env should win over config file, got timeout %s", cfg.Timeout)
	}
	if len(cfg.IPs) != 2 {
		t.Errorf("config file value not applied, got %v", cfg.IPs)
	}
}

func TestBindAllInvalidValue(t *testing.T) {
	t.Setenv("TEST_TIMEOUT", "forever")

	var cfg testConfig
	if err := BindAll(newTestCommand(&cfg, ""), "TEST", "config-file"); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvName(t *testing.T) {
	if got, want := EnvName("localproxy", "api-basic-auth"), "LOCALPROXY_API_BASIC_AUTH"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
