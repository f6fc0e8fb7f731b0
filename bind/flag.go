// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmatczuk/anyflag"
	"github.com/saucelabs/localproxy"
	"github.com/saucelabs/localproxy/header"
	"github.com/saucelabs/localproxy/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func ConfigFile(fs *pflag.FlagSet, configFile *string) {
	fs.StringVarP(configFile,
		"config-file", "c", *configFile, "<path>"+
			"Configuration file to load options from. "+
			"The supported formats are: JSON, YAML, TOML, HCL, and Java properties. "+
			"The file format is determined by the file extension, if not specified the default format is YAML. "+
			"The following precedence order of configuration sources is used: command flags, environment variables, config file, default values. ")
}

func Upstream(fs *pflag.FlagSet, up **localproxy.UpstreamConfig) {
	fs.VarP(anyflag.NewValueWithRedact[*localproxy.UpstreamConfig](*up, up, localproxy.ParseUpstreamURL, RedactUpstream),
		"upstream", "u", "[protocol://][user:pass@]host[:port]"+
			"Upstream proxy all traffic is relayed through. "+
			"The supported protocols are: http, https, socks5. "+
			"No protocol specified will be treated as HTTP proxy. "+
			"If the port number is not specified, the protocol default is used: 80 for http, 443 for https and 1080 for socks5. "+
			"Username and password are URL decoded. "+
			"If not set, the value of the HTTPS_PROXY or HTTP_PROXY environment variable is used. ")
}

func ProxyConfig(fs *pflag.FlagSet, cfg *localproxy.ProxyConfig) {
	fs.StringVarP(&cfg.Addr,
		"address", "a", cfg.Addr, "<host:port>"+
			"The proxy address to listen on. "+
			"If the host is empty, the proxy will listen on all available interfaces. ")

	fs.Var(anyflag.NewValueWithRedact[*url.Userinfo](cfg.BasicAuth, &cfg.BasicAuth, localproxy.ParseUserInfo, RedactUserinfo),
		"basic-auth", "<username:password>"+
			"Basic authentication credentials clients must send to use the proxy. "+
			"Username and password are URL decoded. "+
			"This allows you to pass in special characters such as @ by using %40 or pass in a colon with %3a. ")

	fs.DurationVar(&cfg.ReadHeaderTimeout,
		"read-header-timeout", cfg.ReadHeaderTimeout,
		"The amount of time allowed to read the client request line and headers. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.ConnectTimeout,
		"connect-timeout", cfg.ConnectTimeout,
		"The maximum amount of time to wait for the upstream proxy connection and CONNECT handshake to complete. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.IdleTimeout,
		"idle-timeout", cfg.IdleTimeout,
		"Close tunnels and forwarded requests when no data is transferred in either direction for this long. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.ResponseHeaderTimeout,
		"response-header-timeout", cfg.ResponseHeaderTimeout,
		"The amount of time to wait for the upstream response headers after fully writing a forwarded request. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.ShutdownTimeout,
		"shutdown-timeout", cfg.ShutdownTimeout,
		"The amount of time to wait for active connections to finish on shutdown. "+
			"Connections still open after that are closed. ")

	fs.Int64Var(&cfg.MaxRequestBodySize,
		"max-request-body-size", cfg.MaxRequestBodySize, "<bytes>"+
			"The largest request body accepted for forwarded requests. "+
			"Larger requests are rejected with status 413. ")

	fs.Int64Var(&cfg.ReadLimit,
		"read-limit", cfg.ReadLimit, "<bytes/s>"+
			"Global read rate limit in bytes per second i.e. how many bytes per second you can receive from clients. "+
			"Zero means no limit. ")

	fs.Int64Var(&cfg.WriteLimit,
		"write-limit", cfg.WriteLimit, "<bytes/s>"+
			"Global write rate limit in bytes per second i.e. how many bytes per second you can send to clients. "+
			"Zero means no limit. ")

	fs.BoolVar(&cfg.InsecureSkipVerify,
		"insecure", cfg.InsecureSkipVerify,
		"Don't verify the certificate chain and host name of an https upstream proxy. "+
			"Enable to work with self-signed certificates. ")

	RequestHeaders(fs, &cfg.RequestHeaders)
	ConnectHeaders(fs, &cfg.ConnectHeaders)
}

func RequestHeaders(fs *pflag.FlagSet, headers *header.Headers) {
	fs.VarP(anyflag.NewSliceValueWithRedact[header.Header](*headers, (*[]header.Header)(headers), header.ParseHeader, RedactHeader),
		"header", "H", "<header>"+
			"Add or remove HTTP headers of forwarded requests. "+
			"Use the format \"name: value\" to add a header, "+
			"\"name;\" to set the header to empty value, "+
			"\"-name\" to remove the header, "+
			"\"-name*\" to remove headers by prefix. "+
			"Header names are case insensitive. "+
			"The flag can be specified multiple times. "+
			"Example: -H \"X-Team: qa\" -H \"-User-Agent\" -H \"-X-Debug-*\". ")
}

func ConnectHeaders(fs *pflag.FlagSet, headers *header.Headers) {
	fs.Var(anyflag.NewSliceValueWithRedact[header.Header](*headers, (*[]header.Header)(headers), header.ParseHeader, RedactHeader),
		"connect-header", "<header>"+
			"Add or remove HTTP headers of CONNECT requests sent to the upstream proxy. "+
			"See the documentation for the -H, --header flag for more details on the format. ")
}

func HTTPServerConfig(fs *pflag.FlagSet, cfg *localproxy.HTTPServerConfig, prefix string) {
	namePrefix := prefix
	if namePrefix != "" {
		namePrefix += "-"
	}

	fs.StringVar(&cfg.Addr,
		namePrefix+"address", cfg.Addr, "<host:port>"+
			"The server address to listen on. "+
			"If empty, the server is disabled. ")

	fs.Var(anyflag.NewValueWithRedact[*url.Userinfo](cfg.BasicAuth, &cfg.BasicAuth, localproxy.ParseUserInfo, RedactUserinfo),
		namePrefix+"basic-auth", "<username:password>"+
			"Basic authentication credentials to protect the server. ")

	fs.DurationVar(&cfg.ReadHeaderTimeout,
		namePrefix+"read-header-timeout", cfg.ReadHeaderTimeout,
		"The amount of time allowed to read request headers.")

	fs.DurationVar(&cfg.ShutdownTimeout,
		namePrefix+"shutdown-timeout", cfg.ShutdownTimeout,
		"The amount of time to wait for the server to shutdown.")
}

func LogConfig(fs *pflag.FlagSet, cfg *log.Config) {
	fs.Var(NewFileFlag(&cfg.File, OpenFileParser(log.DefaultFileFlags, log.DefaultFileMode, 0o700)),
		"log-file", "<path>"+
			"Path to the log file, if empty, logs to stdout. ")
}

// OpenFileParser returns a parser that opens the file, creating parent directories with dirPerm if needed.
func OpenFileParser(flag int, perm, dirPerm os.FileMode) func(val string) (*os.File, error) {
	return func(val string) (*os.File, error) {
		if val == "" {
			return nil, nil
		}

		if dirPerm != 0 {
			if err := os.MkdirAll(filepath.Dir(val), dirPerm); err != nil {
				return nil, err
			}
		}
		return os.OpenFile(val, flag, perm)
	}
}

func MarkFlagHidden(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.Flags().MarkHidden(name); err != nil {
			panic(err)
		}
	}
}

func AutoMarkFlagFilename(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if strings.HasPrefix(f.Usage, "<path") || strings.HasSuffix(f.Name, "-file") {
			if err := cmd.MarkFlagFilename(f.Name); err != nil {
				panic(err)
			}
		}
	})
}
