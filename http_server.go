// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saucelabs/localproxy/log"
	"github.com/saucelabs/localproxy/middleware"
	"go.uber.org/multierr"
)

type HTTPServerConfig struct {
	Addr              string
	BasicAuth         *url.Userinfo
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	PromRegistry  prometheus.Registerer
	PromNamespace string
}

func DefaultHTTPServerConfig() *HTTPServerConfig {
	return &HTTPServerConfig{
		Addr:              "localhost:10000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		PromNamespace:     "localproxy",
	}
}

// HTTPServer serves h, it is used for the API endpoints.
type HTTPServer struct {
	config   HTTPServerConfig
	log      log.Logger
	srv      *http.Server
	listener net.Listener
}

// NewHTTPServer binds the address and wraps h with metrics and optional basic auth.
func NewHTTPServer(cfg *HTTPServerConfig, h http.Handler, log log.Logger) (*HTTPServer, error) {
	if cfg.BasicAuth != nil {
		pass, _ := cfg.BasicAuth.Password()
		h = middleware.NewBasicAuth().Wrap(h, cfg.BasicAuth.Username(), pass)
	}
	h = middleware.NewPrometheus(cfg.PromRegistry, cfg.PromNamespace+"_api").Wrap(h)

	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open listener on address %s: %w", cfg.Addr, err)
	}

	hs := &HTTPServer{
		config: *cfg,
		log:    log,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		listener: l,
	}
	hs.log.Infof("HTTP server listen address=%s", l.Addr())

	return hs, nil
}

// Addr returns the address the server is listening on.
func (hs *HTTPServer) Addr() string {
	return hs.listener.Addr().String()
}

func (hs *HTTPServer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)

		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), hs.config.ShutdownTimeout)
		defer cancel()
		if err := hs.srv.Shutdown(sctx); err != nil {
			hs.log.Errorf("failed to shutdown server error=%s", err)
		}
	}()

	err := hs.srv.Serve(hs.listener)
	cancel()
	<-done

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close closes the server and the listener, it is safe to call before Run.
func (hs *HTTPServer) Close() error {
	err := hs.srv.Close()
	if lerr := hs.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) {
		err = multierr.Append(err, lerr)
	}
	return err
}
