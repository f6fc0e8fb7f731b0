// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/saucelabs/localproxy/log/stdlog"
)

type fakeReadiness struct {
	ready atomic.Bool
}

func (f *fakeReadiness) Ready() bool {
	return f.ready.Load()
}

func TestAPIHandler(t *testing.T) {
	r := prometheus.NewRegistry()
	m := newProxyMetrics(r, "localproxy")
	m.error("upstream_connect")

	var ready fakeReadiness
	srv := httptest.NewServer(NewAPIHandler(r, &ready, "upstream=http://proxy:8080\n"))
	defer srv.Close()

	e := httpexpect.Default(t, srv.URL)

	e.GET("/healthz").Expect().Status(http.StatusOK).Body().IsEqual("OK")
	e.GET("/readyz").Expect().Status(http.StatusServiceUnavailable)
	ready.ready.Store(true)
	e.GET("/readyz").Expect().Status(http.StatusOK).Body().IsEqual("OK")
	e.GET("/configz").Expect().Status(http.StatusOK).Body().Contains("upstream=http://proxy:8080")
	e.GET("/version").Expect().Status(http.StatusOK).JSON().Object().ContainsKey("version")

	body := e.GET("/metrics").Expect().Status(http.StatusOK).Body().Raw()

	var parser expfmt.TextParser
	mf, err := parser.TextToMetricFamilies(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	f, ok := mf["localproxy_proxy_errors_total"]
	if !ok {
		t.Fatalf("missing metric, got %d families", len(mf))
	}
	if len(f.GetMetric()) != 1 || f.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("unexpected metric %v", f)
	}
}

func TestHTTPServerBasicAuth(t *testing.T) {
	cfg := DefaultHTTPServerConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.BasicAuth = url.UserPassword("admin", "pass")
	cfg.PromRegistry = prometheus.NewRegistry()

	var ready fakeReadiness
	hs, err := NewHTTPServer(cfg, NewAPIHandler(prometheus.NewRegistry(), &ready, ""), stdlog.Default())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.Run(ctx)
	}()
	defer func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Error(err)
			}
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	}()

	e := httpexpect.Default(t, "http://"+hs.Addr())
	e.GET("/healthz").Expect().Status(http.StatusUnauthorized)
	e.GET("/healthz").WithBasicAuth("admin", "pass").Expect().Status(http.StatusOK).Body().IsEqual("OK")
}
