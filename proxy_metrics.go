// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type proxyMetrics struct {
	accepted      prometheus.Counter
	active        prometheus.Gauge
	requests      *prometheus.CounterVec
	tunnels       *prometheus.CounterVec
	tunnelsClosed *prometheus.CounterVec
	tunnelBytes   *prometheus.CounterVec
	errors        *prometheus.CounterVec
}

func newProxyMetrics(r prometheus.Registerer, namespace string) *proxyMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &proxyMetrics{
		accepted: f.NewCounter(prometheus.CounterOpts{
			Name:      "proxy_cx_total",
			Namespace: namespace,
			Help:      "Number of accepted client connections",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name:      "proxy_cx_active",
			Namespace: namespace,
			Help:      "Number of open client connections",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "proxy_requests_total",
			Namespace: namespace,
			Help:      "Number of forwarded HTTP requests by method and status code",
		}, []string{"method", "code"}),
		tunnels: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "proxy_tunnels_total",
			Namespace: namespace,
			Help:      "Number of CONNECT tunnels by result",
		}, []string{"result"}),
		tunnelsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "proxy_tunnels_closed_total",
			Namespace: namespace,
			Help:      "Number of closed CONNECT tunnels by close reason",
		}, []string{"reason"}),
		tunnelBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "proxy_tunnel_bytes_total",
			Namespace: namespace,
			Help:      "Number of bytes relayed through CONNECT tunnels by direction",
		}, []string{"direction"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "proxy_errors_total",
			Namespace: namespace,
			Help:      "Number of proxy errors",
		}, []string{"reason"}),
	}
}

func (m *proxyMetrics) connOpened() {
	m.accepted.Inc()
	m.active.Inc()
}

func (m *proxyMetrics) connClosed() {
	m.active.Dec()
}

func (m *proxyMetrics) request(method string, code int) {
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func (m *proxyMetrics) tunnel(result string) {
	m.tunnels.WithLabelValues(result).Inc()
}

func (m *proxyMetrics) tunnelClosed(s RelayStats) {
	m.tunnelsClosed.WithLabelValues(string(s.Reason)).Inc()
	m.tunnelBytes.WithLabelValues("client_to_upstream").Add(float64(s.ClientToUpstream))
	m.tunnelBytes.WithLabelValues("upstream_to_client").Add(float64(s.UpstreamToClient))
}

func (m *proxyMetrics) error(reason string) {
	m.errors.WithLabelValues(reason).Inc()
}
