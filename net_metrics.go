// Copyright 2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package localproxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type dialerMetrics struct {
	errors prometheus.Counter
	dialed prometheus.Counter
	active prometheus.Gauge
}

func newDialerMetrics(r prometheus.Registerer, namespace string) *dialerMetrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &dialerMetrics{
		errors: f.NewCounter(prometheus.CounterOpts{
			Name:      "upstream_dial_errors_total",
			Namespace: namespace,
			Help:      "Number of errors dialing the upstream proxy",
		}),
		dialed: f.NewCounter(prometheus.CounterOpts{
			Name:      "upstream_cx_total",
			Namespace: namespace,
			Help:      "Number of connections dialed to the upstream proxy",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name:      "upstream_cx_active",
			Namespace: namespace,
			Help:      "Number of open connections to the upstream proxy",
		}),
	}
}

func (m *dialerMetrics) error() {
	m.errors.Inc()
}

func (m *dialerMetrics) dial() {
	m.dialed.Inc()
	m.active.Inc()
}

func (m *dialerMetrics) close() {
	m.active.Dec()
}
