// Copyright 2024 The MAAP Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes maapd's Prometheus instrumentation,
// structured the way internal/obs does for the lock server: a struct
// of vectors/gauges built by NewMetrics and registered once with a
// *prometheus.Registry supplied by the caller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maap-project/maapd/internal/engine"
)

// Metrics holds every Prometheus collector maapd exports.
type Metrics struct {
	RangesByState  *prometheus.GaugeVec   // state=probing|defending|released
	NotifyTotal    *prometheus.CounterVec // kind=acquired|yielded|...
	FramesSent     prometheus.Counter
	FramesRecv     prometheus.Counter
	FramesDropped  *prometheus.CounterVec // reason=malformed|not_maap|send_error
	ReserveLatency prometheus.Histogram
}

// NewMetrics builds and registers maapd's collectors against reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RangesByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "maap_ranges_by_state",
				Help: "Number of locally-owned ranges currently in each state",
			},
			[]string{"state"},
		),
		NotifyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maap_notifications_total",
				Help: "Total notifications emitted by the engine, by kind",
			},
			[]string{"kind"},
		),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maap_frames_sent_total",
			Help: "Total MAAP frames transmitted",
		}),
		FramesRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maap_frames_received_total",
			Help: "Total frames received on the MAAP ethertype",
		}),
		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maap_frames_dropped_total",
				Help: "Total received frames dropped, by reason",
			},
			[]string{"reason"},
		),
		ReserveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maap_reserve_to_acquired_seconds",
			Help:    "Time from ReserveRange to the ACQUIRED notification",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms .. ~12.8s
		}),
	}

	reg.MustRegister(
		m.RangesByState,
		m.NotifyTotal,
		m.FramesSent,
		m.FramesRecv,
		m.FramesDropped,
		m.ReserveLatency,
	)

	return m
}

// ObserveNotify updates counters and state gauges from one engine
// Notify. Callers drain NextNotify in a loop and feed each one here.
func (m *Metrics) ObserveNotify(n engine.Notify) {
	m.NotifyTotal.WithLabelValues(notifyLabel(n.Kind)).Inc()

	switch n.Kind {
	case engine.NotifyAcquired:
		m.RangesByState.WithLabelValues("probing").Dec()
		m.RangesByState.WithLabelValues("defending").Inc()
	case engine.NotifyAcquiring:
		m.RangesByState.WithLabelValues("probing").Inc()
	case engine.NotifyReleased, engine.NotifyYielded:
		m.RangesByState.WithLabelValues(stateLabel(n.State)).Dec()
	}
}

// ObserveDrop increments the dropped-frame counter for reason.
func (m *Metrics) ObserveDrop(reason string) {
	m.FramesDropped.WithLabelValues(reason).Inc()
}

func notifyLabel(k engine.NotifyKind) string {
	switch k {
	case engine.NotifyAcquired:
		return "acquired"
	case engine.NotifyAcquiring:
		return "acquiring"
	case engine.NotifyReleased:
		return "released"
	case engine.NotifyStatus:
		return "status"
	case engine.NotifyYielded:
		return "yielded"
	case engine.NotifyReserveFailed:
		return "reserve_failed"
	case engine.NotifyReleaseFailed:
		return "release_failed"
	case engine.NotifyInitialized:
		return "initialized"
	case engine.NotifyInitFailed:
		return "init_failed"
	default:
		return "unknown"
	}
}

func stateLabel(s engine.State) string {
	switch s {
	case engine.StateProbing:
		return "probing"
	case engine.StateDefending:
		return "defending"
	case engine.StateReleased:
		return "released"
	default:
		return "invalid"
	}
}
