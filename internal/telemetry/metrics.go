// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the fusion core and its hosts.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	UpdateTicks        *prometheus.CounterVec
	UpdateDuration     prometheus.Histogram
	SamplesReceived    *prometheus.CounterVec
	PermissionOutcomes *prometheus.CounterVec
	HeadingDegrees     prometheus.Gauge
	Sessions           prometheus.Gauge
}

// Tick results.
const (
	TickApplied  = "applied"
	TickDisabled = "disabled"
	TickNoSample = "no_sample"
)

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// InitMetrics registers the metrics with registry (the default registerer
// when nil). Call it once per registry.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	// 10µs .. 10ms; an update tick is a handful of trig calls.
	buckets := []float64{0.00001, 0.00002, 0.00005, 0.0001, 0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01}

	m := &Metrics{
		UpdateTicks: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "arfusion_update_ticks_total",
				Help: "Update ticks by result",
			},
			[]string{"result"},
		),
		UpdateDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arfusion_update_duration_seconds",
				Help:    "Time spent in one applied update tick",
				Buckets: buckets,
			},
		),
		SamplesReceived: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "arfusion_samples_received_total",
				Help: "Sensor events received by kind",
			},
			[]string{"kind"},
		),
		PermissionOutcomes: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "arfusion_permission_outcomes_total",
				Help: "Permission controller resting states reached",
			},
			[]string{"state"},
		),
		HeadingDegrees: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "arfusion_heading_degrees",
				Help: "Last computed compass heading",
			},
		),
		Sessions: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "arfusion_browser_sessions",
				Help: "Open browser bridge sessions",
			},
		),
	}

	return m
}

// Default returns the default metrics instance, registering it with the
// default registerer on first use.
func Default() *Metrics {
	defaultOnce.Do(func() { defaultMetrics = InitMetrics(nil) })
	return defaultMetrics
}

// Tick counts one update tick with the given result.
func (m *Metrics) Tick(result string, started time.Time) {
	if m == nil {
		return
	}
	m.UpdateTicks.WithLabelValues(result).Inc()
	if result == TickApplied {
		m.UpdateDuration.Observe(time.Since(started).Seconds())
	}
}

// Sample counts one received sensor event.
func (m *Metrics) Sample(kind string) {
	if m == nil {
		return
	}
	m.SamplesReceived.WithLabelValues(kind).Inc()
}

// Permission counts a resting permission state.
func (m *Metrics) Permission(state string) {
	if m == nil {
		return
	}
	m.PermissionOutcomes.WithLabelValues(state).Inc()
}

// Heading records the last heading.
func (m *Metrics) Heading(deg float64) {
	if m == nil {
		return
	}
	m.HeadingDegrees.Set(deg)
}

// SessionOpened and SessionClosed track browser bridge sessions.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.Sessions.Dec()
}
