// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorlink"

// Metrics holds every sensorlink collector and the registry they are
// registered with.
type Metrics struct {
	registry *prometheus.Registry

	readingsIngested *prometheus.CounterVec
	rangesCreated    prometheus.Counter
	ingestFailures   *prometheus.CounterVec
	ingestDuration   prometheus.Histogram

	polls         *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	pollCycles    prometheus.Counter
	devicesPolled prometheus.Gauge

	discoveryScans    prometheus.Counter
	discoveryProbes   prometheus.Counter
	discoveryDevices  prometheus.Counter
	discoveryDuration prometheus.Histogram

	alertsTriggered  *prometheus.CounterVec
	alertDeliveries  *prometheus.CounterVec
	alertEvaluations *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "readings_total",
			Help:      "Readings appended to the reading store",
		}, []string{"source_kind"}),
		rangesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "link_ranges_total",
			Help:      "Link ranges created by ingestion",
		}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "failures_total",
			Help:      "Ingest calls that failed, by error category",
		}, []string{"category"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Time to append, link, and evaluate one ingest batch",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Device poll attempts by result",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "poll_duration_seconds",
			Help:      "Time to fetch and ingest one device",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Scheduler ticks processed",
		}),
		devicesPolled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "last_cycle_devices",
			Help:      "Devices polled in the most recent cycle",
		}),

		discoveryScans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scans_total",
			Help:      "Discovery scans run",
		}),
		discoveryProbes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "probes_total",
			Help:      "Addresses probed by discovery scans",
		}),
		discoveryDevices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices_found_total",
			Help:      "Compatible devices found by discovery scans",
		}),
		discoveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scan_duration_seconds",
			Help:      "Wall time of one discovery scan",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),

		alertsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "triggered_total",
			Help:      "Alert events emitted, by priority",
		}, []string{"priority"}),
		alertDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "deliveries_total",
			Help:      "Alert deliveries to the notification sink, by result",
		}, []string{"result"}),
		alertEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "evaluations_total",
			Help:      "Rule evaluations by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.readingsIngested,
		m.rangesCreated,
		m.ingestFailures,
		m.ingestDuration,
		m.polls,
		m.pollDuration,
		m.pollCycles,
		m.devicesPolled,
		m.discoveryScans,
		m.discoveryProbes,
		m.discoveryDevices,
		m.discoveryDuration,
		m.alertsTriggered,
		m.alertDeliveries,
		m.alertEvaluations,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// IngestSucceeded records one committed ingest batch.
func (m *Metrics) IngestSucceeded(sourceKind string, readings, ranges int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.readingsIngested.WithLabelValues(sourceKind).Add(float64(readings))
	m.rangesCreated.Add(float64(ranges))
	m.ingestDuration.Observe(elapsed.Seconds())
}

// IngestFailed records one failed ingest call.
func (m *Metrics) IngestFailed(category string) {
	if m == nil {
		return
	}
	m.ingestFailures.WithLabelValues(category).Inc()
}

// PollCompleted records one device poll. result is "success",
// "failure", or "skipped".
func (m *Metrics) PollCompleted(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
	if result != "skipped" {
		m.pollDuration.Observe(elapsed.Seconds())
	}
}

// CycleCompleted records one scheduler tick that polled devices.
func (m *Metrics) CycleCompleted(devices int) {
	if m == nil {
		return
	}
	m.pollCycles.Inc()
	m.devicesPolled.Set(float64(devices))
}

// ScanCompleted records one discovery scan.
func (m *Metrics) ScanCompleted(probed, found int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.discoveryScans.Inc()
	m.discoveryProbes.Add(float64(probed))
	m.discoveryDevices.Add(float64(found))
	m.discoveryDuration.Observe(elapsed.Seconds())
}

// RuleEvaluated records the outcome of evaluating one rule: "fired",
// "not_matched", "cooldown", "non_numeric", or "error".
func (m *Metrics) RuleEvaluated(outcome string) {
	if m == nil {
		return
	}
	m.alertEvaluations.WithLabelValues(outcome).Inc()
}

// AlertTriggered records one emitted alert event.
func (m *Metrics) AlertTriggered(priority string) {
	if m == nil {
		return
	}
	if priority == "" {
		priority = "none"
	}
	m.alertsTriggered.WithLabelValues(priority).Inc()
}

// AlertDelivered records one delivery attempt.
func (m *Metrics) AlertDelivered(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.alertDeliveries.WithLabelValues(result).Inc()
}
