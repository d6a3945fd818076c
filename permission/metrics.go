// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package permission

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments Permission reports against. The
// zero value is unusable; construct one with NewMetrics and register it
// with a prometheus.Registerer of the caller's choosing (Permission never
// registers on the default registry itself, so multiple engines in the
// same process don't collide).
type Metrics struct {
	changeBatchSize *prometheus.HistogramVec
	changeDuration  *prometheus.HistogramVec
	checkDuration   prometheus.Histogram
	checkCacheHits  prometheus.Counter
	checkCacheMiss  prometheus.Counter
	poisoned        prometheus.Gauge
}

// NewMetrics builds a Metrics instance and registers its collectors with
// reg. Pass prometheus.NewRegistry() in tests to avoid duplicate
// registration panics across subtests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		changeBatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cando",
			Subsystem: "permission",
			Name:      "change_batch_size",
			Help:      "Size of batches passed to Change, partitioned by outcome.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"outcome"}),
		changeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cando",
			Subsystem: "permission",
			Name:      "change_duration_seconds",
			Help:      "Latency of Change calls, partitioned by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cando",
			Subsystem: "permission",
			Name:      "check_duration_seconds",
			Help:      "Latency of Check calls.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
		}),
		checkCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cando",
			Subsystem: "permission",
			Name:      "check_cache_hits_total",
			Help:      "Check calls answered from the result cache.",
		}),
		checkCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cando",
			Subsystem: "permission",
			Name:      "check_cache_misses_total",
			Help:      "Check calls that required a graph traversal.",
		}),
		poisoned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cando",
			Subsystem: "permission",
			Name:      "poisoned",
			Help:      "1 if the engine has poisoned itself, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		m.changeBatchSize,
		m.changeDuration,
		m.checkDuration,
		m.checkCacheHits,
		m.checkCacheMiss,
		m.poisoned,
	)
	return m
}

func (m *Metrics) observeChange(outcome string, batchSize int, seconds float64) {
	if m == nil {
		return
	}
	m.changeBatchSize.WithLabelValues(outcome).Observe(float64(batchSize))
	m.changeDuration.WithLabelValues(outcome).Observe(seconds)
}

func (m *Metrics) observeCheck(seconds float64, cacheHit bool) {
	if m == nil {
		return
	}
	m.checkDuration.Observe(seconds)
	if cacheHit {
		m.checkCacheHits.Inc()
	} else {
		m.checkCacheMiss.Inc()
	}
}

func (m *Metrics) setPoisoned(poisoned bool) {
	if m == nil {
		return
	}
	if poisoned {
		m.poisoned.Set(1)
	} else {
		m.poisoned.Set(0)
	}
}
