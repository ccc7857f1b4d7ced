// Package metrics records cache and upstream statistics. Counters are kept
// in-process for the JSON stats endpoint and bridged to Prometheus when
// InitPrometheus has been called.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects gateway counters
type Metrics struct {
	// Cache lookups
	Lookups atomic.Int64
	Hits    atomic.Int64
	Misses  atomic.Int64
	Stale   atomic.Int64
	Shared  atomic.Int64

	// Upstream latency (in milliseconds)
	Fetches        atomic.Int64
	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	outcomes sync.Map // outcome -> *atomic.Int64

	startTime time.Time
}

const maxInt64 = int64(^uint64(0) >> 1)

// Global metrics instance
var global = newMetrics()

func newMetrics() *Metrics {
	m := &Metrics{startTime: time.Now()}
	m.MinLatencyMs.Store(maxInt64)
	return m
}

// Global returns the process-wide metrics
func Global() *Metrics {
	return global
}

// StartTime returns when metrics collection started
func StartTime() time.Time {
	return global.startTime
}

// RecordLookup records a cache lookup; result is "hit", "miss" or "stale".
func (m *Metrics) RecordLookup(result string) {
	m.Lookups.Add(1)
	switch result {
	case "hit":
		m.Hits.Add(1)
	case "miss":
		m.Misses.Add(1)
	case "stale":
		m.Stale.Add(1)
	}
	RecordPrometheusLookup(result)
}

// RecordShared records a lookup that reused another caller's fetch.
func (m *Metrics) RecordShared() {
	m.Shared.Add(1)
	RecordPrometheusSharedFetch()
}

// RecordFetch records one upstream request and its classified outcome.
func (m *Metrics) RecordFetch(outcome string, durationMs int64) {
	m.Fetches.Add(1)
	m.TotalLatencyMs.Add(durationMs)
	updateMin(&m.MinLatencyMs, durationMs)
	updateMax(&m.MaxLatencyMs, durationMs)

	counter, _ := m.outcomes.LoadOrStore(outcome, new(atomic.Int64))
	counter.(*atomic.Int64).Add(1)

	RecordPrometheusFetch(outcome, durationMs)
}

// Snapshot returns a point-in-time snapshot of all metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	fetches := m.Fetches.Load()
	avgLatency := float64(0)
	if fetches > 0 {
		avgLatency = float64(m.TotalLatencyMs.Load()) / float64(fetches)
	}

	minLatency := m.MinLatencyMs.Load()
	if minLatency == maxInt64 {
		minLatency = 0
	}

	outcomes := make(map[string]int64)
	m.outcomes.Range(func(key, value interface{}) bool {
		outcomes[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	lookups := m.Lookups.Load()
	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"lookups": map[string]interface{}{
			"total":   lookups,
			"hit":     m.Hits.Load(),
			"miss":    m.Misses.Load(),
			"stale":   m.Stale.Load(),
			"shared":  m.Shared.Load(),
			"hit_pct": percentage(m.Hits.Load(), lookups),
		},
		"upstream": map[string]interface{}{
			"total":    fetches,
			"outcomes": outcomes,
			"latency_ms": map[string]interface{}{
				"avg": avgLatency,
				"min": minLatency,
				"max": m.MaxLatencyMs.Load(),
			},
		},
	}
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Snapshot())
	})
}

// Helper functions

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func percentage(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
