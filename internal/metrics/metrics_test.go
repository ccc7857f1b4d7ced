package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecordLookupCounts(t *testing.T) {
	m := newMetrics()

	m.RecordLookup("hit")
	m.RecordLookup("hit")
	m.RecordLookup("miss")
	m.RecordLookup("stale")

	if m.Lookups.Load() != 4 {
		t.Fatalf("expected 4 lookups, got %d", m.Lookups.Load())
	}
	if m.Hits.Load() != 2 || m.Misses.Load() != 1 || m.Stale.Load() != 1 {
		t.Fatalf("unexpected counts: hit=%d miss=%d stale=%d", m.Hits.Load(), m.Misses.Load(), m.Stale.Load())
	}

	lookups := m.Snapshot()["lookups"].(map[string]interface{})
	if lookups["hit_pct"].(float64) != 50 {
		t.Fatalf("expected hit_pct 50, got %v", lookups["hit_pct"])
	}
}

func TestRecordFetchLatency(t *testing.T) {
	m := newMetrics()

	m.RecordFetch("success", 30)
	m.RecordFetch("success", 10)
	m.RecordFetch("timeout", 50)

	snap := m.Snapshot()["upstream"].(map[string]interface{})
	outcomes := snap["outcomes"].(map[string]int64)
	if outcomes["success"] != 2 || outcomes["timeout"] != 1 {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
	latency := snap["latency_ms"].(map[string]interface{})
	if latency["min"].(int64) != 10 || latency["max"].(int64) != 50 || latency["avg"].(float64) != 30 {
		t.Fatalf("unexpected latency: %v", latency)
	}
}

func TestSnapshotWithoutFetches(t *testing.T) {
	m := newMetrics()

	latency := m.Snapshot()["upstream"].(map[string]interface{})["latency_ms"].(map[string]interface{})
	if latency["min"].(int64) != 0 {
		t.Fatalf("expected min 0 before any fetch, got %v", latency["min"])
	}
}

func TestJSONHandler(t *testing.T) {
	m := newMetrics()
	m.RecordLookup("miss")

	rec := httptest.NewRecorder()
	m.JSONHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["lookups"]; !ok {
		t.Fatalf("expected lookups section, got %v", body)
	}
}

func TestPrometheusHandlerExposesCollectors(t *testing.T) {
	InitPrometheus("airgate_test", nil)
	defer func() { promMetrics = nil }()

	m := newMetrics()
	m.RecordLookup("hit")
	m.RecordFetch("success", 12)
	SetCacheEntries(3)

	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`airgate_test_cache_lookups_total{result="hit"} 1`,
		`airgate_test_upstream_requests_total{outcome="success"} 1`,
		`airgate_test_cache_entries 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition output", want)
		}
	}
}

func TestPrometheusHandlerUninitialized(t *testing.T) {
	promMetrics = nil

	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
