package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/oriys/airgate/internal/airquality"
	"github.com/oriys/airgate/internal/logging"
	"github.com/oriys/airgate/internal/metrics"
	"github.com/oriys/airgate/internal/observability"
)

// Handler serves the air-quality endpoint and the operational routes.
type Handler struct {
	Resolver *airquality.Resolver
	Lookups  *logging.Logger  // optional per-lookup log
	Now      func() time.Time // defaults to time.Now
}

// RegisterRoutes registers all routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /airquality", h.AirQuality)

	// Health probes
	mux.HandleFunc("GET /health", h.HealthReady)
	mux.HandleFunc("GET /health/live", h.HealthLive)
	mux.HandleFunc("GET /health/ready", h.HealthReady)

	// Observability
	mux.Handle("GET /stats", metrics.Global().JSONHandler())
	mux.Handle("GET /metrics", metrics.PrometheusHandler())
}

// AirQuality handles GET /airquality?city=<name>
func (h *Handler) AirQuality(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	city := r.URL.Query().Get("city")
	observability.AddSpanAttributes(r.Context(), observability.AttrRequestID.String(RequestIDFromContext(r.Context())))

	res := h.Resolver.Resolve(r.Context(), city, h.now())
	status := res.HTTPStatus()

	if res.OK() {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", string(res.Cache))
		w.WriteHeader(status)
		w.Write(res.Payload)
	} else {
		writeJSONError(w, status, res.Message())
	}
	metrics.RecordPrometheusResponse(strconv.Itoa(status))

	if status >= 500 {
		logging.OpWithTrace(observability.GetTraceID(r.Context()), observability.GetSpanID(r.Context())).
			Warn("air quality lookup failed", "city", city, "status", status, "error", res.Reason())
	}

	if h.Lookups != nil {
		h.Lookups.Log(&logging.LookupLog{
			RequestID:  RequestIDFromContext(r.Context()),
			TraceID:    observability.GetTraceID(r.Context()),
			SpanID:     observability.GetSpanID(r.Context()),
			City:       city,
			CacheKey:   airquality.NormalizeKey(city),
			Cache:      string(res.Cache),
			Outcome:    res.Kind.String(),
			Status:     status,
			DurationMs: time.Since(start).Milliseconds(),
			Shared:     res.Shared,
			Error:      res.Reason(),
		})
	}
}

// HealthLive handles GET /health/live - process liveness
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// HealthReady handles GET /health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"cache_ttl_seconds": int64(h.Resolver.TTL().Seconds()),
		"uptime_seconds":    int64(time.Since(metrics.StartTime()).Seconds()),
	})
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
