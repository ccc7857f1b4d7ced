package airquality

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oriys/airgate/internal/cache"
	"github.com/oriys/airgate/internal/logging"
	"github.com/oriys/airgate/internal/metrics"
	"github.com/oriys/airgate/internal/observability"
)

// DefaultTTL is how long a cached payload is served without asking upstream.
const DefaultTTL = 3600 * time.Second

// Resolver coordinates the cache store and the upstream fetcher.
type Resolver struct {
	store   cache.Store
	fetcher Fetcher
	ttl     time.Duration
	group   singleflight.Group // coalesces concurrent fetches per cache key
}

// NewResolver creates a resolver. A non-positive ttl selects DefaultTTL.
func NewResolver(store cache.Store, fetcher Fetcher, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		store:   store,
		fetcher: fetcher,
		ttl:     ttl,
	}
}

// TTL returns the freshness window.
func (r *Resolver) TTL() time.Duration {
	return r.ttl
}

// NormalizeKey returns the cache key for a raw city name. Lowercasing is the
// only normalization: "São Paulo" and "SÃO PAULO" share a key, "Sao Paulo"
// does not.
func NormalizeKey(rawCity string) string {
	return strings.ToLower(rawCity)
}

// Resolve returns air-quality data for rawCity as of now. Fresh cache entries
// are returned without contacting upstream. Otherwise the provider is queried
// with rawCity unchanged and the payload is cached on success only.
//
// Concurrent misses for the same key share a single upstream request. That
// request runs detached from ctx cancellation so a disconnecting caller does
// not abort it for the others; its duration is bounded by the fetcher.
func (r *Resolver) Resolve(ctx context.Context, rawCity string, now time.Time) Result {
	if rawCity == "" {
		return failure(KindValidation, ErrCityRequired)
	}
	key := NormalizeKey(rawCity)

	ctx, span := observability.StartSpan(ctx, "airquality.resolve",
		observability.AttrCity.String(rawCity),
		observability.AttrCacheKey.String(key),
	)
	defer span.End()

	state := CacheMiss
	if entry, ok := r.store.Get(key); ok {
		if r.fresh(entry, now) {
			metrics.Global().RecordLookup(string(CacheHit))
			span.SetAttributes(
				observability.AttrCacheState.String(string(CacheHit)),
				observability.AttrOutcome.String(KindSuccess.String()),
			)
			return Result{Kind: KindSuccess, Payload: entry.Payload, Cache: CacheHit}
		}
		state = CacheStale
	}
	metrics.Global().RecordLookup(string(state))

	fetchCtx := context.WithoutCancel(ctx)
	v, _, shared := r.group.Do(key, func() (any, error) {
		return r.fetchAndStore(fetchCtx, key, rawCity, now), nil
	})
	res := v.(Result)
	res.Cache = state
	res.Shared = shared
	if shared {
		metrics.Global().RecordShared()
	}

	span.SetAttributes(
		observability.AttrCacheState.String(string(state)),
		observability.AttrOutcome.String(res.Kind.String()),
		observability.AttrShared.Bool(shared),
	)
	if res.OK() {
		observability.SetSpanOK(span)
	} else if res.Err != nil {
		observability.SetSpanError(span, res.Err)
	}
	return res
}

func (r *Resolver) fresh(entry cache.Entry, now time.Time) bool {
	return entry.Age(now) < r.ttl
}

// fetchAndStore runs inside the singleflight group for key.
func (r *Resolver) fetchAndStore(ctx context.Context, key, rawCity string, now time.Time) Result {
	// Double check: a fetch that finished between our lookup and joining the
	// group has already refreshed the entry.
	if entry, ok := r.store.Get(key); ok && r.fresh(entry, now) {
		return Result{Kind: KindSuccess, Payload: entry.Payload}
	}

	metrics.IncInflightFetches()
	start := time.Now()
	res := r.fetcher.Fetch(ctx, rawCity)
	durationMs := time.Since(start).Milliseconds()
	metrics.DecInflightFetches()
	metrics.Global().RecordFetch(res.Kind.String(), durationMs)

	if !res.OK() {
		logging.OpWithTrace(observability.GetTraceID(ctx), observability.GetSpanID(ctx)).
			Debug("upstream fetch failed", "city", rawCity, "outcome", res.Kind.String(), "error", res.Err)
		return res
	}

	r.store.Put(key, res.Payload, now)
	metrics.SetCacheEntries(r.store.Len())
	logging.Op().Debug("cached upstream payload", "city", rawCity, "key", key, "duration_ms", durationMs)
	return res
}
