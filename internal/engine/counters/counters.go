// Package counters implements the Metrics Accumulator (C6): TTL-bucketed
// per-minute and per-hour call/error/cache-hit counters, per-tenant and
// mirrored to a global bucket, readable back as a percentage snapshot.
package counters

import (
	"fmt"
	"time"

	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/internal/engine/core"
)

const (
	minuteTTL  = 300 * time.Second
	hourTTL    = 7200 * time.Second
	latencyTTL = 7200 * time.Second

	suffixCalls     = "calls"
	suffixErrors    = "errors"
	suffixCacheHits = "cache_hits"

	globalScope = "global"
)

// Counter is the TTL-keyed increment/read/set primitive the accumulator
// builds on. infrastructure/cache.Cache satisfies it directly.
type Counter interface {
	Increment(key string, ttl time.Duration) int64
	Peek(key string) int64
	Set(key string, value interface{}, ttl time.Duration)
}

// Accumulator records dispatch outcomes as counter increments. A nil
// Counter turns every call into a no-op; Counter methods return no
// errors, so recording never fails a dispatch.
type Accumulator struct {
	counter Counter
	logger  *logging.Logger
}

// New builds an Accumulator.
func New(counter Counter, logger *logging.Logger) *Accumulator {
	return &Accumulator{counter: counter, logger: logger}
}

// Record increments the calls/errors/cache_hits buckets for both the
// tenant scope and the mirrored global scope, at both minute and hour
// granularity, plus the per-tool-per-hour variant, and accumulates
// latencyMs into the per-dispatch latency sample bucket. bucketEpochMinute
// and bucketEpochHour are epoch-seconds of the bucket's start (e.g.
// floor(now/60)*60, floor(now/3600)*3600), not bucket indices, so a
// reader deriving the same bucket boundary independently lands on the
// same key. It never affects the caller's result: the Dispatcher calls it
// only after that result is decided.
func (a *Accumulator) Record(tenantUUID, toolName string, isErr, cacheHit bool, bucketEpochMinute, bucketEpochHour, nowEpochSecond, latencyMs int64) {
	if a.counter == nil {
		return
	}

	scopes := []string{tenantUUID, globalScope}
	for _, scope := range scopes {
		a.bump(minuteKey(scope, bucketEpochMinute, suffixCalls), minuteTTL)
		a.bump(hourKey(scope, bucketEpochHour, suffixCalls), hourTTL)
		if isErr {
			a.bump(minuteKey(scope, bucketEpochMinute, suffixErrors), minuteTTL)
			a.bump(hourKey(scope, bucketEpochHour, suffixErrors), hourTTL)
		}
		if cacheHit {
			a.bump(minuteKey(scope, bucketEpochMinute, suffixCacheHits), minuteTTL)
			a.bump(hourKey(scope, bucketEpochHour, suffixCacheHits), hourTTL)
		}
		a.addLatencySample(scope, nowEpochSecond, latencyMs)
	}

	a.bump(toolHourKey(tenantUUID, toolName, bucketEpochHour, suffixCalls), hourTTL)
	if isErr {
		a.bump(toolHourKey(tenantUUID, toolName, bucketEpochHour, suffixErrors), hourTTL)
	}
}

func (a *Accumulator) bump(key string, ttl time.Duration) {
	a.counter.Increment(key, ttl)
}

// addLatencySample folds latencyMs into the running sum for scope's
// current one-second bucket. Concurrent dispatches landing in the same
// second race on this read-then-write, so the sum is approximate under
// load; the per-second granularity makes any single race negligible
// against the bucket's total.
func (a *Accumulator) addLatencySample(scope string, nowEpochSecond, latencyMs int64) {
	key := latencyKey(scope, nowEpochSecond)
	total := a.counter.Peek(key) + latencyMs
	a.counter.Set(key, total, latencyTTL)
}

// Snapshot is the readback shape returned by get-realtime-metrics.
type Snapshot struct {
	Calls           int64   `json:"calls"`
	Errors          int64   `json:"errors"`
	CacheHits       int64   `json:"cache_hits"`
	SuccessRatePct  float64 `json:"success_rate_pct"`
	CacheHitRatePct float64 `json:"cache_hit_rate_pct"`
}

// Read returns the current snapshot for scope ("global" or a tenant uuid)
// at the given granularity ("minute" or "hour").
func (a *Accumulator) Read(scope, granularity string, bucketEpoch int64) core.Result {
	if a.counter == nil {
		return core.Ok(Snapshot{})
	}

	var calls, errs, hits int64
	switch granularity {
	case "minute":
		calls = a.counter.Peek(minuteKey(scope, bucketEpoch, suffixCalls))
		errs = a.counter.Peek(minuteKey(scope, bucketEpoch, suffixErrors))
		hits = a.counter.Peek(minuteKey(scope, bucketEpoch, suffixCacheHits))
	case "hour":
		calls = a.counter.Peek(hourKey(scope, bucketEpoch, suffixCalls))
		errs = a.counter.Peek(hourKey(scope, bucketEpoch, suffixErrors))
		hits = a.counter.Peek(hourKey(scope, bucketEpoch, suffixCacheHits))
	default:
		return core.ErrResult(core.NewError(core.ErrValidationError, fmt.Sprintf("unknown granularity %q", granularity)))
	}

	return core.Ok(buildSnapshot(calls, errs, hits))
}

func buildSnapshot(calls, errs, hits int64) Snapshot {
	s := Snapshot{Calls: calls, Errors: errs, CacheHits: hits}
	if calls > 0 {
		s.SuccessRatePct = 100 * float64(calls-errs) / float64(calls)
		s.CacheHitRatePct = 100 * float64(hits) / float64(calls)
	}
	return s
}

func minuteKey(scope string, bucketEpoch int64, suffix string) string {
	return fmt.Sprintf("braid:metrics:%s:min:%d:%s", scope, bucketEpoch, suffix)
}

func hourKey(scope string, bucketEpoch int64, suffix string) string {
	return fmt.Sprintf("braid:metrics:%s:hour:%d:%s", scope, bucketEpoch, suffix)
}

func toolHourKey(tenantUUID, toolName string, bucketEpoch int64, suffix string) string {
	return fmt.Sprintf("braid:metrics:%s:tool:%s:hour:%d:%s", tenantUUID, toolName, bucketEpoch, suffix)
}

func latencyKey(scope string, epochSecond int64) string {
	return fmt.Sprintf("braid:metrics:%s:latency:%d", scope, epochSecond)
}
