// Package cachecoord implements the Cache Coordinator (C5): fingerprint
// generation, read-through for read-only tools, write-through storage
// with per-tool TTL, and pattern-based invalidation on mutations.
package cachecoord

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"sort"
	"time"

	"github.com/aishacrm/braid/infrastructure/cache"
	"github.com/aishacrm/braid/infrastructure/logging"
	"github.com/aishacrm/braid/internal/engine/core"
)

// entityPatterns matches a tool name against the CRM entities a write can
// invalidate cache for.
var entityPatterns = regexp.MustCompile(`^(create|update|delete|qualify|convert|list|get|search)_(lead|account|contact|opportunity|activity|note|bizdev)`)

// Coordinator composes a CacheBackend with namespace and TTL rules. Cache
// errors are always logged and never promoted to a dispatch failure.
type Coordinator struct {
	backend core.CacheBackend
	logger  *logging.Logger
}

// New builds a Coordinator. backend may be nil, in which case the
// Coordinator behaves as an always-miss, always-succeed no-op cache.
func New(backend core.CacheBackend, logger *logging.Logger) *Coordinator {
	return &Coordinator{backend: backend, logger: logger}
}

// Fingerprint computes the deterministic cache key: "braid:" + tenant +
// ":" + tool + ":" + 12-hex-prefix(sha256(canonical args)).
// Semantically equal argument maps (same keys and values, any Go map
// iteration order) always produce the same fingerprint because the
// elements are sorted by key before hashing.
func Fingerprint(tenantUUID, toolName string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, args[k])
	}
	buf, _ := json.Marshal(ordered)

	sum := sha256.Sum256(buf)
	prefix := hex.EncodeToString(sum[:])[:12]

	return "braid:" + tenantUUID + ":" + toolName + ":" + prefix
}

// Read probes the cache for a read-only tool. ok is false on a miss or on
// any backend error (logged and swallowed).
func (c *Coordinator) Read(ctx context.Context, key string) (core.Result, bool) {
	if c.backend == nil {
		return core.Result{}, false
	}
	result, hit, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logf("cache read failed, treating as miss", err, key)
		return core.Result{}, false
	}
	return result, hit
}

// Store writes an Ok result under key with the given TTL. Failures are
// logged and swallowed.
func (c *Coordinator) Store(ctx context.Context, key string, result core.Result, ttlSeconds int) {
	if c.backend == nil {
		return
	}
	if err := c.backend.Set(ctx, key, result, ttlSeconds); err != nil {
		c.logf("cache store failed", err, key)
	}
}

// InvalidateIfEntity invalidates every braid-namespace cache entry for
// tenantUUID when toolName matches a known entity pattern. Failures are
// logged and swallowed.
func (c *Coordinator) InvalidateIfEntity(ctx context.Context, tenantUUID, toolName string) {
	if c.backend == nil {
		return
	}
	if !entityPatterns.MatchString(toolName) {
		return
	}
	if err := c.backend.InvalidateTenant(ctx, tenantUUID, "braid"); err != nil {
		c.logf("cache invalidation failed", err, toolName)
	}
}

func (c *Coordinator) logf(msg string, err error, key string) {
	if c.logger == nil {
		return
	}
	c.logger.Logger.WithField("key", key).WithError(err).Warn(msg)
}

// MemoryBackend adapts infrastructure/cache.Cache to core.CacheBackend: an
// in-process TTL map with pattern-based invalidation, used as Braid's
// default CacheBackend when no external cache is injected.
type MemoryBackend struct {
	cache *cache.Cache
}

// NewMemoryBackend wraps an *infrastructure/cache.Cache.
func NewMemoryBackend(c *cache.Cache) *MemoryBackend {
	return &MemoryBackend{cache: c}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (core.Result, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return core.Result{}, false, nil
	}
	result, ok := v.(core.Result)
	if !ok {
		return core.Result{}, false, nil
	}
	return result, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value core.Result, ttlSeconds int) error {
	m.cache.Set(key, value, time.Duration(ttlSeconds)*time.Second)
	return nil
}

func (m *MemoryBackend) Increment(_ context.Context, key string, ttlSeconds int) (int64, error) {
	return m.cache.Increment(key, time.Duration(ttlSeconds)*time.Second), nil
}

func (m *MemoryBackend) InvalidateTenant(_ context.Context, tenantUUID, namespace string) error {
	m.cache.InvalidatePattern(namespace + ":" + tenantUUID + ":")
	return nil
}
