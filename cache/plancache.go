// Package cache implements the Plan Cache (SPEC_FULL.md §4.J): memoizing
// a completed plan by (spec, schema fingerprint, agent) so repeated
// identical reports skip replanning, and coalescing concurrent identical
// requests into a single planning pass. Grounded on
// _examples/malbeclabs-doublezero's onchain.CachingFetcher — an RWMutex
// fast path guarding a cached value, backed by a singleflight.Group slow
// path so concurrent misses share one computation.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/htnql-engine/htnql/htn"
	"github.com/htnql-engine/htnql/planning"
)

// Entry is one cached planning result.
type Entry struct {
	SQL         string
	BoundValues []any
	Trace       []htn.TraceStep
}

// Backend stores Entry values keyed by cache key. MemoryBackend is the
// default; RedisBackend is the optional distributed alternative.
type Backend interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, e *Entry, ttl time.Duration)
}

// Key computes the canonical cache key for a (spec, schema fingerprint,
// agent) triple: a deterministic serialization hashed with xxhash so
// repeated calls with an unchanged spec produce a stable, short key.
func Key(spec planning.ReportSpec, schemaFingerprint, agent string) string {
	limit := "nil"
	if spec.Limit != nil {
		limit = fmt.Sprintf("%d", *spec.Limit)
	}
	var b []byte
	b = append(b, []byte(fmt.Sprintf("agent=%s;dialect=%s;raw=%s;base=%s;limit=%s;", agent, spec.Dialect, spec.RawSQL, spec.BaseSQL, limit))...)
	for _, m := range spec.Metrics {
		b = append(b, []byte(fmt.Sprintf("metric(%s,%s);", m.Expr, m.Alias))...)
	}
	for _, g := range spec.GroupBy {
		b = append(b, []byte(fmt.Sprintf("group(%s);", g))...)
	}
	for _, f := range spec.Filters {
		b = append(b, []byte(fmt.Sprintf("filter(%s,%s,%v);", f.Column, f.Op, f.Values()))...)
	}
	b = append(b, []byte(schemaFingerprint)...)
	return fmt.Sprintf("%x", xxhash.Sum64(b))
}

// MemoryBackend is the default in-process cache. Compression is not
// applied here; snappy only pays for itself over the wire, which the
// in-process path never crosses.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]memItem
	clock clock.Clock
}

type memItem struct {
	entry     *Entry
	expiresAt time.Time
}

// NewMemoryBackend builds a MemoryBackend. clk may be nil to use the real
// wall clock; tests inject clock.NewMock() for deterministic TTL checks.
func NewMemoryBackend(clk clock.Clock) *MemoryBackend {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryBackend{items: make(map[string]memItem), clock: clk}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (*Entry, bool) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || m.clock.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.entry, true
}

func (m *MemoryBackend) Set(ctx context.Context, key string, e *Entry, ttl time.Duration) {
	m.mu.Lock()
	m.items[key] = memItem{entry: e, expiresAt: m.clock.Now().Add(ttl)}
	m.mu.Unlock()
}

// DefaultTTL matches the fetcher.go grounding source's cache-freshness
// window in spirit; five minutes is long enough to absorb dashboard
// refresh bursts without masking a schema change for long.
const DefaultTTL = 5 * time.Minute

// PlanCache is the facade-facing cache: a fast RLock-guarded read against
// backend, and a singleflight-coalesced slow path for misses so N
// concurrent callers computing the same key run compute() exactly once.
type PlanCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
}

// New builds a PlanCache. A zero ttl disables caching outright: Plan
// always calls compute and never touches backend, which is how §4.J's
// "cache transparency" testable property is exercised (ttl=0 must equal
// ttl>0 observationally).
func New(backend Backend, ttl time.Duration) *PlanCache {
	return &PlanCache{backend: backend, ttl: ttl}
}

// Plan returns the cached Entry for key if fresh, otherwise calls compute
// exactly once across any concurrently-waiting callers sharing key, and
// stores the result before returning it.
func (c *PlanCache) Plan(ctx context.Context, key string, compute func() (*Entry, error)) (*Entry, error) {
	if c.ttl <= 0 {
		return compute()
	}
	if e, ok := c.backend.Get(ctx, key); ok {
		return e, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.backend.Get(ctx, key); ok {
			return e, nil
		}
		e, err := compute()
		if err != nil {
			return nil, err
		}
		c.backend.Set(ctx, key, e, c.ttl)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}
