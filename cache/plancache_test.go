package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htnql-engine/htnql/cache"
	"github.com/htnql-engine/htnql/planning"
)

func TestKey_DeterministicForSameSpec(t *testing.T) {
	spec := planning.ReportSpec{
		Name:    "r1",
		Metrics: []planning.Metric{{Expr: "COUNT(*)", Alias: "n"}},
		GroupBy: []string{"orders.status"},
	}
	k1 := cache.Key(spec, "fingerprint-a", "default")
	k2 := cache.Key(spec, "fingerprint-a", "default")
	assert.Equal(t, k1, k2)
}

func TestKey_DiffersOnAgentOrFingerprint(t *testing.T) {
	spec := planning.ReportSpec{Name: "r1"}
	k1 := cache.Key(spec, "fp-a", "default")
	k2 := cache.Key(spec, "fp-a", "strict")
	k3 := cache.Key(spec, "fp-b", "default")
	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestKey_LimitIsComparedByValueNotPointerIdentity(t *testing.T) {
	n1, n2 := 10, 10
	specA := planning.ReportSpec{Name: "r1", Limit: &n1}
	specB := planning.ReportSpec{Name: "r1", Limit: &n2}
	assert.Equal(t, cache.Key(specA, "fp", "default"), cache.Key(specB, "fp", "default"))

	m := 20
	specC := planning.ReportSpec{Name: "r1", Limit: &m}
	assert.NotEqual(t, cache.Key(specA, "fp", "default"), cache.Key(specC, "fp", "default"))

	specNil := planning.ReportSpec{Name: "r1"}
	assert.NotEqual(t, cache.Key(specA, "fp", "default"), cache.Key(specNil, "fp", "default"))
}

func TestMemoryBackend_ExpiresAfterTTL(t *testing.T) {
	mock := clock.NewMock()
	backend := cache.NewMemoryBackend(mock)
	backend.Set(context.Background(), "k", &cache.Entry{SQL: "SELECT 1"}, time.Minute)

	_, ok := backend.Get(context.Background(), "k")
	require.True(t, ok)

	mock.Add(2 * time.Minute)
	_, ok = backend.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestPlanCache_ZeroTTLNeverCaches(t *testing.T) {
	backend := cache.NewMemoryBackend(clock.NewMock())
	pc := cache.New(backend, 0)

	var calls int32
	compute := func() (*cache.Entry, error) {
		atomic.AddInt32(&calls, 1)
		return &cache.Entry{SQL: "SELECT 1"}, nil
	}

	_, err := pc.Plan(context.Background(), "k", compute)
	require.NoError(t, err)
	_, err = pc.Plan(context.Background(), "k", compute)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPlanCache_CachesAcrossCalls(t *testing.T) {
	backend := cache.NewMemoryBackend(clock.NewMock())
	pc := cache.New(backend, time.Minute)

	var calls int32
	compute := func() (*cache.Entry, error) {
		atomic.AddInt32(&calls, 1)
		return &cache.Entry{SQL: "SELECT 1"}, nil
	}

	first, err := pc.Plan(context.Background(), "k", compute)
	require.NoError(t, err)
	second, err := pc.Plan(context.Background(), "k", compute)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, first, second)
}

func TestPlanCache_CoalescesConcurrentMisses(t *testing.T) {
	backend := cache.NewMemoryBackend(clock.NewMock())
	pc := cache.New(backend, time.Minute)

	var calls int32
	release := make(chan struct{})
	compute := func() (*cache.Entry, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &cache.Entry{SQL: "SELECT 1"}, nil
	}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := pc.Plan(context.Background(), "shared-key", compute)
			assert.NoError(t, err)
		}()
	}
	// Give every goroutine a chance to enter Plan before releasing compute.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
