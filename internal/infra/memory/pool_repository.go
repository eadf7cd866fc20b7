package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quiz-lobby-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches the question bank from a backing store (CSV import,
// Postgres, etc).
type PoolLoader interface {
	LoadPools(ctx context.Context) (domain.QuestionPools, error)
}

// PoolRepository caches the question bank with TTL to avoid repeated
// backing-store hits; concurrent misses are collapsed with singleflight.
type PoolRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    domain.QuestionPools
	expiresAt time.Time
}

func NewPoolRepository(loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PoolRepository) GetPools(ctx context.Context) (domain.QuestionPools, error) {
	now := r.clock()

	r.mu.RLock()
	if r.cached != nil && r.expiresAt.After(now) {
		pools := r.cached
		r.mu.RUnlock()
		return pools, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("pools", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.cached != nil && r.expiresAt.After(now) {
			pools := r.cached
			r.mu.RUnlock()
			return pools, nil
		}
		r.mu.RUnlock()

		pools, err := r.loader.LoadPools(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cached = pools
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return pools, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.QuestionPools), nil
}

// StaticPoolLoader serves a fixed question bank (useful for tests/demos).
type StaticPoolLoader struct {
	pools domain.QuestionPools
}

func NewStaticPoolLoader(pools domain.QuestionPools) *StaticPoolLoader {
	return &StaticPoolLoader{pools: pools}
}

func (l *StaticPoolLoader) LoadPools(_ context.Context) (domain.QuestionPools, error) {
	return l.pools, nil
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
