package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"quiz-lobby-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches the question bank from a backing store (e.g. Postgres).
type PoolLoader interface {
	LoadPools(ctx context.Context) (domain.QuestionPools, error)
}

// PoolCache keeps each category pool as a JSON blob in Redis and falls back
// to the loader on a miss. Pools are stored as:
//
//	SET quiz:pool:{category} {json array of questions}
type PoolCache struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

var categories = []domain.Category{
	domain.CategoryGeneral,
	domain.CategoryScene,
	domain.CategoryPerson,
}

func NewPoolCache(client *redis.Client, loader PoolLoader, ttl time.Duration) *PoolCache {
	return &PoolCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PoolCache) GetPools(ctx context.Context) (domain.QuestionPools, error) {
	if pools, ok := c.readCache(ctx); ok {
		return pools, nil
	}

	result, err, _ := c.sf.Do("pools", func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if pools, ok := c.readCache(ctx); ok {
			return pools, nil
		}

		pools, err := c.loader.LoadPools(ctx)
		if err != nil {
			return nil, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		for _, cat := range categories {
			blob, err := json.Marshal(pools[cat])
			if err != nil {
				return nil, err
			}
			pipe.Set(ctx, c.key(cat), blob, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return pools, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(domain.QuestionPools), nil
}

// readCache returns the cached pools only when every category key is
// present; a partial cache is treated as a miss.
func (c *PoolCache) readCache(ctx context.Context) (domain.QuestionPools, bool) {
	pools := make(domain.QuestionPools, len(categories))
	for _, cat := range categories {
		blob, err := c.client.Get(ctx, c.key(cat)).Bytes()
		if err != nil {
			return nil, false
		}
		var questions []domain.Question
		if err := json.Unmarshal(blob, &questions); err != nil {
			return nil, false
		}
		pools[cat] = questions
	}
	return pools, true
}

func (c *PoolCache) key(cat domain.Category) string {
	return "quiz:pool:" + string(cat)
}

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
