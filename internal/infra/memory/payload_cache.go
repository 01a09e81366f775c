package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"weekly-trivia-service/internal/app"
	"weekly-trivia-service/internal/domain"
)

// PayloadCache caches weekly payloads with TTL to avoid recomputing against
// the catalog on every request.
type PayloadCache struct {
	generator app.Generator
	ttl       time.Duration
	clock     func() time.Time
	sf        singleflight.Group
	rnd       *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPayload
}

type cachedPayload struct {
	payload   domain.WeeklyTriviaPayload
	expiresAt time.Time
}

func NewPayloadCache(generator app.Generator, ttl time.Duration) *PayloadCache {
	return &PayloadCache{
		generator: generator,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:     make(map[string]cachedPayload),
	}
}

func (c *PayloadCache) GetPayload(ctx context.Context, week domain.WeekKey, lang domain.Language) (domain.WeeklyTriviaPayload, error) {
	key := cacheKey(week, lang)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.payload, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.payload, nil
		}
		c.mu.RUnlock()

		payload, err := c.generator.Generate(ctx, week, lang)
		if err != nil {
			return domain.WeeklyTriviaPayload{}, err
		}

		c.mu.Lock()
		c.cache[key] = cachedPayload{
			payload:   payload,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return payload, nil
	})
	if err != nil {
		return domain.WeeklyTriviaPayload{}, err
	}
	return result.(domain.WeeklyTriviaPayload), nil
}

func cacheKey(week domain.WeekKey, lang domain.Language) string {
	return string(week) + ":" + string(lang)
}

func (c *PayloadCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
