package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"weekly-trivia-service/internal/app"
	"weekly-trivia-service/internal/domain"
)

// PayloadCache caches marshaled weekly payloads in Redis and falls back to
// the generator on miss. The payload is a pure function of its key for the
// life of the week, so a shared cache across instances is safe by
// construction. Stored as: SET trivia:payload:{weekKey}:{lang} {json}
type PayloadCache struct {
	client    *redis.Client
	generator app.Generator
	ttl       time.Duration
	sf        singleflight.Group
	rnd       *rand.Rand
}

func NewPayloadCache(client *redis.Client, generator app.Generator, ttl time.Duration) *PayloadCache {
	return &PayloadCache{
		client:    client,
		generator: generator,
		ttl:       ttl,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PayloadCache) GetPayload(ctx context.Context, week domain.WeekKey, lang domain.Language) (domain.WeeklyTriviaPayload, error) {
	key := c.key(week, lang)

	if payload, ok := c.lookup(ctx, key); ok {
		return payload, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if payload, ok := c.lookup(ctx, key); ok {
			return payload, nil
		}

		payload, err := c.generator.Generate(ctx, week, lang)
		if err != nil {
			return domain.WeeklyTriviaPayload{}, err
		}

		if raw, err := json.Marshal(payload); err == nil {
			// Cache writes are best-effort; a failed SET just means a
			// recompute next time, which yields the same bytes anyway.
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return payload, nil
	})
	if err != nil {
		return domain.WeeklyTriviaPayload{}, err
	}
	return result.(domain.WeeklyTriviaPayload), nil
}

func (c *PayloadCache) lookup(ctx context.Context, key string) (domain.WeeklyTriviaPayload, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.WeeklyTriviaPayload{}, false
	}
	var payload domain.WeeklyTriviaPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.WeeklyTriviaPayload{}, false
	}
	if len(payload.Questions) != domain.QuestionCount {
		return domain.WeeklyTriviaPayload{}, false
	}
	return payload, true
}

func (c *PayloadCache) key(week domain.WeekKey, lang domain.Language) string {
	return "trivia:payload:" + string(week) + ":" + string(lang)
}

func (c *PayloadCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
