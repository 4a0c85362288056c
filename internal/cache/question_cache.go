// Package cache puts a Redis layer in front of the question bank. The
// snapshot for an access code is immutable for a running quiz, which
// makes it an easy cache win when many rooms share one quiz.
package cache

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizblitz-service/internal/models"
)

// Loader fetches question snapshots from the backing store on a miss.
type Loader interface {
	QuestionSet(ctx context.Context, accessCode string) ([]models.SessionQuestion, error)
}

// QuestionCache caches the full snapshot as one JSON value per access
// code. Concurrent misses for the same code collapse into a single
// loader call; TTLs carry jitter so popular codes do not expire in
// lockstep.
type QuestionCache struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader Loader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) QuestionSet(ctx context.Context, accessCode string) ([]models.SessionQuestion, error) {
	if snapshot, ok := c.read(ctx, accessCode); ok {
		return snapshot, nil
	}

	result, err, _ := c.sf.Do(accessCode, func() (interface{}, error) {
		// Re-check in case another goroutine filled it while we waited.
		if snapshot, ok := c.read(ctx, accessCode); ok {
			return snapshot, nil
		}

		snapshot, err := c.loader.QuestionSet(ctx, accessCode)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(snapshot); err == nil {
			c.client.Set(ctx, c.key(accessCode), payload, c.ttlWithJitter())
		}
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.SessionQuestion), nil
}

// Invalidate drops the cached snapshot; used when the bank behind an
// access code is edited.
func (c *QuestionCache) Invalidate(ctx context.Context, accessCode string) error {
	return c.client.Del(ctx, c.key(accessCode)).Err()
}

func (c *QuestionCache) read(ctx context.Context, accessCode string) ([]models.SessionQuestion, bool) {
	payload, err := c.client.Get(ctx, c.key(accessCode)).Bytes()
	if err != nil || len(payload) == 0 {
		return nil, false
	}
	var snapshot []models.SessionQuestion
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, false
	}
	return snapshot, true
}

func (c *QuestionCache) key(accessCode string) string {
	return "quizblitz:questions:" + accessCode
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
