package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"trivia-quiz-service/internal/domain"
)

const defaultFetchTimeout = 15 * time.Second

// QuestionLoader fetches and builds questions from the question provider.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, cfg domain.NormalizedConfig) ([]domain.Question, error)
}

// QuestionCache stores question lists in Redis as JSON under
// trivia:questions:{cacheKey} and falls back to the loader on a miss.
// Concurrent misses for one key inside this process share a single load.
// Failed loads are never written.
type QuestionCache struct {
	client       *redis.Client
	loader       QuestionLoader
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *zap.Logger
	sf           singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl, fetchTimeout time.Duration, logger *zap.Logger) *QuestionCache {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionCache{
		client:       client,
		loader:       loader,
		ttl:          ttl,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestions(ctx context.Context, cfg domain.QuizConfig) ([]domain.Question, error) {
	normalized := domain.Normalize(cfg)
	key := c.key(normalized.Key())

	if questions, ok := c.cached(ctx, key); ok {
		return questions, nil
	}

	// The load outlives any single waiter so a canceled caller does not fail
	// the others sharing it.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.cached(loadCtx, key); ok {
			return questions, nil
		}

		fetchCtx, cancel := context.WithTimeout(loadCtx, c.fetchTimeout)
		defer cancel()
		questions, err := c.loader.LoadQuestions(fetchCtx, normalized)
		if err != nil {
			c.logger.Warn("question load failed", zap.String("key", key), zap.Error(err))
			return nil, err
		}
		c.store(loadCtx, key, questions)
		return questions, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Question), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *QuestionCache) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("question cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		c.logger.Warn("question cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) store(ctx context.Context, key string, questions []domain.Question) {
	if questions == nil {
		questions = []domain.Question{}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		c.logger.Warn("question cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttlWithJitter()).Err(); err != nil {
		c.logger.Warn("question cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.logger.Debug("questions cached", zap.String("key", key), zap.Int("count", len(questions)))
}

func (c *QuestionCache) key(cacheKey domain.CacheKey) string {
	return "trivia:questions:" + string(cacheKey)
}

// ttlWithJitter spreads expiry by up to 10% so entries written together do
// not expire together. Zero means no expiry.
func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
