package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-quiz-service/internal/domain"
)

const defaultFetchTimeout = 15 * time.Second

// QuestionLoader fetches and builds questions from the question provider.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, cfg domain.NormalizedConfig) ([]domain.Question, error)
}

type entryState int

const (
	entryPending entryState = iota + 1
	entryResolved
)

// cacheEntry is either pending (done still open) or resolved. Failed
// fetches are removed from the map instead of being stored.
type cacheEntry struct {
	state     entryState
	done      chan struct{}
	questions []domain.Question
	err       error
}

// QuestionCache memoizes question lists per normalized configuration for the
// life of the process and merges concurrent requests into one load.
type QuestionCache struct {
	loader       QuestionLoader
	fetchTimeout time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	entries map[domain.CacheKey]*cacheEntry
}

func NewQuestionCache(loader QuestionLoader, fetchTimeout time.Duration, logger *zap.Logger) *QuestionCache {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionCache{
		loader:       loader,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		entries:      make(map[domain.CacheKey]*cacheEntry),
	}
}

// GetQuestions returns the questions for cfg. A caller whose ctx ends stops
// waiting, but the shared load keeps running for the other waiters.
func (c *QuestionCache) GetQuestions(ctx context.Context, cfg domain.QuizConfig) ([]domain.Question, error) {
	normalized := domain.Normalize(cfg)
	key := normalized.Key()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && entry.state == entryResolved {
		c.mu.Unlock()
		return entry.questions, nil
	}
	if !ok {
		entry = &cacheEntry{state: entryPending, done: make(chan struct{})}
		c.entries[key] = entry
		go c.load(key, normalized, entry)
	}
	c.mu.Unlock()

	select {
	case <-entry.done:
		return entry.questions, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *QuestionCache) load(key domain.CacheKey, cfg domain.NormalizedConfig, entry *cacheEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	questions, err := c.loader.LoadQuestions(ctx, cfg)

	c.mu.Lock()
	if err != nil {
		delete(c.entries, key)
		entry.err = err
	} else {
		entry.state = entryResolved
		entry.questions = questions
	}
	c.mu.Unlock()
	close(entry.done)

	if err != nil {
		c.logger.Warn("question load failed", zap.String("key", string(key)), zap.Error(err))
		return
	}
	c.logger.Debug("questions cached", zap.String("key", string(key)), zap.Int("count", len(questions)))
}

// StaticQuestionLoader serves fixed question lists by category (useful for tests/demos).
type StaticQuestionLoader struct {
	questions map[string][]domain.Question
}

func NewStaticQuestionLoader(questions map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

// LoadQuestions returns up to cfg.Amount questions for cfg.Category.
func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, cfg domain.NormalizedConfig) ([]domain.Question, error) {
	questions := l.questions[cfg.Category]
	if len(questions) > cfg.Amount {
		questions = questions[:cfg.Amount]
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out, nil
}
