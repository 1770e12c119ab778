package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trivia-quiz-service/internal/domain"
)

const (
	DefaultQuestionSeconds = 15
	DefaultTickInterval    = time.Second
	DefaultPersistTimeout  = 5 * time.Second
)

// QuestionCache resolves question lists per quiz configuration, merging
// concurrent requests for the same normalized configuration.
type QuestionCache interface {
	GetQuestions(ctx context.Context, cfg domain.QuizConfig) ([]domain.Question, error)
}

// ScoreStore durably records finished sessions.
type ScoreStore interface {
	SaveScore(ctx context.Context, record domain.ScoreRecord) error
	RecentScores(ctx context.Context, limit int) ([]domain.ScoreRecord, error)
}

// IdentityProvider supplies the anonymous user a score is saved under.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (domain.User, error)
}

// SessionRepository abstracts where active sessions are registered (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// Options tunes the engine. Zero values fall back to the defaults.
type Options struct {
	QuestionSeconds int
	TickInterval    time.Duration
	PersistTimeout  time.Duration
	NewTicker       TickerFunc
	Now             func() time.Time
	Logger          *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.QuestionSeconds <= 0 {
		o.QuestionSeconds = DefaultQuestionSeconds
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = DefaultPersistTimeout
	}
	if o.NewTicker == nil {
		o.NewTicker = NewTimeTicker
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Engine creates quiz sessions that share one question cache and score store.
type Engine struct {
	cache    QuestionCache
	scores   ScoreStore
	sessions SessionRepository
	opts     Options
	logger   *zap.Logger

	mu       sync.Mutex
	closing  bool
	live     map[*Session]struct{}
	persists sync.WaitGroup
}

func NewEngine(cache QuestionCache, scores ScoreStore, sessions SessionRepository, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		cache:    cache,
		scores:   scores,
		sessions: sessions,
		opts:     opts,
		logger:   opts.Logger,
		live:     make(map[*Session]struct{}),
	}
}

// Start creates a session for cfg and begins loading its questions. The
// session is torn down when ctx is done, Close is called or the engine shuts
// down.
func (e *Engine) Start(ctx context.Context, who IdentityProvider, cfg domain.QuizConfig) (*Session, error) {
	session := newSession(ctx, uuid.NewString(), e, who)
	e.sessions.Put(session)

	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		e.sessions.Delete(session.id)
		return nil, domain.ErrEngineClosed
	}
	e.live[session] = struct{}{}
	e.mu.Unlock()

	session.watch()
	_ = session.Configure(cfg)
	return session, nil
}

// Session looks up an active session by id.
func (e *Engine) Session(sessionID string) (*Session, bool) {
	return e.sessions.Get(sessionID)
}

// RecentScores lists saved results, newest first.
func (e *Engine) RecentScores(ctx context.Context, limit int) ([]domain.ScoreRecord, error) {
	return e.scores.RecentScores(ctx, limit)
}

// Wait blocks until all detached score writes have completed. Callers must
// ensure no session can still finish, see Shutdown.
func (e *Engine) Wait() {
	e.persists.Wait()
}

// Shutdown refuses new sessions, closes every live one and waits for
// pending score writes until ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	live := make([]*Session, 0, len(e.live))
	for s := range e.live {
		live = append(live, s)
	}
	e.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
	e.logger.Info("engine shutting down", zap.Int("closed_sessions", len(live)))

	done := make(chan struct{})
	go func() {
		e.persists.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release(session *Session) {
	e.mu.Lock()
	delete(e.live, session)
	e.mu.Unlock()
	e.sessions.Delete(session.id)
}

// persistResult saves result in the background. Failures are logged and
// never retried.
func (e *Engine) persistResult(sessionID string, who IdentityProvider, result domain.Result) {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		e.logger.Warn("score not saved, engine shutting down", zap.String("session_id", sessionID))
		return
	}
	e.persists.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.persists.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.PersistTimeout)
		defer cancel()

		log := e.logger.With(zap.String("session_id", sessionID))
		record, err := e.saveResult(ctx, who, result)
		if err != nil {
			log.Warn("score not saved", zap.Error(err))
			return
		}
		log.Info("score saved",
			zap.String("record_id", record.ID),
			zap.String("user_id", record.UserID),
			zap.Int("score", record.Score),
			zap.Int("total", record.Total),
		)
	}()
}

func (e *Engine) saveResult(ctx context.Context, who IdentityProvider, result domain.Result) (domain.ScoreRecord, error) {
	if who == nil {
		return domain.ScoreRecord{}, fmt.Errorf("%w: %v", domain.ErrPersistFailed, domain.ErrMissingUser)
	}
	user, err := who.CurrentUser(ctx)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("%w: resolve user: %v", domain.ErrPersistFailed, err)
	}
	record := domain.ScoreRecord{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Score:      result.Score,
		Total:      result.Total,
		Category:   result.Config.Category,
		Difficulty: result.Config.Difficulty,
		CreatedAt:  result.FinishedAt.UTC(),
	}
	if err := e.scores.SaveScore(ctx, record); err != nil {
		return record, fmt.Errorf("%w: %v", domain.ErrPersistFailed, err)
	}
	return record, nil
}
