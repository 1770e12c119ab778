package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"trivia-quiz-service/internal/domain"
)

// Session is a single player's timed run through one question list.
//
// Every transition happens under mu. Asynchronous events (countdown ticks
// and question loads) carry the generation they were issued for and are
// dropped once the generation or question index has moved on, so a late
// tick or load can never mutate a newer run.
type Session struct {
	id     string
	engine *Engine
	who    IdentityProvider
	ctx    context.Context
	logger *zap.Logger

	mu          sync.Mutex
	gen         uint64
	closed      bool
	state       sessionState
	cancelLoad  context.CancelFunc
	stopTimer   func()
	stopWatch   func() bool
	subscribers map[chan domain.SessionSnapshot]struct{}
}

type sessionState struct {
	config           domain.NormalizedConfig
	questions        []domain.Question
	index            int
	score            int
	selected         *string
	secondsRemaining int
	phase            domain.Phase
	loadStatus       domain.LoadStatus
	loadErr          error
	result           *domain.Result
	updatedAt        time.Time
}

func newSession(ctx context.Context, id string, engine *Engine, who IdentityProvider) *Session {
	s := &Session{
		id:          id,
		engine:      engine,
		who:         who,
		ctx:         ctx,
		logger:      engine.logger.With(zap.String("session_id", id)),
		subscribers: make(map[chan domain.SessionSnapshot]struct{}),
	}
	s.state.phase = domain.PhaseLoading
	s.state.loadStatus = domain.LoadStatusLoading
	return s
}

// watch closes the session once its parent context is done.
func (s *Session) watch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatch = context.AfterFunc(s.ctx, s.Close)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Configure tears down the current run and starts loading questions for cfg.
// It is valid in every phase, including after the quiz finished.
func (s *Session) Configure(cfg domain.QuizConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}

	s.teardownLocked()
	s.gen++
	s.state = sessionState{
		config:           domain.Normalize(cfg),
		secondsRemaining: s.engine.opts.QuestionSeconds,
		phase:            domain.PhaseLoading,
		loadStatus:       domain.LoadStatusLoading,
	}
	s.logger.Debug("session configured", zap.String("key", string(s.state.config.Key())))
	s.startLoadLocked()
	s.broadcastLocked()
	return nil
}

// Retry reloads questions after a failed or empty load. It is a no-op while
// a load is outstanding or once questions are in play.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.state.phase != domain.PhaseLoading || s.state.loadStatus == domain.LoadStatusLoading {
		return nil
	}

	s.teardownLocked()
	s.gen++
	s.state.loadStatus = domain.LoadStatusLoading
	s.state.loadErr = nil
	s.startLoadLocked()
	s.broadcastLocked()
	return nil
}

// Select records option as the answer for question index. Only the first
// selection per question counts; repeated or stale selections return false.
func (s *Session) Select(index int, option string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.activeErrLocked(); err != nil {
		return false, err
	}
	if index != s.state.index || s.state.selected != nil {
		return false, nil
	}

	question := s.state.questions[index]
	if !question.HasOption(option) {
		return false, domain.ErrUnknownOption
	}

	s.state.selected = &option
	if question.IsCorrect(option) {
		s.state.score++
	}
	s.broadcastLocked()
	return true, nil
}

// Next advances past question index. Advancing an index that has already
// been left, by the countdown or an earlier call, returns false.
func (s *Session) Next(index int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, domain.ErrSessionClosed
	}
	return s.advanceLocked(s.gen, index), nil
}

// Close tears the session down. Later ticks and loads are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.teardownLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	stopWatch := s.stopWatch
	s.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	s.engine.release(s)
	s.logger.Debug("session closed")
}

// Snapshot returns the current user facing state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Result returns the final result once the session has finished.
func (s *Session) Result() (domain.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.result == nil {
		return domain.Result{}, false
	}
	return *s.state.result, true
}

// Subscribe returns a channel that receives a snapshot after every
// transition. The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionSnapshot, func()) {
	ch := make(chan domain.SessionSnapshot, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) activeErrLocked() error {
	switch {
	case s.closed:
		return domain.ErrSessionClosed
	case s.state.phase == domain.PhaseFinished:
		return domain.ErrSessionFinished
	case s.state.phase != domain.PhaseInProgress:
		return domain.ErrNotInProgress
	}
	return nil
}

func (s *Session) startLoadLocked() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelLoad = cancel
	gen := s.gen
	cfg := s.state.config.Raw()

	go func() {
		defer cancel()
		questions, err := s.engine.cache.GetQuestions(ctx, cfg)
		s.loaded(gen, questions, err)
	}()
}

func (s *Session) loaded(gen uint64, questions []domain.Question, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || s.state.phase != domain.PhaseLoading {
		return
	}

	switch {
	case err != nil:
		s.state.loadStatus = domain.LoadStatusUnavailable
		s.state.loadErr = err
		s.logger.Warn("questions unavailable", zap.Error(err))
	case len(questions) == 0:
		s.state.loadStatus = domain.LoadStatusNoQuestions
		s.state.loadErr = domain.ErrNoQuestions
		s.logger.Warn("no questions returned", zap.String("key", string(s.state.config.Key())))
	default:
		s.state.questions = questions
		s.state.loadStatus = domain.LoadStatusReady
		s.state.phase = domain.PhaseInProgress
		s.state.secondsRemaining = s.engine.opts.QuestionSeconds
		s.logger.Debug("questions loaded", zap.Int("count", len(questions)))
		s.startCountdownLocked()
	}
	s.broadcastLocked()
}

func (s *Session) startCountdownLocked() {
	gen, index := s.gen, s.state.index
	ticker := s.engine.opts.NewTicker(s.engine.opts.TickInterval)
	stop := make(chan struct{})
	s.stopTimer = func() { close(stop) }

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				if !s.tick(gen, index) {
					return
				}
			}
		}
	}()
}

// tick handles one countdown tick for question index of generation gen and
// reports whether the countdown for that question should keep running.
func (s *Session) tick(gen uint64, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || s.state.phase != domain.PhaseInProgress || index != s.state.index {
		return false
	}

	s.state.secondsRemaining--
	if s.state.secondsRemaining <= 0 {
		s.state.secondsRemaining = 0
		s.advanceLocked(gen, index)
		return false
	}
	s.broadcastLocked()
	return true
}

// advanceLocked is the single transition shared by countdown expiry and the
// explicit next action.
func (s *Session) advanceLocked(gen uint64, index int) bool {
	if gen != s.gen || s.state.phase != domain.PhaseInProgress || index != s.state.index {
		return false
	}

	s.stopTimerLocked()
	if index+1 < len(s.state.questions) {
		s.state.index++
		s.state.selected = nil
		s.state.secondsRemaining = s.engine.opts.QuestionSeconds
		s.startCountdownLocked()
		s.broadcastLocked()
		return true
	}

	s.finishLocked()
	return true
}

func (s *Session) finishLocked() {
	result := domain.NewResult(s.state.config, s.state.score, len(s.state.questions), s.engine.opts.Now())
	s.state.phase = domain.PhaseFinished
	s.state.result = &result
	s.logger.Info("session finished",
		zap.Int("score", result.Score),
		zap.Int("total", result.Total),
		zap.Int("percentage", result.Percentage),
	)
	s.broadcastLocked()
	s.engine.persistResult(s.id, s.who, result)
}

func (s *Session) stopTimerLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}

func (s *Session) teardownLocked() {
	s.stopTimerLocked()
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
}

func (s *Session) broadcastLocked() {
	s.state.updatedAt = s.engine.opts.Now()
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest update so a slow reader never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	st := s.state
	snap := domain.SessionSnapshot{
		SessionID:        s.id,
		Config:           st.config,
		Phase:            st.phase,
		LoadStatus:       st.loadStatus,
		CurrentIndex:     st.index,
		Total:            len(st.questions),
		Score:            st.score,
		SecondsRemaining: st.secondsRemaining,
		UpdatedAt:        st.updatedAt,
	}
	if st.loadErr != nil {
		snap.LoadError = loadErrorMessage(st.loadErr)
	}
	if st.phase == domain.PhaseInProgress {
		q := st.questions[st.index]
		snap.Question = &domain.PublicQuestion{
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options...),
		}
		snap.IsLast = st.index+1 == len(st.questions)
		if st.selected != nil {
			snap.Feedback = &domain.Feedback{
				Selected:      *st.selected,
				Correct:       q.IsCorrect(*st.selected),
				CorrectAnswer: q.CorrectAnswer,
			}
		}
	}
	if st.result != nil {
		result := *st.result
		snap.Result = &result
	}
	return snap
}

func loadErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoQuestions):
		return domain.ErrNoQuestions.Error()
	case errors.Is(err, domain.ErrFetchFailed):
		return domain.ErrFetchFailed.Error()
	}
	return err.Error()
}
