package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"trivia-quiz-service/internal/domain"
)

type cacheFunc func(ctx context.Context, cfg domain.QuizConfig) ([]domain.Question, error)

func (f cacheFunc) GetQuestions(ctx context.Context, cfg domain.QuizConfig) ([]domain.Question, error) {
	return f(ctx, cfg)
}

type nopScores struct{}

func (nopScores) SaveScore(context.Context, domain.ScoreRecord) error { return nil }

func (nopScores) RecentScores(context.Context, int) ([]domain.ScoreRecord, error) { return nil, nil }

type mapSessions struct {
	mu sync.Mutex
	m  map[string]*Session
}

func (r *mapSessions) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]*Session)
	}
	r.m[s.ID()] = s
}

func (r *mapSessions) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.m[id]
	return s, ok
}

func (r *mapSessions) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
}

// idleTicker never fires, leaving the test in charge of every tick.
type idleTicker struct{ ch chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.ch }
func (t idleTicker) Stop()               {}

func newInProgressSession(t *testing.T, n int) *Session {
	t.Helper()
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{Prompt: "q", Options: []string{"a", "b"}, CorrectAnswer: "a"}
	}
	cache := cacheFunc(func(context.Context, domain.QuizConfig) ([]domain.Question, error) {
		return questions, nil
	})
	engine := NewEngine(cache, nopScores{}, &mapSessions{}, Options{
		NewTicker: func(time.Duration) Ticker { return idleTicker{ch: make(chan time.Time)} },
	})
	s, err := engine.Start(context.Background(), nil, domain.QuizConfig{Amount: n, Category: "science"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Phase != domain.PhaseInProgress {
		if time.Now().After(deadline) {
			t.Fatalf("session never started")
		}
		time.Sleep(time.Millisecond)
	}
	return s
}

func TestStaleTickIsIgnored(t *testing.T) {
	s := newInProgressSession(t, 3)
	gen := s.gen

	if ok, _ := s.Select(0, "a"); !ok {
		t.Fatalf("expected selection")
	}
	if ok, _ := s.Next(0); !ok {
		t.Fatalf("expected advance")
	}

	if s.tick(gen, 0) {
		t.Fatalf("expected tick for a left index to stop its countdown")
	}
	if s.tick(gen-1, 1) {
		t.Fatalf("expected tick from an older generation to be ignored")
	}

	snap := s.Snapshot()
	if snap.CurrentIndex != 1 || snap.Score != 1 || snap.SecondsRemaining != DefaultQuestionSeconds {
		t.Fatalf("stale tick mutated state: %+v", snap)
	}
}

func TestTickExpiryUsesAdvancePath(t *testing.T) {
	s := newInProgressSession(t, 2)
	gen := s.gen

	for i := 0; i < DefaultQuestionSeconds-1; i++ {
		if !s.tick(gen, 0) {
			t.Fatalf("countdown stopped early at tick %d", i)
		}
	}
	if s.tick(gen, 0) {
		t.Fatalf("expected final tick to end the countdown")
	}
	if s.Snapshot().CurrentIndex != 1 {
		t.Fatalf("expected expiry to advance")
	}
	if ok, _ := s.Next(0); ok {
		t.Fatalf("expected manual advance of an expired index to be a no-op")
	}
	if s.Snapshot().CurrentIndex != 1 {
		t.Fatalf("expected index to stay at 1")
	}
}

func TestLateLoadAfterReconfigureIsIgnored(t *testing.T) {
	s := newInProgressSession(t, 2)
	staleGen := s.gen

	if err := s.Configure(domain.QuizConfig{Amount: 1, Category: "music"}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	s.loaded(staleGen, []domain.Question{{Prompt: "late", Options: []string{"x", "y"}, CorrectAnswer: "x"}}, nil)

	snap := s.Snapshot()
	if snap.Config.Category != "music" {
		t.Fatalf("expected the new config to stay, got %+v", snap.Config)
	}
	if snap.Question != nil && snap.Question.Prompt == "late" {
		t.Fatalf("stale load replaced questions")
	}
}
