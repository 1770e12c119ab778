package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trivia-quiz-service/internal/domain"
)

func TestFixedReturnsUser(t *testing.T) {
	user, err := NewFixed("player-1").CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user.ID != "player-1" {
		t.Fatalf("expected player-1, got %q", user.ID)
	}
}

func TestFixedWithoutIDIsMissing(t *testing.T) {
	if _, err := NewFixed("").CurrentUser(context.Background()); !errors.Is(err, domain.ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestAnonymousIsStable(t *testing.T) {
	anon := NewAnonymous()

	var wg sync.WaitGroup
	ids := make([]string, 16)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := anon.CurrentUser(context.Background())
			if err != nil {
				t.Errorf("current user: %v", err)
				return
			}
			ids[i] = user.ID
		}(i)
	}
	wg.Wait()

	if ids[0] == "" {
		t.Fatalf("expected a generated id")
	}
	for i, id := range ids {
		if id != ids[0] {
			t.Fatalf("caller %d got %q, want %q", i, id, ids[0])
		}
	}

	other, _ := NewAnonymous().CurrentUser(context.Background())
	if other.ID == ids[0] {
		t.Fatalf("expected distinct anonymous users")
	}
}

func TestAnonymousHonoursCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewAnonymous().CurrentUser(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
