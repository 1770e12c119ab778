package memory

import (
	"context"
	"testing"
	"time"

	"trivia-quiz-service/internal/domain"
)

func TestScoreStoreRecentScores(t *testing.T) {
	store := NewScoreStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.SaveScore(context.Background(), domain.ScoreRecord{
			ID:        string(rune('a' + i)),
			Score:     i,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("save score: %v", err)
		}
	}

	recent, err := store.RecentScores(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent scores: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("expected newest first, got %+v", recent)
	}

	all, _ := store.RecentScores(context.Background(), 0)
	if len(all) != 3 {
		t.Fatalf("expected all records, got %d", len(all))
	}
}
