package domain

import (
	"testing"
	"time"
)

func TestComputePercentage(t *testing.T) {
	cases := []struct {
		score, total, want int
	}{
		{0, 0, 0},
		{7, 10, 70},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{5, 5, 100},
		{3, 0, 0},
	}
	for _, tc := range cases {
		if got := ComputePercentage(tc.score, tc.total); got != tc.want {
			t.Fatalf("ComputePercentage(%d, %d) = %d, want %d", tc.score, tc.total, got, tc.want)
		}
	}
}

func TestNewResult(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	res := NewResult(Normalize(QuizConfig{Amount: 4, Category: "music"}), 3, 4, at)
	if res.Percentage != 75 || res.Score != 3 || res.Total != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.FinishedAt.Equal(at) {
		t.Fatalf("expected finish time to be kept")
	}
}

func TestUserShortID(t *testing.T) {
	if got := (User{ID: "abcdef123456"}).ShortID(); got != "abcdef" {
		t.Fatalf("unexpected short id %q", got)
	}
	if got := (User{ID: "abc"}).ShortID(); got != "abc" {
		t.Fatalf("unexpected short id %q", got)
	}
}
