package domain

import (
	"errors"
	"testing"
)

func TestNormalizeClampsAmount(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, 10},
		{-5, 1},
		{1, 1},
		{25, 25},
		{50, 50},
		{51, 50},
		{1000, 50},
	}
	for _, tc := range cases {
		got := Normalize(QuizConfig{Amount: tc.in, Category: "science"}).Amount
		if got != tc.want {
			t.Fatalf("amount %d: expected %d, got %d", tc.in, tc.want, got)
		}
		if got < MinAmount || got > MaxAmount {
			t.Fatalf("amount %d normalized out of range: %d", tc.in, got)
		}
	}
}

func TestKeyOfEqualForEquivalentConfigs(t *testing.T) {
	a := QuizConfig{Category: "science", Difficulty: "easy"}
	b := QuizConfig{Amount: 10, Category: "science", Difficulty: "easy"}
	if KeyOf(a) != KeyOf(b) {
		t.Fatalf("expected equal keys, got %s and %s", KeyOf(a), KeyOf(b))
	}

	c := QuizConfig{Amount: 99, Category: "music"}
	d := QuizConfig{Amount: 50, Category: "music"}
	if KeyOf(c) != KeyOf(d) {
		t.Fatalf("expected clamped configs to share a key")
	}

	if KeyOf(a) == KeyOf(QuizConfig{Category: "science", Difficulty: "hard"}) {
		t.Fatalf("expected different difficulties to produce different keys")
	}
}

func TestKeyFormatIsStable(t *testing.T) {
	got := KeyOf(QuizConfig{Amount: 2, Category: "science", Difficulty: "easy"})
	want := CacheKey(`{"amount":2,"category":"science","difficulty":"easy"}`)
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if empty := KeyOf(QuizConfig{}); empty != `{"amount":10,"category":"","difficulty":""}` {
		t.Fatalf("unexpected key for empty config: %s", empty)
	}
}

func TestValidate(t *testing.T) {
	if err := (QuizConfig{Category: "geography"}).Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := (QuizConfig{Category: "geography", Difficulty: "medium"}).Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := (QuizConfig{Category: "sports"}).Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected invalid category, got %v", err)
	}
	if err := (QuizConfig{Category: "music", Difficulty: "extreme"}).Validate(); !errors.Is(err, ErrInvalidDifficulty) {
		t.Fatalf("expected invalid difficulty, got %v", err)
	}
}

func TestCategoryTitle(t *testing.T) {
	if got := CategoryTitle("film_and_tv"); got != "Film And Tv" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := CategoryTitle("science"); got != "Science" {
		t.Fatalf("unexpected title %q", got)
	}
}
