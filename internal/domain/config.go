package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultAmount = 10
	MinAmount     = 1
	MaxAmount     = 50
)

var categories = []string{
	"science",
	"history",
	"film_and_tv",
	"arts_and_literature",
	"music",
	"food_and_drink",
	"society_and_culture",
	"geography",
}

var difficulties = []string{"easy", "medium", "hard"}

// QuizConfig is the raw configuration a player picks before starting.
type QuizConfig struct {
	Amount     int    `json:"amount" yaml:"amount"`
	Category   string `json:"category" yaml:"category"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
}

// NormalizedConfig is the canonical form of a QuizConfig. Field order is
// part of the cache key format.
type NormalizedConfig struct {
	Amount     int    `json:"amount"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// CacheKey identifies a normalized configuration in question caches.
type CacheKey string

// Normalize canonicalizes raw. A zero amount means the default.
func Normalize(raw QuizConfig) NormalizedConfig {
	amount := raw.Amount
	if amount == 0 {
		amount = DefaultAmount
	}
	if amount < MinAmount {
		amount = MinAmount
	}
	if amount > MaxAmount {
		amount = MaxAmount
	}
	return NormalizedConfig{
		Amount:     amount,
		Category:   raw.Category,
		Difficulty: raw.Difficulty,
	}
}

// Key serializes the normalized config.
func (c NormalizedConfig) Key() CacheKey {
	// Marshalling a struct of ints and strings cannot fail.
	data, _ := json.Marshal(c)
	return CacheKey(data)
}

// Raw converts the normalized config back into a QuizConfig.
func (c NormalizedConfig) Raw() QuizConfig {
	return QuizConfig{Amount: c.Amount, Category: c.Category, Difficulty: c.Difficulty}
}

// KeyOf returns the cache key of raw's normalized form.
func KeyOf(raw QuizConfig) CacheKey {
	return Normalize(raw).Key()
}

// Validate checks the category and difficulty against the provider enums.
// An empty difficulty is allowed and means any difficulty.
func (c QuizConfig) Validate() error {
	if !contains(categories, c.Category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, c.Category)
	}
	if c.Difficulty != "" && !contains(difficulties, c.Difficulty) {
		return fmt.Errorf("%w: %q", ErrInvalidDifficulty, c.Difficulty)
	}
	return nil
}

// Categories lists the supported question categories.
func Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

// Difficulties lists the supported difficulty levels, easiest first.
func Difficulties() []string {
	out := make([]string, len(difficulties))
	copy(out, difficulties)
	return out
}

// CategoryTitle turns a category slug such as "film_and_tv" into "Film And Tv".
func CategoryTitle(category string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(category, "_", " "))
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
