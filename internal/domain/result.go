package domain

import (
	"math"
	"time"
)

// Result is the final outcome of a finished session.
type Result struct {
	Score      int              `json:"score"`
	Total      int              `json:"total"`
	Percentage int              `json:"percentage"`
	Config     NormalizedConfig `json:"config"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// NewResult builds a Result and derives its percentage.
func NewResult(cfg NormalizedConfig, score, total int, at time.Time) Result {
	return Result{
		Score:      score,
		Total:      total,
		Percentage: ComputePercentage(score, total),
		Config:     cfg,
		FinishedAt: at,
	}
}

// ComputePercentage returns round(100*score/total), or 0 when total is 0.
func ComputePercentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}
