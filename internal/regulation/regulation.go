// Package regulation derives a 0-100 regulation score from recent samples.
// Higher is calmer.
package regulation

import (
	"fmt"

	"github.com/synheart/synheart-guard/internal/models"
)

const (
	MinScore = 0
	MaxScore = 100

	// DefaultBaseline is the score reported before any sample has arrived.
	DefaultBaseline = 100
)

// Scorer turns a non-empty window (most recent first) into a score.
type Scorer interface {
	Score(window []models.BiometricSample) int
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(window []models.BiometricSample) int

func (f ScorerFunc) Score(window []models.BiometricSample) int { return f(window) }

// Engine applies a Scorer and guarantees the result is in range.
type Engine struct {
	scorer   Scorer
	baseline int
}

// NewEngine returns an engine. A nil scorer means StressScorer.
func NewEngine(scorer Scorer, baseline int) (*Engine, error) {
	if scorer == nil {
		scorer = StressScorer{}
	}
	if baseline < MinScore || baseline > MaxScore {
		return nil, fmt.Errorf("baseline score %d out of range [%d, %d]", baseline, MinScore, MaxScore)
	}
	return &Engine{scorer: scorer, baseline: baseline}, nil
}

// Score is pure. An empty window yields the baseline.
func (e *Engine) Score(window []models.BiometricSample) int {
	if len(window) == 0 {
		return e.baseline
	}
	return Clamp(e.scorer.Score(window), MinScore, MaxScore)
}

// Baseline returns the empty-window score.
func (e *Engine) Baseline() int { return e.baseline }

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// StressScorer scores the most recent sample as 100 - stress.
type StressScorer struct{}

func (StressScorer) Score(window []models.BiometricSample) int {
	if len(window) == 0 {
		return DefaultBaseline
	}
	return Clamp(MaxScore-window[0].StressLevel, MinScore, MaxScore)
}
