package regulation

import (
	"fmt"
	"math"

	"github.com/synheart/synheart-guard/internal/models"
)

// WeightedScorer blends the stress reading with how far the latest HRV and
// heart rate sit from their window means. HRV above its mean and heart rate
// below its mean both raise the score.
type WeightedScorer struct {
	StressWeight float64
	HRVWeight    float64
	HRWeight     float64
}

// DefaultWeightedScorer leans on stress and uses HRV/HR as modifiers.
func DefaultWeightedScorer() WeightedScorer {
	return WeightedScorer{StressWeight: 0.6, HRVWeight: 0.25, HRWeight: 0.15}
}

// Validate checks the weights.
func (w WeightedScorer) Validate() error {
	if w.StressWeight < 0 || w.HRVWeight < 0 || w.HRWeight < 0 {
		return fmt.Errorf("scorer weights must not be negative")
	}
	if w.StressWeight+w.HRVWeight+w.HRWeight == 0 {
		return fmt.Errorf("at least one scorer weight must be positive")
	}
	return nil
}

// Score blends the latest sample against the window mean. An empty window
// yields DefaultBaseline.
func (w WeightedScorer) Score(window []models.BiometricSample) int {
	if len(window) == 0 {
		return DefaultBaseline
	}
	total := w.StressWeight + w.HRVWeight + w.HRWeight
	if total <= 0 {
		return StressScorer{}.Score(window)
	}

	var sumHR, sumHRV float64
	for _, s := range window {
		sumHR += float64(s.HeartRate)
		sumHRV += float64(s.HRV)
	}
	n := float64(len(window))
	meanHR := math.Max(sumHR/n, 1)
	meanHRV := math.Max(sumHRV/n, 1)

	latest := window[0]
	stressTerm := float64(MaxScore - latest.StressLevel)
	hrvTerm := unit(0.5+(float64(latest.HRV)-meanHRV)/(2*meanHRV)) * MaxScore
	hrTerm := unit(0.5-(float64(latest.HeartRate)-meanHR)/(2*meanHR)) * MaxScore

	score := (w.StressWeight*stressTerm + w.HRVWeight*hrvTerm + w.HRWeight*hrTerm) / total
	return Clamp(int(math.Round(score)), MinScore, MaxScore)
}

func unit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
