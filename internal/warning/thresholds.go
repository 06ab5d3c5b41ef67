package warning

import (
	"fmt"

	"github.com/synheart/synheart-guard/internal/models"
)

// Thresholds are the score cutoffs. A score strictly below a cutoff enters
// that level; Recovery is the score needed to return to Normal.
type Thresholds struct {
	Notice   int `json:"notice" yaml:"notice" mapstructure:"notice"`
	Watch    int `json:"watch" yaml:"watch" mapstructure:"watch"`
	Alert    int `json:"alert" yaml:"alert" mapstructure:"alert"`
	Recovery int `json:"recovery" yaml:"recovery" mapstructure:"recovery"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Notice: 70, Watch: 55, Alert: 40, Recovery: 75}
}

// Validate requires 0 <= Alert < Watch < Notice <= Recovery <= 100.
func (t Thresholds) Validate() error {
	if t.Alert < 0 {
		return &models.ValidationError{Field: "alert", Message: "must not be negative"}
	}
	if t.Alert >= t.Watch {
		return &models.ValidationError{Field: "watch", Message: fmt.Sprintf("must be above alert (%d)", t.Alert)}
	}
	if t.Watch >= t.Notice {
		return &models.ValidationError{Field: "notice", Message: fmt.Sprintf("must be above watch (%d)", t.Watch)}
	}
	if t.Notice > t.Recovery {
		return &models.ValidationError{Field: "recovery", Message: fmt.Sprintf("must be at least notice (%d)", t.Notice)}
	}
	if t.Recovery > 100 {
		return &models.ValidationError{Field: "recovery", Message: "must not exceed 100"}
	}
	return nil
}

// LevelFor maps a score to the level its cutoffs select, ignoring history.
func (t Thresholds) LevelFor(score int) models.WarningLevel {
	switch {
	case score < t.Alert:
		return models.Alert
	case score < t.Watch:
		return models.Watch
	case score < t.Notice:
		return models.Notice
	default:
		return models.Normal
	}
}

// Gap is the hysteresis margin applied when stepping down.
func (t Thresholds) Gap() int {
	return t.Recovery - t.Notice
}

// cutoff returns the entry threshold of an elevated level.
func (t Thresholds) cutoff(level models.WarningLevel) int {
	switch level {
	case models.Alert:
		return t.Alert
	case models.Watch:
		return t.Watch
	default:
		return t.Notice
	}
}
