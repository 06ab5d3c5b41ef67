package models

import "time"

// Strategy is a coping strategy the user can apply to resolve a warning.
type Strategy struct {
	ID                  string `json:"id" yaml:"id"`
	Name                string `json:"name" yaml:"name"`
	Description         string `json:"description" yaml:"description"`
	Category            string `json:"category" yaml:"category"`
	EffectivenessRating int    `json:"effectiveness_rating" yaml:"effectiveness_rating"`
}

// Validate checks a strategy before it is added to the catalog.
func (s *Strategy) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if s.Category == "" {
		return &ValidationError{Field: "category", Message: "is required"}
	}
	if s.EffectivenessRating < 0 || s.EffectivenessRating > 5 {
		return &ValidationError{Field: "effectiveness_rating", Message: "must be between 0 and 5"}
	}
	return nil
}

// Resolution associates a resolved warning with the strategy that resolved it.
type Resolution struct {
	WarningEventID string       `json:"warning_event_id"`
	StrategyID     string       `json:"strategy_id"`
	WarningLevel   WarningLevel `json:"warning_level"`
	ScoreAtOpen    int          `json:"score_at_open"`
	OpenedAt       time.Time    `json:"opened_at"`
	ResolvedAt     time.Time    `json:"resolved_at"`
}

// TimeToResolve is how long the warning stayed open.
func (r Resolution) TimeToResolve() time.Duration {
	return r.ResolvedAt.Sub(r.OpenedAt)
}

// NewResolution builds the analytics record for a strategy-resolved event.
func NewResolution(event WarningEvent) Resolution {
	res := Resolution{
		WarningEventID: event.ID,
		WarningLevel:   event.WarningLevel,
		ScoreAtOpen:    event.RegulationScoreAtOpen,
		OpenedAt:       event.OpenedAt,
	}
	if event.ResolutionStrategyID != nil {
		res.StrategyID = *event.ResolutionStrategyID
	}
	if event.ResolvedAt != nil {
		res.ResolvedAt = *event.ResolvedAt
	}
	return res
}
