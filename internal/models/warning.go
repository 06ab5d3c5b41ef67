package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WarningLevel is a severity tier. Levels are ordered Normal < Notice < Watch < Alert.
type WarningLevel int

const (
	Normal WarningLevel = iota
	Notice
	Watch
	Alert
)

func (l WarningLevel) String() string {
	switch l {
	case Normal:
		return "normal"
	case Notice:
		return "notice"
	case Watch:
		return "watch"
	case Alert:
		return "alert"
	default:
		return "unknown"
	}
}

// Elevated reports whether the level is above Normal.
func (l WarningLevel) Elevated() bool {
	return l > Normal
}

// ParseWarningLevel converts the string form back to a level.
func ParseWarningLevel(v string) (WarningLevel, error) {
	switch v {
	case "normal":
		return Normal, nil
	case "notice":
		return Notice, nil
	case "watch":
		return Watch, nil
	case "alert":
		return Alert, nil
	}
	return Normal, fmt.Errorf("unknown warning level %q", v)
}

func (l WarningLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *WarningLevel) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseWarningLevel(v)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// WarningEvent records one escalation episode. It is created when the state
// machine leaves Normal and mutated exactly once, when it is resolved.
type WarningEvent struct {
	ID                    string         `json:"id"`
	OpenedAt              time.Time      `json:"opened_at"`
	WarningLevel          WarningLevel   `json:"warning_level"`
	RegulationScoreAtOpen int            `json:"regulation_score_at_open"`
	SensorSnapshot        SensorSnapshot `json:"sensor_snapshot"`
	ResolvedAt            *time.Time     `json:"resolved_at,omitempty"`
	ResolutionStrategyID  *string        `json:"resolution_strategy_id,omitempty"`
}

// IsOpen reports whether the event has not been resolved yet.
func (e *WarningEvent) IsOpen() bool {
	return e.ResolvedAt == nil
}

// Resolve closes the event. strategyID is empty for automatic recovery.
// Resolving an already closed event returns an error and leaves it untouched.
func (e *WarningEvent) Resolve(at time.Time, strategyID string) error {
	if !e.IsOpen() {
		return fmt.Errorf("warning event %s already resolved", e.ID)
	}
	resolved := at.UTC()
	e.ResolvedAt = &resolved
	if strategyID != "" {
		id := strategyID
		e.ResolutionStrategyID = &id
	}
	return nil
}

// Validate checks the invariants of a persisted event.
func (e *WarningEvent) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if e.OpenedAt.IsZero() {
		return &ValidationError{Field: "opened_at", Message: "is required"}
	}
	if !e.WarningLevel.Elevated() {
		return &ValidationError{Field: "warning_level", Message: "must be notice, watch or alert"}
	}
	if e.RegulationScoreAtOpen < 0 || e.RegulationScoreAtOpen > 100 {
		return &ValidationError{Field: "regulation_score_at_open", Message: "must be between 0 and 100"}
	}
	if e.ResolvedAt != nil && e.ResolvedAt.Before(e.OpenedAt) {
		return &ValidationError{Field: "resolved_at", Message: "must not precede opened_at"}
	}
	if e.ResolutionStrategyID != nil && e.ResolvedAt == nil {
		return &ValidationError{Field: "resolution_strategy_id", Message: "requires resolved_at"}
	}
	return nil
}

// ValidationError represents a field-level validation failure
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
