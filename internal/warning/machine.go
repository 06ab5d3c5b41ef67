// Package warning runs the hysteresis state machine that turns regulation
// scores into warning levels and warning events.
package warning

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/synheart/synheart-guard/internal/models"
)

// ErrNoOpenWarning is returned when an operation needs an open event.
var ErrNoOpenWarning = errors.New("no open warning event")

// DefaultHistoryLimit bounds the in-memory transition log.
const DefaultHistoryLimit = 256

// Transition causes.
const (
	CauseEscalated   = "escalated"
	CauseDeescalated = "deescalated"
	CauseRecovered   = "recovered"
	CauseStrategy    = "resolved_with_strategy"
	CauseRestored    = "restored"
)

// Transition is one level change.
type Transition struct {
	From    models.WarningLevel `json:"from"`
	To      models.WarningLevel `json:"to"`
	Score   int                 `json:"score"`
	Cause   string              `json:"cause"`
	EventID string              `json:"event_id,omitempty"`
	At      time.Time           `json:"at"`
}

// Outcome describes what one evaluation changed.
type Outcome struct {
	Level      models.WarningLevel
	Transition *Transition
	// Opened is set when the evaluation opened a new event.
	Opened *models.WarningEvent
	// Closed is set when the evaluation resolved the open event.
	Closed *models.WarningEvent
}

// Machine holds the current level and the single open event.
// It is not safe for concurrent use.
type Machine struct {
	thresholds Thresholds
	level      models.WarningLevel
	open       *models.WarningEvent
	lastScore  int
	history    []Transition
	limit      int

	now   func() time.Time
	newID func() string
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the clock used for event and transition times.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithHistoryLimit bounds the transition history.
func WithHistoryLimit(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.limit = n
		}
	}
}

// NewMachine starts in Normal with no open event.
func NewMachine(thresholds Thresholds, opts ...Option) (*Machine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	m := &Machine{
		thresholds: thresholds,
		level:      models.Normal,
		lastScore:  -1,
		limit:      DefaultHistoryLimit,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Thresholds returns the configured cutoffs.
func (m *Machine) Thresholds() Thresholds { return m.thresholds }

// Level returns the current level.
func (m *Machine) Level() models.WarningLevel { return m.level }

// LastScore returns the most recently evaluated score, or -1.
func (m *Machine) LastScore() int { return m.lastScore }

// Open returns a copy of the open event.
func (m *Machine) Open() (models.WarningEvent, bool) {
	if m.open == nil {
		return models.WarningEvent{}, false
	}
	return *m.open, true
}

// History returns the recorded transitions, oldest first.
func (m *Machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}

// Evaluate feeds one score. snapshot is attached to an event opened by this
// evaluation and ignored otherwise.
func (m *Machine) Evaluate(score int, snapshot models.SensorSnapshot) Outcome {
	m.lastScore = score
	next := m.nextLevel(score)
	if next == m.level {
		return Outcome{Level: m.level}
	}

	from := m.level
	m.level = next
	at := m.now().UTC()
	out := Outcome{Level: next}

	switch {
	case from == models.Normal:
		ev := &models.WarningEvent{
			ID:                    m.newID(),
			OpenedAt:              at,
			WarningLevel:          next,
			RegulationScoreAtOpen: score,
			SensorSnapshot:        snapshot,
		}
		m.open = ev
		opened := *ev
		out.Opened = &opened
		out.Transition = m.record(from, next, score, CauseEscalated, ev.ID, at)

	case next == models.Normal:
		id := ""
		if m.open != nil {
			id = m.open.ID
			m.open.Resolve(at, "")
			closed := *m.open
			out.Closed = &closed
			m.open = nil
		}
		out.Transition = m.record(from, next, score, CauseRecovered, id, at)

	case next > from:
		out.Transition = m.record(from, next, score, CauseEscalated, m.openID(), at)

	default:
		out.Transition = m.record(from, next, score, CauseDeescalated, m.openID(), at)
	}
	return out
}

// ResolveWithStrategy closes the open event with strategyID and forces the
// level back to Normal. It reports false when nothing is open.
func (m *Machine) ResolveWithStrategy(strategyID string) (models.WarningEvent, bool) {
	if m.open == nil {
		return models.WarningEvent{}, false
	}
	at := m.now().UTC()
	if at.Before(m.open.OpenedAt) {
		at = m.open.OpenedAt
	}
	m.open.Resolve(at, strategyID)
	closed := *m.open
	m.open = nil

	from := m.level
	m.level = models.Normal
	m.record(from, models.Normal, m.lastScore, CauseStrategy, closed.ID, at)
	return closed, true
}

// Restore reinstates a persisted open event after a restart at level. A
// level that is not elevated falls back to the level the event opened at.
func (m *Machine) Restore(event models.WarningEvent, level models.WarningLevel) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if !event.IsOpen() {
		return errors.New("cannot restore a resolved warning event")
	}
	if !level.Elevated() || level > models.Alert {
		level = event.WarningLevel
	}
	ev := event
	m.open = &ev
	from := m.level
	m.level = level
	m.record(from, m.level, event.RegulationScoreAtOpen, CauseRestored, ev.ID, m.now().UTC())
	return nil
}

// nextLevel applies escalation and hysteresis.
func (m *Machine) nextLevel(score int) models.WarningLevel {
	t := m.thresholds
	target := t.LevelFor(score)

	if m.level == models.Normal {
		return target
	}
	if score >= t.Recovery {
		return models.Normal
	}
	if target > m.level {
		return target
	}
	// stepping down needs the same margin as recovery
	if target < m.level && score >= t.cutoff(m.level)+t.Gap() {
		if target == models.Normal {
			return models.Notice
		}
		return target
	}
	return m.level
}

func (m *Machine) openID() string {
	if m.open == nil {
		return ""
	}
	return m.open.ID
}

func (m *Machine) record(from, to models.WarningLevel, score int, cause, eventID string, at time.Time) *Transition {
	tr := Transition{From: from, To: to, Score: score, Cause: cause, EventID: eventID, At: at}
	m.history = append(m.history, tr)
	if len(m.history) > m.limit {
		m.history = append([]Transition(nil), m.history[len(m.history)-m.limit:]...)
	}
	return &tr
}
