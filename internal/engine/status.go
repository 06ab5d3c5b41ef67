package engine

import (
	"context"

	"github.com/synheart/synheart-guard/internal/ingest"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/warning"
)

// Status is a point-in-time view of the engine.
type Status struct {
	ConnectionState models.ConnectionState  `json:"connection_state"`
	Device          *models.DeviceInfo      `json:"device,omitempty"`
	NetworkState    models.NetworkState     `json:"network_state"`
	RegulationScore int                     `json:"regulation_score"`
	WarningLevel    models.WarningLevel     `json:"warning_level"`
	ActiveWarning   *models.WarningEvent    `json:"active_warning,omitempty"`
	LatestSample    *models.BiometricSample `json:"latest_sample,omitempty"`
	WindowLength    int                     `json:"window_length"`
	OfflineQueue    int                     `json:"offline_queue"`
	SyncInFlight    bool                    `json:"sync_in_flight"`
	JournalPending  int                     `json:"journal_pending"`
	Ingest          ingest.Stats            `json:"ingest"`
}

// Status returns the current state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var s Status
	err := e.do(ctx, func() {
		window := e.ingestor.Window()
		s = Status{
			ConnectionState: e.manager.State(),
			NetworkState:    e.networkState(),
			RegulationScore: e.scorer.Score(window.Snapshot()),
			WarningLevel:    e.machine.Level(),
			WindowLength:    window.Len(),
			OfflineQueue:    e.buffer.Len(),
			SyncInFlight:    e.coordinator.InFlight(),
			JournalPending:  e.journal.Pending(),
			Ingest:          e.ingestor.Stats(),
		}
		if info, ok := e.manager.Device(); ok {
			s.Device = &info
		}
		if ev, ok := e.machine.Open(); ok {
			s.ActiveWarning = &ev
		}
		if latest, ok := window.Latest(); ok {
			s.LatestSample = &latest
		}
	})
	return s, err
}

// ActiveWarning returns the open warning event, if any.
func (e *Engine) ActiveWarning(ctx context.Context) (models.WarningEvent, bool, error) {
	var (
		ev models.WarningEvent
		ok bool
	)
	err := e.do(ctx, func() { ev, ok = e.machine.Open() })
	return ev, ok, err
}

// Window returns the recent samples, newest first.
func (e *Engine) Window(ctx context.Context) ([]models.BiometricSample, error) {
	var out []models.BiometricSample
	err := e.do(ctx, func() { out = e.ingestor.Window().Snapshot() })
	return out, err
}

// Transitions returns the recorded level changes, oldest first.
func (e *Engine) Transitions(ctx context.Context) ([]warning.Transition, error) {
	var out []warning.Transition
	err := e.do(ctx, func() { out = e.machine.History() })
	return out, err
}

// Thresholds returns the warning cutoffs in use.
func (e *Engine) Thresholds() warning.Thresholds {
	return e.machine.Thresholds()
}
