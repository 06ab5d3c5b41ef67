package engine

import (
	"time"

	"github.com/synheart/synheart-guard/internal/models"
)

// DevicePayload accompanies device notifications.
type DevicePayload struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name,omitempty"`
	Restored bool   `json:"restored,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RejectedPayload accompanies sample.rejected.
type RejectedPayload struct {
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// NetworkPayload accompanies network.changed.
type NetworkPayload struct {
	From models.NetworkState `json:"from"`
	To   models.NetworkState `json:"to"`
}

// SyncPayload accompanies sync.completed and sync.failed.
type SyncPayload struct {
	Count     int           `json:"count"`
	Remaining int           `json:"remaining"`
	Error     string        `json:"error,omitempty"`
	RetryIn   time.Duration `json:"retry_in,omitempty"`
}

// ScorePayload accompanies score.updated.
type ScorePayload struct {
	Score int                 `json:"score"`
	Level models.WarningLevel `json:"level"`
}
