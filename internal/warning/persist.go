package warning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/storage"
)

// ErrCorruptActive marks a persisted open event that cannot be decoded or
// fails validation. Only such values may be discarded.
var ErrCorruptActive = errors.New("persisted warning event is unusable")

// Active is the persisted open event together with the level the machine
// has reached since it opened.
type Active struct {
	Event models.WarningEvent `json:"event"`
	Level models.WarningLevel `json:"level"`
}

// SaveActive persists the open event and the current level locally.
func SaveActive(ctx context.Context, store storage.Store, event models.WarningEvent, level models.WarningLevel) error {
	if !level.Elevated() {
		level = event.WarningLevel
	}
	if err := storage.SetJSON(ctx, store, storage.KeyActiveWarning, Active{Event: event, Level: level}); err != nil {
		return fmt.Errorf("failed to persist active warning: %w", err)
	}
	return nil
}

// ClearActive removes the persisted open event.
func ClearActive(ctx context.Context, store storage.Store) error {
	if err := store.Remove(ctx, storage.KeyActiveWarning); err != nil {
		return fmt.Errorf("failed to clear active warning: %w", err)
	}
	return nil
}

// LoadActive returns the persisted open event. ok is false when none is
// stored. A value that cannot be used is reported with ErrCorruptActive;
// any other error is a storage failure and the value must be kept.
func LoadActive(ctx context.Context, store storage.Store) (Active, bool, error) {
	data, err := store.Get(ctx, storage.KeyActiveWarning)
	if errors.Is(err, storage.ErrNotFound) {
		return Active{}, false, nil
	}
	if err != nil {
		return Active{}, false, fmt.Errorf("failed to load active warning: %w", err)
	}

	var active Active
	if err := json.Unmarshal(data, &active); err != nil {
		return Active{}, false, fmt.Errorf("%w: %v", ErrCorruptActive, err)
	}
	if active.Event.ID == "" {
		// written before the level was stored alongside the event
		if err := json.Unmarshal(data, &active.Event); err != nil {
			return Active{}, false, fmt.Errorf("%w: %v", ErrCorruptActive, err)
		}
		active.Level = active.Event.WarningLevel
	}
	if err := active.Event.Validate(); err != nil {
		return Active{}, false, fmt.Errorf("%w: %v", ErrCorruptActive, err)
	}
	if !active.Event.IsOpen() {
		return Active{}, false, nil
	}
	if !active.Level.Elevated() {
		active.Level = active.Event.WarningLevel
	}
	return active, true, nil
}
