package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/notify"
	"github.com/synheart/synheart-guard/internal/warning"
)

// restore brings back the open warning, the paired device and any queued
// samples left by the previous run. Runs on the loop before any event.
func (e *Engine) restore(ctx context.Context) {
	active, ok, err := warning.LoadActive(ctx, e.store)
	switch {
	case errors.Is(err, warning.ErrCorruptActive):
		e.logger.Warn("discarding persisted warning event", zap.Error(err))
		if err := warning.ClearActive(ctx, e.store); err != nil {
			e.logger.Error("failed to clear persisted warning event", zap.Error(err))
		}
	case err != nil:
		// the value may still be valid; keep it for the next start
		e.logger.Error("failed to load persisted warning event", zap.Error(err))
	case ok:
		ev := active.Event
		if err := e.machine.Restore(ev, active.Level); err != nil {
			e.logger.Warn("persisted warning event cannot be restored", zap.Error(err))
			if err := warning.ClearActive(ctx, e.store); err != nil {
				e.logger.Error("failed to clear persisted warning event", zap.Error(err))
			}
			break
		}
		// the sink may never have seen the insert; it is idempotent
		e.journal.Insert(ev)
		if e.metrics != nil {
			e.metrics.WarningLevel.Set(float64(e.machine.Level()))
		}
		e.logger.Info("restored open warning event",
			zap.String("warning_event_id", ev.ID),
			zap.Stringer("level", e.machine.Level()),
		)
	}

	if e.verifyOnRestore {
		info, ok, err := e.manager.Persisted(ctx)
		if err != nil {
			e.logger.Error("failed to load persisted device", zap.Error(err))
		}
		if ok {
			e.beginConnect(info, true, make(chan error, 1))
		}
	} else {
		info, ok, err := e.manager.Restore(ctx)
		if err != nil {
			e.logger.Error("failed to restore device", zap.Error(err))
		}
		if ok {
			e.startSession(info)
			e.publisher.Publish(notify.DeviceConnected, DevicePayload{
				DeviceID: info.ID,
				Name:     info.Name,
				Restored: true,
			})
		}
	}

	if n := e.buffer.Len(); n > 0 {
		e.logger.Info("offline queue restored", zap.Int("samples", n))
		if e.online() {
			e.coordinator.Trigger()
		}
	}
}
