package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/ingest"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/notify"
	"github.com/synheart/synheart-guard/internal/offline"
	"github.com/synheart/synheart-guard/internal/warning"
)

// OnSample ingests one raw sample. Validation failures and ErrNotActive are
// returned unchanged; storage failures after acceptance are joined into the
// error but the sample still counts.
func (e *Engine) OnSample(ctx context.Context, raw models.RawSample) (models.BiometricSample, error) {
	var (
		sample models.BiometricSample
		err    error
	)
	if derr := e.do(ctx, func() { sample, err = e.accept(ctx, raw) }); derr != nil {
		return models.BiometricSample{}, derr
	}
	return sample, err
}

func (e *Engine) accept(ctx context.Context, raw models.RawSample) (models.BiometricSample, error) {
	sample, err := e.ingestor.Accept(ctx, raw)
	if err == nil {
		e.publisher.Publish(notify.SampleAccepted, sample)
		return sample, nil
	}

	if errors.Is(err, ingest.ErrNotActive) {
		return sample, err
	}
	if reason := ingest.RejectReason(err); reason != "" {
		e.publisher.Publish(notify.SampleRejected, RejectedPayload{Reason: reason, Error: err.Error()})
		return sample, err
	}

	// accepted, but a consumer could not persist its effects
	e.logger.Error("sample accepted with errors", zap.Error(err))
	e.publisher.Publish(notify.SampleAccepted, sample)
	return sample, err
}

// enqueue writes the sample to the durable queue and, when online, starts
// (or joins) a sync.
func (e *Engine) enqueue(ctx context.Context, s models.BiometricSample) error {
	if err := e.buffer.Append(ctx, s); err != nil {
		return fmt.Errorf("failed to queue sample: %w", err)
	}
	if e.online() {
		e.coordinator.Trigger()
	}
	return nil
}

// evaluate scores the window and feeds the warning machine.
func (e *Engine) evaluate(ctx context.Context, _ models.BiometricSample) error {
	score := e.scorer.Score(e.ingestor.Window().Snapshot())
	out := e.machine.Evaluate(score, e.snapshot())

	if e.metrics != nil {
		e.metrics.RegulationScore.Set(float64(score))
	}
	e.publisher.Publish(notify.ScoreUpdated, ScorePayload{Score: score, Level: out.Level})
	return e.applyOutcome(ctx, out)
}

func (e *Engine) snapshot() models.SensorSnapshot {
	snap := models.SensorSnapshot{
		Samples:         e.ingestor.Window().Recent(e.snapshotSize),
		ConnectionState: e.manager.State(),
		NetworkState:    e.networkState(),
		CapturedAt:      e.now().UTC(),
	}
	if info, ok := e.manager.Device(); ok {
		snap.DeviceID = info.ID
	}
	return snap
}

func (e *Engine) applyOutcome(ctx context.Context, out warning.Outcome) error {
	var errs []error

	if out.Transition != nil {
		e.logger.Info("warning level changed",
			zap.Stringer("from", out.Transition.From),
			zap.Stringer("to", out.Transition.To),
			zap.Int("score", out.Transition.Score),
			zap.String("cause", out.Transition.Cause),
		)
		if e.metrics != nil {
			e.metrics.WarningLevel.Set(float64(out.Level))
		}
		e.publisher.Publish(notify.WarningTransition, *out.Transition)
	}

	// the stored record follows every level change of the open event
	if open, ok := e.machine.Open(); ok && out.Transition != nil {
		if err := warning.SaveActive(ctx, e.store, open, out.Level); err != nil {
			errs = append(errs, err)
		}
	}

	if ev := out.Opened; ev != nil {
		e.journal.Insert(*ev)
		if e.metrics != nil {
			e.metrics.WarningsOpened.WithLabelValues(ev.WarningLevel.String()).Inc()
		}
		e.publisher.Publish(notify.WarningOpened, *ev)
	}

	if ev := out.Closed; ev != nil {
		e.closeEvent(ctx, *ev, warning.CauseRecovered, &errs)
	}
	return errors.Join(errs...)
}

func (e *Engine) closeEvent(ctx context.Context, ev models.WarningEvent, cause string, errs *[]error) {
	if err := warning.ClearActive(ctx, e.store); err != nil {
		*errs = append(*errs, err)
	}
	e.journal.Update(ev)
	if e.metrics != nil {
		e.metrics.WarningsResolved.WithLabelValues(cause).Inc()
	}
	e.publisher.Publish(notify.WarningResolved, ev)
}

// SetNetwork records a connectivity change. Going Online with queued
// samples starts a sync.
func (e *Engine) SetNetwork(ctx context.Context, state models.NetworkState) error {
	if state != models.Online && state != models.Offline {
		return &models.ValidationError{Field: "network_state", Message: "must be online or offline"}
	}
	return e.do(ctx, func() {
		prev := e.networkState()
		if prev == state {
			return
		}
		e.network.Store(int32(state))
		e.logger.Info("network state changed", zap.Stringer("from", prev), zap.Stringer("to", state))
		e.publisher.Publish(notify.NetworkChanged, NetworkPayload{From: prev, To: state})

		if state == models.Online && e.buffer.Len() > 0 {
			e.coordinator.Trigger()
		}
	})
}

// Sync starts a sync, or joins the one in flight, and waits for it.
func (e *Engine) Sync(ctx context.Context) (offline.Result, error) {
	var a *offline.Attempt
	if err := e.do(ctx, func() { a = e.coordinator.Trigger() }); err != nil {
		return offline.Result{}, err
	}
	return a.Wait(ctx)
}

func (e *Engine) onSyncResult(res offline.Result) {
	if res.Err != nil {
		e.publisher.Publish(notify.SyncFailed, SyncPayload{
			Count:     res.Count,
			Remaining: res.Remaining,
			Error:     res.Err.Error(),
			RetryIn:   res.RetryIn,
		})
		return
	}
	e.publisher.Publish(notify.SyncCompleted, SyncPayload{Count: res.Count, Remaining: res.Remaining})
}

// ResolveWithStrategy closes the open warning event. eventID must name the
// open event; an empty eventID resolves whatever is open.
func (e *Engine) ResolveWithStrategy(ctx context.Context, eventID, strategyID string) (models.WarningEvent, error) {
	var (
		closed models.WarningEvent
		err    error
	)
	derr := e.do(ctx, func() {
		open, ok := e.machine.Open()
		if !ok {
			err = warning.ErrNoOpenWarning
			return
		}
		if eventID != "" && eventID != open.ID {
			err = fmt.Errorf("%w: %s", ErrEventMismatch, eventID)
			return
		}

		closed, _ = e.machine.ResolveWithStrategy(strategyID)
		var errs []error
		e.closeEvent(ctx, closed, warning.CauseStrategy, &errs)
		if e.metrics != nil {
			e.metrics.WarningLevel.Set(float64(models.Normal))
		}
		if h := e.machine.History(); len(h) > 0 {
			e.publisher.Publish(notify.WarningTransition, h[len(h)-1])
		}
		if len(errs) > 0 {
			e.logger.Error("failed to clear active warning", zap.Error(errors.Join(errs...)))
		}
	})
	if derr != nil {
		return models.WarningEvent{}, derr
	}
	return closed, err
}

// RecordResolution resolves the open event with a catalog strategy and
// appends it to the resolution log. It must not be called from the loop.
func (e *Engine) RecordResolution(ctx context.Context, eventID, strategyID string) (models.Resolution, error) {
	res, err := e.log.RecordResolution(ctx, eventID, strategyID)
	if err != nil {
		return models.Resolution{}, err
	}
	e.publisher.Publish(notify.ResolutionRecorded, res)
	return res, nil
}
