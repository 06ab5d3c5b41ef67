package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/device"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/notify"
)

// Connect pairs with info and waits for the handshake. Connecting to the
// device already connected is a no-op; any other device is disconnected
// first. A failed handshake returns *device.ConnectionFailedError.
func (e *Engine) Connect(ctx context.Context, info models.DeviceInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	result := make(chan error, 1)
	if err := e.do(ctx, func() { e.beginConnect(info, false, result) }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// beginConnect starts a handshake off the loop. result receives exactly one
// value. A restoring attempt forgets the persisted device when it fails.
func (e *Engine) beginConnect(info models.DeviceInfo, restoring bool, result chan<- error) {
	if e.manager.IsConnectedTo(info.ID) {
		result <- nil
		return
	}
	if e.manager.State() != models.Disconnected {
		if err := e.dropDevice(e.base); err != nil {
			e.logger.Warn("failed to drop previous device", zap.Error(err))
		}
	}

	gen := e.manager.Begin(info)
	timeout := e.manager.HandshakeTimeout()
	base := e.base

	go func() {
		hctx, cancel := context.WithTimeout(base, timeout)
		err := e.device.Handshake(hctx, info)
		cancel()

		select {
		case e.events <- func() { e.finishConnect(gen, info, restoring, err, result) }:
		case <-e.stopped:
			result <- ErrStopped
		}
	}()
}

func (e *Engine) finishConnect(gen uint64, info models.DeviceInfo, restoring bool, herr error, result chan<- error) {
	if herr != nil {
		failed := e.manager.Fail(gen, herr)
		if failed == nil {
			result <- ErrSuperseded
			return
		}
		if restoring {
			if err := e.manager.Forget(e.base); err != nil {
				e.logger.Error("failed to forget rejected device", zap.Error(err))
			}
		}
		e.publisher.Publish(notify.DeviceConnectionFailed, DevicePayload{
			DeviceID: info.ID,
			Name:     info.Name,
			Error:    herr.Error(),
		})
		result <- failed
		return
	}

	applied, err := e.manager.Establish(e.base, gen)
	if !applied {
		result <- ErrSuperseded
		return
	}
	if err != nil {
		// the session is live; only the restart memory is missing
		e.logger.Error("connected but failed to persist device", zap.Error(err))
	}
	e.startSession(info)
	e.publisher.Publish(notify.DeviceConnected, DevicePayload{DeviceID: info.ID, Name: info.Name})
	result <- nil
}

// startSession opens the ingestor and the transport stream for info. A
// stream that ends on its own disconnects the session.
func (e *Engine) startSession(info models.DeviceInfo) {
	e.ingestor.Activate()

	gen := e.manager.Generation()
	sctx, cancel := context.WithCancel(e.base)
	e.stopStream = cancel
	logger := e.logger.With(zap.String("device_id", info.ID))

	go func() {
		err := e.device.Stream(sctx, info, func(raw models.RawSample) {
			e.streamSample(sctx, raw)
		})
		if sctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warn("device stream ended with error", zap.Error(err))
		} else {
			logger.Info("device stream ended")
		}
		select {
		case e.events <- func() { e.sessionEnded(gen, info, err) }:
		case <-e.stopped:
		}
	}()
}

// sessionEnded handles a transport that went away. Sessions already
// replaced by a Connect or Disconnect are left alone.
func (e *Engine) sessionEnded(gen uint64, info models.DeviceInfo, cause error) {
	if !e.manager.Lost(gen) {
		return
	}
	if e.stopStream != nil {
		e.stopStream()
		e.stopStream = nil
	}
	e.ingestor.Deactivate()

	payload := DevicePayload{DeviceID: info.ID, Name: info.Name}
	if cause != nil {
		payload.Error = cause.Error()
	}
	e.publisher.Publish(notify.DeviceDisconnected, payload)
}

// streamSample hands a transport sample to the loop. Samples from a
// cancelled stream are discarded.
func (e *Engine) streamSample(sctx context.Context, raw models.RawSample) {
	err := e.do(sctx, func() {
		if sctx.Err() != nil {
			return
		}
		e.accept(e.base, raw)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
		e.logger.Debug("stream sample not delivered", zap.Error(err))
	}
}

// Disconnect stops the stream and forgets the device. Samples arriving
// afterwards are rejected; a sync in flight is left to finish.
func (e *Engine) Disconnect(ctx context.Context) error {
	var err error
	if derr := e.do(ctx, func() { err = e.dropDevice(ctx) }); derr != nil {
		return derr
	}
	return err
}

func (e *Engine) dropDevice(ctx context.Context) error {
	if e.stopStream != nil {
		e.stopStream()
		e.stopStream = nil
	}
	e.ingestor.Deactivate()

	info, had := e.manager.Device()
	err := e.manager.Disconnect(ctx)
	if had {
		e.publisher.Publish(notify.DeviceDisconnected, DevicePayload{DeviceID: info.ID, Name: info.Name})
	}
	return err
}

// ConnectionFailed reports whether err is a failed handshake.
func ConnectionFailed(err error) bool {
	var cf *device.ConnectionFailedError
	return errors.As(err, &cf)
}
