// Package transport connects the engine to biometric sources.
package transport

import (
	"context"
	"errors"

	"github.com/synheart/synheart-guard/internal/models"
)

// ErrPairingRejected is returned when a device answers the handshake but
// refuses to pair.
var ErrPairingRejected = errors.New("device rejected pairing")

// EmitFunc receives raw samples from a stream.
type EmitFunc func(models.RawSample)

// Device is a biometric source. Handshake must honor ctx for its timeout.
// Stream delivers samples until ctx is cancelled or the source ends; it
// returns nil when the source finishes on its own.
type Device interface {
	Handshake(ctx context.Context, info models.DeviceInfo) error
	Stream(ctx context.Context, info models.DeviceInfo, emit EmitFunc) error
}
