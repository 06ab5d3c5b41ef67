// Package sink delivers samples, warning events and resolutions to the
// remote store and reads the shared strategy catalog back.
package sink

import (
	"context"

	"github.com/synheart/synheart-guard/internal/models"
)

// Sink is the remote store. Implementations must accept a replayed batch
// without duplicating its samples.
type Sink interface {
	InsertSamples(ctx context.Context, samples []models.BiometricSample) error
	InsertWarning(ctx context.Context, event models.WarningEvent) error
	UpdateWarning(ctx context.Context, event models.WarningEvent) error
	QueryStrategies(ctx context.Context) ([]models.Strategy, error)
	InsertResolution(ctx context.Context, res models.Resolution) error
}
