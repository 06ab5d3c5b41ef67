package transport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/generator"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/scenario"
)

// DefaultSimulatorInterval is the sample interval of a simulated wearable.
const DefaultSimulatorInterval = 5 * time.Second

// Simulator is a scenario-driven wearable. It pairs after HandshakeDelay
// and emits one sample per Interval.
type Simulator struct {
	Scenario       *scenario.Scenario
	Interval       time.Duration
	Seed           int64
	HandshakeDelay time.Duration
	// Reject lists device ids that refuse to pair
	Reject map[string]bool
	Logger *zap.Logger
}

// NewSimulator creates a simulator for s using the scenario's own interval.
func NewSimulator(s *scenario.Scenario, seed int64, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		Scenario: s,
		Interval: s.SampleInterval(DefaultSimulatorInterval),
		Seed:     seed,
		Logger:   logger,
	}
}

// Handshake implements Device.
func (s *Simulator) Handshake(ctx context.Context, info models.DeviceInfo) error {
	if s.HandshakeDelay > 0 {
		timer := time.NewTimer(s.HandshakeDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if s.Reject[info.ID] {
		return fmt.Errorf("%w: %s", ErrPairingRejected, info.ID)
	}
	return nil
}

// Stream implements Device.
func (s *Simulator) Stream(ctx context.Context, info models.DeviceInfo, emit EmitFunc) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSimulatorInterval
	}

	gen := generator.NewGenerator(scenario.NewEngine(s.Scenario), generator.Config{Seed: s.Seed})
	logger := s.logger().With(zap.String("device_id", info.ID), zap.String("scenario", s.Scenario.Name))
	logger.Info("simulated stream started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if gen.Done() {
				logger.Info("scenario complete", zap.Int64("samples", gen.Sequence()))
				return nil
			}
			emit(gen.Next())
		}
	}
}

func (s *Simulator) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
