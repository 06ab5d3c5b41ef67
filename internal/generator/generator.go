package generator

import (
	"math/rand"
	"time"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/scenario"
)

// Generator turns a running scenario into raw samples
type Generator struct {
	engine   *scenario.Engine
	rng      *rand.Rand
	signals  map[string]SignalGenerator
	now      func() time.Time
	sequence int64
}

// Config holds generator configuration
type Config struct {
	Seed int64
	Now  func() time.Time
}

// NewGenerator creates a new sample generator
func NewGenerator(engine *scenario.Engine, config Config) *Generator {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		engine:  engine,
		rng:     rand.New(rand.NewSource(config.Seed)),
		signals: GetAllSignals(),
		now:     now,
	}
}

// Next produces the sample for the current point of the scenario.
func (g *Generator) Next() models.RawSample {
	elapsed := g.engine.GetElapsed()

	ctx := NewCorrelationContext()
	for _, name := range scenario.Signals {
		config := g.engine.GetSignalConfig(name)
		if config == nil {
			continue
		}
		ctx.Set(name, g.signals[name](g.rng, config, elapsed.Seconds()))
	}
	ctx.ApplyCorrelations()

	g.sequence++
	hr, _ := ctx.Get(scenario.SignalHeartRate)
	hrv, _ := ctx.Get(scenario.SignalHRV)
	stress, _ := ctx.Get(scenario.SignalStress)
	return models.NewRawSample(hr, hrv, stress, g.now())
}

// Sequence returns how many samples have been generated
func (g *Generator) Sequence() int64 {
	return g.sequence
}

// Done reports whether the scenario has run its course
func (g *Generator) Done() bool {
	return g.engine.IsComplete()
}

// Scenario returns the scenario being generated
func (g *Generator) Scenario() *scenario.Scenario {
	return g.engine.GetScenario()
}
