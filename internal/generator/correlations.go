package generator

import "github.com/synheart/synheart-guard/internal/scenario"

// CorrelationContext holds generated signal values for correlation
type CorrelationContext struct {
	values map[string]float64
}

// NewCorrelationContext creates a new correlation context
func NewCorrelationContext() *CorrelationContext {
	return &CorrelationContext{
		values: make(map[string]float64),
	}
}

// Set stores a signal value
func (c *CorrelationContext) Set(name string, value float64) {
	c.values[name] = value
}

// Get retrieves a signal value
func (c *CorrelationContext) Get(name string) (float64, bool) {
	val, ok := c.values[name]
	return val, ok
}

// ApplyCorrelations applies correlation rules between signals
func (c *CorrelationContext) ApplyCorrelations() {
	stress, ok := c.Get(scenario.SignalStress)
	if !ok || stress <= 60 {
		return
	}

	// High stress suppresses HRV
	if hrv, ok := c.Get(scenario.SignalHRV); ok {
		factor := 1.0 - (stress-60)*0.01
		if factor < 0.6 {
			factor = 0.6
		}
		c.Set(scenario.SignalHRV, clamp(hrv*factor, 5, 150))
	}

	// and nudges heart rate up
	if hr, ok := c.Get(scenario.SignalHeartRate); ok {
		c.Set(scenario.SignalHeartRate, clamp(hr+(stress-60)*0.2, 40, 200))
	}
}
