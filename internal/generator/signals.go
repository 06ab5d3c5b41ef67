package generator

import (
	"math"
	"math/rand"

	"github.com/synheart/synheart-guard/internal/scenario"
)

// SignalGenerator generates a specific signal value
type SignalGenerator func(rng *rand.Rand, config *scenario.SignalConfig, elapsed float64) float64

// GetAllSignals returns all available signal generators
func GetAllSignals() map[string]SignalGenerator {
	return map[string]SignalGenerator{
		scenario.SignalHeartRate: generateHeartRate,
		scenario.SignalHRV:       generateHRV,
		scenario.SignalStress:    generateStress,
	}
}

// generateHeartRate generates heart rate in BPM
func generateHeartRate(rng *rand.Rand, config *scenario.SignalConfig, elapsed float64) float64 {
	value := modified(config, 72.0)

	// slow respiratory drift
	value += math.Sin(elapsed/30.0) * 1.5
	value += rng.NormFloat64() * noise(config, 3.0)

	return clamp(value, 40, 200)
}

// generateHRV generates heart rate variability in milliseconds
func generateHRV(rng *rand.Rand, config *scenario.SignalConfig, elapsed float64) float64 {
	value := modified(config, 50.0)
	value += rng.NormFloat64() * noise(config, 8.0)

	return clamp(value, 5, 150)
}

// generateStress generates a 0-100 stress estimate
func generateStress(rng *rand.Rand, config *scenario.SignalConfig, elapsed float64) float64 {
	value := modified(config, 20.0)
	value += rng.NormFloat64() * noise(config, 3.0)

	return clamp(value, 0, 100)
}

// Helper functions

func modified(config *scenario.SignalConfig, def float64) float64 {
	value := config.Baseline
	if value == 0 {
		value = def
	}
	if config.Add != 0 {
		value += config.Add
	}
	if config.Multiply != 0 {
		value *= config.Multiply
	}
	return value
}

func noise(config *scenario.SignalConfig, def float64) float64 {
	if config.Noise != 0 {
		return config.Noise
	}
	return def
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
