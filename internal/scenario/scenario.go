package scenario

import (
	"fmt"
	"time"
)

// Signal names understood by the simulator
const (
	SignalHeartRate = "heart_rate"
	SignalHRV       = "hrv"
	SignalStress    = "stress_level"
)

// Signals lists the signals every sample carries, in emission order
var Signals = []string{SignalHeartRate, SignalHRV, SignalStress}

// Scenario defines a complete scenario with phases and signal configurations
type Scenario struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Duration    string                   `yaml:"duration"` // e.g., "8m", "unlimited"
	Interval    string                   `yaml:"interval"` // sample interval, e.g. "5s"
	Signals     map[string]*SignalConfig `yaml:"signals"`
	Phases      []Phase                  `yaml:"phases"`
}

// Phase represents a time-bounded stage of a scenario with specific overrides
type Phase struct {
	Name      string                   `yaml:"name"`
	Duration  string                   `yaml:"duration"`
	Overrides map[string]*SignalConfig `yaml:"overrides,omitempty"`
}

// SignalConfig defines the configuration for a signal
type SignalConfig struct {
	Baseline float64 `yaml:"baseline,omitempty"`
	Noise    float64 `yaml:"noise,omitempty"`

	// Override modifiers
	Add      float64 `yaml:"add,omitempty"`
	Multiply float64 `yaml:"multiply,omitempty"`
	Ramp     string  `yaml:"ramp,omitempty"` // time to reach the full modifier
}

// ParseDuration parses duration strings like "8m", "30s", "unlimited"
func ParseDuration(s string) (time.Duration, bool) {
	if s == "unlimited" || s == "" {
		return 0, true // 0 means unlimited
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, false
}

// Validate checks that every duration in the scenario parses and that the
// three sample signals are configured.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if err := checkDuration("duration", s.Duration); err != nil {
		return err
	}
	if s.Interval != "" {
		d, err := time.ParseDuration(s.Interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid interval %q", s.Interval)
		}
	}
	for _, name := range Signals {
		if s.Signals[name] == nil {
			return fmt.Errorf("signal %s is not configured", name)
		}
	}
	for i, p := range s.Phases {
		if err := checkDuration(fmt.Sprintf("phases[%d].duration", i), p.Duration); err != nil {
			return err
		}
		for name, o := range p.Overrides {
			if s.Signals[name] == nil {
				return fmt.Errorf("phase %s overrides unknown signal %s", p.Name, name)
			}
			if o.Ramp != "" {
				if _, err := time.ParseDuration(o.Ramp); err != nil {
					return fmt.Errorf("phase %s: invalid ramp %q", p.Name, o.Ramp)
				}
			}
		}
	}
	return nil
}

func checkDuration(field, value string) error {
	if value == "" || value == "unlimited" {
		return nil
	}
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("invalid %s %q", field, value)
	}
	return nil
}

// SampleInterval returns the configured interval or def when none is set.
func (s *Scenario) SampleInterval(def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s.Interval); err == nil && d > 0 {
		return d
	}
	return def
}

// GetEffectiveConfig returns the signal config for a given signal name at a specific time
func (s *Scenario) GetEffectiveConfig(signalName string, elapsed time.Duration) *SignalConfig {
	baseConfig := s.Signals[signalName]
	if baseConfig == nil {
		return nil
	}

	currentPhase, inPhase := s.phaseAt(elapsed)
	if currentPhase == nil {
		return baseConfig
	}

	override, ok := currentPhase.Overrides[signalName]
	if !ok {
		return baseConfig
	}

	merged := *baseConfig
	if override.Baseline != 0 {
		merged.Baseline = override.Baseline
	}
	if override.Noise != 0 {
		merged.Noise = override.Noise
	}
	merged.Add = override.Add
	merged.Multiply = override.Multiply
	merged.Ramp = override.Ramp

	// scale the modifiers while ramping in
	if ramp, err := time.ParseDuration(override.Ramp); err == nil && ramp > 0 && inPhase < ramp {
		f := float64(inPhase) / float64(ramp)
		merged.Add *= f
		if merged.Multiply != 0 {
			merged.Multiply = 1 + (merged.Multiply-1)*f
		}
	}
	return &merged
}

// PhaseAt returns the phase active at elapsed, or nil when there are none.
func (s *Scenario) PhaseAt(elapsed time.Duration) *Phase {
	p, _ := s.phaseAt(elapsed)
	return p
}

// phaseAt also reports how far into the phase elapsed falls.
func (s *Scenario) phaseAt(elapsed time.Duration) (*Phase, time.Duration) {
	if len(s.Phases) == 0 {
		return nil, 0
	}

	var currentTime time.Duration
	for i := range s.Phases {
		phaseDuration, unlimited := ParseDuration(s.Phases[i].Duration)
		if unlimited {
			return &s.Phases[i], elapsed - currentTime
		}

		if elapsed < currentTime+phaseDuration {
			return &s.Phases[i], elapsed - currentTime
		}
		currentTime += phaseDuration
	}

	// Stay in the last phase once the schedule is exhausted
	last := len(s.Phases) - 1
	d, _ := ParseDuration(s.Phases[last].Duration)
	return &s.Phases[last], elapsed - (currentTime - d)
}
