package scenario

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input     string
		expected  time.Duration
		unlimited bool
	}{
		{"unlimited", 0, true},
		{"", 0, true},
		{"5m", 5 * time.Minute, false},
		{"30s", 30 * time.Second, false},
		{"1h", time.Hour, false},
	}

	for _, test := range tests {
		duration, unlimited := ParseDuration(test.input)
		if unlimited != test.unlimited {
			t.Errorf("ParseDuration(%s): expected unlimited=%v, got %v", test.input, test.unlimited, unlimited)
		}
		if !unlimited && duration != test.expected {
			t.Errorf("ParseDuration(%s): expected %v, got %v", test.input, test.expected, duration)
		}
	}
}

func testScenario() *Scenario {
	return &Scenario{
		Name:     "test",
		Duration: "5m",
		Signals: map[string]*SignalConfig{
			SignalHeartRate: {Baseline: 72, Noise: 3},
			SignalHRV:       {Baseline: 50, Noise: 4},
			SignalStress:    {Baseline: 20, Noise: 2},
		},
		Phases: []Phase{
			{Name: "baseline", Duration: "2m"},
			{
				Name:     "spike",
				Duration: "2m",
				Overrides: map[string]*SignalConfig{
					SignalHeartRate: {Add: 40, Ramp: "1m"},
					SignalStress:    {Add: 60},
				},
			},
		},
	}
}

func TestGetEffectiveConfig(t *testing.T) {
	s := testScenario()

	config := s.GetEffectiveConfig(SignalHeartRate, time.Minute)
	if config.Add != 0 {
		t.Errorf("expected no override in baseline phase, got add=%v", config.Add)
	}

	config = s.GetEffectiveConfig(SignalStress, 2*time.Minute+15*time.Second)
	if config.Add != 60 {
		t.Errorf("expected add=60 in spike phase, got %v", config.Add)
	}
	if config.Baseline != 20 {
		t.Errorf("expected baseline to carry over, got %v", config.Baseline)
	}

	if s.GetEffectiveConfig("eda", time.Minute) != nil {
		t.Error("expected nil config for unknown signal")
	}
}

func TestRampScalesModifier(t *testing.T) {
	s := testScenario()

	config := s.GetEffectiveConfig(SignalHeartRate, 2*time.Minute+30*time.Second)
	if config.Add != 20 {
		t.Errorf("expected half the add while ramping, got %v", config.Add)
	}

	config = s.GetEffectiveConfig(SignalHeartRate, 3*time.Minute+30*time.Second)
	if config.Add != 40 {
		t.Errorf("expected full add after ramp, got %v", config.Add)
	}
}

func TestLastPhaseHoldsPastSchedule(t *testing.T) {
	s := testScenario()
	p := s.PhaseAt(10 * time.Minute)
	if p == nil || p.Name != "spike" {
		t.Fatalf("expected last phase, got %+v", p)
	}
}

func TestValidate(t *testing.T) {
	if err := testScenario().Validate(); err != nil {
		t.Fatalf("expected valid scenario, got %v", err)
	}

	s := testScenario()
	delete(s.Signals, SignalHRV)
	if err := s.Validate(); err == nil {
		t.Error("expected error for missing signal")
	}

	s = testScenario()
	s.Phases[1].Duration = "soon"
	if err := s.Validate(); err == nil {
		t.Error("expected error for bad phase duration")
	}

	s = testScenario()
	s.Interval = "-5s"
	if err := s.Validate(); err == nil {
		t.Error("expected error for negative interval")
	}
}

func TestScenarioEngine(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	engine := NewEngineWithClock(testScenario(), clock)

	if engine.IsComplete() {
		t.Error("engine should not be complete immediately after creation")
	}
	if p := engine.GetCurrentPhase(); p == nil || p.Name != "baseline" {
		t.Errorf("expected baseline phase, got %+v", p)
	}

	now = now.Add(3 * time.Minute)
	if p := engine.GetCurrentPhase(); p.Name != "spike" {
		t.Errorf("expected spike phase, got %s", p.Name)
	}

	now = now.Add(2 * time.Minute)
	if !engine.IsComplete() {
		t.Error("expected engine to be complete after 5m")
	}

	engine.Reset()
	if engine.GetElapsed() != 0 {
		t.Errorf("expected zero elapsed after reset, got %v", engine.GetElapsed())
	}
}

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("failed to load built-in scenarios: %v", err)
	}

	names := r.List()
	if len(names) != 3 {
		t.Fatalf("expected 3 built-in scenarios, got %v", names)
	}
	if names[0] != "calm" {
		t.Errorf("expected sorted names, got %v", names)
	}

	s, err := r.Get("stress_spike")
	if err != nil {
		t.Fatalf("expected stress_spike: %v", err)
	}
	if s.SampleInterval(time.Second) != 5*time.Second {
		t.Errorf("expected 5s interval, got %v", s.SampleInterval(time.Second))
	}

	if _, err := r.Get("missing"); err == nil {
		t.Error("expected error for unknown scenario")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	if _, err := Parse([]byte("name: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("name: empty\n")); err == nil {
		t.Error("expected validation error for scenario without signals")
	}
}
