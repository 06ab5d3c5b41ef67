package scenario

import (
	"sync"
	"time"
)

// Engine executes a scenario and tracks progression through phases
type Engine struct {
	scenario  *Scenario
	now       func() time.Time
	startTime time.Time
	mu        sync.RWMutex
}

// NewEngine creates a new scenario engine
func NewEngine(scenario *Scenario) *Engine {
	return NewEngineWithClock(scenario, time.Now)
}

// NewEngineWithClock creates an engine that reads time from now.
func NewEngineWithClock(scenario *Scenario, now func() time.Time) *Engine {
	return &Engine{
		scenario:  scenario,
		now:       now,
		startTime: now(),
	}
}

// GetElapsed returns the time elapsed since scenario start
func (e *Engine) GetElapsed() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now().Sub(e.startTime)
}

// GetCurrentPhase returns the current phase based on elapsed time
func (e *Engine) GetCurrentPhase() *Phase {
	return e.scenario.PhaseAt(e.GetElapsed())
}

// GetSignalConfig returns the effective signal configuration at current time
func (e *Engine) GetSignalConfig(signalName string) *SignalConfig {
	return e.scenario.GetEffectiveConfig(signalName, e.GetElapsed())
}

// IsComplete returns true if the scenario has finished
func (e *Engine) IsComplete() bool {
	duration, unlimited := ParseDuration(e.scenario.Duration)
	if unlimited {
		return false
	}
	return e.GetElapsed() >= duration
}

// GetScenario returns the underlying scenario
func (e *Engine) GetScenario() *Scenario {
	return e.scenario
}

// Reset resets the scenario to the beginning
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startTime = e.now()
}
