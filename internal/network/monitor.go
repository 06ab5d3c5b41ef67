// Package network reports whether the remote sink is reachable.
package network

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
)

const DefaultProbeInterval = 15 * time.Second

// Monitor probes a URL and reports Online/Offline transitions. A manual
// override pins the state until it is cleared.
type Monitor struct {
	client   *resty.Client
	url      string
	interval time.Duration
	onChange func(models.NetworkState)
	logger   *zap.Logger

	mu       sync.Mutex
	state    models.NetworkState
	override *models.NetworkState
}

// NewMonitor creates a monitor starting in initial. onChange is called from
// the monitor goroutine on every transition.
func NewMonitor(url string, interval time.Duration, initial models.NetworkState, onChange func(models.NetworkState), logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if onChange == nil {
		onChange = func(models.NetworkState) {}
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Monitor{
		client:   resty.New().SetTimeout(timeout),
		url:      url,
		interval: interval,
		onChange: onChange,
		logger:   logger,
		state:    initial,
	}
}

// State returns the effective state.
func (m *Monitor) State() models.NetworkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.override != nil {
		return *m.override
	}
	return m.state
}

// Override pins the state and reports a transition if it changed.
func (m *Monitor) Override(s models.NetworkState) {
	m.mu.Lock()
	before := m.effective()
	m.override = &s
	m.mu.Unlock()
	if before != s {
		m.onChange(s)
	}
}

// ClearOverride returns control to the probe.
func (m *Monitor) ClearOverride() {
	m.mu.Lock()
	before := m.effective()
	m.override = nil
	after := m.state
	m.mu.Unlock()
	if before != after {
		m.onChange(after)
	}
}

// Probe checks the URL once and updates the state. Any HTTP response below
// 500 counts as reachable.
func (m *Monitor) Probe(ctx context.Context) models.NetworkState {
	next := models.Offline
	resp, err := m.client.R().SetContext(ctx).Head(m.url)
	if err == nil && resp.StatusCode() < 500 {
		next = models.Online
	}
	if err != nil {
		m.logger.Debug("network probe failed", zap.String("url", m.url), zap.Error(err))
	}

	m.mu.Lock()
	before := m.effective()
	m.state = next
	after := m.effective()
	m.mu.Unlock()

	if before != after {
		m.logger.Info("network state changed", zap.Stringer("state", after))
		m.onChange(after)
	}
	return next
}

// Run probes every interval until ctx is done. Without a URL it only waits.
func (m *Monitor) Run(ctx context.Context) {
	if m.url == "" {
		<-ctx.Done()
		return
	}

	m.Probe(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

func (m *Monitor) effective() models.NetworkState {
	if m.override != nil {
		return *m.override
	}
	return m.state
}
