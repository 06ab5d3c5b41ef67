// Package device tracks the lifecycle of the single paired wearable.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/metrics"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/storage"
)

// DefaultHandshakeTimeout bounds a connection attempt.
const DefaultHandshakeTimeout = 10 * time.Second

var ErrNotConnected = errors.New("device not connected")

// ConnectionFailedError reports a handshake that timed out or was rejected.
type ConnectionFailedError struct {
	DeviceID string
	Err      error
}

func (e *ConnectionFailedError) Error() string {
	return fmt.Sprintf("connection to device %s failed: %v", e.DeviceID, e.Err)
}

func (e *ConnectionFailedError) Unwrap() error {
	return e.Err
}

// Handshaker performs the transport-level pairing.
type Handshaker interface {
	Handshake(ctx context.Context, info models.DeviceInfo) error
}

// Manager holds the connection state. Each connection attempt gets a
// generation number; results for an older generation are ignored.
type Manager struct {
	mu         sync.Mutex
	state      models.ConnectionState
	device     *models.DeviceInfo
	generation uint64

	store   storage.Store
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewManager starts Disconnected. m may be nil.
func NewManager(store storage.Store, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	mgr := &Manager{store: store, timeout: timeout, logger: logger, metrics: m}
	mgr.setState(models.Disconnected)
	return mgr
}

// State returns the current connection state.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Device returns the connected or connecting device.
func (m *Manager) Device() (models.DeviceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return models.DeviceInfo{}, false
	}
	return *m.device, true
}

// HandshakeTimeout returns the configured handshake bound.
func (m *Manager) HandshakeTimeout() time.Duration { return m.timeout }

// IsConnectedTo reports whether info's device is already connected.
func (m *Manager) IsConnectedTo(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == models.Connected && m.device != nil && m.device.ID == id
}

// Begin moves to Connecting for info and returns the attempt's generation.
func (m *Manager) Begin(info models.DeviceInfo) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	d := info
	m.device = &d
	m.setState(models.Connecting)
	m.logger.Info("connecting to device", zap.String("device_id", info.ID), zap.Uint64("generation", m.generation))
	return m.generation
}

// Establish completes attempt gen: Connected, device persisted. It returns
// false when the attempt is stale.
func (m *Manager) Establish(ctx context.Context, gen uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.state != models.Connecting {
		m.logger.Debug("discarding stale handshake", zap.Uint64("generation", gen))
		return false, nil
	}
	m.setState(models.Connected)
	m.logger.Info("device connected", zap.String("device_id", m.device.ID))
	if err := storage.SetJSON(ctx, m.store, storage.KeyDevice, m.device); err != nil {
		return true, fmt.Errorf("failed to persist device: %w", err)
	}
	return true, nil
}

// Fail ends attempt gen in Disconnected. It returns nil when the attempt is
// stale.
func (m *Manager) Fail(gen uint64, cause error) *ConnectionFailedError {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.state != models.Connecting {
		return nil
	}
	id := ""
	if m.device != nil {
		id = m.device.ID
	}
	m.device = nil
	m.setState(models.Disconnected)
	m.logger.Warn("device connection failed", zap.String("device_id", id), zap.Error(cause))
	return &ConnectionFailedError{DeviceID: id, Err: cause}
}

// Generation returns the current attempt's generation.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Lost moves a Connected generation gen to Disconnected after the transport
// went away. The persisted device is kept so the next start can pair again.
// It returns false when gen is no longer current.
func (m *Manager) Lost(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.state != models.Connected {
		return false
	}
	m.generation++
	id := ""
	if m.device != nil {
		id = m.device.ID
	}
	m.device = nil
	m.setState(models.Disconnected)
	m.logger.Warn("device connection lost", zap.String("device_id", id))
	return true
}

// Disconnect drops the device, forgets it and invalidates any in-flight
// attempt.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	if m.device != nil {
		m.logger.Info("device disconnected", zap.String("device_id", m.device.ID))
	}
	m.device = nil
	m.setState(models.Disconnected)
	if err := m.store.Remove(ctx, storage.KeyDevice); err != nil {
		return fmt.Errorf("failed to forget device: %w", err)
	}
	return nil
}

// Forget removes the persisted device without touching the connection
// state.
func (m *Manager) Forget(ctx context.Context) error {
	if err := m.store.Remove(ctx, storage.KeyDevice); err != nil {
		return fmt.Errorf("failed to forget device: %w", err)
	}
	return nil
}

// Persisted returns the device saved by the last successful connection.
// Corrupt data is reported and treated as absent.
func (m *Manager) Persisted(ctx context.Context) (models.DeviceInfo, bool, error) {
	data, err := m.store.Get(ctx, storage.KeyDevice)
	if errors.Is(err, storage.ErrNotFound) {
		return models.DeviceInfo{}, false, nil
	}
	if err != nil {
		return models.DeviceInfo{}, false, fmt.Errorf("failed to load device: %w", err)
	}
	var info models.DeviceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		m.logger.Warn("persisted device is corrupt, ignoring", zap.Error(err))
		return models.DeviceInfo{}, false, nil
	}
	if err := info.Validate(); err != nil {
		m.logger.Warn("persisted device is invalid, ignoring", zap.Error(err))
		return models.DeviceInfo{}, false, nil
	}
	return info, true, nil
}

// Restore marks the persisted device Connected without a handshake.
func (m *Manager) Restore(ctx context.Context) (models.DeviceInfo, bool, error) {
	info, ok, err := m.Persisted(ctx)
	if err != nil || !ok {
		return info, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	d := info
	m.device = &d
	m.setState(models.Connected)
	m.logger.Info("device restored", zap.String("device_id", info.ID))
	return info, true, nil
}

// Connect runs a full attempt on the calling goroutine.
func (m *Manager) Connect(ctx context.Context, h Handshaker, info models.DeviceInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if m.IsConnectedTo(info.ID) {
		return nil
	}

	gen := m.Begin(info)
	hctx, cancel := context.WithTimeout(ctx, m.timeout)
	err := h.Handshake(hctx, info)
	cancel()

	if err != nil {
		if failed := m.Fail(gen, err); failed != nil {
			return failed
		}
		return err
	}
	if _, err := m.Establish(ctx, gen); err != nil {
		return err
	}
	return nil
}

func (m *Manager) setState(s models.ConnectionState) {
	m.state = s
	if m.metrics != nil {
		m.metrics.ConnectionState.Set(float64(s))
	}
}
