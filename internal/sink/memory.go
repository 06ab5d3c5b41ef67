package sink

import (
	"context"
	"sync"

	"github.com/synheart/synheart-guard/internal/models"
)

// MemorySink keeps everything in process. Failures can be injected.
type MemorySink struct {
	mu          sync.Mutex
	samples     []models.BiometricSample
	seen        map[sampleKey]struct{}
	warnings    map[string]models.WarningEvent
	warningLog  []string
	resolutions []models.Resolution
	strategies  []models.Strategy

	failErr   error
	failCount int
	gate      <-chan struct{}
	calls     map[string]int
}

type sampleKey struct {
	ts     int64
	hr     int
	hrv    int
	stress int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		seen:     make(map[sampleKey]struct{}),
		warnings: make(map[string]models.WarningEvent),
		calls:    make(map[string]int),
	}
}

// FailNext makes the next n calls return err. n < 0 fails until reset.
func (m *MemorySink) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCount = n
	m.failErr = err
}

// SetGate makes InsertSamples block until gate is closed or ctx is done.
func (m *MemorySink) SetGate(gate <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// SetStrategies sets what QueryStrategies returns.
func (m *MemorySink) SetStrategies(strategies []models.Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies = append([]models.Strategy(nil), strategies...)
}

func (m *MemorySink) enter(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if m.failCount == 0 {
		return nil
	}
	if m.failCount > 0 {
		m.failCount--
	}
	return m.failErr
}

func (m *MemorySink) InsertSamples(ctx context.Context, samples []models.BiometricSample) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := m.enter("insert_samples"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		key := sampleKey{s.Timestamp.UnixNano(), s.HeartRate, s.HRV, s.StressLevel}
		if _, dup := m.seen[key]; dup {
			continue
		}
		m.seen[key] = struct{}{}
		m.samples = append(m.samples, s)
	}
	return nil
}

func (m *MemorySink) InsertWarning(_ context.Context, event models.WarningEvent) error {
	if err := m.enter("insert_warning"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.warnings[event.ID]; !exists {
		m.warnings[event.ID] = event
		m.warningLog = append(m.warningLog, "insert:"+event.ID)
	}
	return nil
}

func (m *MemorySink) UpdateWarning(_ context.Context, event models.WarningEvent) error {
	if err := m.enter("update_warning"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings[event.ID] = event
	m.warningLog = append(m.warningLog, "update:"+event.ID)
	return nil
}

func (m *MemorySink) QueryStrategies(_ context.Context) ([]models.Strategy, error) {
	if err := m.enter("query_strategies"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Strategy(nil), m.strategies...), nil
}

func (m *MemorySink) InsertResolution(_ context.Context, res models.Resolution) error {
	if err := m.enter("insert_resolution"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions = append(m.resolutions, res)
	return nil
}

// Samples returns the delivered samples in delivery order.
func (m *MemorySink) Samples() []models.BiometricSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.BiometricSample(nil), m.samples...)
}

// Warning returns the stored copy of a warning event.
func (m *MemorySink) Warning(id string) (models.WarningEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.warnings[id]
	return ev, ok
}

// WarningLog returns the order in which warning writes were applied.
func (m *MemorySink) WarningLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warningLog...)
}

// Resolutions returns the delivered resolution records.
func (m *MemorySink) Resolutions() []models.Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Resolution(nil), m.resolutions...)
}

// Calls returns how many times op was invoked, failed calls included.
func (m *MemorySink) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}
