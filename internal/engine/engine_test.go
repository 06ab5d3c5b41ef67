package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synheart/synheart-guard/internal/device"
	"github.com/synheart/synheart-guard/internal/ingest"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/notify"
	"github.com/synheart/synheart-guard/internal/offline"
	"github.com/synheart/synheart-guard/internal/sink"
	"github.com/synheart/synheart-guard/internal/storage"
	"github.com/synheart/synheart-guard/internal/transport"
	"github.com/synheart/synheart-guard/internal/warning"
)

var (
	band  = models.DeviceInfo{ID: "band-1", Name: "Wrist Band"}
	ring  = models.DeviceInfo{ID: "ring-2", Name: "Smart Ring"}
	epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
)

// fakeDevice pairs instantly unless configured otherwise and streams only
// what tests push through emit.
type fakeDevice struct {
	mu        sync.Mutex
	handshake func(ctx context.Context, info models.DeviceInfo) error
	emit      transport.EmitFunc
	streaming chan struct{}
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{streaming: make(chan struct{}, 8)}
}

func (d *fakeDevice) Handshake(ctx context.Context, info models.DeviceInfo) error {
	d.mu.Lock()
	h := d.handshake
	d.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(ctx, info)
}

func (d *fakeDevice) Stream(ctx context.Context, info models.DeviceInfo, emit transport.EmitFunc) error {
	d.mu.Lock()
	d.emit = emit
	d.mu.Unlock()
	d.streaming <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func (d *fakeDevice) push(raw models.RawSample) {
	d.mu.Lock()
	emit := d.emit
	d.mu.Unlock()
	emit(raw)
}

// recorder collects published notification kinds.
type recorder struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (r *recorder) Publish(kind notify.Kind, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *recorder) count(kind notify.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	engine *Engine
	store  *storage.MemoryStore
	sink   *sink.MemorySink
	device *fakeDevice
	events *recorder
	stop   func()
}

func startEngine(t *testing.T, store *storage.MemoryStore, dev *fakeDevice, tweak func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store:  store,
		sink:   sink.NewMemorySink(),
		device: dev,
		events: &recorder{},
	}
	opts := Options{
		Store:     store,
		Sink:      f.sink,
		Device:    dev,
		Publisher: f.events,
		Journal:   warning.JournalOptions{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	}
	if tweak != nil {
		tweak(&opts)
	}

	e, err := New(context.Background(), opts)
	require.NoError(t, err)
	f.engine = e

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()
	f.stop = func() {
		cancel()
		<-done
	}
	t.Cleanup(f.stop)
	return f
}

func stressSample(i int, stress float64) models.RawSample {
	return models.NewRawSample(70, 50, stress, epoch.Add(time.Duration(i)*5*time.Second))
}

func TestEngine_Scenario(t *testing.T) {
	ctx := context.Background()
	f := startEngine(t, storage.NewMemoryStore(), newFakeDevice(), nil)
	require.NoError(t, f.engine.Connect(ctx, band))

	wantScores := []int{90, 60, 35}
	wantLevels := []models.WarningLevel{models.Normal, models.Notice, models.Alert}
	for i, stress := range []float64{10, 40, 65} {
		_, err := f.engine.OnSample(ctx, stressSample(i, stress))
		require.NoError(t, err)

		st, err := f.engine.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, wantScores[i], st.RegulationScore, "score after sample %d", i)
		assert.Equal(t, wantLevels[i], st.WarningLevel, "level after sample %d", i)
	}

	ev, ok, err := f.engine.ActiveWarning(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.Notice, ev.WarningLevel)
	assert.Equal(t, 60, ev.RegulationScoreAtOpen)
	assert.Equal(t, band.ID, ev.SensorSnapshot.DeviceID)
	assert.Len(t, ev.SensorSnapshot.Samples, 2)

	persisted, ok, err := warning.LoadActive(ctx, f.store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ev.ID, persisted.Event.ID)
	assert.Equal(t, models.Alert, persisted.Level)

	require.NoError(t, f.engine.FlushJournal(ctx))
	_, ok = f.sink.Warning(ev.ID)
	assert.True(t, ok, "expected warning event in sink")

	require.Eventually(t, func() bool { return len(f.sink.Samples()) == 3 }, 2*time.Second, 5*time.Millisecond)

	transitions, err := f.engine.Transitions(ctx)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, models.Alert, transitions[1].To)
	assert.Equal(t, 1, f.events.count(notify.WarningOpened))
}

func TestEngine_RejectsSamplesWithoutDevice(t *testing.T) {
	ctx := context.Background()
	f := startEngine(t, storage.NewMemoryStore(), newFakeDevice(), nil)

	_, err := f.engine.OnSample(ctx, stressSample(0, 10))
	assert.ErrorIs(t, err, ingest.ErrNotActive)

	require.NoError(t, f.engine.Connect(ctx, band))
	_, err = f.engine.OnSample(ctx, stressSample(1, 10))
	require.NoError(t, err)

	require.NoError(t, f.engine.Disconnect(ctx))
	_, err = f.engine.OnSample(ctx, stressSample(2, 10))
	assert.ErrorIs(t, err, ingest.ErrNotActive)

	_, err = f.store.Get(ctx, storage.KeyDevice)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 1, f.events.count(notify.DeviceDisconnected))
}

func TestEngine_InvalidSampleRejected(t *testing.T) {
	ctx := context.Background()
	f := startEngine(t, storage.NewMemoryStore(), newFakeDevice(), nil)
	require.NoError(t, f.engine.Connect(ctx, band))

	raw := stressSample(0, 10)
	raw.HRV = nil
	_, err := f.engine.OnSample(ctx, raw)
	assert.ErrorIs(t, err, ingest.ErrMissingField)
	assert.Equal(t, 1, f.events.count(notify.SampleRejected))

	st, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.WindowLength)
	assert.Equal(t, uint64(1), st.Ingest.Rejected)
}

func TestEngine_OfflineSamplesSurviveRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	offlineOpts := func(o *Options) { o.Network = models.Offline }

	f := startEngine(t, store, newFakeDevice(), offlineOpts)
	require.NoError(t, f.engine.Connect(ctx, band))
	for i := 0; i < 2; i++ {
		_, err := f.engine.OnSample(ctx, stressSample(i, 20))
		require.NoError(t, err)
	}
	assert.Empty(t, f.sink.Samples())

	var queued []models.BiometricSample
	require.NoError(t, storage.GetJSON(ctx, store, storage.KeyOfflineQueue, &queued))
	assert.Len(t, queued, 2)
	f.stop()

	// a fresh engine over the same storage picks the queue and device up
	g := startEngine(t, store, newFakeDevice(), offlineOpts)
	st, err := g.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.OfflineQueue)
	assert.Equal(t, models.Connected, st.ConnectionState)

	require.NoError(t, g.engine.SetNetwork(ctx, models.Online))
	require.Eventually(t, func() bool { return len(g.sink.Samples()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		st, err := g.engine.Status(ctx)
		return err == nil && st.OfflineQueue == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, g.events.count(notify.NetworkChanged))
}

func TestEngine_SyncIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := startEngine(t, storage.NewMemoryStore(), newFakeDevice(), func(o *Options) { o.Network = models.Offline })
	require.NoError(t, f.engine.Connect(ctx, band))
	for i := 0; i < 3; i++ {
		_, err := f.engine.OnSample(ctx, stressSample(i, 20))
		require.NoError(t, err)
	}

	f.sink.FailNext(1, errors.New("sink unreachable"))
	_, err := f.engine.Sync(ctx)
	var syncErr *offline.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, 3, syncErr.Count)

	st, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.OfflineQueue)
	assert.Empty(t, f.sink.Samples())

	res, err := f.engine.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 0, res.Remaining)
	assert.Len(t, f.sink.Samples(), 3)
	assert.Equal(t, 1, f.events.count(notify.SyncFailed))
	assert.Equal(t, 1, f.events.count(notify.SyncCompleted))
}

func TestEngine_HysteresisDoesNotFlap(t *testing.T) {
	ctx := context.Background()
	f := startEngine(t, storage.NewMemoryStore(), newFakeDevice(), nil)
	require.NoError(t, f.engine.Connect(ctx, band))

	// scores 80, 69, 71, 69
	for i, stress := range []float64{20, 31, 29, 31} {
		_, err := f.engine.OnSample(ctx, stressSample(i, stress))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.events.count(notify.WarningOpened))
	assert.Equal(t, 0, f.events.count(notify.WarningResolved))
}

func TestEngine_ResolveWithStrategy(t *testing.T) {
	ctx := context.Background()
	f := startEngine(t, storage.NewMemoryStore(), newFakeDevice(), nil)
	require.NoError(t, f.engine.Connect(ctx, band))

	_, err := f.engine.RecordResolution(ctx, "", "box-breathing")
	assert.ErrorIs(t, err, warning.ErrNoOpenWarning)

	_, err = f.engine.OnSample(ctx, stressSample(0, 70))
	require.NoError(t, err)
	ev, ok, err := f.engine.ActiveWarning(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.engine.RecordResolution(ctx, "not-the-open-one", "box-breathing")
	assert.ErrorIs(t, err, ErrEventMismatch)

	res, err := f.engine.RecordResolution(ctx, ev.ID, "box-breathing")
	require.NoError(t, err)
	assert.Equal(t, ev.ID, res.WarningEventID)
	assert.Equal(t, "box-breathing", res.StrategyID)

	// score is still low, yet the level is forced back to Normal
	st, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Normal, st.WarningLevel)
	assert.Equal(t, 30, st.RegulationScore)
	assert.Nil(t, st.ActiveWarning)

	_, err = f.store.Get(ctx, storage.KeyActiveWarning)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, f.engine.FlushJournal(ctx))
	stored, ok := f.sink.Warning(ev.ID)
	require.True(t, ok)
	require.NotNil(t, stored.ResolutionStrategyID)
	assert.Equal(t, "box-breathing", *stored.ResolutionStrategyID)
	assert.Len(t, f.sink.Resolutions(), 1)
	assert.Equal(t, 1, f.events.count(notify.ResolutionRecorded))
}

func TestEngine_HandshakeFailure(t *testing.T) {
	ctx := context.Background()
	dev := newFakeDevice()
	dev.handshake = func(context.Context, models.DeviceInfo) error { return transport.ErrPairingRejected }
	f := startEngine(t, storage.NewMemoryStore(), dev, nil)

	err := f.engine.Connect(ctx, band)
	var cf *device.ConnectionFailedError
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, band.ID, cf.DeviceID)
	assert.ErrorIs(t, err, transport.ErrPairingRejected)
	assert.True(t, ConnectionFailed(err))

	st, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Disconnected, st.ConnectionState)
	assert.Equal(t, 1, f.events.count(notify.DeviceConnectionFailed))
}

func TestEngine_HandshakeTimeout(t *testing.T) {
	ctx := context.Background()
	dev := newFakeDevice()
	dev.handshake = func(ctx context.Context, _ models.DeviceInfo) error {
		<-ctx.Done()
		return ctx.Err()
	}
	f := startEngine(t, storage.NewMemoryStore(), dev, func(o *Options) { o.HandshakeTimeout = 20 * time.Millisecond })

	err := f.engine.Connect(ctx, band)
	assert.True(t, ConnectionFailed(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_StaleHandshakeIgnored(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	dev := newFakeDevice()
	dev.handshake = func(context.Context, models.DeviceInfo) error {
		<-gate
		return nil
	}
	f := startEngine(t, storage.NewMemoryStore(), dev, nil)

	result := make(chan error, 1)
	go func() { result <- f.engine.Connect(ctx, band) }()

	require.Eventually(t, func() bool {
		st, err := f.engine.Status(ctx)
		return err == nil && st.ConnectionState == models.Connecting
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.engine.Disconnect(ctx))
	close(gate)

	assert.ErrorIs(t, <-result, ErrSuperseded)
	st, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Disconnected, st.ConnectionState)
}

func TestEngine_SwitchingDevices(t *testing.T) {
	ctx := context.Background()
	f := startEngine(t, storage.NewMemoryStore(), newFakeDevice(), nil)

	require.NoError(t, f.engine.Connect(ctx, band))
	require.NoError(t, f.engine.Connect(ctx, band))
	assert.Equal(t, 1, f.events.count(notify.DeviceConnected), "reconnecting the same device is a no-op")

	require.NoError(t, f.engine.Connect(ctx, ring))
	st, err := f.engine.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Device)
	assert.Equal(t, ring.ID, st.Device.ID)
	assert.Equal(t, 1, f.events.count(notify.DeviceDisconnected))
}

func TestEngine_StreamFeedsPipeline(t *testing.T) {
	ctx := context.Background()
	dev := newFakeDevice()
	f := startEngine(t, storage.NewMemoryStore(), dev, nil)
	require.NoError(t, f.engine.Connect(ctx, band))

	select {
	case <-dev.streaming:
	case <-time.After(time.Second):
		t.Fatal("stream was not started")
	}

	dev.push(stressSample(0, 15))
	window, err := f.engine.Window(ctx)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, 15, window[0].StressLevel)
}

// vanishingDevice pairs, then its stream ends as if the wearable walked off.
type vanishingDevice struct {
	*fakeDevice
	cause error
}

func (d vanishingDevice) Stream(context.Context, models.DeviceInfo, transport.EmitFunc) error {
	return d.cause
}

func TestEngine_StreamEndDisconnects(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	dev := vanishingDevice{fakeDevice: newFakeDevice(), cause: errors.New("link lost")}

	f := &fixture{store: store, sink: sink.NewMemorySink(), events: &recorder{}}
	e, err := New(ctx, Options{Store: store, Sink: f.sink, Device: dev, Publisher: f.events})
	require.NoError(t, err)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, e.Connect(ctx, band))
	require.Eventually(t, func() bool {
		st, err := e.Status(ctx)
		return err == nil && st.ConnectionState == models.Disconnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.events.count(notify.DeviceDisconnected))

	_, err = e.OnSample(ctx, stressSample(0, 10))
	assert.ErrorIs(t, err, ingest.ErrNotActive)

	_, err = store.Get(ctx, storage.KeyDevice)
	assert.NoError(t, err, "a lost link keeps the paired device")
}

func TestEngine_ResolutionSurvivesShutdownWhileSinkDown(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := startEngine(t, store, newFakeDevice(), func(o *Options) { o.DrainTimeout = 20 * time.Millisecond })
	first.sink.FailNext(-1, errors.New("sink unreachable"))
	require.NoError(t, first.engine.Connect(ctx, band))
	_, err := first.engine.OnSample(ctx, stressSample(0, 70))
	require.NoError(t, err)
	closed, err := first.engine.ResolveWithStrategy(ctx, "", "box-breathing")
	require.NoError(t, err)
	first.stop()

	second := startEngine(t, store, newFakeDevice(), nil)
	require.NoError(t, second.engine.FlushJournal(ctx))
	stored, ok := second.sink.Warning(closed.ID)
	require.True(t, ok, "the undelivered event reaches the sink after restart")
	require.NotNil(t, stored.ResolutionStrategyID)
	assert.Equal(t, "box-breathing", *stored.ResolutionStrategyID)
}

func TestEngine_RestoresOpenWarning(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	open := models.WarningEvent{
		ID:                    "evt-restored",
		OpenedAt:              epoch,
		WarningLevel:          models.Watch,
		RegulationScoreAtOpen: 50,
	}
	require.NoError(t, warning.SaveActive(ctx, store, open, models.Watch))

	f := startEngine(t, store, newFakeDevice(), nil)
	ev, ok, err := f.engine.ActiveWarning(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, open.ID, ev.ID)

	st, err := f.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Watch, st.WarningLevel)

	require.NoError(t, f.engine.FlushJournal(ctx))
	_, ok = f.sink.Warning(open.ID)
	assert.True(t, ok, "restored event is re-sent to the sink")
}

func TestEngine_RestartKeepsEscalatedLevel(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := startEngine(t, store, newFakeDevice(), nil)
	require.NoError(t, first.engine.Connect(ctx, band))
	for i, stress := range []float64{35, 65} {
		_, err := first.engine.OnSample(ctx, stressSample(i, stress))
		require.NoError(t, err)
	}
	st, err := first.engine.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, models.Alert, st.WarningLevel)
	opened, ok, err := first.engine.ActiveWarning(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	first.stop()

	second := startEngine(t, store, newFakeDevice(), nil)
	st, err = second.engine.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Alert, st.WarningLevel)

	ev, ok, err := second.engine.ActiveWarning(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, opened.ID, ev.ID)
	assert.Equal(t, models.Notice, ev.WarningLevel, "the event keeps the level it opened at")
}

// flakyStore fails reads of one key, as a store that is briefly down would.
type flakyStore struct {
	*storage.MemoryStore
	key string
}

func (s flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == s.key {
		return nil, errors.New("connection refused")
	}
	return s.MemoryStore.Get(ctx, key)
}

func TestEngine_UnreadableWarningIsKept(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	open := models.WarningEvent{ID: "evt-kept", OpenedAt: epoch, WarningLevel: models.Watch, RegulationScoreAtOpen: 50}
	require.NoError(t, warning.SaveActive(ctx, mem, open, models.Watch))

	e, err := New(ctx, Options{
		Store:  flakyStore{MemoryStore: mem, key: storage.KeyActiveWarning},
		Sink:   sink.NewMemorySink(),
		Device: newFakeDevice(),
	})
	require.NoError(t, err)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	_, ok, err := e.ActiveWarning(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = mem.Get(ctx, storage.KeyActiveWarning)
	assert.NoError(t, err, "a failed read must not delete the stored event")
}

func TestEngine_CorruptWarningDiscarded(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyActiveWarning, []byte("{broken")))

	f := startEngine(t, store, newFakeDevice(), nil)
	_, ok, err := f.engine.ActiveWarning(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(ctx, storage.KeyActiveWarning)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEngine_VerifyOnRestoreFailure(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyDevice, band))

	dev := newFakeDevice()
	dev.handshake = func(context.Context, models.DeviceInfo) error { return errors.New("out of range") }
	f := startEngine(t, store, dev, func(o *Options) { o.VerifyOnRestore = true })

	require.Eventually(t, func() bool {
		st, err := f.engine.Status(ctx)
		return err == nil && st.ConnectionState == models.Disconnected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.events.count(notify.DeviceConnectionFailed))

	_, err := store.Get(ctx, storage.KeyDevice)
	assert.ErrorIs(t, err, storage.ErrNotFound, "a device rejected at restore is forgotten")
}

func TestEngine_StoppedEngineRejectsCalls(t *testing.T) {
	f := startEngine(t, storage.NewMemoryStore(), newFakeDevice(), nil)
	f.stop()

	_, err := f.engine.Status(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, f.engine.Run(context.Background()), ErrAlreadyRunning)
}

func TestNew_Baseline(t *testing.T) {
	opts := Options{Store: storage.NewMemoryStore(), Sink: sink.NewMemorySink(), Device: newFakeDevice()}
	e, err := New(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 100, e.scorer.Baseline())

	zero := 0
	opts.Baseline = &zero
	e, err = New(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, e.scorer.Baseline())

	tooHigh := 101
	opts.Baseline = &tooHigh
	_, err = New(context.Background(), opts)
	assert.Error(t, err)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}
