// Package engine runs the early-warning pipeline on a single event loop:
// device lifecycle, ingestion, offline buffering, scoring and warnings.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/device"
	"github.com/synheart/synheart-guard/internal/ingest"
	"github.com/synheart/synheart-guard/internal/metrics"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/notify"
	"github.com/synheart/synheart-guard/internal/offline"
	"github.com/synheart/synheart-guard/internal/regulation"
	"github.com/synheart/synheart-guard/internal/sink"
	"github.com/synheart/synheart-guard/internal/storage"
	"github.com/synheart/synheart-guard/internal/strategy"
	"github.com/synheart/synheart-guard/internal/transport"
	"github.com/synheart/synheart-guard/internal/warning"
)

const (
	// DefaultSnapshotSize is the number of recent samples attached to a new
	// warning event.
	DefaultSnapshotSize = 5
	// DefaultDrainTimeout bounds the final warning journal delivery on stop.
	DefaultDrainTimeout = 2 * time.Second
)

var (
	// ErrStopped is returned by calls made after Run has returned.
	ErrStopped = errors.New("engine stopped")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("engine already running")
	// ErrSuperseded is returned by Connect when a later Connect or a
	// Disconnect replaced the attempt before its handshake finished.
	ErrSuperseded = errors.New("connection attempt superseded")
	// ErrEventMismatch is returned when resolving an event that is not the
	// open one.
	ErrEventMismatch = errors.New("warning event is not open")
)

// Options configures an Engine. Store, Sink and Device are required.
type Options struct {
	Store  storage.Store
	Sink   sink.Sink
	Device transport.Device

	// Scorer defaults to regulation.StressScorer. A nil Baseline means
	// regulation.DefaultBaseline; zero is a valid baseline.
	Scorer     regulation.Scorer
	Baseline   *int
	Thresholds warning.Thresholds

	WindowSize   int
	Validation   ingest.Policy
	SnapshotSize int

	HandshakeTimeout time.Duration
	// VerifyOnRestore re-runs the handshake for a persisted device at boot
	// instead of trusting it.
	VerifyOnRestore bool

	SyncTimeout       time.Duration
	SyncRetryInterval time.Duration
	// Journal.Store defaults to Store. DrainTimeout bounds the delivery of
	// pending warning writes when Run stops; what is left stays stored.
	Journal      warning.JournalOptions
	DrainTimeout time.Duration

	// Network is the state assumed until SetNetwork is called.
	Network models.NetworkState

	Publisher notify.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Engine owns every piece of mutable pipeline state. All state changes run
// on the goroutine inside Run; public methods post work to it and wait.
type Engine struct {
	store     storage.Store
	device    transport.Device
	publisher notify.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	manager     *device.Manager
	ingestor    *ingest.Ingestor
	buffer      *offline.Buffer
	coordinator *offline.Coordinator
	scorer      *regulation.Engine
	machine     *warning.Machine
	journal     *warning.Journal
	catalog     *strategy.Catalog
	log         *strategy.Log

	verifyOnRestore bool
	snapshotSize    int
	drainTimeout    time.Duration
	network         atomic.Int32

	events  chan func()
	stopped chan struct{}
	running atomic.Bool

	// loop-owned
	base       context.Context
	stopStream context.CancelFunc
}

// New assembles an engine and loads its durable state. Nothing runs until
// Run is called.
func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Sink == nil || opts.Device == nil {
		return nil, errors.New("engine requires a store, a sink and a device")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = notify.Discard
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = regulation.StressScorer{}
	}
	baseline := regulation.DefaultBaseline
	if opts.Baseline != nil {
		baseline = *opts.Baseline
	}
	thresholds := opts.Thresholds
	if thresholds == (warning.Thresholds{}) {
		thresholds = warning.DefaultThresholds()
	}
	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = ingest.DefaultWindowSize
	}
	snapshotSize := opts.SnapshotSize
	if snapshotSize <= 0 {
		snapshotSize = DefaultSnapshotSize
	}
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = device.DefaultHandshakeTimeout
	}
	drainTimeout := opts.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}

	e := &Engine{
		store:           opts.Store,
		device:          opts.Device,
		publisher:       publisher,
		metrics:         opts.Metrics,
		logger:          logger,
		now:             clock,
		verifyOnRestore: opts.VerifyOnRestore,
		snapshotSize:    snapshotSize,
		drainTimeout:    drainTimeout,
		events:          make(chan func()),
		stopped:         make(chan struct{}),
		base:            context.Background(),
	}
	e.network.Store(int32(opts.Network))

	regEngine, err := regulation.NewEngine(scorer, baseline)
	if err != nil {
		return nil, err
	}
	e.scorer = regEngine

	machine, err := warning.NewMachine(thresholds, warning.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}
	e.machine = machine

	e.manager = device.NewManager(opts.Store, timeout, logger.Named("device"), opts.Metrics)

	e.ingestor = ingest.New(
		ingest.NewWindow(windowSize),
		ingest.NewValidator(opts.Validation),
		logger.Named("ingest"),
		ingest.WithMetrics(opts.Metrics),
		ingest.WithClock(clock),
	)
	e.ingestor.Subscribe(ingest.ConsumerFunc(e.enqueue))
	e.ingestor.Subscribe(ingest.ConsumerFunc(e.evaluate))

	e.buffer, err = offline.Open(ctx, opts.Store, logger.Named("offline"), opts.Metrics)
	if err != nil {
		return nil, err
	}
	e.coordinator = offline.NewCoordinator(e.buffer, opts.Sink, logger.Named("sync"), offline.Options{
		Timeout:       opts.SyncTimeout,
		RetryInterval: opts.SyncRetryInterval,
		Online:        e.online,
		Schedule:      e.schedule,
		OnResult:      e.onSyncResult,
		Metrics:       opts.Metrics,
	})

	jopts := opts.Journal
	if jopts.Metrics == nil {
		jopts.Metrics = opts.Metrics
	}
	if jopts.Store == nil {
		jopts.Store = opts.Store
	}
	e.journal = warning.NewJournal(opts.Sink, logger.Named("journal"), jopts)
	if n, err := e.journal.Load(ctx); err != nil {
		logger.Error("failed to load warning journal", zap.Error(err))
	} else if n > 0 {
		logger.Info("warning journal restored", zap.Int("pending", n))
	}

	e.catalog, err = strategy.NewCatalog(opts.Sink, logger.Named("strategy"))
	if err != nil {
		return nil, err
	}
	e.log, err = strategy.OpenLog(ctx, e.catalog, e, opts.Store, opts.Sink, logger.Named("strategy"))
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Run restores persisted state and processes events until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(e.stopped)

	e.base = ctx
	go e.journal.Run(ctx)
	go e.coordinator.Run(ctx)

	e.restore(ctx)
	e.logger.Info("engine started", zap.Stringer("network", e.networkState()))

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			e.logger.Info("engine stopped")
			return nil
		case fn := <-e.events:
			fn()
		}
	}
}

// do runs fn on the loop and waits for it.
func (e *Engine) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case e.events <- task:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// schedule runs a sync completion on the loop. Once the loop is gone the
// completion runs in place so waiters are still released.
func (e *Engine) schedule(fn func()) {
	select {
	case e.events <- fn:
	case <-e.stopped:
		fn()
	}
}

func (e *Engine) shutdown() {
	if e.stopStream != nil {
		e.stopStream()
		e.stopStream = nil
	}
	e.ingestor.Deactivate()

	ctx, cancel := context.WithTimeout(context.Background(), e.drainTimeout)
	defer cancel()
	if err := e.journal.Drain(ctx); err != nil {
		e.logger.Warn("warning journal not fully delivered, kept for next start",
			zap.Int("pending", e.journal.Pending()),
			zap.Error(err),
		)
	}
}

func (e *Engine) online() bool {
	return e.networkState() == models.Online
}

func (e *Engine) networkState() models.NetworkState {
	return models.NetworkState(e.network.Load())
}

// Catalog returns the strategy catalog. It is safe for concurrent use.
func (e *Engine) Catalog() *strategy.Catalog { return e.catalog }

// Log returns the strategy resolution log. It is safe for concurrent use.
func (e *Engine) Log() *strategy.Log { return e.log }

// FlushJournal waits for pending warning writes to reach the sink.
func (e *Engine) FlushJournal(ctx context.Context) error {
	return e.journal.Flush(ctx)
}
