package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/metrics"
	"github.com/synheart/synheart-guard/internal/models"
)

// DefaultSyncTimeout bounds one delivery attempt.
const DefaultSyncTimeout = 30 * time.Second

// Uploader delivers one batch to the remote sink.
type Uploader interface {
	InsertSamples(ctx context.Context, samples []models.BiometricSample) error
}

// SyncError reports a failed delivery. The queue is left untouched.
type SyncError struct {
	Count int
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of %d samples failed: %v", e.Count, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one sync attempt.
type Result struct {
	// Count is the number of samples delivered (or attempted, on failure).
	Count     int
	Remaining int
	Err       error
	// RetryIn is the delay before the next periodic attempt; zero when
	// periodic retries are disabled.
	RetryIn time.Duration
}

// Attempt is a sync in flight. Every caller that triggers a sync while one
// is running shares the same Attempt.
type Attempt struct {
	done   chan struct{}
	result Result
}

func newAttempt() *Attempt {
	return &Attempt{done: make(chan struct{})}
}

func (a *Attempt) finish(r Result) {
	a.result = r
	close(a.done)
}

// Done is closed once the attempt has completed.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt completes or ctx is done.
func (a *Attempt) Wait(ctx context.Context) (Result, error) {
	select {
	case <-a.done:
		return a.result, a.result.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Options configures a Coordinator.
type Options struct {
	Timeout       time.Duration
	RetryInterval time.Duration
	// Online reports the current network state. Nil means always online.
	Online func() bool
	// Schedule runs completions on the caller's event loop. Nil runs them
	// on the upload goroutine.
	Schedule func(func())
	// OnResult is called after every completed attempt.
	OnResult func(Result)
	Metrics  *metrics.Metrics
}

// Coordinator moves queued samples to the sink, one attempt at a time.
type Coordinator struct {
	buffer   *Buffer
	uploader Uploader
	opts     Options
	logger   *zap.Logger

	mu       sync.Mutex
	inflight *Attempt
	base     context.Context
}

func NewCoordinator(buffer *Buffer, uploader Uploader, logger *zap.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSyncTimeout
	}
	if opts.Online == nil {
		opts.Online = func() bool { return true }
	}
	return &Coordinator{
		buffer:   buffer,
		uploader: uploader,
		opts:     opts,
		logger:   logger,
		base:     context.Background(),
	}
}

// Sync triggers a sync and waits for it.
func (c *Coordinator) Sync(ctx context.Context) (Result, error) {
	return c.Trigger().Wait(ctx)
}

// InFlight reports whether an attempt is running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Trigger starts an attempt for the current queue contents, or joins the
// running one. An empty queue completes immediately.
func (c *Coordinator) Trigger() *Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight != nil {
		return c.inflight
	}

	batch := c.buffer.Snapshot()
	a := newAttempt()
	if len(batch) == 0 {
		a.finish(Result{})
		return a
	}

	c.inflight = a
	go c.upload(c.base, a, batch)
	return a
}

// Run retries pending samples every RetryInterval while online, until ctx
// is done. Uploads started after Run is called inherit ctx.
func (c *Coordinator) Run(ctx context.Context) {
	c.mu.Lock()
	c.base = ctx
	c.mu.Unlock()

	if c.opts.RetryInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(c.opts.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.schedule(func() {
				if c.buffer.Len() > 0 && c.opts.Online() {
					c.Trigger()
				}
			})
		}
	}
}

func (c *Coordinator) upload(base context.Context, a *Attempt, batch []models.BiometricSample) {
	ctx, cancel := context.WithTimeout(base, c.opts.Timeout)
	err := c.uploader.InsertSamples(ctx, batch)
	cancel()

	c.schedule(func() { c.complete(base, a, len(batch), err) })
}

func (c *Coordinator) complete(ctx context.Context, a *Attempt, n int, err error) {
	var res Result
	if err != nil {
		res = Result{
			Count:     n,
			Remaining: c.buffer.Len(),
			Err:       &SyncError{Count: n, Err: err},
			RetryIn:   c.opts.RetryInterval,
		}
		c.logger.Warn("sync failed", zap.Int("count", n), zap.Error(err))
		if c.opts.Metrics != nil {
			c.opts.Metrics.SyncAttempts.WithLabelValues("failure").Inc()
		}
	} else {
		// only the delivered prefix goes; later arrivals stay queued
		if dropErr := c.buffer.Drop(context.WithoutCancel(ctx), n); dropErr != nil {
			c.logger.Error("failed to persist queue after sync", zap.Error(dropErr))
		}
		res = Result{Count: n, Remaining: c.buffer.Len()}
		c.logger.Info("sync completed", zap.Int("count", n), zap.Int("remaining", res.Remaining))
		if c.opts.Metrics != nil {
			c.opts.Metrics.SyncAttempts.WithLabelValues("success").Inc()
			c.opts.Metrics.SamplesSynced.Add(float64(n))
		}
	}

	c.mu.Lock()
	c.inflight = nil
	c.mu.Unlock()

	if c.opts.OnResult != nil {
		c.opts.OnResult(res)
	}
	a.finish(res)

	if err == nil && res.Remaining > 0 && c.opts.Online() {
		c.Trigger()
	}
}

func (c *Coordinator) schedule(fn func()) {
	if c.opts.Schedule != nil {
		c.opts.Schedule(fn)
		return
	}
	fn()
}
