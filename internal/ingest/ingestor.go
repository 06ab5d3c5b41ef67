// Package ingest validates incoming samples, keeps the rolling sample window
// and forwards accepted samples to downstream consumers.
package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/metrics"
	"github.com/synheart/synheart-guard/internal/models"
)

// Consumer receives every accepted sample, in acceptance order.
type Consumer interface {
	Consume(ctx context.Context, sample models.BiometricSample) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, sample models.BiometricSample) error

func (f ConsumerFunc) Consume(ctx context.Context, sample models.BiometricSample) error {
	return f(ctx, sample)
}

// Stats counts ingestion outcomes.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Clipped  uint64 `json:"clipped"`
}

// Ingestor accepts samples only while active (the device is connected).
// Calls must be serialized by the caller.
type Ingestor struct {
	window    *Window
	validator *Validator
	consumers []Consumer
	active    bool
	stats     Stats

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

// WithClock overrides the arrival clock.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

// New creates an inactive ingestor.
func New(window *Window, validator *Validator, logger *zap.Logger, opts ...Option) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := &Ingestor{
		window:    window,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Subscribe registers a consumer. Consumers are invoked in registration order.
func (i *Ingestor) Subscribe(c Consumer) {
	i.consumers = append(i.consumers, c)
}

// Activate starts accepting samples.
func (i *Ingestor) Activate() { i.active = true }

// Deactivate stops accepting samples. The window is kept.
func (i *Ingestor) Deactivate() { i.active = false }

// Active reports whether samples are being accepted.
func (i *Ingestor) Active() bool { return i.active }

// Window returns the rolling window.
func (i *Ingestor) Window() *Window { return i.window }

// Stats returns a copy of the outcome counters.
func (i *Ingestor) Stats() Stats { return i.stats }

// Accept validates raw, pushes it into the window and hands it to every
// consumer before returning. Consumer errors are joined; all consumers run.
func (i *Ingestor) Accept(ctx context.Context, raw models.RawSample) (models.BiometricSample, error) {
	if !i.active {
		return models.BiometricSample{}, ErrNotActive
	}

	sample, clipped, err := i.validator.Validate(raw, i.now())
	if err != nil {
		i.stats.Rejected++
		if i.metrics != nil {
			i.metrics.SamplesRejected.WithLabelValues(RejectReason(err)).Inc()
		}
		i.logger.Debug("sample rejected", zap.Error(err))
		return models.BiometricSample{}, err
	}
	if clipped {
		i.stats.Clipped++
		if i.metrics != nil {
			i.metrics.SamplesClipped.Inc()
		}
	}

	i.window.Push(sample)
	i.stats.Accepted++
	if i.metrics != nil {
		i.metrics.SamplesIngested.Inc()
	}

	var errs []error
	for _, c := range i.consumers {
		if err := c.Consume(ctx, sample); err != nil {
			errs = append(errs, err)
		}
	}
	return sample, errors.Join(errs...)
}

// RejectReason classifies a validation error. It returns "" for errors
// that are not sample rejections.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrBadTimestamp):
		return "bad_timestamp"
	default:
		return ""
	}
}
