// Package offline keeps samples that have not reached the remote sink yet
// and coordinates delivering them.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/metrics"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/storage"
)

// Buffer is a write-through FIFO of undelivered samples. Every mutation is
// persisted before it returns.
type Buffer struct {
	mu    sync.Mutex
	store storage.Store
	queue []models.BiometricSample

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Open loads the persisted queue. Corrupt data is logged and replaced by an
// empty queue. m may be nil.
func Open(ctx context.Context, store storage.Store, logger *zap.Logger, m *metrics.Metrics) (*Buffer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Buffer{store: store, logger: logger, metrics: m}

	data, err := store.Get(ctx, storage.KeyOfflineQueue)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load offline queue: %w", err)
	default:
		var queue []models.BiometricSample
		if err := json.Unmarshal(data, &queue); err != nil {
			logger.Warn("offline queue is corrupt, starting empty", zap.Error(err))
			break
		}
		b.queue = queue
	}

	b.observe()
	if len(b.queue) > 0 {
		logger.Info("offline queue restored", zap.Int("count", len(b.queue)))
	}
	return b, nil
}

// Append adds a sample at the tail. The sample stays queued in memory even
// when persisting fails.
func (b *Buffer) Append(ctx context.Context, s models.BiometricSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, s)
	return b.persist(ctx)
}

// Snapshot returns a copy of the queue, oldest first.
func (b *Buffer) Snapshot() []models.BiometricSample {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.BiometricSample(nil), b.queue...)
}

// Len returns the number of queued samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Drop removes the n oldest samples in a single write.
func (b *Buffer) Drop(ctx context.Context, n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(b.queue) {
		n = len(b.queue)
	}
	b.queue = append([]models.BiometricSample(nil), b.queue[n:]...)
	return b.persist(ctx)
}

func (b *Buffer) persist(ctx context.Context) error {
	b.observe()
	if len(b.queue) == 0 {
		if err := b.store.Remove(ctx, storage.KeyOfflineQueue); err != nil {
			return fmt.Errorf("failed to clear offline queue: %w", err)
		}
		return nil
	}
	if err := storage.SetJSON(ctx, b.store, storage.KeyOfflineQueue, b.queue); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	return nil
}

func (b *Buffer) observe() {
	if b.metrics != nil {
		b.metrics.OfflineQueue.Set(float64(len(b.queue)))
	}
}
