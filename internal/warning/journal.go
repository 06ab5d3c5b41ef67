package warning

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

// Writer is the part of the remote sink the journal writes to.
type Writer interface {
	InsertWarning(ctx context.Context, event models.WarningEvent) error
	UpdateWarning(ctx context.Context, event models.WarningEvent) error
}

type opKind int

const (
	opInsert opKind = iota
	opUpdate
)

func (k opKind) String() string {
	if k == opInsert {
		return "insert"
	}
	return "update"
}

type journalOp struct {
	kind  opKind
	event models.WarningEvent
}

// journalEntry is the stored form of a pending write.
type journalEntry struct {
	Op    string              `json:"op"`
	Event models.WarningEvent `json:"event"`
}

// JournalOptions configures retries.
type JournalOptions struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxAttempts per write; 0 retries until the journal stops.
	MaxAttempts int
	// Permanent reports errors that must not be retried.
	Permanent func(error) bool
	// Store, when set, keeps writes not yet delivered across restarts.
	Store   storage.Store
	Metrics *metrics.Metrics
}

// Journal writes warning events to the sink in submission order, retrying
// with exponential backoff. Submitting never blocks on the sink. A write
// stays at the head of the queue until it has been delivered or abandoned.
type Journal struct {
	writer Writer
	opts   JournalOptions
	logger *zap.Logger

	mu      sync.Mutex
	pending []journalOp
	busy    bool
	wake    chan struct{}
}

func NewJournal(writer Writer, logger *zap.Logger, opts JournalOptions) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.Permanent == nil {
		opts.Permanent = func(error) bool { return false }
	}
	return &Journal{
		writer: writer,
		opts:   opts,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Load puts writes left by a previous run in front of the queue. A corrupt
// stored journal is logged and dropped; a read failure is returned and the
// stored value kept.
func (j *Journal) Load(ctx context.Context) (int, error) {
	if j.opts.Store == nil {
		return 0, nil
	}
	data, err := j.opts.Store.Get(ctx, storage.KeyWarningJournal)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load warning journal: %w", err)
	}

	var entries []journalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		j.logger.Warn("stored warning journal is corrupt, dropping it", zap.Error(err))
		if err := j.opts.Store.Remove(ctx, storage.KeyWarningJournal); err != nil {
			j.logger.Error("failed to drop warning journal", zap.Error(err))
		}
		return 0, nil
	}

	ops := make([]journalOp, 0, len(entries))
	for _, e := range entries {
		kind := opInsert
		if e.Op == opUpdate.String() {
			kind = opUpdate
		}
		ops = append(ops, journalOp{kind: kind, event: e.Event})
	}

	j.mu.Lock()
	j.pending = append(ops, j.pending...)
	j.persist()
	j.mu.Unlock()
	j.signal()
	return len(ops), nil
}

// Insert queues the creation of event.
func (j *Journal) Insert(event models.WarningEvent) { j.submit(opInsert, event) }

// Update queues the resolution of event.
func (j *Journal) Update(event models.WarningEvent) { j.submit(opUpdate, event) }

func (j *Journal) submit(kind opKind, event models.WarningEvent) {
	j.mu.Lock()
	j.pending = append(j.pending, journalOp{kind: kind, event: event})
	j.persist()
	j.mu.Unlock()
	j.signal()
}

func (j *Journal) signal() {
	select {
	case j.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of writes not yet completed.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

// Run drains the queue until ctx is done. A write cut short by ctx stays
// queued.
func (j *Journal) Run(ctx context.Context) {
	for {
		op, ok := j.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-j.wake:
				continue
			}
		}

		j.finish(j.write(ctx, op))

		if ctx.Err() != nil {
			return
		}
	}
}

// Drain writes the queue on the calling goroutine until it is empty or ctx
// is done. It is meant for shutdown, after Run has returned.
func (j *Journal) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		op, ok := j.next()
		if !ok {
			if j.Pending() == 0 {
				return nil
			}
			// Run still owns the head write
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}
		j.finish(j.write(ctx, op))
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Flush waits until every queued write has completed or ctx is done.
func (j *Journal) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for j.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// next claims the head write. Only one write is in flight at a time.
func (j *Journal) next() (journalOp, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.busy || len(j.pending) == 0 {
		return journalOp{}, false
	}
	j.busy = true
	return j.pending[0], true
}

// finish releases the head write and removes it when done.
func (j *Journal) finish(done bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.busy = false
	if done {
		j.pending = j.pending[1:]
		j.persist()
	}
}

// persist stores the queue. Callers hold j.mu.
func (j *Journal) persist() {
	if j.opts.Store == nil {
		return
	}
	ctx := context.Background()
	var err error
	if len(j.pending) == 0 {
		err = j.opts.Store.Remove(ctx, storage.KeyWarningJournal)
	} else {
		entries := make([]journalEntry, len(j.pending))
		for i, op := range j.pending {
			entries[i] = journalEntry{Op: op.kind.String(), Event: op.event}
		}
		err = storage.SetJSON(ctx, j.opts.Store, storage.KeyWarningJournal, entries)
	}
	if err != nil {
		j.logger.Error("failed to persist warning journal", zap.Error(err))
	}
}

// write delivers op, retrying until it succeeds or is abandoned. It returns
// false when ctx ended first.
func (j *Journal) write(ctx context.Context, op journalOp) bool {
	backoff := j.opts.InitialBackoff
	for attempt := 1; ; attempt++ {
		var err error
		if op.kind == opInsert {
			err = j.writer.InsertWarning(ctx, op.event)
		} else {
			err = j.writer.UpdateWarning(ctx, op.event)
		}
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		giveUp := j.opts.Permanent(err) || (j.opts.MaxAttempts > 0 && attempt >= j.opts.MaxAttempts)
		if giveUp {
			j.logger.Error("warning event write abandoned",
				zap.String("op", op.kind.String()),
				zap.String("event_id", op.event.ID),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			if j.opts.Metrics != nil {
				j.opts.Metrics.JournalFailures.Inc()
			}
			return true
		}

		j.logger.Warn("warning event write failed, retrying",
			zap.String("op", op.kind.String()),
			zap.String("event_id", op.event.ID),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > j.opts.MaxBackoff {
			backoff = j.opts.MaxBackoff
		}
	}
}
