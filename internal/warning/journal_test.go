package warning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/metrics"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/sink"
	"github.com/synheart/synheart-guard/internal/storage"
)

func testEvent(id string) models.WarningEvent {
	return models.WarningEvent{
		ID:                    id,
		OpenedAt:              time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
		WarningLevel:          models.Notice,
		RegulationScoreAtOpen: 60,
	}
}

func TestJournal_PreservesOrderAcrossRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := sink.NewMemorySink()
	remote.FailNext(3, errors.New("sink down"))

	j := NewJournal(remote, zap.NewNop(), JournalOptions{InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond})
	go j.Run(ctx)

	ev := testEvent("ev-1")
	j.Insert(ev)
	ev.Resolve(ev.OpenedAt.Add(time.Minute), "s1")
	j.Update(ev)
	j.Insert(testEvent("ev-2"))

	flushCtx, flushCancel := context.WithTimeout(ctx, 2*time.Second)
	defer flushCancel()
	require.NoError(t, j.Flush(flushCtx))

	assert.Equal(t, []string{"insert:ev-1", "update:ev-1", "insert:ev-2"}, remote.WarningLog())
	stored, ok := remote.Warning("ev-1")
	require.True(t, ok)
	require.NotNil(t, stored.ResolutionStrategyID)
	assert.Equal(t, "s1", *stored.ResolutionStrategyID)
}

func TestJournal_GivesUpOnPermanentErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	permanent := errors.New("constraint violation")
	remote := sink.NewMemorySink()
	remote.FailNext(1, permanent)
	m := metrics.New()

	j := NewJournal(remote, zap.NewNop(), JournalOptions{
		InitialBackoff: time.Millisecond,
		Permanent:      func(err error) bool { return errors.Is(err, permanent) },
		Metrics:        m,
	})
	go j.Run(ctx)

	j.Insert(testEvent("ev-1"))
	j.Insert(testEvent("ev-2"))

	flushCtx, flushCancel := context.WithTimeout(ctx, 2*time.Second)
	defer flushCancel()
	require.NoError(t, j.Flush(flushCtx))

	assert.Equal(t, []string{"insert:ev-2"}, remote.WarningLog())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JournalFailures))
}

func TestJournal_MaxAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := sink.NewMemorySink()
	remote.FailNext(-1, errors.New("down"))

	j := NewJournal(remote, zap.NewNop(), JournalOptions{InitialBackoff: time.Millisecond, MaxAttempts: 3})
	go j.Run(ctx)
	j.Insert(testEvent("ev-1"))

	flushCtx, flushCancel := context.WithTimeout(ctx, 2*time.Second)
	defer flushCancel()
	require.NoError(t, j.Flush(flushCtx))
	assert.Equal(t, 3, remote.Calls("insert_warning"))
}

func TestJournal_SubmitDoesNotBlockWithoutWorker(t *testing.T) {
	j := NewJournal(sink.NewMemorySink(), zap.NewNop(), JournalOptions{})
	for i := 0; i < 1000; i++ {
		j.Insert(testEvent("ev"))
	}
	assert.Equal(t, 1000, j.Pending())
}

func TestJournal_PendingWritesSurviveRestart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := storage.NewMemoryStore()

	first := NewJournal(sink.NewMemorySink(), zap.NewNop(), JournalOptions{Store: store})
	ev := testEvent("ev-1")
	first.Insert(ev)
	ev.Resolve(ev.OpenedAt.Add(time.Minute), "s1")
	first.Update(ev)

	remote := sink.NewMemorySink()
	second := NewJournal(remote, zap.NewNop(), JournalOptions{Store: store, InitialBackoff: time.Millisecond})
	n, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	go second.Run(ctx)
	flushCtx, flushCancel := context.WithTimeout(ctx, 2*time.Second)
	defer flushCancel()
	require.NoError(t, second.Flush(flushCtx))

	assert.Equal(t, []string{"insert:ev-1", "update:ev-1"}, remote.WarningLog())
	_, err = store.Get(ctx, storage.KeyWarningJournal)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJournal_DrainAfterRunStops(t *testing.T) {
	remote := sink.NewMemorySink()
	j := NewJournal(remote, zap.NewNop(), JournalOptions{InitialBackoff: time.Millisecond})

	runCtx, stop := context.WithCancel(context.Background())
	stop()
	j.Run(runCtx)

	j.Insert(testEvent("ev-1"))
	j.Insert(testEvent("ev-2"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, j.Drain(ctx))
	assert.Equal(t, 0, j.Pending())
	assert.Equal(t, []string{"insert:ev-1", "insert:ev-2"}, remote.WarningLog())
}

func TestJournal_DrainTimeoutKeepsWrites(t *testing.T) {
	store := storage.NewMemoryStore()
	remote := sink.NewMemorySink()
	remote.FailNext(-1, errors.New("down"))
	j := NewJournal(remote, zap.NewNop(), JournalOptions{Store: store, InitialBackoff: time.Millisecond})
	j.Insert(testEvent("ev-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, j.Drain(ctx))
	assert.Equal(t, 1, j.Pending())

	_, err := store.Get(context.Background(), storage.KeyWarningJournal)
	assert.NoError(t, err)
}

func TestJournal_CorruptStoreDropped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyWarningJournal, []byte("[{")))

	j := NewJournal(sink.NewMemorySink(), zap.NewNop(), JournalOptions{Store: store})
	n, err := j.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = store.Get(ctx, storage.KeyWarningJournal)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
