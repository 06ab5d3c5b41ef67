package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/sink"
	"github.com/synheart/synheart-guard/internal/storage"
	"github.com/synheart/synheart-guard/internal/warning"
)

// fakeResolver resolves any event it was told about.
type fakeResolver struct {
	open map[string]models.WarningEvent
	now  time.Time
}

func (f *fakeResolver) ResolveWithStrategy(_ context.Context, eventID, strategyID string) (models.WarningEvent, error) {
	ev, ok := f.open[eventID]
	if !ok {
		return models.WarningEvent{}, warning.ErrNoOpenWarning
	}
	delete(f.open, eventID)
	f.now = f.now.Add(time.Minute)
	ev.Resolve(f.now, strategyID)
	return ev, nil
}

func newResolver(ids ...string) *fakeResolver {
	opened := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeResolver{open: map[string]models.WarningEvent{}, now: opened}
	for _, id := range ids {
		f.open[id] = models.WarningEvent{ID: id, OpenedAt: opened, WarningLevel: models.Watch, RegulationScoreAtOpen: 50}
	}
	return f
}

func TestLog_RecordResolution(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	remote := sink.NewMemorySink()
	catalog, err := NewCatalog(nil, zap.NewNop())
	require.NoError(t, err)

	l, err := OpenLog(ctx, catalog, newResolver("ev-1"), store, remote, zap.NewNop())
	require.NoError(t, err)

	res, err := l.RecordResolution(ctx, "ev-1", "box-breathing")
	require.NoError(t, err)
	assert.Equal(t, "ev-1", res.WarningEventID)
	assert.Equal(t, time.Minute, res.TimeToResolve())
	assert.Len(t, remote.Resolutions(), 1)

	reopened, err := OpenLog(ctx, catalog, newResolver(), store, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, reopened.Resolutions(), 1)
}

func TestLog_RejectsUnknownStrategyAndClosedEvents(t *testing.T) {
	ctx := context.Background()
	catalog, _ := NewCatalog(nil, zap.NewNop())
	resolver := newResolver("ev-1")
	l, err := OpenLog(ctx, catalog, resolver, storage.NewMemoryStore(), nil, zap.NewNop())
	require.NoError(t, err)

	_, err = l.RecordResolution(ctx, "ev-1", "does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Contains(t, resolver.open, "ev-1", "unknown strategy must not resolve the event")

	_, err = l.RecordResolution(ctx, "ev-2", "box-breathing")
	assert.ErrorIs(t, err, warning.ErrNoOpenWarning)
	assert.Empty(t, l.Resolutions())
}

func TestLog_Effectiveness(t *testing.T) {
	ctx := context.Background()
	catalog, _ := NewCatalog(nil, zap.NewNop())
	l, err := OpenLog(ctx, catalog, newResolver("a", "b", "c"), storage.NewMemoryStore(), nil, zap.NewNop())
	require.NoError(t, err)

	_, err = l.RecordResolution(ctx, "a", "short-walk")
	require.NoError(t, err)
	_, err = l.RecordResolution(ctx, "b", "box-breathing")
	require.NoError(t, err)
	_, err = l.RecordResolution(ctx, "c", "box-breathing")
	require.NoError(t, err)

	stats := l.Effectiveness()
	require.Len(t, stats, 2)
	assert.Equal(t, "box-breathing", stats[0].StrategyID)
	assert.Equal(t, 2, stats[0].Uses)
	assert.Equal(t, "Box breathing", stats[0].Name)
	assert.Equal(t, 4, stats[0].Rating)
	assert.Equal(t, 2, stats[0].ByLevel["watch"])
	// resolver clock advances a minute per resolution
	assert.Equal(t, 150*time.Second, stats[0].MeanTimeToResolve)
}

func TestOpenLog_CorruptHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyResolutionsLog, []byte("nope")))

	catalog, _ := NewCatalog(nil, zap.NewNop())
	l, err := OpenLog(ctx, catalog, newResolver(), store, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, l.Resolutions())
}
