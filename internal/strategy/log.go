package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/storage"
)

// Resolver closes the open warning event with a strategy. It must fail when
// eventID is not the open event.
type Resolver interface {
	ResolveWithStrategy(ctx context.Context, eventID, strategyID string) (models.WarningEvent, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, eventID, strategyID string) (models.WarningEvent, error)

func (f ResolverFunc) ResolveWithStrategy(ctx context.Context, eventID, strategyID string) (models.WarningEvent, error) {
	return f(ctx, eventID, strategyID)
}

// ResolutionWriter sends resolution records to the remote store.
type ResolutionWriter interface {
	InsertResolution(ctx context.Context, res models.Resolution) error
}

// Log records which strategy resolved which warning.
type Log struct {
	mu       sync.Mutex
	catalog  *Catalog
	resolver Resolver
	store    storage.Store
	writer   ResolutionWriter
	records  []models.Resolution
	logger   *zap.Logger
}

// OpenLog loads the persisted resolution history. writer may be nil.
func OpenLog(ctx context.Context, catalog *Catalog, resolver Resolver, store storage.Store, writer ResolutionWriter, logger *zap.Logger) (*Log, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Log{
		catalog:  catalog,
		resolver: resolver,
		store:    store,
		writer:   writer,
		logger:   logger,
	}

	data, err := store.Get(ctx, storage.KeyResolutionsLog)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load resolutions: %w", err)
	default:
		if err := json.Unmarshal(data, &l.records); err != nil {
			logger.Warn("resolution log is corrupt, starting empty", zap.Error(err))
			l.records = nil
		}
	}
	return l, nil
}

// RecordResolution resolves the open warning eventID with strategyID and
// appends the analytics record.
func (l *Log) RecordResolution(ctx context.Context, eventID, strategyID string) (models.Resolution, error) {
	if _, ok := l.catalog.Get(strategyID); !ok {
		return models.Resolution{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategyID)
	}

	event, err := l.resolver.ResolveWithStrategy(ctx, eventID, strategyID)
	if err != nil {
		return models.Resolution{}, err
	}
	res := models.NewResolution(event)

	l.mu.Lock()
	l.records = append(l.records, res)
	persistErr := storage.SetJSON(ctx, l.store, storage.KeyResolutionsLog, l.records)
	l.mu.Unlock()
	if persistErr != nil {
		l.logger.Error("failed to persist resolution log", zap.Error(persistErr))
	}

	if l.writer != nil {
		if err := l.writer.InsertResolution(ctx, res); err != nil {
			l.logger.Warn("failed to send resolution to sink",
				zap.String("warning_event_id", res.WarningEventID),
				zap.Error(err),
			)
		}
	}

	l.logger.Info("warning resolved with strategy",
		zap.String("warning_event_id", res.WarningEventID),
		zap.String("strategy_id", res.StrategyID),
		zap.Duration("time_to_resolve", res.TimeToResolve()),
	)
	return res, nil
}

// Resolutions returns the history, oldest first.
func (l *Log) Resolutions() []models.Resolution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Resolution(nil), l.records...)
}

// Effectiveness summarizes how a strategy has performed.
type Effectiveness struct {
	StrategyID        string         `json:"strategy_id"`
	Name              string         `json:"name"`
	Category          string         `json:"category"`
	Uses              int            `json:"uses"`
	Rating            int            `json:"rating"`
	MeanTimeToResolve time.Duration  `json:"mean_time_to_resolve"`
	ByLevel           map[string]int `json:"by_level"`
}

// Effectiveness aggregates the history per strategy, most used first and
// faster resolution breaking ties.
func (l *Log) Effectiveness() []Effectiveness {
	records := l.Resolutions()

	type acc struct {
		uses  int
		total time.Duration
		level map[string]int
	}
	byID := map[string]*acc{}
	for _, r := range records {
		a, ok := byID[r.StrategyID]
		if !ok {
			a = &acc{level: map[string]int{}}
			byID[r.StrategyID] = a
		}
		a.uses++
		a.total += r.TimeToResolve()
		a.level[r.WarningLevel.String()]++
	}

	out := make([]Effectiveness, 0, len(byID))
	for id, a := range byID {
		e := Effectiveness{
			StrategyID:        id,
			Uses:              a.uses,
			MeanTimeToResolve: a.total / time.Duration(a.uses),
			ByLevel:           a.level,
		}
		if s, ok := l.catalog.Get(id); ok {
			e.Name = s.Name
			e.Category = s.Category
			e.Rating = s.EffectivenessRating
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Uses != out[j].Uses {
			return out[i].Uses > out[j].Uses
		}
		if out[i].MeanTimeToResolve != out[j].MeanTimeToResolve {
			return out[i].MeanTimeToResolve < out[j].MeanTimeToResolve
		}
		return out[i].StrategyID < out[j].StrategyID
	})
	return out
}
