// Package strategy holds the coping-strategy catalog and the log of which
// strategy resolved which warning.
package strategy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/synheart/synheart-guard/internal/models"
)

//go:embed strategies.yaml
var seedYAML []byte

var (
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrDuplicateStrategy = errors.New("strategy already exists")
)

// Source provides strategies from the remote store.
type Source interface {
	QueryStrategies(ctx context.Context) ([]models.Strategy, error)
}

// Catalog is the set of strategies the user can pick from.
type Catalog struct {
	mu     sync.RWMutex
	byID   map[string]models.Strategy
	source Source
	logger *zap.Logger
}

type seedFile struct {
	Strategies []models.Strategy `yaml:"strategies"`
}

// ParseSeed decodes a YAML strategy list.
func ParseSeed(data []byte) ([]models.Strategy, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse strategies: %w", err)
	}
	for i := range f.Strategies {
		if f.Strategies[i].ID == "" {
			return nil, fmt.Errorf("strategy %d: id is required", i)
		}
		if err := f.Strategies[i].Validate(); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", f.Strategies[i].ID, err)
		}
	}
	return f.Strategies, nil
}

// NewCatalog returns a catalog seeded with the built-in strategies.
// source may be nil.
func NewCatalog(source Source, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed, err := ParseSeed(seedYAML)
	if err != nil {
		return nil, err
	}
	c := &Catalog{
		byID:   make(map[string]models.Strategy, len(seed)),
		source: source,
		logger: logger,
	}
	for _, s := range seed {
		c.byID[s.ID] = s
	}
	return c, nil
}

// List returns all strategies sorted by category, then name.
func (c *Catalog) List() []models.Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Strategy, 0, len(c.byID))
	for _, s := range c.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Get looks a strategy up by id.
func (c *Catalog) Get(id string) (models.Strategy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byID[id]
	return s, ok
}

// Add validates s and adds it. An empty id is replaced by a new uuid.
func (c *Catalog) Add(s models.Strategy) (models.Strategy, error) {
	if err := s.Validate(); err != nil {
		return models.Strategy{}, err
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byID[s.ID]; exists {
		return models.Strategy{}, fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.ID)
	}
	c.byID[s.ID] = s
	return s, nil
}

// Refresh merges the remote strategies into the catalog. Remote entries
// replace local ones with the same id; invalid entries are skipped.
func (c *Catalog) Refresh(ctx context.Context) (int, error) {
	if c.source == nil {
		return 0, nil
	}
	remote, err := c.source.QueryStrategies(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh strategies: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	merged := 0
	for _, s := range remote {
		if s.ID == "" {
			continue
		}
		if err := s.Validate(); err != nil {
			c.logger.Warn("skipping invalid remote strategy", zap.String("id", s.ID), zap.Error(err))
			continue
		}
		c.byID[s.ID] = s
		merged++
	}
	return merged, nil
}
