// Package api serves the local control surface: engine status, device and
// network control, warning resolution, strategies, sample push, metrics and
// live notification streams.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/engine"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/offline"
	"github.com/synheart/synheart-guard/internal/strategy"
	"github.com/synheart/synheart-guard/internal/warning"
)

// Engine is the part of *engine.Engine the API drives.
type Engine interface {
	Status(ctx context.Context) (engine.Status, error)
	Connect(ctx context.Context, info models.DeviceInfo) error
	Disconnect(ctx context.Context) error
	SetNetwork(ctx context.Context, state models.NetworkState) error
	Sync(ctx context.Context) (offline.Result, error)
	ActiveWarning(ctx context.Context) (models.WarningEvent, bool, error)
	Window(ctx context.Context) ([]models.BiometricSample, error)
	Transitions(ctx context.Context) ([]warning.Transition, error)
	Thresholds() warning.Thresholds
	RecordResolution(ctx context.Context, eventID, strategyID string) (models.Resolution, error)
	OnSample(ctx context.Context, raw models.RawSample) (models.BiometricSample, error)
}

// Config holds the API server configuration
type Config struct {
	Addr string
	// Token, when set, is required as a bearer token on sample pushes.
	Token      string
	AcceptGzip bool
}

// Server is the HTTP control server
type Server struct {
	config     Config
	engine     Engine
	catalog    *strategy.Catalog
	log        *strategy.Log
	metrics    http.Handler
	ws         http.Handler
	sse        http.Handler
	idempotent *IdempotencyStore
	logger     *zap.Logger
	server     *http.Server
	mu         sync.RWMutex
	stats      Stats
}

// Stats holds sample push statistics
type Stats struct {
	TotalReceived   int `json:"total_received"`
	TotalDuplicates int `json:"total_duplicates"`
	TotalErrors     int `json:"total_errors"`
}

// Option configures optional endpoints.
type Option func(*Server)

// WithMetrics mounts a Prometheus handler at /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithWebSocket mounts a notification stream at /ws.
func WithWebSocket(h http.Handler) Option { return func(s *Server) { s.ws = h } }

// WithSSE mounts a notification stream at /events.
func WithSSE(h http.Handler) Option { return func(s *Server) { s.sse = h } }

// NewServer creates a new API server
func NewServer(config Config, eng Engine, catalog *strategy.Catalog, log *strategy.Log, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:     config,
		engine:     eng,
		catalog:    catalog,
		log:        log,
		idempotent: NewIdempotencyStore(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/device/connect", s.handleConnect).Methods(http.MethodPost)
	v1.HandleFunc("/device/disconnect", s.handleDisconnect).Methods(http.MethodPost)
	v1.HandleFunc("/network", s.handleNetwork).Methods(http.MethodPut)
	v1.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)
	v1.HandleFunc("/samples", s.handleSamples).Methods(http.MethodPost)
	v1.HandleFunc("/window", s.handleWindow).Methods(http.MethodGet)
	v1.HandleFunc("/warning", s.handleActiveWarning).Methods(http.MethodGet)
	v1.HandleFunc("/warning/resolve", s.handleResolve).Methods(http.MethodPost)
	v1.HandleFunc("/warning/transitions", s.handleTransitions).Methods(http.MethodGet)
	v1.HandleFunc("/warning/thresholds", s.handleThresholds).Methods(http.MethodGet)
	v1.HandleFunc("/strategies", s.handleListStrategies).Methods(http.MethodGet)
	v1.HandleFunc("/strategies", s.handleAddStrategy).Methods(http.MethodPost)
	v1.HandleFunc("/strategies/effectiveness", s.handleEffectiveness).Methods(http.MethodGet)
	v1.HandleFunc("/strategies/{id}", s.handleGetStrategy).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}
	if s.sse != nil {
		r.Handle("/events", s.sse).Methods(http.MethodGet)
	}
	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams stay open
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server failed: %w", err)
		}
		close(errCh)
	}()
	s.logger.Info("api listening", zap.String("addr", s.config.Addr))

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the server address
func (s *Server) GetAddress() string {
	return "http://" + s.config.Addr
}

// GetStats returns sample push statistics
func (s *Server) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// IdempotencyStore tracks processed push ids
type IdempotencyStore struct {
	seen map[string]time.Time
	mu   sync.RWMutex
}

// NewIdempotencyStore creates a new idempotency store
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		seen: make(map[string]time.Time),
	}
}

// Exists checks if an ID has been processed
func (s *IdempotencyStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[id]
	return exists
}

// Mark records an ID as processed
func (s *IdempotencyStore) Mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = time.Now()
}
