package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/engine"
	"github.com/synheart/synheart-guard/internal/ingest"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/offline"
	"github.com/synheart/synheart-guard/internal/storage"
	"github.com/synheart/synheart-guard/internal/strategy"
	"github.com/synheart/synheart-guard/internal/warning"
)

// fakeEngine records calls and validates samples with the real validator.
type fakeEngine struct {
	connected *models.DeviceInfo
	network   models.NetworkState
	samples   []models.BiometricSample
	open      *models.WarningEvent
	syncErr   error
	validator *ingest.Validator
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{validator: ingest.NewValidator(ingest.PolicyDrop)}
}

func (f *fakeEngine) Status(context.Context) (engine.Status, error) {
	return engine.Status{
		ConnectionState: models.Connected,
		Device:          f.connected,
		NetworkState:    f.network,
		RegulationScore: 100,
		WindowLength:    len(f.samples),
	}, nil
}

func (f *fakeEngine) Connect(_ context.Context, info models.DeviceInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	f.connected = &info
	return nil
}

func (f *fakeEngine) Disconnect(context.Context) error {
	f.connected = nil
	return nil
}

func (f *fakeEngine) SetNetwork(_ context.Context, s models.NetworkState) error {
	f.network = s
	return nil
}

func (f *fakeEngine) Sync(context.Context) (offline.Result, error) {
	if f.syncErr != nil {
		return offline.Result{Count: 2, Remaining: 2, Err: f.syncErr, RetryIn: 30 * time.Second}, nil
	}
	return offline.Result{Count: len(f.samples)}, nil
}

func (f *fakeEngine) ActiveWarning(context.Context) (models.WarningEvent, bool, error) {
	if f.open == nil {
		return models.WarningEvent{}, false, nil
	}
	return *f.open, true, nil
}

func (f *fakeEngine) Window(context.Context) ([]models.BiometricSample, error) {
	return f.samples, nil
}

func (f *fakeEngine) Transitions(context.Context) ([]warning.Transition, error) {
	return []warning.Transition{{From: models.Normal, To: models.Notice, Score: 65}}, nil
}

func (f *fakeEngine) Thresholds() warning.Thresholds { return warning.DefaultThresholds() }

func (f *fakeEngine) RecordResolution(_ context.Context, eventID, strategyID string) (models.Resolution, error) {
	if f.open == nil {
		return models.Resolution{}, warning.ErrNoOpenWarning
	}
	if eventID != "" && eventID != f.open.ID {
		return models.Resolution{}, engine.ErrEventMismatch
	}
	res := models.Resolution{WarningEventID: f.open.ID, StrategyID: strategyID, WarningLevel: f.open.WarningLevel}
	f.open = nil
	return res, nil
}

func (f *fakeEngine) OnSample(_ context.Context, raw models.RawSample) (models.BiometricSample, error) {
	s, _, err := f.validator.Validate(raw, time.Now())
	if err != nil {
		return models.BiometricSample{}, err
	}
	f.samples = append(f.samples, s)
	return s, nil
}

func newTestServer(t *testing.T, cfg Config) (*Server, *fakeEngine) {
	t.Helper()
	eng := newFakeEngine()
	catalog, err := strategy.NewCatalog(nil, zap.NewNop())
	require.NoError(t, err)
	resolver := strategy.ResolverFunc(func(context.Context, string, string) (models.WarningEvent, error) {
		return models.WarningEvent{}, warning.ErrNoOpenWarning
	})
	log, err := strategy.OpenLog(context.Background(), catalog, resolver, storage.NewMemoryStore(), nil, zap.NewNop())
	require.NoError(t, err)
	return NewServer(cfg, eng, catalog, log, zap.NewNop()), eng
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rr := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok"`)
}

func TestServer_ConnectAndStatus(t *testing.T) {
	s, eng := newTestServer(t, Config{})

	rr := do(t, s, http.MethodPost, "/v1/device/connect", models.DeviceInfo{ID: "band-1", Name: "Band"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotNil(t, eng.connected)

	rr = do(t, s, http.MethodPost, "/v1/device/connect", models.DeviceInfo{ID: "band-2"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "connected", st["connection_state"])

	rr = do(t, s, http.MethodPost, "/v1/device/disconnect", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, eng.connected)
}

func TestServer_Network(t *testing.T) {
	s, eng := newTestServer(t, Config{})

	rr := do(t, s, http.MethodPut, "/v1/network", networkRequest{State: "offline"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.Offline, eng.network)

	rr = do(t, s, http.MethodPut, "/v1/network", networkRequest{State: "sideways"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_SyncFailure(t *testing.T) {
	s, eng := newTestServer(t, Config{})
	eng.syncErr = assert.AnError

	rr := do(t, s, http.MethodPost, "/v1/sync", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "30s")
}

func TestServer_PushSamples(t *testing.T) {
	s, eng := newTestServer(t, Config{Token: "secret"})

	body := `{"heart_rate":72,"hrv":48,"stress_level":30}
{"heart_rate":400,"hrv":48,"stress_level":30}
{"hrv":48,"stress_level":30}`

	req := httptest.NewRequest(http.MethodPost, "/v1/samples", strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/samples", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Idempotency-Key", "batch-1")
	rr = httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp pushResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 2, resp.Rejected)
	assert.Equal(t, 1, resp.Reasons["out_of_range"])
	assert.Equal(t, 1, resp.Reasons["missing_field"])
	assert.Len(t, eng.samples, 1)

	req = httptest.NewRequest(http.MethodPost, "/v1/samples", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Idempotency-Key", "batch-1")
	rr = httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"duplicate":true`)
	assert.Len(t, eng.samples, 1)

	stats := s.GetStats()
	assert.Equal(t, 1, stats.TotalReceived)
	assert.Equal(t, 1, stats.TotalDuplicates)
	assert.Equal(t, 1, stats.TotalErrors)
}

func TestServer_PushGzipEvents(t *testing.T) {
	s, eng := newTestServer(t, Config{AcceptGzip: true})

	sample := models.BiometricSample{HeartRate: 90, HRV: 35, StressLevel: 62, Timestamp: time.Now().UTC()}
	events := models.SampleEvents(sample, models.Source{Type: "wearable", ID: "band-1"}, 1, func() string { return "e" })
	data, err := json.Marshal(events)
	require.NoError(t, err)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err = gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/samples", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, eng.samples, 1)
	assert.Equal(t, 62, eng.samples[0].StressLevel)
}

func TestServer_ResolveWarning(t *testing.T) {
	s, eng := newTestServer(t, Config{})

	rr := do(t, s, http.MethodGet, "/v1/warning", nil)
	assert.Contains(t, rr.Body.String(), `"active":false`)

	rr = do(t, s, http.MethodPost, "/v1/warning/resolve", resolveRequest{StrategyID: "box-breathing"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	eng.open = &models.WarningEvent{ID: "ev-1", WarningLevel: models.Watch}
	rr = do(t, s, http.MethodPost, "/v1/warning/resolve", resolveRequest{EventID: "ev-2", StrategyID: "box-breathing"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, s, http.MethodPost, "/v1/warning/resolve", resolveRequest{EventID: "ev-1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s, http.MethodPost, "/v1/warning/resolve", resolveRequest{EventID: "ev-1", StrategyID: "box-breathing"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"warning_event_id":"ev-1"`)
}

func TestServer_Strategies(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rr := do(t, s, http.MethodGet, "/v1/strategies", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Strategies []models.Strategy `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.NotEmpty(t, list.Strategies)
	seeded := len(list.Strategies)

	rr = do(t, s, http.MethodPost, "/v1/strategies", models.Strategy{
		ID: "humming", Name: "Humming", Category: "physical", EffectivenessRating: 3,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, s, http.MethodPost, "/v1/strategies", models.Strategy{
		ID: "humming", Name: "Humming", Category: "physical", EffectivenessRating: 3,
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, s, http.MethodGet, "/v1/strategies/humming", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, s, http.MethodGet, "/v1/strategies/absent", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s, http.MethodGet, "/v1/strategies", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Strategies, seeded+1)

	rr = do(t, s, http.MethodGet, "/v1/strategies?category=physical", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	for _, st := range list.Strategies {
		assert.Equal(t, "physical", st.Category)
	}

	rr = do(t, s, http.MethodGet, "/v1/strategies/effectiveness", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_OptionalRoutes(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rr := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	called := false
	s = NewServer(Config{}, newFakeEngine(), s.catalog, s.log, nil, WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))
	do(t, s, http.MethodGet, "/metrics", nil)
	assert.True(t, called)
}
