package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synheart/synheart-guard/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	states []models.NetworkState
}

func (r *recorder) record(s models.NetworkState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) get() []models.NetworkState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.NetworkState(nil), r.states...)
}

func TestMonitor_ProbeTransitions(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNoContent)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	rec := &recorder{}
	m := NewMonitor(srv.URL, time.Second, models.Offline, rec.record, nil)
	ctx := context.Background()

	assert.Equal(t, models.Online, m.Probe(ctx))
	assert.Equal(t, models.Online, m.Probe(ctx))

	status.Store(http.StatusBadGateway)
	assert.Equal(t, models.Offline, m.Probe(ctx))

	assert.Equal(t, []models.NetworkState{models.Online, models.Offline}, rec.get())
}

func TestMonitor_UnreachableIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	m := NewMonitor(url, time.Second, models.Online, nil, nil)
	assert.Equal(t, models.Offline, m.Probe(context.Background()))
	assert.Equal(t, models.Offline, m.State())
}

func TestMonitor_Override(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	rec := &recorder{}
	m := NewMonitor(srv.URL, time.Second, models.Online, rec.record, nil)

	m.Override(models.Offline)
	require.Equal(t, models.Offline, m.State())

	// probes do not leak through an override
	m.Probe(context.Background())
	assert.Equal(t, models.Offline, m.State())

	m.ClearOverride()
	assert.Equal(t, models.Online, m.State())
	assert.Equal(t, []models.NetworkState{models.Offline, models.Online}, rec.get())
}

func TestMonitor_RunWithoutURL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor("", time.Millisecond, models.Online, nil, nil)

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, models.Online, m.State())
}
