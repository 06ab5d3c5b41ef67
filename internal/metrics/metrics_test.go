package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExposed(t *testing.T) {
	m := New()
	m.SamplesIngested.Inc()
	m.SyncAttempts.WithLabelValues("success").Inc()
	m.RegulationScore.Set(64)

	if got := testutil.ToFloat64(m.SamplesIngested); got != 1 {
		t.Errorf("expected 1 ingested sample, got %v", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, name := range []string{
		"synheart_guard_samples_ingested_total 1",
		`synheart_guard_sync_attempts_total{result="success"} 1`,
		"synheart_guard_regulation_score 64",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %q in exposition output", name)
		}
	}
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	// two instances must not collide on registration
	a := New()
	b := New()
	a.SamplesIngested.Inc()
	if got := testutil.ToFloat64(b.SamplesIngested); got != 0 {
		t.Errorf("expected independent registries, got %v", got)
	}
}
