package models

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestSampleEvents(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s := BiometricSample{HeartRate: 80, HRV: 45, StressLevel: 30, Timestamp: ts}

	n := 0
	newID := func() string { n++; return fmt.Sprintf("evt-%d", n) }
	events := SampleEvents(s, Source{Type: "wearable", ID: "band-1"}, 7, newID)

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	want := map[string]float64{SignalHeartRate: 80, SignalHRV: 45, SignalStress: 30}
	for _, e := range events {
		if e.SchemaVersion != SchemaVersion {
			t.Errorf("expected schema %s, got %s", SchemaVersion, e.SchemaVersion)
		}
		if e.Meta.Sequence != 7 {
			t.Errorf("expected sequence 7, got %d", e.Meta.Sequence)
		}
		if e.Timestamp != "2024-05-01T08:00:00Z" {
			t.Errorf("unexpected timestamp %s", e.Timestamp)
		}
		v, ok := e.Signal.Float()
		if !ok || v != want[e.Signal.Name] {
			t.Errorf("signal %s: expected %v, got %v (%v)", e.Signal.Name, want[e.Signal.Name], v, ok)
		}
	}
	if events[2].EventID != "evt-3" {
		t.Errorf("expected ids from newID, got %s", events[2].EventID)
	}
}

func TestSignalFloatRejectsNonNumeric(t *testing.T) {
	var e Event
	data := `{"schema_version":"hsi.input.v1","event_id":"x","ts":"2024-05-01T08:00:00Z","source":{"type":"phone","id":"p"},"signal":{"name":"screen.state","value":"on"},"meta":{"sequence":1}}`
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if _, ok := e.Signal.Float(); ok {
		t.Error("expected string value to be rejected")
	}
}
