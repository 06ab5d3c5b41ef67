package models

import (
	"encoding/json"
	"time"
)

// HSI signal names carried by wearable event streams.
const (
	SignalHeartRate = "ppg.hr_bpm"
	SignalHRV       = "ppg.hrv_rmssd_ms"
	SignalStress    = "stress.level"
)

// SchemaVersion is the HSI envelope version this engine reads and writes.
const SchemaVersion = "hsi.input.v1"

// Event represents an HSI-compatible event envelope
type Event struct {
	SchemaVersion string `json:"schema_version"`
	EventID       string `json:"event_id"`
	Timestamp     string `json:"ts"`
	Source        Source `json:"source"`
	Signal        Signal `json:"signal"`
	Meta          Meta   `json:"meta"`
}

// Source represents the origin of the sensor data
type Source struct {
	Type string `json:"type"` // "wearable" or "phone"
	ID   string `json:"id"`
}

// Signal represents a single sensor measurement
type Signal struct {
	Name    string          `json:"name"`
	Unit    string          `json:"unit,omitempty"`
	Value   json.RawMessage `json:"value"`
	Quality float64         `json:"quality,omitempty"`
}

// Meta contains additional event metadata
type Meta struct {
	Sequence int64 `json:"sequence"`
}

// NewEvent creates an Event for one numeric signal stamped with ts.
func NewEvent(eventID string, source Source, name, unit string, value float64, sequence int64, ts time.Time) Event {
	raw, _ := json.Marshal(value)
	return Event{
		SchemaVersion: SchemaVersion,
		EventID:       eventID,
		Timestamp:     ts.UTC().Format(time.RFC3339Nano),
		Source:        source,
		Signal: Signal{
			Name:  name,
			Unit:  unit,
			Value: raw,
		},
		Meta: Meta{
			Sequence: sequence,
		},
	}
}

// Float returns the signal value when it is numeric.
func (s Signal) Float() (float64, bool) {
	var v float64
	if err := json.Unmarshal(s.Value, &v); err != nil {
		return 0, false
	}
	return v, true
}

// SampleEvents splits a sample into one HSI event per signal.
func SampleEvents(s BiometricSample, source Source, sequence int64, newID func() string) []Event {
	return []Event{
		NewEvent(newID(), source, SignalHeartRate, "bpm", float64(s.HeartRate), sequence, s.Timestamp),
		NewEvent(newID(), source, SignalHRV, "ms", float64(s.HRV), sequence, s.Timestamp),
		NewEvent(newID(), source, SignalStress, "", float64(s.StressLevel), sequence, s.Timestamp),
	}
}
