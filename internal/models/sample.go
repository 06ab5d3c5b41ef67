package models

import "time"

// BiometricSample is a single validated physiological reading from the wearable.
type BiometricSample struct {
	HeartRate   int       `json:"heart_rate"`   // bpm
	HRV         int       `json:"hrv"`          // RMSSD, ms
	StressLevel int       `json:"stress_level"` // 0-100
	Timestamp   time.Time `json:"timestamp"`
}

// RawSample is a sample as delivered by a transport, before validation.
// Numeric fields are pointers so a missing field can be told apart from a zero.
type RawSample struct {
	HeartRate   *float64 `json:"heart_rate,omitempty"`
	HRV         *float64 `json:"hrv,omitempty"`
	StressLevel *float64 `json:"stress_level,omitempty"`
	Timestamp   string   `json:"timestamp,omitempty"`
}

// NewRawSample builds a RawSample from plain values, stamped with ts.
func NewRawSample(heartRate, hrv, stress float64, ts time.Time) RawSample {
	raw := RawSample{
		HeartRate:   &heartRate,
		HRV:         &hrv,
		StressLevel: &stress,
	}
	if !ts.IsZero() {
		raw.Timestamp = ts.UTC().Format(time.RFC3339Nano)
	}
	return raw
}

// Raw converts a validated sample back to its transport form.
func (s BiometricSample) Raw() RawSample {
	return NewRawSample(float64(s.HeartRate), float64(s.HRV), float64(s.StressLevel), s.Timestamp)
}

// SensorSnapshot is the context captured when a warning opens.
type SensorSnapshot struct {
	Samples         []BiometricSample `json:"samples"`
	DeviceID        string            `json:"device_id,omitempty"`
	ConnectionState ConnectionState   `json:"connection_state"`
	NetworkState    NetworkState      `json:"network_state"`
	CapturedAt      time.Time         `json:"captured_at"`
}
