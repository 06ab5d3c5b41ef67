package ingest

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/synheart/synheart-guard/internal/models"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrOutOfRange   = errors.New("value out of range")
	ErrBadTimestamp = errors.New("unparsable timestamp")
	ErrNotActive    = errors.New("ingestor is not active")
)

// Policy decides what happens to out-of-range values.
type Policy string

const (
	PolicyClip Policy = "clip"
	PolicyDrop Policy = "drop"
)

// ParsePolicy validates a policy name.
func ParsePolicy(v string) (Policy, error) {
	switch Policy(strings.ToLower(v)) {
	case PolicyClip:
		return PolicyClip, nil
	case PolicyDrop:
		return PolicyDrop, nil
	}
	return "", fmt.Errorf("unknown validation policy %q (want clip or drop)", v)
}

// Bounds is an inclusive numeric range.
type Bounds struct {
	Min float64
	Max float64
}

// Default physiological bounds.
var (
	HeartRateBounds = Bounds{Min: 20, Max: 250}
	HRVBounds       = Bounds{Min: 0, Max: 300}
	StressBounds    = Bounds{Min: 0, Max: 100}
)

// Validator turns raw transport samples into validated ones.
type Validator struct {
	Policy    Policy
	HeartRate Bounds
	HRV       Bounds
	Stress    Bounds
}

// NewValidator returns a validator with the default bounds.
func NewValidator(policy Policy) *Validator {
	if policy == "" {
		policy = PolicyClip
	}
	return &Validator{
		Policy:    policy,
		HeartRate: HeartRateBounds,
		HRV:       HRVBounds,
		Stress:    StressBounds,
	}
}

// Validate checks raw and reports whether any field had to be clipped.
// A sample without a timestamp is stamped with arrival.
func (v *Validator) Validate(raw models.RawSample, arrival time.Time) (models.BiometricSample, bool, error) {
	var sample models.BiometricSample
	clipped := false

	fields := []struct {
		name   string
		value  *float64
		bounds Bounds
		dst    *int
	}{
		{"heart_rate", raw.HeartRate, v.HeartRate, &sample.HeartRate},
		{"hrv", raw.HRV, v.HRV, &sample.HRV},
		{"stress_level", raw.StressLevel, v.Stress, &sample.StressLevel},
	}
	for _, f := range fields {
		if f.value == nil || math.IsNaN(*f.value) || math.IsInf(*f.value, 0) {
			return models.BiometricSample{}, false, fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
		val := *f.value
		if val < f.bounds.Min || val > f.bounds.Max {
			if v.Policy == PolicyDrop {
				return models.BiometricSample{}, false, fmt.Errorf("%w: %s=%v not in [%v, %v]",
					ErrOutOfRange, f.name, val, f.bounds.Min, f.bounds.Max)
			}
			val = math.Max(f.bounds.Min, math.Min(f.bounds.Max, val))
			clipped = true
		}
		*f.dst = int(math.Round(val))
	}

	if raw.Timestamp == "" {
		sample.Timestamp = arrival.UTC()
		return sample, clipped, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
	if err != nil {
		return models.BiometricSample{}, false, fmt.Errorf("%w: %q", ErrBadTimestamp, raw.Timestamp)
	}
	sample.Timestamp = ts.UTC()
	return sample, clipped, nil
}
