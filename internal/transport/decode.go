package transport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/synheart/synheart-guard/internal/models"
)

// Assembler turns wire messages into raw samples. A message is either a
// sample object or a single HSI signal event; events are combined until
// heart rate, HRV and stress have all been seen.
type Assembler struct {
	pending models.RawSample
}

// envelope detects the message shape without decoding it twice
type envelope struct {
	Signal *json.RawMessage `json:"signal"`
}

// Feed decodes one message. It returns ok when a sample is complete.
func (a *Assembler) Feed(data []byte) (models.RawSample, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return models.RawSample{}, false, nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.RawSample{}, false, fmt.Errorf("failed to decode message: %w", err)
	}

	if env.Signal == nil {
		var raw models.RawSample
		if err := json.Unmarshal(data, &raw); err != nil {
			return models.RawSample{}, false, fmt.Errorf("failed to decode sample: %w", err)
		}
		return raw, true, nil
	}

	var event models.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return models.RawSample{}, false, fmt.Errorf("failed to decode event: %w", err)
	}
	return a.feedEvent(event)
}

func (a *Assembler) feedEvent(event models.Event) (models.RawSample, bool, error) {
	v, ok := event.Signal.Float()
	if !ok {
		return models.RawSample{}, false, nil
	}

	switch event.Signal.Name {
	case models.SignalHeartRate:
		a.pending.HeartRate = &v
	case models.SignalHRV:
		a.pending.HRV = &v
	case models.SignalStress:
		a.pending.StressLevel = &v
	default:
		// other HSI signals are not scored
		return models.RawSample{}, false, nil
	}
	a.pending.Timestamp = event.Timestamp

	if a.pending.HeartRate == nil || a.pending.HRV == nil || a.pending.StressLevel == nil {
		return models.RawSample{}, false, nil
	}
	sample := a.pending
	a.pending = models.RawSample{}
	return sample, true, nil
}
