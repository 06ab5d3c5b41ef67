package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/transport"
)

// Replayer plays a recording back as a wearable. Lines may be raw samples
// or HSI signal events; gaps between timestamps are reproduced, scaled by
// Speed.
type Replayer struct {
	filename string
	speed    float64
	loop     bool
	logger   *zap.Logger

	sampleCount int
	firstSample *models.RawSample
	loaded      bool
}

// stamp reads whichever timestamp field a line carries
type stamp struct {
	Timestamp string `json:"timestamp"`
	TS        string `json:"ts"`
}

// NewReplayer creates a new replayer. A non-positive speed means 1.
func NewReplayer(filename string, speed float64, loop bool, logger *zap.Logger) *Replayer {
	if speed <= 0 {
		speed = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{
		filename: filename,
		speed:    speed,
		loop:     loop,
		logger:   logger,
	}
}

// loadMetadata reads the file once to cache the sample count
func (r *Replayer) loadMetadata() error {
	if r.loaded {
		return nil
	}

	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	var asm transport.Assembler
	scanner := bufio.NewScanner(file)
	r.sampleCount = 0
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		raw, ok, err := asm.Feed(scanner.Bytes())
		if err != nil {
			return fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		if !ok {
			continue
		}
		r.sampleCount++
		if r.firstSample == nil {
			first := raw
			r.firstSample = &first
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	r.loaded = true
	return nil
}

// Handshake implements transport.Device. Pairing succeeds when the
// recording can be read.
func (r *Replayer) Handshake(ctx context.Context, info models.DeviceInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.loadMetadata(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrPairingRejected, err)
	}
	return nil
}

// Stream implements transport.Device.
func (r *Replayer) Stream(ctx context.Context, info models.DeviceInfo, emit transport.EmitFunc) error {
	r.logger.Info("replay started",
		zap.String("device_id", info.ID),
		zap.String("file", r.filename),
		zap.Float64("speed", r.speed),
	)
	return r.Replay(ctx, emit)
}

// Replay emits every sample in the recording with its original timing.
func (r *Replayer) Replay(ctx context.Context, emit transport.EmitFunc) error {
	for {
		if err := r.replayOnce(ctx, emit); err != nil {
			return err
		}

		if !r.loop {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

func (r *Replayer) replayOnce(ctx context.Context, emit transport.EmitFunc) error {
	file, err := os.Open(r.filename)
	if err != nil {
		return fmt.Errorf("failed to open recording file: %w", err)
	}
	defer file.Close()

	var asm transport.Assembler
	scanner := bufio.NewScanner(file)
	var last time.Time
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		var st stamp
		if err := json.Unmarshal(line, &st); err != nil {
			return fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		ts := st.Timestamp
		if ts == "" {
			ts = st.TS
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			if !last.IsZero() {
				if err := r.wait(ctx, t.Sub(last)); err != nil {
					return err
				}
			}
			last = t
		}

		raw, ok, err := asm.Feed(line)
		if err != nil {
			return fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(raw)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	return nil
}

func (r *Replayer) wait(ctx context.Context, delay time.Duration) error {
	delay = time.Duration(float64(delay) / r.speed)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CountSamples returns the number of complete samples in the recording
func (r *Replayer) CountSamples() (int, error) {
	if err := r.loadMetadata(); err != nil {
		return 0, err
	}
	return r.sampleCount, nil
}

// FirstSample returns the first complete sample in the recording
func (r *Replayer) FirstSample() (models.RawSample, error) {
	if err := r.loadMetadata(); err != nil {
		return models.RawSample{}, err
	}
	if r.firstSample == nil {
		return models.RawSample{}, fmt.Errorf("recording file is empty")
	}
	return *r.firstSample, nil
}
