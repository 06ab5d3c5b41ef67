package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/recorder"
)

var (
	recordOut       string
	recordTransport string
	recordScenario  string
	recordDuration  time.Duration
	recordSeed      int64
	recordInterval  time.Duration
	recordDeviceID  string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record wearable samples to a file",
	Long: `Pairs with a wearable (the scenario simulator by default) and writes every
sample it streams to an NDJSON file for later replay.

Examples:
  synheart-guard record --out spike.ndjson --scenario stress_spike --interval 100ms
  synheart-guard record --out band.ndjson --transport websocket --device-id band-1 --duration 10m`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordOut, "out", "", "Output file (required)")
	recordCmd.Flags().StringVar(&recordTransport, "transport", "", "Device transport: simulator|websocket|mqtt|udp")
	recordCmd.Flags().StringVar(&recordScenario, "scenario", "", "Simulator scenario")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Stop after this long (0 runs until the stream ends)")
	recordCmd.Flags().Int64Var(&recordSeed, "seed", time.Now().UnixNano(), "Simulator random seed")
	recordCmd.Flags().DurationVar(&recordInterval, "interval", 0, "Simulator sample interval")
	recordCmd.Flags().StringVar(&recordDeviceID, "device-id", "recorder", "Device id used for pairing")
	recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if recordTransport != "" {
		cfg.Device.Transport = recordTransport
	}
	if recordScenario != "" {
		cfg.Device.Scenario = recordScenario
	}
	cfg.Device.Seed = recordSeed
	if recordInterval > 0 {
		cfg.Device.Interval = recordInterval
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	dev, err := openDevice(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if recordDuration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, recordDuration)
		defer stop()
	}

	info := models.DeviceInfo{ID: recordDeviceID, Name: recordDeviceID}
	hctx, hcancel := context.WithTimeout(ctx, cfg.Device.HandshakeTimeout)
	err = dev.Handshake(hctx, info)
	hcancel()
	if err != nil {
		return fmt.Errorf("failed to pair with %s: %w", info.ID, err)
	}

	rec, err := recorder.NewRecorder(recordOut)
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}

	fmt.Printf("📼 Recording Session Started\n\n")
	fmt.Printf("Transport:  %s\n", cfg.Device.Transport)
	if cfg.Device.Transport == "simulator" {
		fmt.Printf("Scenario:   %s\n", cfg.Device.Scenario)
	}
	fmt.Printf("Output:     %s\n\n", recordOut)

	samples := make(chan models.RawSample, 100)
	recorded := make(chan error, 1)
	go func() {
		recorded <- rec.RecordFromChannel(context.Background(), samples, func() {
			if n := rec.Count(); n%100 == 0 {
				fmt.Printf("\rRecorded %d samples...", n)
			}
		})
	}()

	streamErr := dev.Stream(ctx, info, func(raw models.RawSample) {
		select {
		case samples <- raw:
		case <-ctx.Done():
		}
	})
	close(samples)
	if err := <-recorded; err != nil {
		return err
	}
	if streamErr != nil && !errors.Is(streamErr, context.Canceled) && !errors.Is(streamErr, context.DeadlineExceeded) {
		return fmt.Errorf("stream error: %w", streamErr)
	}

	fmt.Printf("\n\n✅ Recording complete: %s (%d samples)\n", recordOut, rec.Count())
	return nil
}
