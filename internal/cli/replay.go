package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/recorder"
	"github.com/synheart/synheart-guard/internal/transport"
)

var (
	replayIn    string
	replaySpeed float64
	replayAll   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Score a recording offline",
	Long: `Feeds a recorded NDJSON session through a fresh in-memory engine and prints
the regulation score and warning transitions. Nothing is persisted or
synced, so the same recording always produces the same result.

Examples:
  synheart-guard replay --in spike.ndjson
  synheart-guard replay --in spike.ndjson --all --format json`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayIn, "in", "", "Input file to replay (required)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Playback speed multiplier (0 replays as fast as possible)")
	replayCmd.Flags().BoolVar(&replayAll, "all", false, "Print every sample, not only level changes")
	replayCmd.MarkFlagRequired("in")
}

// replayLine is one printed step of a replay.
type replayLine struct {
	Timestamp string              `json:"timestamp"`
	Score     int                 `json:"score"`
	Level     models.WarningLevel `json:"level"`
	Changed   bool                `json:"changed"`
}

// passiveDevice pairs immediately and never streams; samples are pushed
// through the engine directly.
type passiveDevice struct{}

func (passiveDevice) Handshake(context.Context, models.DeviceInfo) error { return nil }

func (passiveDevice) Stream(ctx context.Context, _ models.DeviceInfo, _ transport.EmitFunc) error {
	<-ctx.Done()
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Storage.Backend = "memory"
	cfg.Sink.Backend = "memory"
	cfg.Network.ProbeURL = ""
	cfg.Notify.KafkaBrokers = nil
	cfg.Device.ID = "replay"
	cfg.Device.Name = replayIn

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	speed := replaySpeed
	if speed <= 0 {
		speed = 1e9
	}
	rep := recorder.NewReplayer(replayIn, speed, false, logger.Named("replay"))
	count, err := rep.CountSamples()
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, logger, passiveDevice{})
	if err != nil {
		return err
	}
	defer a.Close()
	done := a.start(ctx)

	if err := a.connectConfigured(ctx); err != nil {
		return err
	}

	text := globalOpts.Format != "json"
	if text {
		fmt.Printf("▶️  Replay Session Started\n\n")
		fmt.Printf("File:         %s\n", replayIn)
		fmt.Printf("Samples:      %d\n", count)
		fmt.Printf("Thresholds:   notice<%d watch<%d alert<%d recovery>=%d\n\n",
			cfg.Warning.Notice, cfg.Warning.Watch, cfg.Warning.Alert, cfg.Warning.Recovery)
	}
	enc := json.NewEncoder(os.Stdout)

	level := models.Normal
	rejected := 0
	replayErr := rep.Replay(ctx, func(raw models.RawSample) {
		sample, err := a.engine.OnSample(ctx, raw)
		if err != nil {
			rejected++
			logger.Debug("sample rejected", zap.Error(err))
			return
		}
		st, err := a.engine.Status(ctx)
		if err != nil {
			return
		}
		line := replayLine{
			Timestamp: sample.Timestamp.Format("15:04:05"),
			Score:     st.RegulationScore,
			Level:     st.WarningLevel,
			Changed:   st.WarningLevel != level,
		}
		level = st.WarningLevel
		if !replayAll && !line.Changed {
			return
		}
		if !text {
			enc.Encode(line)
			return
		}
		mark := ""
		if line.Changed {
			mark = "  ← " + line.Level.String()
		}
		fmt.Printf("%s %s %s %3d%s\n", line.Timestamp, levelMarks[line.Level], renderScore(line.Score, 30), line.Score, mark)
	})
	if replayErr != nil && !errors.Is(replayErr, context.Canceled) {
		return fmt.Errorf("replay error: %w", replayErr)
	}

	transitions, err := a.engine.Transitions(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cancel()
	if err := waitEngine(done, 10*time.Second); err != nil {
		return err
	}

	if text {
		fmt.Printf("\nReplay complete: %d samples, %d rejected, %d transitions\n", count, rejected, len(transitions))
	}
	return nil
}
