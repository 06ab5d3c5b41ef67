package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/recorder"
	"github.com/synheart/synheart-guard/internal/transport"
)

var (
	runTransport  string
	runScenario   string
	runSeed       int64
	runInterval   time.Duration
	runDeviceID   string
	runAPIAddr    string
	runNoAPI      bool
	runReplayPath string
	runSpeed      float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the early-warning engine",
	Long: `Starts the engine, pairs with the configured wearable and serves the local
control API with live notifications on /ws and /events.

Examples:
  synheart-guard run --device-id band-1
  synheart-guard run --transport websocket --config guard.yaml
  synheart-guard run --device-id band-1 --replay session.ndjson --speed 10`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTransport, "transport", "", "Device transport: simulator|websocket|mqtt|udp")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "Simulator scenario")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "Simulator random seed")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0, "Simulator sample interval")
	runCmd.Flags().StringVar(&runDeviceID, "device-id", "", "Device to pair with at startup")
	runCmd.Flags().StringVar(&runAPIAddr, "api-addr", "", "Control API address")
	runCmd.Flags().BoolVar(&runNoAPI, "no-api", false, "Do not serve the control API")
	runCmd.Flags().StringVar(&runReplayPath, "replay", "", "Use a recording as the wearable")
	runCmd.Flags().Float64Var(&runSpeed, "speed", 1.0, "Replay speed multiplier")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runTransport != "" {
		cfg.Device.Transport = runTransport
	}
	if runScenario != "" {
		cfg.Device.Scenario = runScenario
	}
	if cmd.Flags().Changed("seed") {
		cfg.Device.Seed = runSeed
	}
	if runInterval > 0 {
		cfg.Device.Interval = runInterval
	}
	if runDeviceID != "" {
		cfg.Device.ID = runDeviceID
	}
	if runAPIAddr != "" {
		cfg.API.Addr = runAPIAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	var dev transport.Device
	source := cfg.Device.Transport
	if runReplayPath != "" {
		dev = recorder.NewReplayer(runReplayPath, runSpeed, false, logger.Named("replay"))
		source = "replay " + runReplayPath
	}

	a, err := newApp(ctx, cfg, logger, dev)
	if err != nil {
		return err
	}
	defer a.Close()

	done := a.start(ctx)

	fmt.Printf("🚀 Synheart Guard Started\n\n")
	fmt.Printf("Device:       %s\n", deviceLabel(cfg.Device.ID))
	fmt.Printf("Transport:    %s\n", source)
	fmt.Printf("Storage:      %s\n", cfg.Storage.Backend)
	fmt.Printf("Sink:         %s\n", cfg.Sink.Backend)
	fmt.Printf("Network:      %s\n", cfg.InitialNetwork())

	if !runNoAPI && cfg.API.Enabled {
		srv := a.apiServer()
		fmt.Printf("API:          %s\n", srv.GetAddress())
		fmt.Printf("WebSocket:    ws://%s/ws\n", cfg.API.Addr)
		fmt.Printf("SSE:          %s/events\n", srv.GetAddress())
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("api server stopped", zap.Error(err))
				cancel()
			}
		}()
	}
	fmt.Println()

	if err := a.connectConfigured(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("failed to connect device", zap.String("device_id", cfg.Device.ID), zap.Error(err))
	}

	fmt.Println("Press Ctrl+C to stop")
	<-ctx.Done()

	if err := waitEngine(done, 10*time.Second); err != nil {
		return err
	}

	fmt.Println("\nShutdown complete")
	return nil
}

func deviceLabel(id string) string {
	if id == "" {
		return "(none, connect via API)"
	}
	return id
}
