package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/synheart/synheart-guard/internal/models"
)

var syncTimeout time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload queued offline samples",
	Long: `Opens the local offline queue and uploads it to the configured sink in one
all-or-nothing batch. The queue is left untouched when the upload fails.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", time.Minute, "Give up after this long")
}

type syncOutput struct {
	Synced    int    `json:"synced"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Network.ProbeURL = ""
	cfg.Sync.RetryInterval = 0

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, logger, passiveDevice{})
	if err != nil {
		return err
	}
	defer a.Close()
	done := a.start(ctx)

	sctx, scancel := context.WithTimeout(ctx, syncTimeout)
	defer scancel()
	if err := a.engine.SetNetwork(sctx, models.Online); err != nil {
		return err
	}
	res, err := a.engine.Sync(sctx)
	if err != nil {
		return fmt.Errorf("sync did not finish: %w", err)
	}

	cancel()
	if err := waitEngine(done, 10*time.Second); err != nil {
		return err
	}

	out := syncOutput{Synced: res.Count, Remaining: res.Remaining}
	if res.Err != nil {
		out.Synced = 0
		out.Error = res.Err.Error()
	}
	if err := printResult(os.Stdout, out, func() {
		if res.Err != nil {
			fmt.Printf("❌ Sync failed, %d samples still queued: %v\n", res.Remaining, res.Err)
			return
		}
		fmt.Printf("✅ Synced %d samples, %d remaining\n", res.Count, res.Remaining)
	}); err != nil {
		return err
	}
	if res.Err != nil {
		return fmt.Errorf("sync failed")
	}
	return nil
}
