package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/config"
	"github.com/synheart/synheart-guard/internal/logging"
)

// GlobalOptions are shared flags that apply across commands.
type GlobalOptions struct {
	ConfigPath string
	Format     string // text or json
	LogLevel   string
	Quiet      bool
	Verbose    bool
}

var globalOpts = GlobalOptions{
	Format: "text",
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globalOpts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if globalOpts.LogLevel != "" {
		cfg.Logging.Level = globalOpts.LogLevel
	}
	if globalOpts.Verbose {
		cfg.Logging.Level = "debug"
	}
	if globalOpts.Quiet {
		cfg.Logging.Level = "error"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, "synheart-guard")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
