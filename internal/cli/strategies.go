package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/report"
	"github.com/synheart/synheart-guard/internal/strategy"
	"github.com/synheart/synheart-guard/internal/warning"
)

var (
	strategiesRemote bool

	addID          string
	addName        string
	addDescription string
	addCategory    string
	addRating      int
	addAPIAddr     string

	reportOut string
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "Coping strategy catalog and analytics",
}

var strategiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List coping strategies",
	RunE:  runStrategiesList,
}

var strategiesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a strategy to a running engine",
	Long: `Adds a strategy through the control API of a running engine.

Example:
  synheart-guard strategies add --name "Hum for a minute" --category breathing --rating 3`,
	RunE: runStrategiesAdd,
}

var strategiesReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export strategy effectiveness to Excel",
	Long: `Reads the local resolution history and writes a workbook with one sheet
summarizing each strategy and one listing every resolution.`,
	RunE: runStrategiesReport,
}

func init() {
	strategiesListCmd.Flags().BoolVar(&strategiesRemote, "remote", false, "Merge strategies from the configured sink")

	strategiesAddCmd.Flags().StringVar(&addID, "id", "", "Strategy id (generated when empty)")
	strategiesAddCmd.Flags().StringVar(&addName, "name", "", "Strategy name (required)")
	strategiesAddCmd.Flags().StringVar(&addDescription, "description", "", "Description")
	strategiesAddCmd.Flags().StringVar(&addCategory, "category", "", "Category (required)")
	strategiesAddCmd.Flags().IntVar(&addRating, "rating", 0, "Effectiveness rating 0-5")
	strategiesAddCmd.Flags().StringVar(&addAPIAddr, "api-addr", "", "Control API address")
	strategiesAddCmd.MarkFlagRequired("name")
	strategiesAddCmd.MarkFlagRequired("category")

	strategiesReportCmd.Flags().StringVar(&reportOut, "out", "strategy-effectiveness.xlsx", "Output workbook")

	strategiesCmd.AddCommand(strategiesListCmd)
	strategiesCmd.AddCommand(strategiesAddCmd)
	strategiesCmd.AddCommand(strategiesReportCmd)
}

func runStrategiesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a := &app{cfg: cfg, logger: logger}
	defer a.closeResources()

	var source strategy.Source
	if strategiesRemote {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		remote, _, err := a.openSink(ctx)
		if err != nil {
			return err
		}
		source = remote
	}

	catalog, err := strategy.NewCatalog(source, logger.Named("strategy"))
	if err != nil {
		return err
	}
	if _, err := catalog.Refresh(context.Background()); err != nil {
		return err
	}

	list := catalog.List()
	return printResult(os.Stdout, list, func() {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tRATING")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Category, s.EffectivenessRating)
		}
		w.Flush()
	})
}

func runStrategiesAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.API.Addr
	if addAPIAddr != "" {
		addr = addAPIAddr
	}

	s := models.Strategy{
		ID:                  addID,
		Name:                addName,
		Description:         addDescription,
		Category:            addCategory,
		EffectivenessRating: addRating,
	}
	if err := s.Validate(); err != nil {
		return err
	}

	var added models.Strategy
	var apiErr struct {
		Error string `json:"error"`
	}
	resp, err := resty.New().
		SetBaseURL("http://" + addr).
		SetTimeout(10 * time.Second).
		R().
		SetBody(s).
		SetResult(&added).
		SetError(&apiErr).
		Post("/v1/strategies")
	if err != nil {
		return fmt.Errorf("failed to reach engine at %s: %w", addr, err)
	}
	if resp.IsError() {
		return fmt.Errorf("engine rejected strategy: %s", apiErr.Error)
	}

	return printResult(os.Stdout, added, func() {
		fmt.Printf("✅ Added strategy %s (%s)\n", added.ID, added.Name)
	})
}

func runStrategiesReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	a := &app{cfg: cfg, logger: logger}
	defer a.closeResources()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	catalog, err := strategy.NewCatalog(nil, logger.Named("strategy"))
	if err != nil {
		return err
	}
	// read-only: nothing is resolved from here
	readOnly := strategy.ResolverFunc(func(context.Context, string, string) (models.WarningEvent, error) {
		return models.WarningEvent{}, warning.ErrNoOpenWarning
	})
	log, err := strategy.OpenLog(ctx, catalog, readOnly, store, nil, logger.Named("strategy"))
	if err != nil {
		return err
	}

	effectiveness := log.Effectiveness()
	if err := report.WriteEffectiveness(reportOut, effectiveness, log.Resolutions()); err != nil {
		return err
	}
	fmt.Printf("✅ Wrote %s (%d strategies, %d resolutions)\n", reportOut, len(effectiveness), len(log.Resolutions()))
	return nil
}
