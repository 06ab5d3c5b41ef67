package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/synheart/synheart-guard/internal/scenario"
)

var describeCmd = &cobra.Command{
	Use:   "describe <scenario>",
	Short: "Describe a scenario in detail",
	Long:  `Shows detailed information about a scenario including signals, phases, and modifiers.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	registry, err := scenarioRegistry()
	if err != nil {
		return err
	}

	scen, err := registry.Get(args[0])
	if err != nil {
		return fmt.Errorf("scenario not found: %w", err)
	}

	return printResult(os.Stdout, scen, func() { describeScenario(scen) })
}

func describeScenario(scen *scenario.Scenario) {
	fmt.Printf("Scenario: %s\n", scen.Name)
	fmt.Printf("Description: %s\n", scen.Description)
	fmt.Printf("Duration: %s\n", scen.Duration)
	fmt.Printf("Interval: %s\n\n", scen.SampleInterval(0))

	fmt.Println("Signals:")
	for _, name := range scenario.Signals {
		config, ok := scen.Signals[name]
		if !ok {
			continue
		}
		fmt.Printf("  %s\n", name)
		fmt.Printf("    Baseline: %v\n", config.Baseline)
		if config.Noise != 0 {
			fmt.Printf("    Noise: %v\n", config.Noise)
		}
	}

	if len(scen.Phases) > 0 {
		fmt.Println("\nPhases:")
		for i, phase := range scen.Phases {
			fmt.Printf("  %d. %s (duration: %s)\n", i+1, phase.Name, phase.Duration)
			if len(phase.Overrides) == 0 {
				continue
			}
			fmt.Println("     Overrides:")
			for _, signal := range scenario.Signals {
				override, ok := phase.Overrides[signal]
				if !ok {
					continue
				}
				fmt.Printf("       %s:", signal)
				if override.Add != 0 {
					fmt.Printf(" add=%.1f", override.Add)
				}
				if override.Multiply != 0 {
					fmt.Printf(" multiply=%.2f", override.Multiply)
				}
				if override.Ramp != "" {
					fmt.Printf(" ramp=%s", override.Ramp)
				}
				if override.Baseline != 0 {
					fmt.Printf(" baseline=%v", override.Baseline)
				}
				if override.Noise != 0 {
					fmt.Printf(" noise=%v", override.Noise)
				}
				fmt.Println()
			}
		}
	}

	fmt.Println()
}
