package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/synheart/synheart-guard/internal/scenario"
)

var scenariosDir string

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "Simulator scenarios",
}

var listScenariosCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scenarios",
	Long:  `Lists all built-in scenarios, plus any in ./scenarios, with their descriptions.`,
	RunE:  runListScenarios,
}

func init() {
	scenariosCmd.PersistentFlags().StringVar(&scenariosDir, "dir", "", "Extra scenario directory")
	scenariosCmd.AddCommand(listScenariosCmd)
	scenariosCmd.AddCommand(describeCmd)
}

func scenarioRegistry() (*scenario.Registry, error) {
	dir := scenariosDir
	if dir == "" {
		dir = getScenarioDir()
	}
	return loadScenarios(dir)
}

func runListScenarios(cmd *cobra.Command, args []string) error {
	registry, err := scenarioRegistry()
	if err != nil {
		return err
	}

	scenarios := registry.ListWithDescriptions()
	if len(scenarios) == 0 {
		fmt.Println("No scenarios found")
		return nil
	}

	// Sort by name
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	return printResult(os.Stdout, scenarios, func() {
		fmt.Println("Available scenarios:")
		fmt.Println()
		for _, name := range names {
			fmt.Printf("  %-20s %s\n", name, scenarios[name])
		}
		fmt.Println()
	})
}
