package cli

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/synheart/synheart-guard/internal/scenario"
)

func getScenarioDir() string {
	// Try current directory first
	if _, err := os.Stat("scenarios"); err == nil {
		return "scenarios"
	}

	// Try relative to executable
	exe, err := os.Executable()
	if err == nil {
		dir := filepath.Join(filepath.Dir(exe), "scenarios")
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}

	return ""
}

// loadScenarios returns the built-in scenarios plus any found in dir. A
// file in dir replaces the built-in scenario of the same name.
func loadScenarios(dir string) (*scenario.Registry, error) {
	registry, err := scenario.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in scenarios: %w", err)
	}
	if dir == "" {
		return registry, nil
	}
	if err := registry.LoadFromDir(dir); err != nil {
		return nil, fmt.Errorf("failed to load scenarios from %s: %w", dir, err)
	}
	return registry, nil
}

func isPortAvailable(addr string) bool {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
