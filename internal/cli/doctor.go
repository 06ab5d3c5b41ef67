package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/storage"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and connectivity",
	Long:  `Validates the configuration, checks local storage, the remote sink and the API port, and prints connection examples.`,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("🏥 Synheart Guard Environment Check")

	fmt.Printf("Go Version:        %s\n", runtime.Version())
	fmt.Printf("OS/Arch:           %s/%s\n\n", runtime.GOOS, runtime.GOARCH)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("❌ Configuration invalid: %v\n", err)
		return err
	}
	fmt.Printf("✅ Configuration valid (transport %s, storage %s, sink %s)\n", cfg.Device.Transport, cfg.Storage.Backend, cfg.Sink.Backend)

	registry, err := loadScenarios(getScenarioDir())
	if err != nil {
		fmt.Printf("❌ Scenarios: %v\n", err)
	} else {
		fmt.Printf("✅ Found %d scenarios: %v\n", len(registry.List()), registry.List())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &app{cfg: cfg, logger: zap.NewNop()}
	defer a.closeResources()

	store, err := a.openStore(ctx)
	if err != nil {
		fmt.Printf("❌ Storage (%s): %v\n", cfg.Storage.Backend, err)
	} else if err := checkStore(ctx, store); err != nil {
		fmt.Printf("❌ Storage (%s) not writable: %v\n", cfg.Storage.Backend, err)
	} else {
		fmt.Printf("✅ Storage (%s) writable\n", cfg.Storage.Backend)
	}

	if _, _, err := a.openSink(ctx); err != nil {
		fmt.Printf("❌ Sink (%s): %v\n", cfg.Sink.Backend, err)
	} else {
		fmt.Printf("✅ Sink (%s) reachable\n", cfg.Sink.Backend)
	}

	if isPortAvailable(cfg.API.Addr) {
		fmt.Printf("✅ API address %s is available\n\n", cfg.API.Addr)
	} else {
		fmt.Printf("⚠️  API address %s is in use\n", cfg.API.Addr)
		fmt.Printf("   Use --api-addr or api.addr to choose another\n\n")
	}

	fmt.Println("📡 Connection Examples:")
	fmt.Println()
	fmt.Println("Status:")
	fmt.Printf("  curl http://%s/v1/status\n", cfg.API.Addr)
	fmt.Println()
	fmt.Println("Live notifications:")
	fmt.Printf("  websocat ws://%s/ws\n", cfg.API.Addr)
	fmt.Printf("  curl -N http://%s/events\n", cfg.API.Addr)
	fmt.Println()
	fmt.Println("Push a sample:")
	fmt.Printf("  curl -X POST http://%s/v1/samples -d '{\"heart_rate\":72,\"hrv\":48,\"stress_level\":30}'\n", cfg.API.Addr)
	fmt.Println()
	fmt.Println("Resolve the open warning:")
	fmt.Printf("  curl -X POST http://%s/v1/warning/resolve -d '{\"strategy_id\":\"box-breathing\"}'\n", cfg.API.Addr)
	fmt.Println()

	fmt.Println("✅ Environment check complete")
	return nil
}

const doctorKey = "doctor_probe"

func checkStore(ctx context.Context, store storage.Store) error {
	if err := store.Set(ctx, doctorKey, []byte(fmt.Sprintf("%d", os.Getpid()))); err != nil {
		return err
	}
	if _, err := store.Get(ctx, doctorKey); err != nil {
		return err
	}
	return store.Remove(ctx, doctorKey)
}
