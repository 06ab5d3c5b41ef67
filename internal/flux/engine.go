// Package flux hosts regulation scorers compiled to WebAssembly.
package flux

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/regulation"
)

// ExportName is the function a scorer module must export:
// regulation_score(heart_rate, hrv, stress_level i32) i32.
const ExportName = "regulation_score"

// WasmScorer scores the latest sample with a guest module. Guest failures
// fall back to the stress scorer.
type WasmScorer struct {
	mu       sync.Mutex
	runtime  wazero.Runtime
	module   api.Module
	fn       api.Function
	fallback regulation.Scorer
	logger   *zap.Logger
}

// LoadWasmScorer reads and instantiates the module at wasmPath.
func LoadWasmScorer(ctx context.Context, wasmPath string, logger *zap.Logger) (*WasmScorer, error) {
	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read wasm file: %w", err)
	}
	return NewWasmScorer(ctx, wasmBytes, logger)
}

// NewWasmScorer instantiates a scorer module from its binary form.
func NewWasmScorer(ctx context.Context, wasmBytes []byte, logger *zap.Logger) (*WasmScorer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := wazero.NewRuntime(ctx)

	// Instantiate WASI
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	// Compile and instantiate the module
	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to compile wasm module: %w", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithStdout(os.Stderr).WithStderr(os.Stderr))
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasm module: %w", err)
	}

	fn := mod.ExportedFunction(ExportName)
	if fn == nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%s not exported", ExportName)
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != 3 || len(def.ResultTypes()) != 1 {
		r.Close(ctx)
		return nil, fmt.Errorf("%s must take 3 i32 params and return one i32", ExportName)
	}

	return &WasmScorer{
		runtime:  r,
		module:   mod,
		fn:       fn,
		fallback: regulation.StressScorer{},
		logger:   logger,
	}, nil
}

// Close releases the runtime.
func (w *WasmScorer) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

// Score implements regulation.Scorer.
func (w *WasmScorer) Score(window []models.BiometricSample) int {
	if len(window) == 0 {
		return regulation.DefaultBaseline
	}
	score, err := w.ScoreSample(context.Background(), window[0])
	if err != nil {
		w.logger.Warn("wasm scorer failed, using stress score", zap.Error(err))
		return w.fallback.Score(window)
	}
	return score
}

// ScoreSample calls the guest for one sample. The result is not clamped.
func (w *WasmScorer) ScoreSample(ctx context.Context, s models.BiometricSample) (int, error) {
	// guest instances are not safe for concurrent calls
	w.mu.Lock()
	defer w.mu.Unlock()

	results, err := w.fn.Call(ctx,
		api.EncodeI32(int32(s.HeartRate)),
		api.EncodeI32(int32(s.HRV)),
		api.EncodeI32(int32(s.StressLevel)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to call %s: %w", ExportName, err)
	}
	return int(api.DecodeI32(results[0])), nil
}
