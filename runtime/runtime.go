package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-adapter/engine"
	"github.com/wippyai/wasi-adapter/errors"
)

type Runtime struct {
	engine *engine.WazeroEngine
	config *Config
}

// New creates a runtime for cfg. A nil cfg uses DefaultConfig.
func New(ctx context.Context, cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
		MemoryLimitPages: cfg.MemoryLimitPages,
		Variant:          cfg.Variant,
		Trace:            cfg.Trace,
	})
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{
		engine: eng,
		config: cfg,
	}, nil
}

// Config returns the configuration instances are created from.
func (r *Runtime) Config() *Config {
	return r.config
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Load compiles a preview1 guest module.
func (r *Runtime) Load(ctx context.Context, wasm []byte) (*Module, error) {
	compiled, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		return nil, err
	}
	Logger().Debug("module loaded", zap.Int("size", len(wasm)), zap.Strings("imports", compiled.Imports()))
	return &Module{
		runtime:  r,
		compiled: compiled,
	}, nil
}

// Run loads wasm, runs it as a command and releases everything it created.
// The exit code is 0 when the guest returns from _start or exits with
// status 0, and 1 when it exits with any other status or traps.
func (r *Runtime) Run(ctx context.Context, wasm []byte) (int, error) {
	mod, err := r.Load(ctx, wasm)
	if err != nil {
		return 1, err
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return 1, err
	}
	defer inst.Close(ctx)

	return inst.Run(ctx)
}
