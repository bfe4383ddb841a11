package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-adapter/errors"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

// WazeroEngine compiles and instantiates preview1 guests on a wazero
// runtime.
type WazeroEngine struct {
	runtime      wazero.Runtime
	config       Config
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
	nextID       atomic.Uint64
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// Variant selects command or reactor setup for every instance.
	Variant preview1.Variant

	// Trace is the number of flat-interface calls each instance records.
	// 0 disables tracing.
	Trace int
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	e := &WazeroEngine{}
	if cfg != nil {
		e.config = *cfg
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
	}
	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return e, nil
}

// Config returns the engine configuration.
func (e *WazeroEngine) Config() Config { return e.config }

// InitWASI instantiates the preview1 host module once.
func (e *WazeroEngine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}
	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()
	if e.wasiInitDone.Load() {
		return nil
	}
	if _, err := InstantiatePreview1(ctx, e.runtime); err != nil {
		return err
	}
	e.wasiInitDone.Store(true)
	return nil
}

// LoadModule compiles a core wasm module.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	return &WazeroModule{engine: e, compiled: compiled}, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// WazeroModule is a compiled guest module.
type WazeroModule struct {
	engine   *WazeroEngine
	compiled wazero.CompiledModule
}

// Imports returns the flat-interface functions the module imports, sorted.
func (m *WazeroModule) Imports() []string {
	var names []string
	for _, def := range m.compiled.ImportedFunctions() {
		if module, name, ok := def.Import(); ok && module == Preview1ModuleName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ExportNames returns the names of all exported functions, sorted.
func (m *WazeroModule) ExportNames() []string {
	exports := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	// Name is the wazero module name. Empty picks a unique one.
	Name string
	// Capabilities are the capability-interface hosts the guest runs on.
	Capabilities preview1.Capabilities
	// EmptyStdin gives a command guest a stdin that is always at end of
	// stream.
	EmptyStdin bool
}

// Instantiate creates a guest instance bound to a fresh adapter. The
// module's start section runs; _start and _initialize do not.
func (m *WazeroModule) Instantiate(ctx context.Context, cfg *InstanceConfig) (*WazeroInstance, error) {
	if cfg == nil {
		return nil, errors.InvalidInput(errors.PhaseInstantiate, "instance config is required")
	}
	if err := m.engine.InitWASI(ctx); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("guest-%d", m.engine.nextID.Add(1))
	}
	variant := m.engine.config.Variant
	inst := &WazeroInstance{
		name: name,
		binding: &binding{
			adapter: preview1.NewAdapter(cfg.Capabilities, preview1.Config{
				Variant:    variant,
				EmptyStdin: cfg.EmptyStdin,
			}),
		},
	}
	if m.engine.config.Trace > 0 {
		inst.binding.trace = NewTrace(m.engine.config.Trace)
	}

	modCfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := m.engine.runtime.InstantiateModule(inst.prepareCallContext(ctx), m.compiled, modCfg)
	if err != nil {
		inst.binding.adapter.Close(ctx)
		return nil, errors.Instantiation(err)
	}
	inst.module = mod
	inst.memory = NewWazeroMemory(mod.Memory())

	Logger().Debug("guest instantiated",
		zap.String("name", name),
		zap.Stringer("variant", variant))
	return inst, nil
}

// WazeroInstance is a running guest. It is NOT thread-safe and should be
// used by a single goroutine.
type WazeroInstance struct {
	name    string
	module  api.Module
	memory  *WazeroMemory
	binding *binding
	closed  bool
}

// prepareCallContext binds the instance's adapter to ctx so the preview1
// host functions can find it.
func (i *WazeroInstance) prepareCallContext(ctx context.Context) context.Context {
	return withBinding(ctx, i.binding)
}

func (i *WazeroInstance) Name() string { return i.name }

// Adapter returns the flat-interface adapter serving this instance.
func (i *WazeroInstance) Adapter() *preview1.Adapter { return i.binding.adapter }

// Memory returns the guest's exported memory.
func (i *WazeroInstance) Memory() *WazeroMemory { return i.memory }

// Trace returns the call trace, or nil when tracing is off.
func (i *WazeroInstance) Trace() *Trace { return i.binding.trace }

// Module returns the underlying wazero module.
func (i *WazeroInstance) Module() api.Module { return i.module }

// Run sets up stdio and calls _start. A guest that returns normally or
// calls proc_exit reports its exit code with a nil error.
func (i *WazeroInstance) Run(ctx context.Context) (uint32, error) {
	if i.binding.adapter.Variant() != preview1.VariantCommand {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "only command instances can run _start")
	}
	fn := i.module.ExportedFunction("_start")
	if fn == nil {
		return 0, errors.NotFound(errors.PhaseRuntime, "export", "_start")
	}
	ctx = i.prepareCallContext(ctx)
	i.binding.adapter.Start(ctx)
	_, err := fn.Call(ctx)
	return exitCode("_start", err)
}

// Initialize calls the reactor's _initialize export when there is one.
func (i *WazeroInstance) Initialize(ctx context.Context) error {
	fn := i.module.ExportedFunction("_initialize")
	if fn == nil {
		return nil
	}
	if _, err := fn.Call(i.prepareCallContext(ctx)); err != nil {
		return errors.Trap("_initialize", err)
	}
	return nil
}

// Call invokes an exported function with raw core-wasm values.
func (i *WazeroInstance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	results, err := fn.Call(i.prepareCallContext(ctx), params...)
	if err != nil {
		var exitErr *sys.ExitError
		if stderrors.As(err, &exitErr) {
			return nil, errors.Exit(exitErr.ExitCode())
		}
		return nil, errors.Trap(name, err)
	}
	return results, nil
}

func exitCode(call string, err error) (uint32, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *sys.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, errors.Trap(call, err)
}

// Close releases the adapter's capability handles and the guest module.
func (i *WazeroInstance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.binding.adapter.Close(ctx)
	return i.module.Close(ctx)
}
