package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-adapter/engine"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

// Instance is a guest bound to its own capability environment. It is NOT
// thread-safe.
type Instance struct {
	wazeroInstance *engine.WazeroInstance
	wasi           *preview2.WASI
	exited         bool
	exitOK         bool
}

func (i *Instance) recordExit(ok bool) {
	i.exited = true
	i.exitOK = ok
}

// Run calls _start and maps the outcome to a process exit code: 0 for a
// normal return or proc_exit(0), 1 for any other exit status or a trap.
func (i *Instance) Run(ctx context.Context) (int, error) {
	raw, err := i.wazeroInstance.Run(ctx)
	if err != nil {
		Logger().Debug("guest run failed", zap.String("instance", i.Name()), zap.Error(err))
		return 1, err
	}
	code := 0
	if i.exited && !i.exitOK {
		code = 1
	}
	Logger().Debug("guest exited",
		zap.String("instance", i.Name()),
		zap.Uint32("status", raw),
		zap.Int("code", code))
	return code, nil
}

// Exited reports whether the guest called proc_exit, and with which outcome.
func (i *Instance) Exited() (exited, ok bool) {
	return i.exited, i.exitOK
}

// Initialize runs a reactor's _initialize export when it has one.
func (i *Instance) Initialize(ctx context.Context) error {
	return i.wazeroInstance.Initialize(ctx)
}

// Call invokes an exported function with raw core-wasm values.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	return i.wazeroInstance.Call(ctx, name, params...)
}

func (i *Instance) Name() string {
	return i.wazeroInstance.Name()
}

func (i *Instance) Adapter() *preview1.Adapter {
	return i.wazeroInstance.Adapter()
}

func (i *Instance) Memory() *engine.WazeroMemory {
	return i.wazeroInstance.Memory()
}

// Trace returns the recorded flat-interface calls, or nil when tracing is
// off.
func (i *Instance) Trace() *engine.Trace {
	return i.wazeroInstance.Trace()
}

// Stdout returns buffered output of fd 1. It is empty when Config.Stdout
// was set.
func (i *Instance) Stdout() []byte {
	return i.wasi.Stdout()
}

// Stderr returns buffered output of fd 2. It is empty when Config.Stderr
// was set.
func (i *Instance) Stderr() []byte {
	return i.wasi.Stderr()
}

// LiveResources returns the number of capability handles currently held.
func (i *Instance) LiveResources() int {
	return i.wasi.Resources().Len()
}

// Close releases the guest's descriptors, then the guest module.
func (i *Instance) Close(ctx context.Context) error {
	err := i.wazeroInstance.Close(ctx)
	i.wasi.Close()
	return err
}
