package runtime

import (
	"context"

	"github.com/wippyai/wasi-adapter/engine"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

type Module struct {
	runtime  *Runtime
	compiled *engine.WazeroModule
}

// Imports returns the preview1 functions the module imports.
func (m *Module) Imports() []string {
	return m.compiled.Imports()
}

// Exports returns the names of the module's exports.
func (m *Module) Exports() []string {
	return m.compiled.ExportNames()
}

// Instantiate creates an instance with a fresh capability environment
// built from the runtime's configuration. _start is not called.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	inst := &Instance{}
	w := newWASI(m.runtime.config, inst.recordExit)

	wazeroInstance, err := m.compiled.Instantiate(ctx, &engine.InstanceConfig{
		Capabilities: preview1.NewCapabilities(w),
		EmptyStdin:   m.runtime.config.EmptyStdin,
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	inst.wazeroInstance = wazeroInstance
	inst.wasi = w
	return inst, nil
}

func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
