package cli

import (
	"context"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

// StdioHost hands out handles to the process stdio streams. Each call adds
// a new handle for the same stream; dropping a handle leaves the stream
// open.
type StdioHost struct {
	resources *preview2.ResourceTable
	stdin     *preview2.InputStreamResource
	stdout    *preview2.OutputStreamResource
	stderr    *preview2.OutputStreamResource
}

func NewStdioHost(resources *preview2.ResourceTable,
	stdin *preview2.InputStreamResource,
	stdout *preview2.OutputStreamResource,
	stderr *preview2.OutputStreamResource) *StdioHost {
	return &StdioHost{
		resources: resources,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
	}
}

func (h *StdioHost) GetStdin(_ context.Context) uint32 {
	return h.resources.Add(h.stdin)
}

func (h *StdioHost) GetStdout(_ context.Context) uint32 {
	return h.resources.Add(h.stdout)
}

func (h *StdioHost) GetStderr(_ context.Context) uint32 {
	return h.resources.Add(h.stderr)
}
