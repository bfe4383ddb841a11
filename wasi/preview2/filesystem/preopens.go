package filesystem

import (
	"context"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

// PreopenFlags are the flags every preopened directory is opened with.
const PreopenFlags = DescriptorFlagRead | DescriptorFlagMutateDirectory

// PreopenedDirectory pairs a directory descriptor with its guest path.
type PreopenedDirectory struct {
	Descriptor uint32
	GuestPath  string
}

type PreopensHost struct {
	resources *preview2.ResourceTable
	preopens  []preview2.Preopen
}

func NewPreopensHost(resources *preview2.ResourceTable, preopens []preview2.Preopen) *PreopensHost {
	return &PreopensHost{
		resources: resources,
		preopens:  preopens,
	}
}

// GetDirectories opens a fresh descriptor for every preopen, in the order
// they were configured.
func (h *PreopensHost) GetDirectories(_ context.Context) []PreopenedDirectory {
	result := make([]PreopenedDirectory, 0, len(h.preopens))
	for _, p := range h.preopens {
		desc := preview2.NewDescriptorResource(p.HostPath, true, uint8(PreopenFlags))
		result = append(result, PreopenedDirectory{
			Descriptor: h.resources.Add(desc),
			GuestPath:  p.GuestPath,
		})
	}
	return result
}
