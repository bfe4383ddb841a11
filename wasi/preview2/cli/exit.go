package cli

import "context"

// ExitHost reports the guest's exit status to the embedder. It never
// terminates the host process.
type ExitHost struct {
	exit func(ok bool)
}

func NewExitHost(exit func(ok bool)) *ExitHost {
	return &ExitHost{exit: exit}
}

func (h *ExitHost) Exit(_ context.Context, ok bool) {
	if h.exit != nil {
		h.exit(ok)
	}
}
