package cli

import (
	"context"
	"os"
	"sync/atomic"

	"golang.org/x/term"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

const (
	stdinIndex = iota
	stdoutIndex
	stderrIndex
)

// TerminalHost reports which stdio streams are attached to a terminal.
// A nil file is never a terminal.
type TerminalHost struct {
	resources *preview2.ResourceTable
	files     [3]*os.File
	cached    [3]int32 // -1 = unchecked, 0 = no, 1 = yes
}

func NewTerminalHost(resources *preview2.ResourceTable, stdin, stdout, stderr *os.File) *TerminalHost {
	return &TerminalHost{
		resources: resources,
		files:     [3]*os.File{stdin, stdout, stderr},
		cached:    [3]int32{-1, -1, -1},
	}
}

func (h *TerminalHost) isTerminal(i int) bool {
	if v := atomic.LoadInt32(&h.cached[i]); v >= 0 {
		return v == 1
	}
	result := h.files[i] != nil && term.IsTerminal(int(h.files[i].Fd()))
	if result {
		atomic.StoreInt32(&h.cached[i], 1)
	} else {
		atomic.StoreInt32(&h.cached[i], 0)
	}
	return result
}

func (h *TerminalHost) terminal(i int, output bool) (uint32, bool) {
	if !h.isTerminal(i) {
		return 0, false
	}
	return h.resources.Add(preview2.NewTerminalResource(output)), true
}

func (h *TerminalHost) GetTerminalStdin(_ context.Context) (uint32, bool) {
	return h.terminal(stdinIndex, false)
}

func (h *TerminalHost) GetTerminalStdout(_ context.Context) (uint32, bool) {
	return h.terminal(stdoutIndex, true)
}

func (h *TerminalHost) GetTerminalStderr(_ context.Context) (uint32, bool) {
	return h.terminal(stderrIndex, true)
}

func (h *TerminalHost) ResourceDropTerminalInput(_ context.Context, self uint32) {
	h.resources.Remove(self)
}

func (h *TerminalHost) ResourceDropTerminalOutput(_ context.Context, self uint32) {
	h.resources.Remove(self)
}
