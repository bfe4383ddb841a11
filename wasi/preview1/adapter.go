package preview1

import (
	"context"

	"go.uber.org/zap"
)

// Variant selects how the standard descriptors and arguments are set up.
type Variant uint8

const (
	// VariantCommand installs real stdio on fds 0 to 2 before the entry
	// point runs and loads the arguments eagerly.
	VariantCommand Variant = iota
	// VariantReactor leaves the initial descriptors in place and loads
	// arguments on first use.
	VariantReactor
)

func (v Variant) String() string {
	switch v {
	case VariantCommand:
		return "command"
	case VariantReactor:
		return "reactor"
	}
	return "unknown"
}

// Config holds the adapter options.
type Config struct {
	Variant Variant
	// EmptyStdin makes fd 0 an input that is always at end of stream
	// instead of the stdio stdin stream. Command variant only.
	EmptyStdin bool
}

// Adapter implements the flat-interface calls of one guest instance over a
// set of capabilities. It is not safe for concurrent use; a guest instance
// calls in from one goroutine at a time.
type Adapter struct {
	caps   Capabilities
	config Config
	state  *State
}

func NewAdapter(caps Capabilities, config Config) *Adapter {
	return &Adapter{caps: caps, config: config}
}

// State returns the process state, creating it on first use.
func (a *Adapter) State(ctx context.Context) *State {
	if a.state == nil {
		a.state = newState(ctx, &a.caps)
	}
	return a.state
}

func (a *Adapter) Variant() Variant { return a.config.Variant }

// with runs fn under a shared borrow of the state.
func (a *Adapter) with(ctx context.Context, name string, fn func(s *State) Errno) Errno {
	return a.borrow(ctx, name, false, fn)
}

// withMut runs fn under an exclusive borrow of the state.
func (a *Adapter) withMut(ctx context.Context, name string, fn func(s *State) Errno) Errno {
	return a.borrow(ctx, name, true, fn)
}

func (a *Adapter) borrow(ctx context.Context, name string, exclusive bool, fn func(s *State) Errno) Errno {
	s := a.State(ctx)
	release := s.acquire(exclusive)
	defer release()
	errno := fn(s)
	if errno != ErrnoSuccess {
		Logger().Debug("call failed", zap.String("call", name), zap.Stringer("errno", errno))
	}
	return errno
}

// Start prepares the state for the guest entry point. For the command
// variant it replaces fds 0 to 2 with the real stdio streams.
func (a *Adapter) Start(ctx context.Context) {
	s := a.State(ctx)
	release := s.acquire(true)
	defer release()

	if a.config.Variant != VariantCommand {
		return
	}
	stdin := &Streams{Kind: StreamEmptyInput}
	if !a.config.EmptyStdin {
		stdin = stdioStreams(a.caps.Stdio.GetStdin(ctx), 0, true, false)
		stdin.Terminal = a.terminal(ctx, 0)
	}
	stdout := stdioStreams(0, a.caps.Stdio.GetStdout(ctx), false, true)
	stdout.Terminal = a.terminal(ctx, 1)
	stderr := stdioStreams(0, a.caps.Stdio.GetStderr(ctx), false, true)
	stderr.Terminal = a.terminal(ctx, 2)

	for fd, streams := range []*Streams{stdin, stdout, stderr} {
		d := &s.descriptors[fd]
		if d.Kind == DescriptorStreams {
			d.Streams.release(ctx, s.caps)
		}
		*d = streamsDescriptor(streams)
	}
	s.arguments(ctx)
	Logger().Debug("stdio installed", zap.Int("args", len(s.args)), zap.Bool("empty_stdin", a.config.EmptyStdin))
}

// terminal reports whether stdio stream fd is a terminal. The terminal
// handle is only a witness and is dropped right away.
func (a *Adapter) terminal(ctx context.Context, fd int) bool {
	t := a.caps.Terminals
	if t == nil {
		return false
	}
	var h uint32
	var ok bool
	switch fd {
	case 0:
		if h, ok = t.GetTerminalStdin(ctx); ok {
			t.ResourceDropTerminalInput(ctx, h)
		}
	case 1:
		if h, ok = t.GetTerminalStdout(ctx); ok {
			t.ResourceDropTerminalOutput(ctx, h)
		}
	case 2:
		if h, ok = t.GetTerminalStderr(ctx); ok {
			t.ResourceDropTerminalOutput(ctx, h)
		}
	}
	return ok
}

// Close releases every capability handle held by the state.
func (a *Adapter) Close(ctx context.Context) {
	if a.state == nil {
		return
	}
	release := a.state.acquire(true)
	defer release()
	a.state.release(ctx)
}
