package preview1

import (
	"context"

	"github.com/wippyai/wasi-adapter/wasi/preview2/filesystem"
)

// noFd terminates the free list.
const noFd = ^uint32(0)

type DescriptorKind uint8

const (
	// DescriptorClosed is a free slot linked into the free list.
	DescriptorClosed DescriptorKind = iota
	// DescriptorStreams carries input and output streams.
	DescriptorStreams
	// DescriptorStderr writes go to the capability stderr stream.
	DescriptorStderr
)

func (k DescriptorKind) String() string {
	switch k {
	case DescriptorClosed:
		return "closed"
	case DescriptorStreams:
		return "streams"
	case DescriptorStderr:
		return "stderr"
	}
	return "unknown"
}

// Descriptor is one slot of the descriptor table.
type Descriptor struct {
	Kind    DescriptorKind
	Streams *Streams
	next    uint32
}

func closedDescriptor(next uint32) Descriptor {
	return Descriptor{Kind: DescriptorClosed, next: next}
}

func streamsDescriptor(s *Streams) Descriptor {
	return Descriptor{Kind: DescriptorStreams, Streams: s}
}

// StreamKind tells where a Streams descriptor's data comes from.
type StreamKind uint8

const (
	// StreamUnknown is a valid stream of unknown origin, such as inherited
	// stdio.
	StreamUnknown StreamKind = iota
	// StreamEmptyInput is a stdin with no bytes.
	StreamEmptyInput
	StreamFile
	StreamSocket
)

// File is the file state of a StreamFile descriptor. Position is
// authoritative for non-append reads and writes.
type File struct {
	Handle   uint32
	Position uint64
	Append   bool
}

// Streams holds the lazily created capability streams of a descriptor.
// File streams are bound to the position they were created at, so moving
// the position drops them.
type Streams struct {
	Kind     StreamKind
	File     *File
	Terminal bool

	input     uint32
	output    uint32
	hasInput  bool
	hasOutput bool
}

func newFileStreams(handle uint32, appendMode bool) *Streams {
	return &Streams{Kind: StreamFile, File: &File{Handle: handle, Append: appendMode}}
}

// stdioStreams wraps handles obtained from the stdio capability.
func stdioStreams(input, output uint32, hasInput, hasOutput bool) *Streams {
	return &Streams{
		Kind:      StreamUnknown,
		input:     input,
		output:    output,
		hasInput:  hasInput,
		hasOutput: hasOutput,
	}
}

// readStream returns the cached input stream, creating one at the current
// position for files.
func (s *Streams) readStream(ctx context.Context, caps *Capabilities) (uint32, Errno) {
	if s.hasInput {
		return s.input, ErrnoSuccess
	}
	if s.Kind != StreamFile {
		return 0, ErrnoBadf
	}
	h, err := caps.Filesystem.MethodDescriptorReadViaStream(ctx, s.File.Handle, s.File.Position)
	if err != nil {
		return 0, errnoOf(err)
	}
	s.input, s.hasInput = h, true
	return h, ErrnoSuccess
}

// writeStream returns the cached output stream, creating a positioned or
// appending one for files.
func (s *Streams) writeStream(ctx context.Context, caps *Capabilities) (uint32, Errno) {
	if s.hasOutput {
		return s.output, ErrnoSuccess
	}
	if s.Kind != StreamFile {
		return 0, ErrnoBadf
	}
	var h uint32
	var err *filesystem.Error
	if s.File.Append {
		h, err = caps.Filesystem.MethodDescriptorAppendViaStream(ctx, s.File.Handle)
	} else {
		h, err = caps.Filesystem.MethodDescriptorWriteViaStream(ctx, s.File.Handle, s.File.Position)
	}
	if err != nil {
		return 0, errnoOf(err)
	}
	s.output, s.hasOutput = h, true
	return h, ErrnoSuccess
}

func (s *Streams) dropInput(ctx context.Context, caps *Capabilities) {
	if s.hasInput {
		caps.Streams.ResourceDropInputStream(ctx, s.input)
		s.input, s.hasInput = 0, false
	}
}

func (s *Streams) dropOutput(ctx context.Context, caps *Capabilities) {
	if s.hasOutput {
		caps.Streams.ResourceDropOutputStream(ctx, s.output)
		s.output, s.hasOutput = 0, false
	}
}

// release returns every capability handle the descriptor owns.
func (s *Streams) release(ctx context.Context, caps *Capabilities) {
	s.dropInput(ctx, caps)
	s.dropOutput(ctx, caps)
	if s.Kind == StreamFile {
		caps.Filesystem.ResourceDropDescriptor(ctx, s.File.Handle)
	}
}
