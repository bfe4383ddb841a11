package preview1

import (
	"context"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
	"github.com/wippyai/wasi-adapter/wasi/preview2/cli"
	"github.com/wippyai/wasi-adapter/wasi/preview2/clocks"
	"github.com/wippyai/wasi-adapter/wasi/preview2/filesystem"
	"github.com/wippyai/wasi-adapter/wasi/preview2/io"
	"github.com/wippyai/wasi-adapter/wasi/preview2/random"
)

// Filesystem is the descriptor half of the capability interface.
type Filesystem interface {
	MethodDescriptorRead(ctx context.Context, self uint32, length uint64, offset uint64) ([]byte, bool, *filesystem.Error)
	MethodDescriptorWrite(ctx context.Context, self uint32, buffer []byte, offset uint64) (uint64, *filesystem.Error)
	MethodDescriptorReadViaStream(ctx context.Context, self uint32, offset uint64) (uint32, *filesystem.Error)
	MethodDescriptorWriteViaStream(ctx context.Context, self uint32, offset uint64) (uint32, *filesystem.Error)
	MethodDescriptorAppendViaStream(ctx context.Context, self uint32) (uint32, *filesystem.Error)
	MethodDescriptorAdvise(ctx context.Context, self uint32, offset uint64, length uint64, advice filesystem.Advice) *filesystem.Error
	MethodDescriptorSync(ctx context.Context, self uint32) *filesystem.Error
	MethodDescriptorSyncData(ctx context.Context, self uint32) *filesystem.Error
	MethodDescriptorGetFlags(ctx context.Context, self uint32) (filesystem.DescriptorFlags, *filesystem.Error)
	MethodDescriptorSetFlags(ctx context.Context, self uint32, flags filesystem.DescriptorFlags) *filesystem.Error
	MethodDescriptorGetType(ctx context.Context, self uint32) (filesystem.DescriptorType, *filesystem.Error)
	MethodDescriptorSetSize(ctx context.Context, self uint32, size uint64) *filesystem.Error
	MethodDescriptorSetTimes(ctx context.Context, self uint32, atime, mtime filesystem.NewTimestamp) *filesystem.Error
	MethodDescriptorReadDirectory(ctx context.Context, self uint32) (uint32, *filesystem.Error)
	MethodDescriptorStat(ctx context.Context, self uint32) (*filesystem.DescriptorStat, *filesystem.Error)
	MethodDescriptorStatAt(ctx context.Context, self uint32, pathFlags filesystem.PathFlags, path string) (*filesystem.DescriptorStat, *filesystem.Error)
	MethodDescriptorSetTimesAt(ctx context.Context, self uint32, pathFlags filesystem.PathFlags, path string, atime, mtime filesystem.NewTimestamp) *filesystem.Error
	MethodDescriptorOpenAt(ctx context.Context, self uint32, pathFlags filesystem.PathFlags, path string, openFlags filesystem.OpenFlags, flags filesystem.DescriptorFlags) (uint32, *filesystem.Error)
	MethodDescriptorCreateDirectoryAt(ctx context.Context, self uint32, path string) *filesystem.Error
	MethodDescriptorRenameAt(ctx context.Context, self uint32, oldPath string, newDescriptor uint32, newPath string) *filesystem.Error
	MethodDescriptorUnlinkFileAt(ctx context.Context, self uint32, path string) *filesystem.Error
	MethodDescriptorRemoveDirectoryAt(ctx context.Context, self uint32, path string) *filesystem.Error
	MethodDescriptorSymlinkAt(ctx context.Context, self uint32, oldPath string, newPath string) *filesystem.Error
	MethodDescriptorReadlinkAt(ctx context.Context, self uint32, path string) (string, *filesystem.Error)
	MethodDescriptorLinkAt(ctx context.Context, self uint32, oldPathFlags filesystem.PathFlags, oldPath string, newDescriptor uint32, newPath string) *filesystem.Error
	MethodDirectoryEntryStreamReadDirectoryEntry(ctx context.Context, self uint32) (*preview2.DirectoryEntry, *filesystem.Error)
	ResourceDropDescriptor(ctx context.Context, self uint32)
	ResourceDropDirectoryEntryStream(ctx context.Context, self uint32)
}

type StreamIO interface {
	MethodInputStreamBlockingRead(ctx context.Context, self uint32, length uint64) ([]byte, *preview2.StreamError)
	MethodOutputStreamBlockingWriteAndFlush(ctx context.Context, self uint32, contents []byte) *preview2.StreamError
	MethodInputStreamSubscribe(ctx context.Context, self uint32) uint32
	MethodOutputStreamSubscribe(ctx context.Context, self uint32) uint32
	ResourceDropInputStream(ctx context.Context, self uint32)
	ResourceDropOutputStream(ctx context.Context, self uint32)
}

type Poll interface {
	Poll(ctx context.Context, pollables []uint32) []uint32
	ResourceDropPollable(ctx context.Context, self uint32)
}

type MonotonicClock interface {
	InstanceMonotonicClock(ctx context.Context) uint32
	Now(ctx context.Context, self uint32) (uint64, bool)
	Resolution(ctx context.Context, self uint32) (uint64, bool)
	Subscribe(ctx context.Context, self uint32, when uint64, absolute bool) (uint32, bool)
	ResourceDropMonotonicClock(ctx context.Context, self uint32)
}

type WallClock interface {
	InstanceWallClock(ctx context.Context) uint32
	Now(ctx context.Context, self uint32) (clocks.Datetime, bool)
	Resolution(ctx context.Context, self uint32) (clocks.Datetime, bool)
	ResourceDropWallClock(ctx context.Context, self uint32)
}

type Random interface {
	GetRandomBytes(ctx context.Context, length uint64) []byte
}

type Exit interface {
	Exit(ctx context.Context, ok bool)
}

type Environment interface {
	GetEnvironment(ctx context.Context) [][2]string
	GetArguments(ctx context.Context) []string
}

type Preopens interface {
	GetDirectories(ctx context.Context) []filesystem.PreopenedDirectory
}

type Stdio interface {
	GetStdin(ctx context.Context) uint32
	GetStdout(ctx context.Context) uint32
	GetStderr(ctx context.Context) uint32
}

type Terminals interface {
	GetTerminalStdin(ctx context.Context) (uint32, bool)
	GetTerminalStdout(ctx context.Context) (uint32, bool)
	GetTerminalStderr(ctx context.Context) (uint32, bool)
	ResourceDropTerminalInput(ctx context.Context, self uint32)
	ResourceDropTerminalOutput(ctx context.Context, self uint32)
}

// Capabilities is the set of capability hosts the adapter calls into.
// Terminals may be nil.
type Capabilities struct {
	Filesystem     Filesystem
	Streams        StreamIO
	Poll           Poll
	MonotonicClock MonotonicClock
	WallClock      WallClock
	Random         Random
	Exit           Exit
	Environment    Environment
	Preopens       Preopens
	Stdio          Stdio
	Terminals      Terminals
}

// NewCapabilities wires the preview2 hosts over w's resource table.
func NewCapabilities(w *preview2.WASI) Capabilities {
	resources := w.Resources()
	ioHost := io.NewHost(resources)
	stdin, stdout, stderr := w.Terminals()
	return Capabilities{
		Filesystem:     filesystem.NewTypesHost(resources),
		Streams:        ioHost.Streams,
		Poll:           ioHost.Poll,
		MonotonicClock: clocks.NewMonotonicClockHost(resources),
		WallClock:      clocks.NewWallClockHost(resources),
		Random:         random.NewSecureRandomHost(),
		Exit:           cli.NewExitHost(w.Exit()),
		Environment:    cli.NewEnvironmentHost(w.Env(), w.Args(), w.Cwd()),
		Preopens:       filesystem.NewPreopensHost(resources, w.Preopens()),
		Stdio:          cli.NewStdioHost(resources, w.Stdin(), w.StdoutResource(), w.StderrResource()),
		Terminals:      cli.NewTerminalHost(resources, stdin, stdout, stderr),
	}
}
