package preview1

import (
	"context"

	"go.uber.org/zap"
)

const (
	// Magic brackets the state; "ugh!" read as a little-endian word.
	Magic          uint32 = 0x21686775
	MaxDescriptors        = 128
	// PathMax bounds link targets and directory entry names. Every
	// popular OS caps paths at 4096 bytes.
	PathMax         = 4096
	DirentCacheSize = 256
	PageSize        = 65536

	descriptorSlotSize = 32
	// ArenaSize is what a one page state leaves for the long-lived arena.
	ArenaSize = PageSize - PathMax - DirentCacheSize - MaxDescriptors*descriptorSlotSize
)

type envVar struct {
	key   []byte
	value []byte
}

type preopen struct {
	handle uint32
	path   []byte
}

// direntCache keeps the iterator of an unfinished fd_readdir, along with
// the entry that did not fit, so the next call can resume at cookie.
type direntCache struct {
	stream    uint32
	hasStream bool
	fd        uint32
	cookie    uint64
	dirent    Dirent
	name      [DirentCacheSize]byte
}

// State is the per-instance adapter state: the descriptor table, the
// argument, environment and preopen caches, the dirent cache and the
// default clock handles.
type State struct {
	magic1 uint32

	importAlloc ImportAlloc
	caps        *Capabilities

	descriptors []Descriptor
	// closed heads the free list threaded through Closed slots.
	closed uint32

	pathBuf [PathMax]byte
	arena   *Arena

	args        [][]byte
	argsSet     bool
	env         []envVar
	envSet      bool
	preopens    []preopen
	preopensSet bool

	dirent direntCache

	monotonicClock    uint32
	hasMonotonicClock bool
	wallClock         uint32
	hasWallClock      bool
	stderr            uint32
	hasStderr         bool

	dotdot [2]byte

	// borrows counts shared borrows; -1 marks an exclusive one.
	borrows int

	magic2 uint32
}

func newState(ctx context.Context, caps *Capabilities) *State {
	s := &State{
		magic1:      Magic,
		magic2:      Magic,
		caps:        caps,
		descriptors: make([]Descriptor, 0, MaxDescriptors),
		closed:      noFd,
		arena:       NewArena(ArenaSize),
		dotdot:      [2]byte{'.', '.'},
	}
	// Stdin has no streams and stdout goes to stderr until the command
	// entry point installs the real stdio.
	s.mustPush(streamsDescriptor(&Streams{Kind: StreamUnknown}))
	s.mustPush(Descriptor{Kind: DescriptorStderr})
	s.mustPush(Descriptor{Kind: DescriptorStderr})
	// Preopens take fds 3.. before the guest can open anything else.
	s.preopenList(ctx)
	return s
}

func (s *State) checkCanaries() {
	if s.magic1 != Magic || s.magic2 != Magic {
		panic(fatal("state corrupted: canaries %#x %#x", s.magic1, s.magic2))
	}
}

// acquire borrows the state. Shared borrows nest; an exclusive borrow
// excludes every other borrow.
func (s *State) acquire(exclusive bool) func() {
	s.checkCanaries()
	if exclusive {
		if s.borrows != 0 {
			panic(fatal("state already borrowed"))
		}
		s.borrows = -1
		return func() { s.borrows = 0 }
	}
	if s.borrows < 0 {
		panic(fatal("state already mutably borrowed"))
	}
	s.borrows++
	return func() { s.borrows-- }
}

func (s *State) mustPush(d Descriptor) uint32 {
	fd, errno := s.pushDesc(d)
	if errno != ErrnoSuccess {
		panic(fatal("descriptor table full during initialization"))
	}
	return fd
}

// pushDesc appends d. The table never grows past MaxDescriptors.
func (s *State) pushDesc(d Descriptor) (uint32, Errno) {
	if len(s.descriptors) >= MaxDescriptors {
		return 0, ErrnoNomem
	}
	s.descriptors = append(s.descriptors, d)
	return uint32(len(s.descriptors) - 1), ErrnoSuccess
}

// allocDesc installs d in the most recently freed slot, or appends it.
func (s *State) allocDesc(d Descriptor) (uint32, Errno) {
	if s.closed == noFd {
		return s.pushDesc(d)
	}
	fd := s.closed
	slot := &s.descriptors[fd]
	if slot.Kind != DescriptorClosed {
		panic(fatal("free list entry %d is not closed", fd))
	}
	s.closed = slot.next
	*slot = d
	return fd, ErrnoSuccess
}

func (s *State) NumDescriptors() int { return len(s.descriptors) }

func (s *State) get(fd uint32) (*Descriptor, Errno) {
	if uint64(fd) >= uint64(len(s.descriptors)) {
		return nil, ErrnoBadf
	}
	return &s.descriptors[fd], ErrnoSuccess
}

// Descriptor returns a copy of the slot at fd.
func (s *State) Descriptor(fd uint32) (Descriptor, bool) {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return Descriptor{}, false
	}
	return *d, true
}

func (s *State) getStreamsWithError(fd uint32, wrongKind Errno) (*Streams, Errno) {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return nil, errno
	}
	switch d.Kind {
	case DescriptorStreams:
		return d.Streams, ErrnoSuccess
	case DescriptorClosed:
		return nil, ErrnoBadf
	}
	return nil, wrongKind
}

// getFileWithError resolves fd to a file descriptor's streams.
func (s *State) getFileWithError(fd uint32, wrongKind Errno) (*Streams, Errno) {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return nil, errno
	}
	switch {
	case d.Kind == DescriptorClosed:
		return nil, ErrnoBadf
	case d.Kind == DescriptorStreams && d.Streams.Kind == StreamFile:
		return d.Streams, ErrnoSuccess
	}
	return nil, wrongKind
}

func (s *State) getFile(fd uint32) (*Streams, Errno) {
	return s.getFileWithError(fd, ErrnoInval)
}

func (s *State) getDir(fd uint32) (*Streams, Errno) {
	return s.getFileWithError(fd, ErrnoNotdir)
}

func (s *State) getSeekableFile(fd uint32) (*Streams, Errno) {
	return s.getFileWithError(fd, ErrnoSpipe)
}

func (s *State) getSeekableStream(fd uint32) (*Streams, Errno) {
	return s.getStreamsWithError(fd, ErrnoSpipe)
}

func (s *State) getReadStream(ctx context.Context, fd uint32) (uint32, Errno) {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return 0, errno
	}
	if d.Kind != DescriptorStreams {
		return 0, ErrnoBadf
	}
	return d.Streams.readStream(ctx, s.caps)
}

func (s *State) getWriteStream(ctx context.Context, fd uint32) (uint32, Errno) {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return 0, errno
	}
	if d.Kind != DescriptorStreams {
		return 0, ErrnoBadf
	}
	return d.Streams.writeStream(ctx, s.caps)
}

// closeDesc frees fd, releasing its handles and any directory listing
// cached for it.
func (s *State) closeDesc(ctx context.Context, fd uint32) Errno {
	d, errno := s.get(fd)
	if errno != ErrnoSuccess {
		return errno
	}
	if d.Kind == DescriptorClosed {
		return ErrnoBadf
	}
	if s.dirent.hasStream && s.dirent.fd == fd {
		s.dropDirentCache(ctx)
	}
	if d.Kind == DescriptorStreams {
		d.Streams.release(ctx, s.caps)
	}
	*d = closedDescriptor(s.closed)
	s.closed = fd
	return ErrnoSuccess
}

// unlinkFree removes the closed slot fd from the free list.
func (s *State) unlinkFree(fd uint32) {
	if s.closed == fd {
		s.closed = s.descriptors[fd].next
		return
	}
	for cur := s.closed; cur != noFd; cur = s.descriptors[cur].next {
		if s.descriptors[cur].next == fd {
			s.descriptors[cur].next = s.descriptors[fd].next
			return
		}
	}
	panic(fatal("closed descriptor %d missing from free list", fd))
}

// renumber moves the descriptor at from into slot to, growing the table
// with closed slots when to is past its end. from ends up closed; an open
// to is released first.
func (s *State) renumber(ctx context.Context, from, to uint32) Errno {
	src, errno := s.get(from)
	if errno != ErrnoSuccess {
		return errno
	}
	if src.Kind == DescriptorClosed {
		return ErrnoBadf
	}
	if from == to {
		return ErrnoSuccess
	}
	for uint64(len(s.descriptors)) <= uint64(to) {
		fd, errno := s.pushDesc(closedDescriptor(s.closed))
		if errno != ErrnoSuccess {
			return errno
		}
		s.closed = fd
	}

	if s.dirent.hasStream && (s.dirent.fd == from || s.dirent.fd == to) {
		s.dropDirentCache(ctx)
	}

	dst := &s.descriptors[to]
	switch dst.Kind {
	case DescriptorClosed:
		s.unlinkFree(to)
	case DescriptorStreams:
		dst.Streams.release(ctx, s.caps)
	}
	*dst = s.descriptors[from]
	s.descriptors[from] = closedDescriptor(s.closed)
	s.closed = from
	return ErrnoSuccess
}

// monotonicClockHandle returns the default monotonic clock, resolving it
// on first use.
func (s *State) monotonicClockHandle(ctx context.Context) uint32 {
	if !s.hasMonotonicClock {
		s.monotonicClock = s.caps.MonotonicClock.InstanceMonotonicClock(ctx)
		s.hasMonotonicClock = true
	}
	return s.monotonicClock
}

func (s *State) wallClockHandle(ctx context.Context) uint32 {
	if !s.hasWallClock {
		s.wallClock = s.caps.WallClock.InstanceWallClock(ctx)
		s.hasWallClock = true
	}
	return s.wallClock
}

func (s *State) stderrHandle(ctx context.Context) uint32 {
	if !s.hasStderr {
		s.stderr = s.caps.Stdio.GetStderr(ctx)
		s.hasStderr = true
	}
	return s.stderr
}

// environment fetches the environment once into the long-lived arena.
func (s *State) environment(ctx context.Context) []envVar {
	if !s.envSet {
		s.env = WithArena(&s.importAlloc, s.arena, func() []envVar {
			vars := s.caps.Environment.GetEnvironment(ctx)
			out := make([]envVar, len(vars))
			for i, kv := range vars {
				out[i] = envVar{
					key:   importString(&s.importAlloc, kv[0]),
					value: importString(&s.importAlloc, kv[1]),
				}
			}
			return out
		})
		s.envSet = true
	}
	return s.env
}

func (s *State) arguments(ctx context.Context) [][]byte {
	if !s.argsSet {
		s.args = WithArena(&s.importAlloc, s.arena, func() [][]byte {
			args := s.caps.Environment.GetArguments(ctx)
			out := make([][]byte, len(args))
			for i, arg := range args {
				out[i] = importString(&s.importAlloc, arg)
			}
			return out
		})
		s.argsSet = true
	}
	return s.args
}

// preopenList fetches the preopened directories once and installs each
// as a file descriptor, in host order.
func (s *State) preopenList(ctx context.Context) []preopen {
	if s.preopensSet {
		return s.preopens
	}
	s.preopens = WithArena(&s.importAlloc, s.arena, func() []preopen {
		dirs := s.caps.Preopens.GetDirectories(ctx)
		out := make([]preopen, len(dirs))
		for i, d := range dirs {
			out[i] = preopen{
				handle: d.Descriptor,
				path:   importString(&s.importAlloc, d.GuestPath),
			}
		}
		return out
	})
	s.preopensSet = true
	for _, p := range s.preopens {
		fd := s.mustPush(streamsDescriptor(newFileStreams(p.handle, false)))
		Logger().Debug("preopen installed", zap.Uint32("fd", fd), zap.ByteString("path", p.path))
	}
	return s.preopens
}

// getPreopen returns the preopen still installed at fd. A preopen that was
// closed or renumbered away is gone.
func (s *State) getPreopen(ctx context.Context, fd uint32) (*preopen, bool) {
	preopens := s.preopenList(ctx)
	if fd < 3 || uint64(fd-3) >= uint64(len(preopens)) {
		return nil, false
	}
	p := &preopens[fd-3]
	d, errno := s.get(fd)
	if errno != ErrnoSuccess || d.Kind != DescriptorStreams || d.Streams.Kind != StreamFile ||
		d.Streams.File.Handle != p.handle {
		return nil, false
	}
	return p, true
}

func (s *State) dropDirentCache(ctx context.Context) {
	if s.dirent.hasStream {
		s.caps.Filesystem.ResourceDropDirectoryEntryStream(ctx, s.dirent.stream)
		s.dirent.stream, s.dirent.hasStream = 0, false
	}
}

// release returns every capability handle the state still holds.
func (s *State) release(ctx context.Context) {
	s.dropDirentCache(ctx)
	for i := range s.descriptors {
		d := &s.descriptors[i]
		if d.Kind == DescriptorStreams {
			d.Streams.release(ctx, s.caps)
		}
		d.Kind, d.Streams = DescriptorClosed, nil
	}
	if s.hasStderr {
		s.caps.Streams.ResourceDropOutputStream(ctx, s.stderr)
		s.hasStderr = false
	}
	if s.hasMonotonicClock {
		s.caps.MonotonicClock.ResourceDropMonotonicClock(ctx, s.monotonicClock)
		s.hasMonotonicClock = false
	}
	if s.hasWallClock {
		s.caps.WallClock.ResourceDropWallClock(ctx, s.wallClock)
		s.hasWallClock = false
	}
}
