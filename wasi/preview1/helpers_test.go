package preview1

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

const (
	preopenFd   = 3
	testMemSize = 1 << 20
	// scratch allocations start past the low addresses tests use directly.
	scratchBase = 4096
)

// testMemory is a flat byte slice standing in for guest linear memory.
type testMemory struct {
	data []byte
	next uint32
}

func newTestMemory() *testMemory {
	return &testMemory{data: make([]byte, testMemSize), next: scratchBase}
}

func (m *testMemory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return fmt.Errorf("out of bounds: offset=%d, length=%d", offset, length)
	}
	return nil
}

func (m *testMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length : offset+length], nil
}

func (m *testMemory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *testMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *testMemory) ReadU16(offset uint32) (uint16, error) {
	if err := m.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *testMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *testMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *testMemory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *testMemory) WriteU16(offset uint32, value uint16) error {
	if err := m.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *testMemory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *testMemory) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}

// alloc reserves n zeroed bytes, 8-byte aligned.
func (m *testMemory) alloc(n uint32) uint32 {
	ptr := (m.next + 7) &^ 7
	m.next = ptr + n
	clear(m.data[ptr:m.next])
	return ptr
}

func (m *testMemory) str(s string) (uint32, uint32) {
	ptr := m.alloc(uint32(len(s)))
	copy(m.data[ptr:], s)
	return ptr, uint32(len(s))
}

// iov builds a one-entry iovec list over a buffer holding data, or size
// zero bytes when data is shorter.
func (m *testMemory) iov(data []byte, size uint32) (list, buf uint32) {
	if size < uint32(len(data)) {
		size = uint32(len(data))
	}
	buf = m.alloc(size)
	copy(m.data[buf:], data)
	list = m.alloc(IovecSize)
	binary.LittleEndian.PutUint32(m.data[list:], buf)
	binary.LittleEndian.PutUint32(m.data[list+4:], size)
	return list, buf
}

func (m *testMemory) u32(ptr uint32) uint32 { return binary.LittleEndian.Uint32(m.data[ptr:]) }
func (m *testMemory) u64(ptr uint32) uint64 { return binary.LittleEndian.Uint64(m.data[ptr:]) }

func (m *testMemory) bytes(ptr, n uint32) []byte {
	return append([]byte(nil), m.data[ptr:ptr+n]...)
}

type testEnv struct {
	t       *testing.T
	ctx     context.Context
	adapter *Adapter
	wasi    *preview2.WASI
	mem     *testMemory
	dir     string
}

// newTestEnv starts a command adapter with the temp dir preopened as
// "/sandbox" on fd 3.
func newTestEnv(t *testing.T, configure func(w *preview2.WASI)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	w := preview2.New().WithPreopen(dir, "/sandbox")
	if configure != nil {
		configure(w)
	}
	ctx := context.Background()
	a := NewAdapter(NewCapabilities(w), Config{Variant: VariantCommand})
	a.Start(ctx)
	t.Cleanup(func() {
		a.Close(ctx)
		w.Close()
	})
	return &testEnv{t: t, ctx: ctx, adapter: a, wasi: w, mem: newTestMemory(), dir: dir}
}

func (e *testEnv) expect(name string, got, want Errno) {
	e.t.Helper()
	if got != want {
		e.t.Fatalf("%s: expected %v, got %v", name, want, got)
	}
}

func (e *testEnv) open(path string, oflags Oflags, rights Rights, fdflags Fdflags) uint32 {
	e.t.Helper()
	fd, errno := e.tryOpen(path, oflags, rights, fdflags)
	e.expect("path_open "+path, errno, ErrnoSuccess)
	return fd
}

func (e *testEnv) tryOpen(path string, oflags Oflags, rights Rights, fdflags Fdflags) (uint32, Errno) {
	p, n := e.mem.str(path)
	fdPtr := e.mem.alloc(4)
	errno := e.adapter.PathOpen(e.ctx, e.mem, preopenFd, LookupflagsSymlinkFollow, p, n, oflags, rights, rights, fdflags, fdPtr)
	return e.mem.u32(fdPtr), errno
}

func (e *testEnv) write(fd uint32, data string) uint32 {
	e.t.Helper()
	list, _ := e.mem.iov([]byte(data), 0)
	nPtr := e.mem.alloc(4)
	e.expect("fd_write", e.adapter.FdWrite(e.ctx, e.mem, fd, list, 1, nPtr), ErrnoSuccess)
	return e.mem.u32(nPtr)
}

func (e *testEnv) read(fd uint32, size uint32) string {
	e.t.Helper()
	list, buf := e.mem.iov(nil, size)
	nPtr := e.mem.alloc(4)
	e.expect("fd_read", e.adapter.FdRead(e.ctx, e.mem, fd, list, 1, nPtr), ErrnoSuccess)
	return string(e.mem.bytes(buf, e.mem.u32(nPtr)))
}

func (e *testEnv) seek(fd uint32, offset int64, whence Whence) uint64 {
	e.t.Helper()
	ptr := e.mem.alloc(8)
	e.expect("fd_seek", e.adapter.FdSeek(e.ctx, e.mem, fd, offset, whence, ptr), ErrnoSuccess)
	return e.mem.u64(ptr)
}

func (e *testEnv) tell(fd uint32) uint64 {
	e.t.Helper()
	ptr := e.mem.alloc(8)
	e.expect("fd_tell", e.adapter.FdTell(e.ctx, e.mem, fd, ptr), ErrnoSuccess)
	return e.mem.u64(ptr)
}

func (e *testEnv) fdstat(fd uint32) Fdstat {
	e.t.Helper()
	ptr := e.mem.alloc(FdstatSize)
	e.expect("fd_fdstat_get", e.adapter.FdFdstatGet(e.ctx, e.mem, fd, ptr), ErrnoSuccess)
	b := e.mem.data[ptr:]
	return Fdstat{
		Filetype:         Filetype(b[0]),
		Flags:            Fdflags(binary.LittleEndian.Uint16(b[2:])),
		RightsBase:       Rights(binary.LittleEndian.Uint64(b[8:])),
		RightsInheriting: Rights(binary.LittleEndian.Uint64(b[16:])),
	}
}

// testContext returns a context that is canceled when the test finishes,
// mirroring testing.T.Context on toolchains that predate it.
func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
