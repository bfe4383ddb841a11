package preview1

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/wasi-adapter/resource"
)

type dirent struct {
	next uint64
	ino  uint64
	typ  Filetype
	name string
}

// parseDirents decodes complete records from a readdir buffer. A record
// whose name was cut off is returned with truncated set.
func parseDirents(b []byte) (entries []dirent, truncated bool) {
	for len(b) > 0 {
		if len(b) < DirentSize {
			return entries, true
		}
		namlen := binary.LittleEndian.Uint32(b[16:])
		if uint32(len(b)-DirentSize) < namlen {
			return entries, true
		}
		entries = append(entries, dirent{
			next: binary.LittleEndian.Uint64(b[0:]),
			ino:  binary.LittleEndian.Uint64(b[8:]),
			typ:  Filetype(b[20]),
			name: string(b[DirentSize : DirentSize+namlen]),
		})
		b = b[DirentSize+namlen:]
	}
	return entries, false
}

func (e *testEnv) readdir(fd, size uint32, cookie uint64) []byte {
	e.t.Helper()
	buf := e.mem.alloc(size)
	usedPtr := e.mem.alloc(4)
	e.expect("fd_readdir", e.adapter.FdReaddir(e.ctx, e.mem, fd, buf, size, cookie, usedPtr), ErrnoSuccess)
	return e.mem.bytes(buf, e.mem.u32(usedPtr))
}

// listAll drains a directory the way wasi-libc does: resume at the cookie
// of the last complete record whenever the buffer came back full.
func (e *testEnv) listAll(fd, size uint32) []string {
	e.t.Helper()
	var names []string
	var cookie uint64
	for i := 0; i < 1000; i++ {
		b := e.readdir(fd, size, cookie)
		entries, _ := parseDirents(b)
		for _, d := range entries {
			names = append(names, d.name)
			cookie = d.next
		}
		if uint32(len(b)) < size {
			return names
		}
		if len(entries) == 0 {
			e.t.Fatalf("buffer of %d bytes cannot hold one entry", size)
		}
	}
	e.t.Fatalf("readdir did not finish")
	return nil
}

func makeTree(t *testing.T, dir string, n int) []string {
	t.Helper()
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("file-%02d-%s", i, strings.Repeat("x", i%7))
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		names = append(names, name)
	}
	return names
}

func TestReaddir_DotEntries(t *testing.T) {
	e := newTestEnv(t, nil)
	makeTree(t, e.dir, 1)

	entries, truncated := parseDirents(e.readdir(preopenFd, 512, 0))
	if truncated || len(entries) != 3 {
		t.Fatalf("expected 3 whole entries, got %d (truncated %v)", len(entries), truncated)
	}
	if entries[0].name != "." || entries[0].typ != FiletypeDirectory || entries[0].ino == 0 {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].name != ".." || entries[1].ino != 0 {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
	if entries[2].typ != FiletypeRegularFile || entries[2].next != 3 {
		t.Errorf("unexpected file entry %+v", entries[2])
	}

	// Starting at a cookie skips what came before.
	entries, _ = parseDirents(e.readdir(preopenFd, 512, 2))
	if len(entries) != 1 || entries[0].name != "file-00-" {
		t.Errorf("expected only the file at cookie 2, got %+v", entries)
	}
	if b := e.readdir(preopenFd, 512, 3); len(b) != 0 {
		t.Errorf("expected nothing past the end, got %d bytes", len(b))
	}
}

func TestReaddir_Resume(t *testing.T) {
	e := newTestEnv(t, nil)
	want := append([]string{".", ".."}, makeTree(t, e.dir, 40)...)

	for _, size := range []uint32{40, 50, 64, 100, 333, 4096} {
		t.Run(fmt.Sprintf("buf%d", size), func(t *testing.T) {
			got := e.listAll(preopenFd, size)
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("listing mismatch:\n got %v\nwant %v", got, want)
			}
		})
	}
}

func TestReaddir_CacheReleasedOnClose(t *testing.T) {
	e := newTestEnv(t, nil)
	makeTree(t, e.dir, 10)
	counter := resource.NewLiveCounter()
	e.wasi.Resources().Subscribe(counter)

	sub := e.open(".", OflagsDirectory, RightsFdReaddir, 0)
	withDir := counter.Total()

	// A small buffer leaves the iterator parked in the cache.
	e.readdir(sub, 40, 0)
	if counter.Live(resource.KindDirectoryEntryStream) != 1 {
		t.Fatalf("expected a cached directory stream, got %d", counter.Live(resource.KindDirectoryEntryStream))
	}

	e.expect("fd_close", e.adapter.FdClose(e.ctx, sub), ErrnoSuccess)
	if live := counter.Live(resource.KindDirectoryEntryStream); live != 0 {
		t.Errorf("closing the descriptor must drop the cached stream, %d live", live)
	}
	if counter.Total() != withDir-1 {
		t.Errorf("expected %d live handles after close, got %d", withDir-1, counter.Total())
	}
}

func TestReaddir_NotDirectory(t *testing.T) {
	e := newTestEnv(t, nil)
	fd := e.open("plain", OflagsCreat, rw, 0)
	buf := e.mem.alloc(64)
	e.expect("readdir file", e.adapter.FdReaddir(e.ctx, e.mem, fd, buf, 64, 0, e.mem.alloc(4)), ErrnoNotdir)
	e.expect("readdir stdout", e.adapter.FdReaddir(e.ctx, e.mem, 1, buf, 64, 0, e.mem.alloc(4)), ErrnoNotdir)
	e.expect("readdir closed", e.adapter.FdReaddir(e.ctx, e.mem, 77, buf, 64, 0, e.mem.alloc(4)), ErrnoBadf)
}
