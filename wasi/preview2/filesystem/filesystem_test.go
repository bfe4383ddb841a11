package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
	"github.com/wippyai/wasi-adapter/wasi/preview2/clocks"
)

const rwFlags = uint8(DescriptorFlagRead | DescriptorFlagWrite)

func newHost(t *testing.T) (*TypesHost, *preview2.ResourceTable, uint32, string) {
	t.Helper()
	tempDir := t.TempDir()
	resources := preview2.NewResourceTable()
	host := NewTypesHost(resources)
	dir := resources.Add(preview2.NewDescriptorResource(tempDir, true, uint8(PreopenFlags)))
	return host, resources, dir, tempDir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
}

func TestTypesHost_MethodDescriptorGetType(t *testing.T) {
	host, resources, dir, tempDir := newHost(t)
	ctx := context.Background()
	testFile := filepath.Join(tempDir, "test.txt")
	writeFile(t, testFile, "content")

	fileHandle := resources.Add(preview2.NewDescriptorResource(testFile, false, rwFlags))

	dtype, err := host.MethodDescriptorGetType(ctx, fileHandle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dtype != DescriptorTypeRegularFile {
		t.Errorf("expected regular file, got %d", dtype)
	}

	dtype, err = host.MethodDescriptorGetType(ctx, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dtype != DescriptorTypeDirectory {
		t.Errorf("expected directory, got %d", dtype)
	}
}

func TestTypesHost_MethodDescriptorRead(t *testing.T) {
	host, resources, _, tempDir := newHost(t)
	ctx := context.Background()
	testFile := filepath.Join(tempDir, "test.txt")
	writeFile(t, testFile, "hello world")

	handle := resources.Add(preview2.NewDescriptorResource(testFile, false, rwFlags))

	data, eof, fsErr := host.MethodDescriptorRead(ctx, handle, 5, 0)
	if fsErr != nil {
		t.Fatalf("unexpected error: %v", fsErr)
	}
	if string(data) != "hello" || eof {
		t.Errorf("got %q eof=%v, want hello eof=false", data, eof)
	}

	data, eof, fsErr = host.MethodDescriptorRead(ctx, handle, 10, 6)
	if fsErr != nil {
		t.Fatalf("unexpected error: %v", fsErr)
	}
	if string(data) != "world" || !eof {
		t.Errorf("got %q eof=%v, want world eof=true", data, eof)
	}
}

func TestTypesHost_AccessFlags(t *testing.T) {
	host, resources, dir, tempDir := newHost(t)
	ctx := context.Background()
	testFile := filepath.Join(tempDir, "test.txt")
	writeFile(t, testFile, "data")

	readOnly := resources.Add(preview2.NewDescriptorResource(testFile, false, uint8(DescriptorFlagRead)))
	if _, err := host.MethodDescriptorWrite(ctx, readOnly, []byte("x"), 0); err == nil || err.Code != ErrorBadDescriptor {
		t.Errorf("write on read-only descriptor: got %v, want bad-descriptor", err)
	}

	writeOnly := resources.Add(preview2.NewDescriptorResource(testFile, false, uint8(DescriptorFlagWrite)))
	if _, _, err := host.MethodDescriptorRead(ctx, writeOnly, 1, 0); err == nil || err.Code != ErrorBadDescriptor {
		t.Errorf("read on write-only descriptor: got %v, want bad-descriptor", err)
	}

	if _, _, err := host.MethodDescriptorRead(ctx, dir, 1, 0); err == nil || err.Code != ErrorIsDirectory {
		t.Errorf("read on directory: got %v, want is-directory", err)
	}

	frozen := resources.Add(preview2.NewDescriptorResource(tempDir, true, uint8(DescriptorFlagRead)))
	if err := host.MethodDescriptorCreateDirectoryAt(ctx, frozen, "sub"); err == nil || err.Code != ErrorReadOnly {
		t.Errorf("mkdir without mutate-directory: got %v, want read-only", err)
	}
}

func TestTypesHost_MethodDescriptorOpenAt(t *testing.T) {
	host, _, dir, tempDir := newHost(t)
	ctx := context.Background()

	_, err := host.MethodDescriptorOpenAt(ctx, dir, 0, "missing.txt", 0, DescriptorFlagRead)
	if err == nil || err.Code != ErrorNoEntry {
		t.Fatalf("open missing file: got %v, want no-entry", err)
	}

	handle, err := host.MethodDescriptorOpenAt(ctx, dir, 0, "new.txt", OpenFlagCreate, DescriptorFlagRead|DescriptorFlagWrite)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(tempDir, "new.txt")); statErr != nil {
		t.Fatalf("file not created: %v", statErr)
	}

	n, err := host.MethodDescriptorWrite(ctx, handle, []byte("abc"), 0)
	if err != nil || n != 3 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}

	_, err = host.MethodDescriptorOpenAt(ctx, dir, 0, "new.txt", OpenFlagCreate|OpenFlagExclusive, DescriptorFlagWrite)
	if err == nil || err.Code != ErrorExist {
		t.Errorf("exclusive create of existing file: got %v, want exist", err)
	}

	_, err = host.MethodDescriptorOpenAt(ctx, dir, 0, "new.txt", OpenFlagDirectory, DescriptorFlagRead)
	if err == nil || err.Code != ErrorNotDirectory {
		t.Errorf("directory flag on file: got %v, want not-directory", err)
	}

	handle, err = host.MethodDescriptorOpenAt(ctx, dir, 0, "new.txt", OpenFlagTruncate, DescriptorFlagWrite)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	stat, err := host.MethodDescriptorStat(ctx, handle)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.Size != 0 {
		t.Errorf("size after truncate = %d, want 0", stat.Size)
	}
}

func TestTypesHost_OpenAt_SandboxEscape(t *testing.T) {
	host, _, dir, _ := newHost(t)
	ctx := context.Background()

	for _, path := range []string{"../etc/passwd", "/etc/passwd", "a/../../b"} {
		_, err := host.MethodDescriptorOpenAt(ctx, dir, 0, path, 0, DescriptorFlagRead)
		if err == nil || err.Code != ErrorNotPermitted {
			t.Errorf("open %q: got %v, want not-permitted", path, err)
		}
	}

	if _, err := host.MethodDescriptorOpenAt(ctx, dir, 0, "", 0, DescriptorFlagRead); err == nil || err.Code != ErrorNoEntry {
		t.Errorf("open empty path: got %v, want no-entry", err)
	}
}

func TestTypesHost_OpenAt_NoFollow(t *testing.T) {
	host, _, dir, tempDir := newHost(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(tempDir, "target"), "x")
	if err := os.Symlink("target", filepath.Join(tempDir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := host.MethodDescriptorOpenAt(ctx, dir, 0, "link", 0, DescriptorFlagRead); err == nil || err.Code != ErrorLoop {
		t.Errorf("open symlink without follow: got %v, want loop", err)
	}
	if _, err := host.MethodDescriptorOpenAt(ctx, dir, PathFlagSymlinkFollow, "link", 0, DescriptorFlagRead); err != nil {
		t.Errorf("open symlink with follow: %v", err)
	}

	target, err := host.MethodDescriptorReadlinkAt(ctx, dir, "link")
	if err != nil || target != "target" {
		t.Errorf("readlink = %q, %v", target, err)
	}

	stat, err := host.MethodDescriptorStatAt(ctx, dir, 0, "link")
	if err != nil {
		t.Fatalf("stat-at: %v", err)
	}
	if stat.Type != DescriptorTypeSymbolicLink {
		t.Errorf("stat-at type = %d, want symbolic link", stat.Type)
	}
}

func TestTypesHost_Streams(t *testing.T) {
	host, resources, _, tempDir := newHost(t)
	ctx := context.Background()
	testFile := filepath.Join(tempDir, "stream.txt")
	writeFile(t, testFile, "0123456789")
	handle := resources.Add(preview2.NewDescriptorResource(testFile, false, rwFlags))

	in, err := host.MethodDescriptorReadViaStream(ctx, handle, 4)
	if err != nil {
		t.Fatalf("read-via-stream: %v", err)
	}
	r, _ := resources.Get(in)
	data, rerr := r.(*preview2.FileInputStreamResource).Read(3)
	if rerr != nil || string(data) != "456" {
		t.Errorf("stream read = %q, %v", data, rerr)
	}

	out, err := host.MethodDescriptorWriteViaStream(ctx, handle, 2)
	if err != nil {
		t.Fatalf("write-via-stream: %v", err)
	}
	w, _ := resources.Get(out)
	if werr := w.(*preview2.FileOutputStreamResource).Write([]byte("ab")); werr != nil {
		t.Fatalf("stream write: %v", werr)
	}

	app, err := host.MethodDescriptorAppendViaStream(ctx, handle)
	if err != nil {
		t.Fatalf("append-via-stream: %v", err)
	}
	a, _ := resources.Get(app)
	if werr := a.(*preview2.FileOutputStreamResource).Write([]byte("!")); werr != nil {
		t.Fatalf("append write: %v", werr)
	}

	resources.Remove(in)
	resources.Remove(out)
	resources.Remove(app)

	content, _ := os.ReadFile(testFile)
	if string(content) != "01ab456789!" {
		t.Errorf("file content = %q", content)
	}
}

func TestTypesHost_ReadDirectory(t *testing.T) {
	host, _, dir, tempDir := newHost(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(tempDir, "b.txt"), "b")
	writeFile(t, filepath.Join(tempDir, "a.txt"), "a")
	if err := os.Mkdir(filepath.Join(tempDir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	stream, err := host.MethodDescriptorReadDirectory(ctx, dir)
	if err != nil {
		t.Fatalf("read-directory: %v", err)
	}

	var names []string
	for {
		entry, err := host.MethodDirectoryEntryStreamReadDirectoryEntry(ctx, stream)
		if err != nil {
			t.Fatalf("read-directory-entry: %v", err)
		}
		if entry == nil {
			break
		}
		names = append(names, entry.Name)
		if entry.Name == "sub" && DescriptorType(entry.Type) != DescriptorTypeDirectory {
			t.Errorf("sub type = %d, want directory", entry.Type)
		}
		if entry.Inode == 0 {
			t.Errorf("%s has no inode", entry.Name)
		}
	}

	want := []string{"a.txt", "b.txt", "sub"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	host.ResourceDropDirectoryEntryStream(ctx, stream)
	if _, err := host.MethodDirectoryEntryStreamReadDirectoryEntry(ctx, stream); err == nil {
		t.Error("expected error after drop")
	}
}

func TestTypesHost_DirectoryMutation(t *testing.T) {
	host, _, dir, tempDir := newHost(t)
	ctx := context.Background()

	if err := host.MethodDescriptorCreateDirectoryAt(ctx, dir, "sub"); err != nil {
		t.Fatalf("create-directory-at: %v", err)
	}
	if err := host.MethodDescriptorCreateDirectoryAt(ctx, dir, "sub"); err == nil || err.Code != ErrorExist {
		t.Errorf("second mkdir: got %v, want exist", err)
	}

	writeFile(t, filepath.Join(tempDir, "sub", "f"), "x")
	if err := host.MethodDescriptorRemoveDirectoryAt(ctx, dir, "sub"); err == nil || err.Code != ErrorNotEmpty {
		t.Errorf("rmdir non-empty: got %v, want not-empty", err)
	}
	if err := host.MethodDescriptorUnlinkFileAt(ctx, dir, "sub"); err == nil || err.Code != ErrorIsDirectory {
		t.Errorf("unlink directory: got %v, want is-directory", err)
	}

	if err := host.MethodDescriptorRenameAt(ctx, dir, "sub/f", dir, "g"); err != nil {
		t.Fatalf("rename-at: %v", err)
	}
	if err := host.MethodDescriptorLinkAt(ctx, dir, 0, "g", dir, "h"); err != nil {
		t.Fatalf("link-at: %v", err)
	}
	stat, err := host.MethodDescriptorStatAt(ctx, dir, 0, "g")
	if err != nil {
		t.Fatalf("stat-at: %v", err)
	}
	if stat.LinkCount != 2 {
		t.Errorf("link count = %d, want 2", stat.LinkCount)
	}

	if err := host.MethodDescriptorUnlinkFileAt(ctx, dir, "g"); err != nil {
		t.Errorf("unlink: %v", err)
	}
	if err := host.MethodDescriptorRemoveDirectoryAt(ctx, dir, "h"); err == nil || err.Code != ErrorNotDirectory {
		t.Errorf("rmdir file: got %v, want not-directory", err)
	}
	if err := host.MethodDescriptorRemoveDirectoryAt(ctx, dir, "sub"); err != nil {
		t.Errorf("rmdir: %v", err)
	}

	if err := host.MethodDescriptorSymlinkAt(ctx, dir, "../outside", "bad"); err == nil || err.Code != ErrorNotPermitted {
		t.Errorf("escaping symlink: got %v, want not-permitted", err)
	}
}

func TestTypesHost_SetTimesAndSize(t *testing.T) {
	host, resources, dir, tempDir := newHost(t)
	ctx := context.Background()
	testFile := filepath.Join(tempDir, "t.txt")
	writeFile(t, testFile, "hello")
	handle := resources.Add(preview2.NewDescriptorResource(testFile, false, rwFlags))

	mtime := NewTimestamp{Kind: TimestampSet, Time: clocks.Datetime{Seconds: 1_000_000, Nanoseconds: 500}}
	if err := host.MethodDescriptorSetTimes(ctx, handle, NewTimestamp{}, mtime); err != nil {
		t.Fatalf("set-times: %v", err)
	}
	stat, err := host.MethodDescriptorStat(ctx, handle)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stat.DataModificationTimestamp.Seconds != 1_000_000 {
		t.Errorf("mtime = %+v", stat.DataModificationTimestamp)
	}

	atime := NewTimestamp{Kind: TimestampSet, Time: clocks.Datetime{Seconds: 2_000_000}}
	if err := host.MethodDescriptorSetTimesAt(ctx, dir, 0, "t.txt", atime, NewTimestamp{}); err != nil {
		t.Fatalf("set-times-at: %v", err)
	}
	stat, _ = host.MethodDescriptorStat(ctx, handle)
	if stat.DataAccessTimestamp.Seconds != 2_000_000 {
		t.Errorf("atime = %+v", stat.DataAccessTimestamp)
	}
	if stat.DataModificationTimestamp.Seconds != 1_000_000 {
		t.Errorf("mtime changed to %+v", stat.DataModificationTimestamp)
	}

	if err := host.MethodDescriptorSetSize(ctx, handle, 2); err != nil {
		t.Fatalf("set-size: %v", err)
	}
	content, _ := os.ReadFile(testFile)
	if string(content) != "he" {
		t.Errorf("content = %q", content)
	}
}

func TestTypesHost_Flags(t *testing.T) {
	host, resources, _, tempDir := newHost(t)
	ctx := context.Background()
	testFile := filepath.Join(tempDir, "f.txt")
	writeFile(t, testFile, "x")
	handle := resources.Add(preview2.NewDescriptorResource(testFile, false, rwFlags))

	if err := host.MethodDescriptorSetFlags(ctx, handle, DescriptorFlagDataIntegritySync|DescriptorFlagMutateDirectory); err != nil {
		t.Fatalf("set-flags: %v", err)
	}
	flags, err := host.MethodDescriptorGetFlags(ctx, handle)
	if err != nil {
		t.Fatalf("get-flags: %v", err)
	}
	want := DescriptorFlagRead | DescriptorFlagWrite | DescriptorFlagDataIntegritySync
	if flags != want {
		t.Errorf("flags = %#x, want %#x", flags, want)
	}

	if err := host.MethodDescriptorSync(ctx, handle); err != nil {
		t.Errorf("sync: %v", err)
	}
	if err := host.MethodDescriptorSyncData(ctx, handle); err != nil {
		t.Errorf("sync-data: %v", err)
	}
	if err := host.MethodDescriptorAdvise(ctx, handle, 0, 1, AdviceSequential); err != nil {
		t.Errorf("advise: %v", err)
	}
	if err := host.MethodDescriptorAdvise(ctx, handle, 0, 1, Advice(9)); err == nil || err.Code != ErrorInvalid {
		t.Errorf("bad advice: got %v, want invalid", err)
	}
}

func TestTypesHost_BadDescriptor(t *testing.T) {
	host, resources, _, _ := newHost(t)
	ctx := context.Background()

	if _, err := host.MethodDescriptorStat(ctx, 9999); err == nil || err.Code != ErrorBadDescriptor {
		t.Errorf("stat invalid handle: got %v", err)
	}

	clock := resources.Add(preview2.NewClockResource(preview2.ClockWall))
	if _, err := host.MethodDescriptorStat(ctx, clock); err == nil || err.Code != ErrorBadDescriptor {
		t.Errorf("stat clock handle: got %v", err)
	}
}

func TestPreopensHost_Order(t *testing.T) {
	resources := preview2.NewResourceTable()
	a, b := t.TempDir(), t.TempDir()
	host := NewPreopensHost(resources, []preview2.Preopen{
		{HostPath: b, GuestPath: "/b"},
		{HostPath: a, GuestPath: "/a"},
	})

	dirs := host.GetDirectories(context.Background())
	if len(dirs) != 2 {
		t.Fatalf("got %d preopens, want 2", len(dirs))
	}
	if dirs[0].GuestPath != "/b" || dirs[1].GuestPath != "/a" {
		t.Errorf("order = %s, %s", dirs[0].GuestPath, dirs[1].GuestPath)
	}

	r, ok := resources.Get(dirs[0].Descriptor)
	if !ok {
		t.Fatal("preopen descriptor missing")
	}
	desc := r.(*preview2.DescriptorResource)
	if desc.Path() != b || !desc.IsDir() || DescriptorFlags(desc.Flags()) != PreopenFlags {
		t.Errorf("descriptor = %s dir=%v flags=%#x", desc.Path(), desc.IsDir(), desc.Flags())
	}
}

func TestErrorCode_String(t *testing.T) {
	if ErrorCrossDevice.String() != "cross-device" {
		t.Errorf("got %q", ErrorCrossDevice.String())
	}
	if ErrorAccess.String() != "access" {
		t.Errorf("got %q", ErrorAccess.String())
	}
	if ErrorCode(200).String() != "unknown" {
		t.Errorf("got %q", ErrorCode(200).String())
	}
	if mapOSError(nil) != nil {
		t.Error("nil error mapped to code")
	}
	if mapOSError(os.ErrNotExist).Code != ErrorNoEntry {
		t.Error("ErrNotExist not mapped to no-entry")
	}
}
