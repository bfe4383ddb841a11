package filesystem

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
	"github.com/wippyai/wasi-adapter/wasi/preview2/clocks"
)

type TypesHost struct {
	resources *preview2.ResourceTable
}

func NewTypesHost(resources *preview2.ResourceTable) *TypesHost {
	return &TypesHost{resources: resources}
}

type DescriptorType uint8

const (
	DescriptorTypeUnknown DescriptorType = iota
	DescriptorTypeBlockDevice
	DescriptorTypeCharacterDevice
	DescriptorTypeDirectory
	DescriptorTypeFifo
	DescriptorTypeSymbolicLink
	DescriptorTypeRegularFile
	DescriptorTypeSocket
)

// DescriptorFlags describe how a descriptor was opened.
type DescriptorFlags uint8

const (
	DescriptorFlagRead DescriptorFlags = 1 << iota
	DescriptorFlagWrite
	DescriptorFlagNonBlocking
	DescriptorFlagFileIntegritySync
	DescriptorFlagDataIntegritySync
	DescriptorFlagRequestedWriteSync
	DescriptorFlagMutateDirectory
)

// settableFlags are the bits set-flags may change. Access bits are fixed
// when the descriptor is opened.
const settableFlags = DescriptorFlagNonBlocking | DescriptorFlagFileIntegritySync |
	DescriptorFlagDataIntegritySync | DescriptorFlagRequestedWriteSync

type PathFlags uint8

const PathFlagSymlinkFollow PathFlags = 1

type OpenFlags uint8

const (
	OpenFlagCreate OpenFlags = 1 << iota
	OpenFlagDirectory
	OpenFlagExclusive
	OpenFlagTruncate
)

type Advice uint8

const (
	AdviceNormal Advice = iota
	AdviceSequential
	AdviceRandom
	AdviceWillNeed
	AdviceDontNeed
	AdviceNoReuse
)

type NewTimestampKind uint8

const (
	TimestampNoChange NewTimestampKind = iota
	TimestampNow
	TimestampSet
)

// NewTimestamp selects how set-times updates one timestamp. Time is only
// read for TimestampSet.
type NewTimestamp struct {
	Kind NewTimestampKind
	Time clocks.Datetime
}

type DescriptorStat struct {
	Type                      DescriptorType
	Device                    uint64
	Inode                     uint64
	LinkCount                 uint64
	Size                      uint64
	DataAccessTimestamp       clocks.Datetime
	DataModificationTimestamp clocks.Datetime
	StatusChangeTimestamp     clocks.Datetime
}

func fileInfoToDescriptorType(info os.FileInfo) DescriptorType {
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return DescriptorTypeDirectory
	case mode.IsRegular():
		return DescriptorTypeRegularFile
	case mode&os.ModeSymlink != 0:
		return DescriptorTypeSymbolicLink
	case mode&os.ModeNamedPipe != 0:
		return DescriptorTypeFifo
	case mode&os.ModeSocket != 0:
		return DescriptorTypeSocket
	case mode&os.ModeDevice != 0:
		if mode&os.ModeCharDevice != 0 {
			return DescriptorTypeCharacterDevice
		}
		return DescriptorTypeBlockDevice
	default:
		return DescriptorTypeUnknown
	}
}

func (h *TypesHost) getDescriptor(handle uint32) (*preview2.DescriptorResource, *Error) {
	r, ok := h.resources.Get(handle)
	if !ok {
		return nil, errCode(ErrorBadDescriptor)
	}
	desc, ok := r.(*preview2.DescriptorResource)
	if !ok {
		return nil, errCode(ErrorBadDescriptor)
	}
	return desc, nil
}

func flagsOf(desc *preview2.DescriptorResource) DescriptorFlags {
	return DescriptorFlags(desc.Flags())
}

func (h *TypesHost) getReadable(handle uint32) (*preview2.DescriptorResource, *Error) {
	desc, err := h.getDescriptor(handle)
	if err != nil {
		return nil, err
	}
	if flagsOf(desc)&DescriptorFlagRead == 0 {
		return nil, errCode(ErrorBadDescriptor)
	}
	return desc, nil
}

func (h *TypesHost) getWritable(handle uint32) (*preview2.DescriptorResource, *Error) {
	desc, err := h.getDescriptor(handle)
	if err != nil {
		return nil, err
	}
	if flagsOf(desc)&DescriptorFlagWrite == 0 {
		return nil, errCode(ErrorBadDescriptor)
	}
	if desc.IsDir() {
		return nil, errCode(ErrorIsDirectory)
	}
	return desc, nil
}

// getMutableDir returns a directory descriptor that may change its entries.
func (h *TypesHost) getMutableDir(handle uint32) (*preview2.DescriptorResource, *Error) {
	desc, err := h.getDescriptor(handle)
	if err != nil {
		return nil, err
	}
	if !desc.IsDir() {
		return nil, errCode(ErrorNotDirectory)
	}
	if flagsOf(desc)&DescriptorFlagMutateDirectory == 0 {
		return nil, errCode(ErrorReadOnly)
	}
	return desc, nil
}

// resolvePath resolves a path relative to a descriptor. Returns error if path escapes the sandbox.
func (h *TypesHost) resolvePath(desc *preview2.DescriptorResource, path string) (string, *Error) {
	if path == "" {
		return "", errCode(ErrorNoEntry)
	}
	if !desc.IsDir() {
		return "", errCode(ErrorNotDirectory)
	}
	if filepath.IsAbs(path) {
		return "", errCode(ErrorNotPermitted)
	}
	fullPath := filepath.Clean(filepath.Join(desc.Path(), path))

	rel, err := filepath.Rel(desc.Path(), fullPath)
	if err != nil || escapes(rel) {
		return "", errCode(ErrorNotPermitted)
	}
	return fullPath, nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// MethodDescriptorRead reads up to length bytes at offset. The boolean
// result reports end of file.
func (h *TypesHost) MethodDescriptorRead(_ context.Context, self uint32, length uint64, offset uint64) ([]byte, bool, *Error) {
	desc, err := h.getReadable(self)
	if err != nil {
		return nil, false, err
	}
	if desc.IsDir() {
		return nil, false, errCode(ErrorIsDirectory)
	}

	f, osErr := os.Open(desc.Path())
	if osErr != nil {
		return nil, false, mapOSError(osErr)
	}
	defer f.Close()

	// Limit allocation size to prevent DoS
	if length > preview2.MaxAllocationSize {
		length = preview2.MaxAllocationSize
	}

	buf := make([]byte, length)
	n, osErr := f.ReadAt(buf, int64(offset))
	if osErr != nil && !errors.Is(osErr, io.EOF) {
		return nil, false, mapOSError(osErr)
	}
	return buf[:n], osErr != nil, nil
}

func (h *TypesHost) MethodDescriptorWrite(_ context.Context, self uint32, buffer []byte, offset uint64) (uint64, *Error) {
	desc, err := h.getWritable(self)
	if err != nil {
		return 0, err
	}

	f, osErr := os.OpenFile(desc.Path(), os.O_WRONLY|syncOpenFlag(flagsOf(desc)), 0)
	if osErr != nil {
		return 0, mapOSError(osErr)
	}
	defer f.Close()

	n, osErr := f.WriteAt(buffer, int64(offset))
	if osErr != nil {
		return uint64(n), mapOSError(osErr)
	}
	return uint64(n), nil
}

func (h *TypesHost) MethodDescriptorReadViaStream(_ context.Context, self uint32, offset uint64) (uint32, *Error) {
	desc, err := h.getReadable(self)
	if err != nil {
		return 0, err
	}
	if desc.IsDir() {
		return 0, errCode(ErrorIsDirectory)
	}

	stream, osErr := preview2.NewFileInputStreamResource(desc.Path(), int64(offset))
	if osErr != nil {
		return 0, mapOSError(osErr)
	}
	return h.resources.Add(stream), nil
}

func (h *TypesHost) MethodDescriptorWriteViaStream(_ context.Context, self uint32, offset uint64) (uint32, *Error) {
	desc, err := h.getWritable(self)
	if err != nil {
		return 0, err
	}

	stream, osErr := preview2.NewFileOutputStreamResource(desc.Path(), int64(offset), false, syncOpenFlag(flagsOf(desc)))
	if osErr != nil {
		return 0, mapOSError(osErr)
	}
	return h.resources.Add(stream), nil
}

func (h *TypesHost) MethodDescriptorAppendViaStream(_ context.Context, self uint32) (uint32, *Error) {
	desc, err := h.getWritable(self)
	if err != nil {
		return 0, err
	}

	stream, osErr := preview2.NewFileOutputStreamResource(desc.Path(), 0, true, syncOpenFlag(flagsOf(desc)))
	if osErr != nil {
		return 0, mapOSError(osErr)
	}
	return h.resources.Add(stream), nil
}

func (h *TypesHost) MethodDescriptorAdvise(_ context.Context, self uint32, offset uint64, length uint64, advice Advice) *Error {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return err
	}
	if advice > AdviceNoReuse {
		return errCode(ErrorInvalid)
	}
	if desc.IsDir() {
		return errCode(ErrorBadDescriptor)
	}

	f, osErr := os.Open(desc.Path())
	if osErr != nil {
		return mapOSError(osErr)
	}
	defer f.Close()
	return mapOSError(adviseFile(f, offset, length, advice))
}

func (h *TypesHost) MethodDescriptorSync(_ context.Context, self uint32) *Error {
	return h.sync(self, syncFile)
}

func (h *TypesHost) MethodDescriptorSyncData(_ context.Context, self uint32) *Error {
	return h.sync(self, syncFileData)
}

func (h *TypesHost) sync(self uint32, fn func(*os.File) error) *Error {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return err
	}
	f, osErr := os.Open(desc.Path())
	if osErr != nil {
		return mapOSError(osErr)
	}
	defer f.Close()
	return mapOSError(fn(f))
}

func (h *TypesHost) MethodDescriptorGetFlags(_ context.Context, self uint32) (DescriptorFlags, *Error) {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return 0, err
	}
	return flagsOf(desc), nil
}

// MethodDescriptorSetFlags replaces the non-blocking and sync bits. Access
// bits in flags are ignored.
func (h *TypesHost) MethodDescriptorSetFlags(_ context.Context, self uint32, flags DescriptorFlags) *Error {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return err
	}
	next := flagsOf(desc)&^settableFlags | flags&settableFlags
	desc.SetFlags(uint8(next))
	return nil
}

func (h *TypesHost) MethodDescriptorGetType(_ context.Context, self uint32) (DescriptorType, *Error) {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return DescriptorTypeUnknown, err
	}

	stat, osErr := statPath(desc.Path(), true)
	if osErr != nil {
		return DescriptorTypeUnknown, mapOSError(osErr)
	}
	return stat.Type, nil
}

func (h *TypesHost) MethodDescriptorSetSize(_ context.Context, self uint32, size uint64) *Error {
	desc, err := h.getWritable(self)
	if err != nil {
		return err
	}
	return mapOSError(os.Truncate(desc.Path(), int64(size)))
}

func (h *TypesHost) MethodDescriptorSetTimes(_ context.Context, self uint32, atime, mtime NewTimestamp) *Error {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return err
	}
	return mapOSError(setTimes(desc.Path(), atime, mtime, true))
}

func (h *TypesHost) MethodDescriptorReadDirectory(_ context.Context, self uint32) (uint32, *Error) {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return 0, err
	}
	if !desc.IsDir() {
		return 0, errCode(ErrorNotDirectory)
	}

	entries, osErr := os.ReadDir(desc.Path())
	if osErr != nil {
		return 0, mapOSError(osErr)
	}

	dirEntries := make([]preview2.DirectoryEntry, 0, len(entries))
	for _, entry := range entries {
		// Info fails when the entry is removed between listing and lstat.
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		dirEntries = append(dirEntries, preview2.DirectoryEntry{
			Name:  entry.Name(),
			Inode: inodeOf(info),
			Type:  uint8(fileInfoToDescriptorType(info)),
		})
	}

	stream := preview2.NewDirectoryEntryStreamResource(dirEntries)
	return h.resources.Add(stream), nil
}

func (h *TypesHost) MethodDescriptorStat(_ context.Context, self uint32) (*DescriptorStat, *Error) {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return nil, err
	}

	stat, osErr := statPath(desc.Path(), true)
	if osErr != nil {
		return nil, mapOSError(osErr)
	}
	return stat, nil
}

func (h *TypesHost) MethodDescriptorStatAt(_ context.Context, self uint32, pathFlags PathFlags, path string) (*DescriptorStat, *Error) {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return nil, err
	}

	fullPath, err := h.resolvePath(desc, path)
	if err != nil {
		return nil, err
	}

	stat, osErr := statPath(fullPath, pathFlags&PathFlagSymlinkFollow != 0)
	if osErr != nil {
		return nil, mapOSError(osErr)
	}
	return stat, nil
}

func (h *TypesHost) MethodDescriptorSetTimesAt(_ context.Context, self uint32, pathFlags PathFlags, path string, atime, mtime NewTimestamp) *Error {
	desc, err := h.getMutableDir(self)
	if err != nil {
		return err
	}

	fullPath, err := h.resolvePath(desc, path)
	if err != nil {
		return err
	}
	return mapOSError(setTimes(fullPath, atime, mtime, pathFlags&PathFlagSymlinkFollow != 0))
}

func (h *TypesHost) MethodDescriptorOpenAt(_ context.Context, self uint32, pathFlags PathFlags, path string, openFlags OpenFlags, flags DescriptorFlags) (uint32, *Error) {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return 0, err
	}

	fullPath, err := h.resolvePath(desc, path)
	if err != nil {
		return 0, err
	}

	parent := flagsOf(desc)
	mutating := flags&(DescriptorFlagWrite|DescriptorFlagMutateDirectory) != 0 ||
		openFlags&(OpenFlagCreate|OpenFlagTruncate) != 0
	if mutating && parent&DescriptorFlagMutateDirectory == 0 {
		return 0, errCode(ErrorReadOnly)
	}
	if openFlags&OpenFlagDirectory != 0 && openFlags&(OpenFlagCreate|OpenFlagTruncate) != 0 {
		return 0, errCode(ErrorInvalid)
	}

	if pathFlags&PathFlagSymlinkFollow == 0 {
		if info, lerr := os.Lstat(fullPath); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			return 0, errCode(ErrorLoop)
		}
	}

	osFlags := os.O_RDONLY
	switch {
	case flags&DescriptorFlagWrite != 0 && flags&DescriptorFlagRead != 0:
		osFlags = os.O_RDWR
	case flags&DescriptorFlagWrite != 0:
		osFlags = os.O_WRONLY
	}
	if openFlags&OpenFlagCreate != 0 {
		osFlags |= os.O_CREATE
	}
	if openFlags&OpenFlagExclusive != 0 {
		osFlags |= os.O_EXCL
	}
	if openFlags&OpenFlagTruncate != 0 {
		osFlags |= os.O_TRUNC
	}
	osFlags |= syncOpenFlag(flags)

	f, osErr := os.OpenFile(fullPath, osFlags, 0o644) //nolint:gosec // fullPath is checked against the descriptor root
	if osErr != nil {
		return 0, mapOSError(osErr)
	}
	info, osErr := f.Stat()
	f.Close()
	if osErr != nil {
		return 0, mapOSError(osErr)
	}
	if openFlags&OpenFlagDirectory != 0 && !info.IsDir() {
		return 0, errCode(ErrorNotDirectory)
	}

	newDesc := preview2.NewDescriptorResource(fullPath, info.IsDir(), uint8(flags))
	return h.resources.Add(newDesc), nil
}

func (h *TypesHost) MethodDescriptorCreateDirectoryAt(_ context.Context, self uint32, path string) *Error {
	desc, err := h.getMutableDir(self)
	if err != nil {
		return err
	}

	fullPath, err := h.resolvePath(desc, path)
	if err != nil {
		return err
	}
	return mapOSError(os.Mkdir(fullPath, 0o755))
}

func (h *TypesHost) MethodDescriptorRenameAt(_ context.Context, self uint32, oldPath string, newDescriptor uint32, newPath string) *Error {
	oldDesc, err := h.getMutableDir(self)
	if err != nil {
		return err
	}
	newDesc, err := h.getMutableDir(newDescriptor)
	if err != nil {
		return err
	}

	oldFullPath, err := h.resolvePath(oldDesc, oldPath)
	if err != nil {
		return err
	}
	newFullPath, err := h.resolvePath(newDesc, newPath)
	if err != nil {
		return err
	}
	return mapOSError(os.Rename(oldFullPath, newFullPath))
}

func (h *TypesHost) MethodDescriptorUnlinkFileAt(_ context.Context, self uint32, path string) *Error {
	desc, err := h.getMutableDir(self)
	if err != nil {
		return err
	}

	fullPath, err := h.resolvePath(desc, path)
	if err != nil {
		return err
	}

	info, osErr := os.Lstat(fullPath)
	if osErr != nil {
		return mapOSError(osErr)
	}
	if info.IsDir() {
		return errCode(ErrorIsDirectory)
	}
	return mapOSError(os.Remove(fullPath))
}

func (h *TypesHost) MethodDescriptorRemoveDirectoryAt(_ context.Context, self uint32, path string) *Error {
	desc, err := h.getMutableDir(self)
	if err != nil {
		return err
	}

	fullPath, err := h.resolvePath(desc, path)
	if err != nil {
		return err
	}

	info, osErr := os.Lstat(fullPath)
	if osErr != nil {
		return mapOSError(osErr)
	}
	if !info.IsDir() {
		return errCode(ErrorNotDirectory)
	}
	return mapOSError(os.Remove(fullPath))
}

func (h *TypesHost) MethodDescriptorSymlinkAt(_ context.Context, self uint32, oldPath string, newPath string) *Error {
	desc, err := h.getMutableDir(self)
	if err != nil {
		return err
	}

	// The target must stay inside the sandbox once resolved.
	cleanPath := filepath.Clean(oldPath)
	if filepath.IsAbs(cleanPath) || escapes(cleanPath) ||
		strings.Contains(cleanPath, string(filepath.Separator)+".."+string(filepath.Separator)) ||
		strings.HasSuffix(cleanPath, string(filepath.Separator)+"..") {
		return errCode(ErrorNotPermitted)
	}

	fullNewPath, err := h.resolvePath(desc, newPath)
	if err != nil {
		return err
	}
	return mapOSError(os.Symlink(oldPath, fullNewPath))
}

func (h *TypesHost) MethodDescriptorReadlinkAt(_ context.Context, self uint32, path string) (string, *Error) {
	desc, err := h.getDescriptor(self)
	if err != nil {
		return "", err
	}

	fullPath, err := h.resolvePath(desc, path)
	if err != nil {
		return "", err
	}

	target, osErr := os.Readlink(fullPath)
	if osErr != nil {
		return "", mapOSError(osErr)
	}

	cleanTarget := filepath.Clean(target)
	if filepath.IsAbs(cleanTarget) || escapes(cleanTarget) {
		return "", errCode(ErrorNotPermitted)
	}
	return target, nil
}

func (h *TypesHost) MethodDescriptorLinkAt(_ context.Context, self uint32, oldPathFlags PathFlags, oldPath string, newDescriptor uint32, newPath string) *Error {
	oldDesc, err := h.getDescriptor(self)
	if err != nil {
		return err
	}
	newDesc, err := h.getMutableDir(newDescriptor)
	if err != nil {
		return err
	}

	oldFullPath, err := h.resolvePath(oldDesc, oldPath)
	if err != nil {
		return err
	}
	newFullPath, err := h.resolvePath(newDesc, newPath)
	if err != nil {
		return err
	}

	if oldPathFlags&PathFlagSymlinkFollow != 0 {
		resolved, osErr := filepath.EvalSymlinks(oldFullPath)
		if osErr != nil {
			return mapOSError(osErr)
		}
		oldFullPath = resolved
	}
	return mapOSError(os.Link(oldFullPath, newFullPath))
}

func (h *TypesHost) MethodDirectoryEntryStreamReadDirectoryEntry(_ context.Context, self uint32) (*preview2.DirectoryEntry, *Error) {
	r, ok := h.resources.Get(self)
	if !ok {
		return nil, errCode(ErrorBadDescriptor)
	}
	stream, ok := r.(*preview2.DirectoryEntryStreamResource)
	if !ok {
		return nil, errCode(ErrorBadDescriptor)
	}
	return stream.ReadNext(), nil
}

func (h *TypesHost) ResourceDropDescriptor(_ context.Context, self uint32) {
	h.resources.Remove(self)
}

func (h *TypesHost) ResourceDropDirectoryEntryStream(_ context.Context, self uint32) {
	h.resources.Remove(self)
}
