//go:build linux || darwin

package filesystem

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/wippyai/wasi-adapter/wasi/preview2/clocks"
)

func mapErrno(errno unix.Errno) ErrorCode {
	switch errno {
	case unix.EACCES:
		return ErrorAccess
	case unix.EAGAIN:
		return ErrorWouldBlock
	case unix.EALREADY:
		return ErrorAlready
	case unix.EBADF:
		return ErrorBadDescriptor
	case unix.EBUSY:
		return ErrorBusy
	case unix.EDEADLK:
		return ErrorDeadlock
	case unix.EDQUOT:
		return ErrorQuota
	case unix.EEXIST:
		return ErrorExist
	case unix.EFBIG:
		return ErrorFileTooLarge
	case unix.EILSEQ:
		return ErrorIllegalByteSequence
	case unix.EINPROGRESS:
		return ErrorInProgress
	case unix.EINTR:
		return ErrorInterrupted
	case unix.EINVAL:
		return ErrorInvalid
	case unix.EIO:
		return ErrorIo
	case unix.EISDIR:
		return ErrorIsDirectory
	case unix.ELOOP:
		return ErrorLoop
	case unix.EMLINK:
		return ErrorTooManyLinks
	case unix.EMSGSIZE:
		return ErrorMessageSize
	case unix.ENAMETOOLONG:
		return ErrorNameTooLong
	case unix.ENODEV:
		return ErrorNoDevice
	case unix.ENOENT:
		return ErrorNoEntry
	case unix.ENOLCK:
		return ErrorNoLock
	case unix.ENOMEM:
		return ErrorInsufficientMemory
	case unix.ENOSPC:
		return ErrorInsufficientSpace
	case unix.ENOTDIR:
		return ErrorNotDirectory
	case unix.ENOTEMPTY:
		return ErrorNotEmpty
	case unix.ENOTRECOVERABLE:
		return ErrorNotRecoverable
	case unix.ENOTSUP, unix.ENOSYS:
		return ErrorUnsupported
	case unix.ENOTTY:
		return ErrorNoTty
	case unix.ENXIO:
		return ErrorNoSuchDevice
	case unix.EOVERFLOW:
		return ErrorOverflow
	case unix.EPERM:
		return ErrorNotPermitted
	case unix.EPIPE:
		return ErrorPipe
	case unix.EROFS:
		return ErrorReadOnly
	case unix.ESPIPE:
		return ErrorInvalidSeek
	case unix.ETXTBSY:
		return ErrorTextFileBusy
	case unix.EXDEV:
		return ErrorCrossDevice
	}
	return ErrorIo
}

// syncOpenFlag returns the open(2) flags matching the sync bits of flags.
func syncOpenFlag(flags DescriptorFlags) int {
	var f int
	if flags&DescriptorFlagFileIntegritySync != 0 {
		f |= unix.O_SYNC
	}
	if flags&DescriptorFlagDataIntegritySync != 0 {
		f |= unix.O_DSYNC
	}
	if flags&DescriptorFlagNonBlocking != 0 {
		f |= unix.O_NONBLOCK
	}
	return f
}

func timespecToDatetime(ts unix.Timespec) clocks.Datetime {
	return clocks.Datetime{Seconds: uint64(ts.Sec), Nanoseconds: uint32(ts.Nsec)}
}

// inodeOf returns the serial number of an entry listed by os.ReadDir.
func inodeOf(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino)
	}
	return 0
}

func statPath(path string, follow bool) (*DescriptorStat, error) {
	var st unix.Stat_t
	var err error
	if follow {
		err = unix.Stat(path, &st)
	} else {
		err = unix.Lstat(path, &st)
	}
	if err != nil {
		return nil, err
	}
	return &DescriptorStat{
		Type:                      modeToDescriptorType(uint32(st.Mode)),
		Device:                    uint64(st.Dev),
		Inode:                     st.Ino,
		LinkCount:                 uint64(st.Nlink),
		Size:                      uint64(st.Size),
		DataAccessTimestamp:       timespecToDatetime(st.Atim),
		DataModificationTimestamp: timespecToDatetime(st.Mtim),
		StatusChangeTimestamp:     timespecToDatetime(st.Ctim),
	}, nil
}

func modeToDescriptorType(mode uint32) DescriptorType {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return DescriptorTypeRegularFile
	case unix.S_IFDIR:
		return DescriptorTypeDirectory
	case unix.S_IFLNK:
		return DescriptorTypeSymbolicLink
	case unix.S_IFCHR:
		return DescriptorTypeCharacterDevice
	case unix.S_IFBLK:
		return DescriptorTypeBlockDevice
	case unix.S_IFIFO:
		return DescriptorTypeFifo
	case unix.S_IFSOCK:
		return DescriptorTypeSocket
	}
	return DescriptorTypeUnknown
}

func newTimespec(ts NewTimestamp) unix.Timespec {
	switch ts.Kind {
	case TimestampNow:
		return unix.Timespec{Nsec: utimeNow}
	case TimestampSet:
		return unix.NsecToTimespec(int64(ts.Time.Seconds)*1e9 + int64(ts.Time.Nanoseconds))
	}
	return unix.Timespec{Nsec: utimeOmit}
}

func setTimes(path string, atime, mtime NewTimestamp, follow bool) error {
	flags := 0
	if !follow {
		flags = unix.AT_SYMLINK_NOFOLLOW
	}
	ts := []unix.Timespec{newTimespec(atime), newTimespec(mtime)}
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, ts, flags)
}

func syncFile(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
