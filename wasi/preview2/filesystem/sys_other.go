//go:build !linux && !darwin

package filesystem

import (
	"os"
	"syscall"
	"time"

	"github.com/wippyai/wasi-adapter/wasi/preview2/clocks"
)

func mapErrno(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EACCES:
		return ErrorAccess
	case syscall.ENOENT:
		return ErrorNoEntry
	case syscall.EEXIST:
		return ErrorExist
	case syscall.ENOTDIR:
		return ErrorNotDirectory
	case syscall.EISDIR:
		return ErrorIsDirectory
	case syscall.ENOTEMPTY:
		return ErrorNotEmpty
	case syscall.EINVAL:
		return ErrorInvalid
	}
	return ErrorIo
}

func syncOpenFlag(DescriptorFlags) int { return 0 }

func inodeOf(os.FileInfo) uint64 { return 0 }

func timeToDatetime(t time.Time) clocks.Datetime {
	return clocks.Datetime{Seconds: uint64(t.Unix()), Nanoseconds: uint32(t.Nanosecond())}
}

func statPath(path string, follow bool) (*DescriptorStat, error) {
	var info os.FileInfo
	var err error
	if follow {
		info, err = os.Stat(path)
	} else {
		info, err = os.Lstat(path)
	}
	if err != nil {
		return nil, err
	}
	mtime := timeToDatetime(info.ModTime())
	return &DescriptorStat{
		Type:                      fileInfoToDescriptorType(info),
		LinkCount:                 1,
		Size:                      uint64(info.Size()),
		DataAccessTimestamp:       mtime,
		DataModificationTimestamp: mtime,
		StatusChangeTimestamp:     mtime,
	}, nil
}

func chtime(ts NewTimestamp) time.Time {
	switch ts.Kind {
	case TimestampNow:
		return time.Now()
	case TimestampSet:
		return time.Unix(int64(ts.Time.Seconds), int64(ts.Time.Nanoseconds))
	}
	return time.Time{}
}

func setTimes(path string, atime, mtime NewTimestamp, _ bool) error {
	return os.Chtimes(path, chtime(atime), chtime(mtime))
}

func syncFile(f *os.File) error     { return f.Sync() }
func syncFileData(f *os.File) error { return f.Sync() }

func adviseFile(_ *os.File, _, _ uint64, _ Advice) error {
	return nil
}
