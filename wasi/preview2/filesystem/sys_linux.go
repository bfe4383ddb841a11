//go:build linux

package filesystem

import (
	"os"

	"golang.org/x/sys/unix"
)

const (
	utimeNow  = unix.UTIME_NOW
	utimeOmit = unix.UTIME_OMIT
)

var fadvice = [...]int{
	AdviceNormal:     unix.FADV_NORMAL,
	AdviceSequential: unix.FADV_SEQUENTIAL,
	AdviceRandom:     unix.FADV_RANDOM,
	AdviceWillNeed:   unix.FADV_WILLNEED,
	AdviceDontNeed:   unix.FADV_DONTNEED,
	AdviceNoReuse:    unix.FADV_NOREUSE,
}

func adviseFile(f *os.File, offset, length uint64, advice Advice) error {
	return unix.Fadvise(int(f.Fd()), int64(offset), int64(length), fadvice[advice])
}

func syncFileData(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
