//go:build darwin

package filesystem

import "os"

// Values from <sys/stat.h>; x/sys does not export them for darwin.
const (
	utimeNow  = -1
	utimeOmit = -2
)

// Darwin has no posix_fadvise. Advice is a hint, so it is accepted and
// ignored.
func adviseFile(_ *os.File, _, _ uint64, _ Advice) error {
	return nil
}

func syncFileData(f *os.File) error {
	return syncFile(f)
}
