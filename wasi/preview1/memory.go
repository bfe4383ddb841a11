package preview1

import (
	wasiadapter "github.com/wippyai/wasi-adapter"
)

// Guest pointers that fall outside linear memory fail with ErrnoFault.

func view(mem wasiadapter.Memory, ptr, length uint32) ([]byte, Errno) {
	b, err := mem.Read(ptr, length)
	if err != nil {
		return nil, ErrnoFault
	}
	return b, ErrnoSuccess
}

func viewString(mem wasiadapter.Memory, ptr, length uint32) (string, Errno) {
	b, errno := view(mem, ptr, length)
	if errno != ErrnoSuccess {
		return "", errno
	}
	return string(b), ErrnoSuccess
}

func store(mem wasiadapter.Memory, ptr uint32, data []byte) Errno {
	if err := mem.Write(ptr, data); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func storeU32(mem wasiadapter.Memory, ptr, v uint32) Errno {
	if err := mem.WriteU32(ptr, v); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

func storeU64(mem wasiadapter.Memory, ptr uint32, v uint64) Errno {
	if err := mem.WriteU64(ptr, v); err != nil {
		return ErrnoFault
	}
	return ErrnoSuccess
}

// firstIovec returns a view of the first non-empty buffer in an iovec
// list, or an empty view when every buffer is empty.
func firstIovec(mem wasiadapter.Memory, iovs, iovsLen uint32) ([]byte, Errno) {
	size, errno := arraySize(iovsLen, IovecSize)
	if errno != ErrnoSuccess {
		return nil, errno
	}
	list, errno := view(mem, iovs, size)
	if errno != ErrnoSuccess {
		return nil, errno
	}
	for i := uint32(0); i < iovsLen; i++ {
		rec := list[i*IovecSize:]
		ptr, length := le.Uint32(rec[0:]), le.Uint32(rec[4:])
		if length == 0 {
			continue
		}
		return view(mem, ptr, length)
	}
	return nil, ErrnoSuccess
}

// arraySize is the byte size of n records, failing when it cannot be
// addressed in 32-bit memory.
func arraySize(n, size uint32) (uint32, Errno) {
	total := uint64(n) * uint64(size)
	if total > uint64(^uint32(0)) {
		return 0, ErrnoFault
	}
	return uint32(total), ErrnoSuccess
}
