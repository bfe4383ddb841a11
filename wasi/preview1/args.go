package preview1

import (
	"context"

	wasiadapter "github.com/wippyai/wasi-adapter"
)

// ArgsGet writes a pointer to each NUL-terminated argument into argv and
// the strings themselves into argvBuf.
func (a *Adapter) ArgsGet(ctx context.Context, mem wasiadapter.Memory, argv, argvBuf uint32) Errno {
	return a.with(ctx, "args_get", func(s *State) Errno {
		args := s.arguments(ctx)
		return writeStrings(mem, argv, argvBuf, len(args), func(i int) [][]byte {
			return [][]byte{args[i]}
		})
	})
}

func (a *Adapter) ArgsSizesGet(ctx context.Context, mem wasiadapter.Memory, argcPtr, bufSizePtr uint32) Errno {
	return a.with(ctx, "args_sizes_get", func(s *State) Errno {
		args := s.arguments(ctx)
		var size uint32
		for _, arg := range args {
			size += uint32(len(arg)) + 1
		}
		if errno := storeU32(mem, argcPtr, uint32(len(args))); errno != ErrnoSuccess {
			return errno
		}
		return storeU32(mem, bufSizePtr, size)
	})
}

// EnvironGet writes "key=value" strings the same way ArgsGet does.
func (a *Adapter) EnvironGet(ctx context.Context, mem wasiadapter.Memory, environ, environBuf uint32) Errno {
	return a.with(ctx, "environ_get", func(s *State) Errno {
		vars := s.environment(ctx)
		return writeStrings(mem, environ, environBuf, len(vars), func(i int) [][]byte {
			return [][]byte{vars[i].key, {'='}, vars[i].value}
		})
	})
}

func (a *Adapter) EnvironSizesGet(ctx context.Context, mem wasiadapter.Memory, countPtr, bufSizePtr uint32) Errno {
	return a.with(ctx, "environ_sizes_get", func(s *State) Errno {
		vars := s.environment(ctx)
		var size uint32
		for _, kv := range vars {
			size += uint32(len(kv.key)) + uint32(len(kv.value)) + 2
		}
		if errno := storeU32(mem, countPtr, uint32(len(vars))); errno != ErrnoSuccess {
			return errno
		}
		return storeU32(mem, bufSizePtr, size)
	})
}

// writeStrings lays out a pointer table at ptrs and the NUL-terminated
// concatenation of each string's parts at buf.
func writeStrings(mem wasiadapter.Memory, ptrs, buf uint32, n int, parts func(i int) [][]byte) Errno {
	for i := 0; i < n; i++ {
		if errno := storeU32(mem, ptrs+uint32(i)*4, buf); errno != ErrnoSuccess {
			return errno
		}
		for _, p := range parts(i) {
			if errno := store(mem, buf, p); errno != ErrnoSuccess {
				return errno
			}
			buf += uint32(len(p))
		}
		if errno := store(mem, buf, []byte{0}); errno != ErrnoSuccess {
			return errno
		}
		buf++
	}
	return ErrnoSuccess
}
