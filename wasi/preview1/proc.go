package preview1

import (
	"context"

	"go.uber.org/zap"

	wasiadapter "github.com/wippyai/wasi-adapter"
	"github.com/wippyai/wasi-adapter/wasi/preview2/random"
)

// ProcExit reports the exit status to the capability interface. Any code
// other than zero is a failure. The caller must end the guest once it
// returns.
func (a *Adapter) ProcExit(ctx context.Context, code uint32) {
	Logger().Debug("proc_exit", zap.Uint32("code", code))
	a.caps.Exit.Exit(ctx, code == 0)
}

func (a *Adapter) SchedYield(ctx context.Context) Errno {
	return ErrnoSuccess
}

// RandomGet fills buf from the secure random capability, which hands out
// at most random.MaxRandomBytes per call.
func (a *Adapter) RandomGet(ctx context.Context, mem wasiadapter.Memory, bufPtr, bufLen uint32) Errno {
	return a.with(ctx, "random_get", func(s *State) Errno {
		buf, errno := view(mem, bufPtr, bufLen)
		if errno != ErrnoSuccess {
			return errno
		}
		for len(buf) > 0 {
			chunk := buf
			if len(chunk) > random.MaxRandomBytes {
				chunk = chunk[:random.MaxRandomBytes]
			}
			n := WithBuffer(&s.importAlloc, chunk, func() int {
				return len(importBytes(&s.importAlloc, s.caps.Random.GetRandomBytes(ctx, uint64(len(chunk)))))
			})
			if n == 0 {
				return ErrnoIo
			}
			buf = buf[n:]
		}
		return ErrnoSuccess
	})
}
