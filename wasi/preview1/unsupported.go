package preview1

import (
	"context"

	"go.uber.org/zap"
)

// Calls with no capability to back them. Sockets are never installed as
// descriptors, so every socket call fails the same way.

func unsupported(name string) Errno {
	Logger().Debug("unsupported call", zap.String("call", name))
	return ErrnoNotsup
}

func (a *Adapter) FdAllocate(ctx context.Context, fd uint32, offset, length uint64) Errno {
	return unsupported("fd_allocate")
}

func (a *Adapter) FdFdstatSetRights(ctx context.Context, fd uint32, base, inheriting Rights) Errno {
	return unsupported("fd_fdstat_set_rights")
}

func (a *Adapter) ProcRaise(ctx context.Context, sig uint32) Errno {
	return unsupported("proc_raise")
}

func (a *Adapter) SockAccept(ctx context.Context, fd, flags, fdPtr uint32) Errno {
	return unsupported("sock_accept")
}

func (a *Adapter) SockRecv(ctx context.Context, fd, riData, riDataLen, riFlags, roDatalenPtr, roFlagsPtr uint32) Errno {
	return unsupported("sock_recv")
}

func (a *Adapter) SockSend(ctx context.Context, fd, siData, siDataLen, siFlags, soDatalenPtr uint32) Errno {
	return unsupported("sock_send")
}

func (a *Adapter) SockShutdown(ctx context.Context, fd, how uint32) Errno {
	return unsupported("sock_shutdown")
}
