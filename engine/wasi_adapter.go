package engine

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-adapter/errors"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

// Preview1ModuleName is the import module name guests use for the flat
// interface.
const Preview1ModuleName = "wasi_snapshot_preview1"

const (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

// binding ties the calls of one guest instance to its adapter. It travels
// in the call context, so a single host module serves every instance.
type binding struct {
	adapter *preview1.Adapter
	trace   *Trace
}

type bindingContextKey struct{}

func withBinding(ctx context.Context, b *binding) context.Context {
	return context.WithValue(ctx, bindingContextKey{}, b)
}

func bindingFrom(ctx context.Context, call string) *binding {
	if b, ok := ctx.Value(bindingContextKey{}).(*binding); ok && b != nil {
		return b
	}
	panic(errors.New(errors.PhaseDispatch, errors.KindNotInitialized).
		Call(call).
		Detail("no adapter bound to the calling instance").
		Build())
}

// hostFunc describes one errno-returning export. call decodes the raw
// parameters from the stack.
type hostFunc struct {
	name   string
	params []api.ValueType
	call   func(ctx context.Context, a *preview1.Adapter, mem *WazeroMemory, p []uint64) preview1.Errno
}

func u32(v uint64) uint32 { return api.DecodeU32(v) }

// u8 narrows an enum parameter. Values that do not fit map to 0xff, which
// no one-byte enum uses, so they are rejected as invalid.
func u8(v uint64) uint8 {
	if x := u32(v); x <= 0xff {
		return uint8(x)
	}
	return 0xff
}

func (f hostFunc) goFunc() api.GoModuleFunc {
	n := len(f.params)
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		b := bindingFrom(ctx, f.name)
		var start time.Time
		var params []uint64
		if b.trace != nil {
			start = time.Now()
			params = append(params, stack[:n]...)
		}
		errno := f.call(ctx, b.adapter, NewWazeroMemory(mod.Memory()), stack)
		if b.trace != nil {
			b.trace.add(f.name, params, errno, time.Since(start))
		}
		stack[0] = uint64(errno)
	}
}

// procExit reports the status, closes the calling module and unwinds the
// guest with wazero's exit error.
func procExit(ctx context.Context, mod api.Module, stack []uint64) {
	b := bindingFrom(ctx, "proc_exit")
	code := u32(stack[0])
	if b.trace != nil {
		b.trace.add("proc_exit", []uint64{stack[0]}, preview1.ErrnoSuccess, 0)
	}
	b.adapter.ProcExit(ctx, code)
	_ = mod.CloseWithExitCode(ctx, code)
	panic(sys.NewExitError(code))
}

var preview1Funcs = []hostFunc{
	{"args_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.ArgsGet(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"args_sizes_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.ArgsSizesGet(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"environ_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.EnvironGet(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"environ_sizes_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.EnvironSizesGet(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"clock_res_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.ClockResGet(ctx, m, preview1.Clockid(u32(p[0])), u32(p[1]))
	}},
	{"clock_time_get", []api.ValueType{i32, i64, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.ClockTimeGet(ctx, m, preview1.Clockid(u32(p[0])), p[1], u32(p[2]))
	}},
	{"fd_advise", []api.ValueType{i32, i64, i64, i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdAdvise(ctx, u32(p[0]), p[1], p[2], u8(p[3]))
	}},
	{"fd_allocate", []api.ValueType{i32, i64, i64}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdAllocate(ctx, u32(p[0]), p[1], p[2])
	}},
	{"fd_close", []api.ValueType{i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdClose(ctx, u32(p[0]))
	}},
	{"fd_datasync", []api.ValueType{i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdDatasync(ctx, u32(p[0]))
	}},
	{"fd_fdstat_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdFdstatGet(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"fd_fdstat_set_flags", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdFdstatSetFlags(ctx, u32(p[0]), preview1.Fdflags(u32(p[1])))
	}},
	{"fd_fdstat_set_rights", []api.ValueType{i32, i64, i64}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdFdstatSetRights(ctx, u32(p[0]), preview1.Rights(p[1]), preview1.Rights(p[2]))
	}},
	{"fd_filestat_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdFilestatGet(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"fd_filestat_set_size", []api.ValueType{i32, i64}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdFilestatSetSize(ctx, u32(p[0]), p[1])
	}},
	{"fd_filestat_set_times", []api.ValueType{i32, i64, i64, i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdFilestatSetTimes(ctx, u32(p[0]), p[1], p[2], preview1.Fstflags(u32(p[3])))
	}},
	{"fd_pread", []api.ValueType{i32, i32, i32, i64, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdPread(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), p[3], u32(p[4]))
	}},
	{"fd_prestat_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdPrestatGet(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"fd_prestat_dir_name", []api.ValueType{i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdPrestatDirName(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]))
	}},
	{"fd_pwrite", []api.ValueType{i32, i32, i32, i64, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdPwrite(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), p[3], u32(p[4]))
	}},
	{"fd_read", []api.ValueType{i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdRead(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), u32(p[3]))
	}},
	{"fd_readdir", []api.ValueType{i32, i32, i32, i64, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdReaddir(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), p[3], u32(p[4]))
	}},
	{"fd_renumber", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdRenumber(ctx, u32(p[0]), u32(p[1]))
	}},
	{"fd_seek", []api.ValueType{i32, i64, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdSeek(ctx, m, u32(p[0]), int64(p[1]), preview1.Whence(u8(p[2])), u32(p[3]))
	}},
	{"fd_sync", []api.ValueType{i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdSync(ctx, u32(p[0]))
	}},
	{"fd_tell", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdTell(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"fd_write", []api.ValueType{i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.FdWrite(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), u32(p[3]))
	}},
	{"path_create_directory", []api.ValueType{i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathCreateDirectory(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]))
	}},
	{"path_filestat_get", []api.ValueType{i32, i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathFilestatGet(ctx, m, u32(p[0]), preview1.Lookupflags(u32(p[1])), u32(p[2]), u32(p[3]), u32(p[4]))
	}},
	{"path_filestat_set_times", []api.ValueType{i32, i32, i32, i32, i64, i64, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathFilestatSetTimes(ctx, m, u32(p[0]), preview1.Lookupflags(u32(p[1])), u32(p[2]), u32(p[3]), p[4], p[5], preview1.Fstflags(u32(p[6])))
	}},
	{"path_link", []api.ValueType{i32, i32, i32, i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathLink(ctx, m, u32(p[0]), preview1.Lookupflags(u32(p[1])), u32(p[2]), u32(p[3]), u32(p[4]), u32(p[5]), u32(p[6]))
	}},
	{"path_open", []api.ValueType{i32, i32, i32, i32, i32, i64, i64, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathOpen(ctx, m, u32(p[0]), preview1.Lookupflags(u32(p[1])), u32(p[2]), u32(p[3]),
			preview1.Oflags(u32(p[4])), preview1.Rights(p[5]), preview1.Rights(p[6]), preview1.Fdflags(u32(p[7])), u32(p[8]))
	}},
	{"path_readlink", []api.ValueType{i32, i32, i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathReadlink(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), u32(p[3]), u32(p[4]), u32(p[5]))
	}},
	{"path_remove_directory", []api.ValueType{i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathRemoveDirectory(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]))
	}},
	{"path_rename", []api.ValueType{i32, i32, i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathRename(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), u32(p[3]), u32(p[4]), u32(p[5]))
	}},
	{"path_symlink", []api.ValueType{i32, i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathSymlink(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), u32(p[3]), u32(p[4]))
	}},
	{"path_unlink_file", []api.ValueType{i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PathUnlinkFile(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]))
	}},
	{"poll_oneoff", []api.ValueType{i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.PollOneoff(ctx, m, u32(p[0]), u32(p[1]), u32(p[2]), u32(p[3]))
	}},
	{"proc_raise", []api.ValueType{i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.ProcRaise(ctx, u32(p[0]))
	}},
	{"sched_yield", nil, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, _ []uint64) preview1.Errno {
		return a.SchedYield(ctx)
	}},
	{"random_get", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, m *WazeroMemory, p []uint64) preview1.Errno {
		return a.RandomGet(ctx, m, u32(p[0]), u32(p[1]))
	}},
	{"sock_accept", []api.ValueType{i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.SockAccept(ctx, u32(p[0]), u32(p[1]), u32(p[2]))
	}},
	{"sock_recv", []api.ValueType{i32, i32, i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.SockRecv(ctx, u32(p[0]), u32(p[1]), u32(p[2]), u32(p[3]), u32(p[4]), u32(p[5]))
	}},
	{"sock_send", []api.ValueType{i32, i32, i32, i32, i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.SockSend(ctx, u32(p[0]), u32(p[1]), u32(p[2]), u32(p[3]), u32(p[4]))
	}},
	{"sock_shutdown", []api.ValueType{i32, i32}, func(ctx context.Context, a *preview1.Adapter, _ *WazeroMemory, p []uint64) preview1.Errno {
		return a.SockShutdown(ctx, u32(p[0]), u32(p[1]))
	}},
}

// Preview1Functions returns the names of every exported flat-interface
// function, proc_exit included.
func Preview1Functions() []string {
	names := make([]string, 0, len(preview1Funcs)+1)
	for _, f := range preview1Funcs {
		names = append(names, f.name)
	}
	return append(names, "proc_exit")
}

// InstantiatePreview1 instantiates the wasi_snapshot_preview1 host module
// in r. Its functions dispatch to the adapter bound to the call context.
func InstantiatePreview1(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(Preview1ModuleName)
	for _, f := range preview1Funcs {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(f.goFunc(), f.params, []api.ValueType{i32}).
			Export(f.name)
	}
	builder = builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(procExit), []api.ValueType{i32}, nil).
		Export("proc_exit")

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Registration(Preview1ModuleName, "*", err)
	}
	Logger().Debug("preview1 host module instantiated", zap.Int("functions", len(preview1Funcs)+1))
	return mod, nil
}
