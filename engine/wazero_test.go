package engine

import (
	"context"
	"slices"
	"testing"

	"github.com/wippyai/wasi-adapter/errors"
	"github.com/wippyai/wasi-adapter/internal/wasmtest"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

func newTestInstance(t *testing.T, cfg *Config, wasm []byte, w *preview2.WASI) *WazeroInstance {
	t.Helper()
	ctx := context.Background()
	eng, err := NewWazeroEngineWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() { eng.Close(ctx) })

	mod, err := eng.LoadModule(ctx, wasm)
	if err != nil {
		t.Fatalf("failed to load module: %v", err)
	}
	inst, err := mod.Instantiate(ctx, &InstanceConfig{Capabilities: preview1.NewCapabilities(w)})
	if err != nil {
		t.Fatalf("failed to instantiate: %v", err)
	}
	t.Cleanup(func() {
		inst.Close(ctx)
		w.Close()
	})
	return inst
}

func TestEngine_RunWritesStdout(t *testing.T) {
	w := preview2.New()
	inst := newTestInstance(t, nil, wasmtest.Hello(-1), w)

	code, err := inst.Run(context.Background())
	if err != nil || code != 0 {
		t.Fatalf("expected clean exit, got code %d err %v", code, err)
	}
	if got := string(w.Stdout()); got != "hello\n" {
		t.Errorf("expected stdout %q, got %q", "hello\n", got)
	}
	nwritten, err := inst.Memory().ReadU32(wasmtest.HelloNwritten)
	if err != nil || nwritten != 6 {
		t.Errorf("expected 6 bytes written, got %d (%v)", nwritten, err)
	}
}

func TestEngine_ProcExit(t *testing.T) {
	var status []bool
	w := preview2.New().WithExit(func(ok bool) { status = append(status, ok) })
	inst := newTestInstance(t, nil, wasmtest.Hello(3), w)

	code, err := inst.Run(context.Background())
	if err != nil {
		t.Fatalf("proc_exit must not be an error: %v", err)
	}
	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	if len(status) != 1 || status[0] {
		t.Errorf("expected one failed exit status, got %v", status)
	}
	if !inst.Module().IsClosed() {
		t.Errorf("expected the module to be closed after proc_exit")
	}
}

func TestEngine_ReactorWritesToStderrSink(t *testing.T) {
	w := preview2.New().WithArgs([]string{"prog", "x"})
	inst := newTestInstance(t, &Config{Variant: preview1.VariantReactor}, wasmtest.Hello(-1), w)
	ctx := context.Background()

	if _, err := inst.Run(ctx); err == nil {
		t.Fatalf("expected Run to refuse a reactor instance")
	}
	if err := inst.Initialize(ctx); err != nil {
		t.Fatalf("initialize without _initialize export: %v", err)
	}
	if _, err := inst.Call(ctx, "_start"); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got := string(w.Stderr()); got != "hello\n" {
		t.Errorf("expected fd 1 to reach stderr before stdio is installed, got %q", got)
	}
	if len(w.Stdout()) != 0 {
		t.Errorf("expected empty stdout, got %q", w.Stdout())
	}

	results, err := inst.Call(ctx, "args")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if preview1.Errno(results[0]) != preview1.ErrnoSuccess {
		t.Fatalf("args_sizes_get returned %v", preview1.Errno(results[0]))
	}
	argc, _ := inst.Memory().ReadU32(wasmtest.ArgcPtr)
	size, _ := inst.Memory().ReadU32(wasmtest.ArgvBufPtr)
	if argc != 2 || size != 7 {
		t.Errorf("expected argc 2 and size 7, got %d and %d", argc, size)
	}

	if _, err := inst.Call(ctx, "missing"); !errors.New(errors.PhaseRuntime, errors.KindNotFound).Build().Is(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestEngine_Trace(t *testing.T) {
	w := preview2.New()
	inst := newTestInstance(t, &Config{Trace: 16}, wasmtest.Hello(0), w)

	if _, err := inst.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	records := inst.Trace().Records()
	var calls []string
	for _, r := range records {
		calls = append(calls, r.Call)
	}
	if !slices.Equal(calls, []string{"fd_write", "proc_exit"}) {
		t.Fatalf("unexpected trace %v", calls)
	}
	if rec := records[0]; rec.Errno != preview1.ErrnoSuccess || len(rec.Params) != 4 || rec.Params[0] != 1 {
		t.Errorf("unexpected fd_write record %+v", rec)
	}
	if records[1].Seq != 2 {
		t.Errorf("expected sequence 2, got %d", records[1].Seq)
	}
}

func TestEngine_Imports(t *testing.T) {
	ctx := context.Background()
	eng, err := NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer eng.Close(ctx)

	mod, err := eng.LoadModule(ctx, wasmtest.Hello(-1))
	if err != nil {
		t.Fatalf("failed to load module: %v", err)
	}
	if got := mod.Imports(); !slices.Equal(got, []string{"args_sizes_get", "fd_write", "proc_exit"}) {
		t.Errorf("unexpected imports %v", got)
	}
	if got := mod.ExportNames(); !slices.Equal(got, []string{"_start", "args"}) {
		t.Errorf("unexpected exports %v", got)
	}

	if _, err := eng.LoadModule(ctx, []byte("not wasm")); err == nil {
		t.Errorf("expected load error for garbage input")
	}
	if _, err := mod.Instantiate(ctx, nil); err == nil {
		t.Errorf("expected error for missing instance config")
	}
}

func TestPreview1Functions(t *testing.T) {
	names := Preview1Functions()
	if len(names) != 46 {
		t.Errorf("expected 46 functions, got %d", len(names))
	}
	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			t.Errorf("duplicate export %s", n)
		}
		seen[n] = true
	}
	for _, want := range []string{"fd_readdir", "path_open", "poll_oneoff", "proc_exit", "sock_shutdown"} {
		if !seen[want] {
			t.Errorf("missing export %s", want)
		}
	}
}
