package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/wasi-adapter/errors"
	"github.com/wippyai/wasi-adapter/internal/wasmtest"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

func newTestRuntime(t *testing.T, cfg *Config) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func TestRun_WritesStdout(t *testing.T) {
	var stdout bytes.Buffer
	cfg := DefaultConfig()
	cfg.Stdout = &stdout
	rt := newTestRuntime(t, cfg)

	code, err := rt.Run(context.Background(), wasmtest.Hello(-1))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if stdout.String() != "hello\n" {
		t.Errorf("expected stdout %q, got %q", "hello\n", stdout.String())
	}
}

func TestRun_ExitStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int32
		want   int
	}{
		{"return", -1, 0},
		{"exit zero", 0, 0},
		{"exit failure", 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newTestRuntime(t, nil)
			code, err := rt.Run(context.Background(), wasmtest.Hello(tt.status))
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if code != tt.want {
				t.Errorf("expected exit code %d, got %d", tt.want, code)
			}
		})
	}
}

func TestRun_Stdin(t *testing.T) {
	var stdout bytes.Buffer
	cfg := DefaultConfig()
	cfg.Stdin = strings.NewReader("ping")
	cfg.Stdout = &stdout
	rt := newTestRuntime(t, cfg)

	if _, err := rt.Run(context.Background(), wasmtest.Echo()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stdout.String() != "ping" {
		t.Errorf("expected stdin to be echoed, got %q", stdout.String())
	}
}

func TestRun_EmptyStdin(t *testing.T) {
	var stdout bytes.Buffer
	cfg := DefaultConfig()
	cfg.Stdin = strings.NewReader("ignored")
	cfg.Stdout = &stdout
	cfg.EmptyStdin = true
	rt := newTestRuntime(t, cfg)

	if _, err := rt.Run(context.Background(), wasmtest.Echo()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected nothing read from an empty stdin, got %q", stdout.String())
	}
}

func TestInstance_Buffered(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Trace = 8
	rt := newTestRuntime(t, cfg)

	mod, err := rt.Load(ctx, wasmtest.Hello(5))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	defer mod.Close(ctx)
	if got := mod.Imports(); !slices.Equal(got, []string{"args_sizes_get", "fd_write", "proc_exit"}) {
		t.Errorf("unexpected imports %v", got)
	}

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}
	defer inst.Close(ctx)

	code, err := inst.Run(ctx)
	if err != nil || code != 1 {
		t.Fatalf("expected exit code 1, got %d (%v)", code, err)
	}
	if exited, ok := inst.Exited(); !exited || ok {
		t.Errorf("expected a failed proc_exit, got exited=%v ok=%v", exited, ok)
	}
	if string(inst.Stdout()) != "hello\n" {
		t.Errorf("expected buffered stdout, got %q", inst.Stdout())
	}
	if n := len(inst.Trace().Records()); n != 2 {
		t.Errorf("expected 2 traced calls, got %d", n)
	}
}

func TestInstance_Reactor(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Variant = preview1.VariantReactor
	cfg.Args = []string{"prog", "arg"}
	rt := newTestRuntime(t, cfg)

	mod, err := rt.Load(ctx, wasmtest.Hello(-1))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	defer mod.Close(ctx)
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}
	defer inst.Close(ctx)

	if err := inst.Initialize(ctx); err != nil {
		t.Fatalf("initialize failed: %v", err)
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
	if argc != 2 || size != 9 {
		t.Errorf("expected argc 2 and size 9, got %d and %d", argc, size)
	}

	if _, err := inst.Call(ctx, "_start"); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if string(inst.Stderr()) != "hello\n" || len(inst.Stdout()) != 0 {
		t.Errorf("expected reactor fd 1 to reach stderr, got stdout %q stderr %q", inst.Stdout(), inst.Stderr())
	}
	if _, err := inst.Run(ctx); err == nil {
		t.Errorf("expected Run to refuse a reactor")
	}
}

func TestInstance_CloseReleasesResources(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Preopens = []Preopen{{Host: t.TempDir(), Guest: "/data"}}
	rt := newTestRuntime(t, cfg)

	mod, err := rt.Load(ctx, wasmtest.Hello(-1))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	defer mod.Close(ctx)
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate failed: %v", err)
	}
	if _, err := inst.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if inst.LiveResources() == 0 {
		t.Fatalf("expected stdio and preopen handles while running")
	}
	if err := inst.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if n := inst.LiveResources(); n != 0 {
		t.Errorf("expected no live handles after close, got %d", n)
	}
	if err := inst.Close(ctx); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing preopen", func(c *Config) { c.Preopens = []Preopen{{Host: filepath.Join(dir, "nope"), Guest: "/x"}} }},
		{"file preopen", func(c *Config) { c.Preopens = []Preopen{{Host: file, Guest: "/x"}} }},
		{"unnamed preopen", func(c *Config) { c.Preopens = []Preopen{{Host: dir}} }},
		{"bad env", func(c *Config) { c.Env = map[string]string{"A=B": "c"} }},
		{"negative trace", func(c *Config) { c.Trace = -1 }},
		{"unknown variant", func(c *Config) { c.Variant = 9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			_, err := New(context.Background(), cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if e, ok := err.(*errors.Error); !ok || e.Phase != errors.PhaseConfig {
				t.Errorf("expected config phase error, got %v", err)
			}
		})
	}
}

func TestRun_LoadError(t *testing.T) {
	rt := newTestRuntime(t, nil)
	code, err := rt.Run(context.Background(), []byte("not wasm"))
	if err == nil || code != 1 {
		t.Fatalf("expected load failure with code 1, got %d (%v)", code, err)
	}
}
