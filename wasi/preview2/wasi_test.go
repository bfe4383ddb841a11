package preview2

import (
	"bytes"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/wasi-adapter/resource"
)

func TestWASI_Builder(t *testing.T) {
	wasi := New().
		WithEnv(map[string]string{"HOME": "/home/guest", "LANG": "C"}).
		WithArgs([]string{"prog", "--flag", "x"}).
		WithCwd("/work")
	defer wasi.Close()

	if env := wasi.Env(); len(env) != 2 || env["HOME"] != "/home/guest" {
		t.Errorf("unexpected env %v", env)
	}
	if args := wasi.Args(); !slices.Equal(args, []string{"prog", "--flag", "x"}) {
		t.Errorf("unexpected args %v", args)
	}
	if wasi.Cwd() != "/work" {
		t.Errorf("expected cwd /work, got %s", wasi.Cwd())
	}
}

func TestWASI_Defaults(t *testing.T) {
	wasi := New()
	defer wasi.Close()

	if len(wasi.Env()) != 0 || len(wasi.Args()) != 0 || wasi.Cwd() != "/" {
		t.Errorf("unexpected defaults env=%v args=%v cwd=%s", wasi.Env(), wasi.Args(), wasi.Cwd())
	}
	if len(wasi.Stdout()) != 0 || len(wasi.Stderr()) != 0 {
		t.Errorf("expected empty stdout and stderr buffers")
	}
	if wasi.Exit() != nil {
		t.Errorf("expected no exit callback")
	}
	if in, out, errOut := wasi.Terminals(); in != nil || out != nil || errOut != nil {
		t.Errorf("expected no terminals")
	}

	// the default stdin is empty and ends immediately
	if _, err := wasi.Stdin().Read(16); err == nil || !err.(*StreamError).Closed {
		t.Errorf("expected a closed default stdin, got %v", err)
	}
}

func TestWASI_StdinReader(t *testing.T) {
	wasi := New().WithStdinReader(strings.NewReader("line\n"))
	defer wasi.Close()

	data, err := wasi.Stdin().Read(64)
	if err != nil || string(data) != "line\n" {
		t.Fatalf("stdin read = %q, %v", data, err)
	}
	if _, err := wasi.Stdin().Read(64); err == nil || !err.(*StreamError).Closed {
		t.Errorf("expected end of stream after the reader is drained, got %v", err)
	}
}

func TestWASI_StdinBytes(t *testing.T) {
	wasi := New().WithStdin([]byte("abcdef"))
	defer wasi.Close()

	first, _ := wasi.Stdin().Read(4)
	second, _ := wasi.Stdin().Read(4)
	if string(first) != "abcd" || string(second) != "ef" {
		t.Errorf("expected abcd then ef, got %q and %q", first, second)
	}
}

func TestWASI_OutputWriters(t *testing.T) {
	var out, errOut bytes.Buffer
	wasi := New().WithStdout(&out).WithStderr(&errOut)
	defer wasi.Close()

	if err := wasi.StdoutResource().Write([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	if err := wasi.StderrResource().Write([]byte("oops")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hi" || errOut.String() != "oops" {
		t.Errorf("unexpected writer contents %q / %q", out.String(), errOut.String())
	}
}

func TestWASI_PreopenOrder(t *testing.T) {
	wasi := New().
		WithPreopen("/host/b", "/b").
		WithPreopen("/host/a", "/a")
	defer wasi.Close()

	pre := wasi.Preopens()
	if len(pre) != 2 || pre[0].GuestPath != "/b" || pre[1].HostPath != "/host/a" {
		t.Errorf("preopens = %+v", pre)
	}

	wasi.WithPreopens([]Preopen{{HostPath: "/srv", GuestPath: "/"}})
	if pre := wasi.Preopens(); len(pre) != 1 || pre[0].GuestPath != "/" {
		t.Errorf("expected WithPreopens to replace the list, got %+v", pre)
	}
}

func TestWASI_Exit(t *testing.T) {
	var got []bool
	wasi := New().WithExit(func(ok bool) { got = append(got, ok) })
	defer wasi.Close()

	wasi.Exit()(false)
	wasi.Exit()(true)
	if !slices.Equal(got, []bool{false, true}) {
		t.Errorf("unexpected exit statuses %v", got)
	}
}

func TestWASI_Terminals(t *testing.T) {
	wasi := New().WithTerminals(nil, os.Stdout, nil)
	defer wasi.Close()

	in, out, errOut := wasi.Terminals()
	if in != nil || out != os.Stdout || errOut != nil {
		t.Errorf("unexpected terminals %v %v %v", in, out, errOut)
	}
}

func TestWASI_CloseDropsHandles(t *testing.T) {
	wasi := New()
	counter := resource.NewLiveCounter()
	resources := wasi.Resources()
	resources.Subscribe(counter)

	resources.Add(NewClockResource(ClockWall))
	resources.Add(NewReadyPollable())
	if resources.Len() != 2 {
		t.Fatalf("expected 2 handles, got %d", resources.Len())
	}

	wasi.Close()
	if resources.Len() != 0 {
		t.Errorf("Close left %d handles", resources.Len())
	}
	if counter.Total() != 0 {
		t.Errorf("expected every handle to be reported dropped, %d live", counter.Total())
	}
}
