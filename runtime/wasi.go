package runtime

import (
	"os"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

// newWASI builds the capability environment of one instance. exit receives
// the status the guest passes to proc_exit.
func newWASI(cfg *Config, exit func(ok bool)) *preview2.WASI {
	env := make(map[string]string, len(cfg.Env))
	for k, v := range cfg.Env {
		env[k] = v
	}

	w := preview2.New().
		WithEnv(env).
		WithArgs(cfg.Args).
		WithExit(exit)
	if cfg.Cwd != "" {
		w.WithCwd(cfg.Cwd)
	}
	for _, p := range cfg.Preopens {
		w.WithPreopen(p.Host, p.Guest)
	}

	if cfg.Stdin != nil {
		w.WithStdinReader(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		w.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		w.WithStderr(cfg.Stderr)
	}

	stdin, _ := cfg.Stdin.(*os.File)
	stdout, _ := cfg.Stdout.(*os.File)
	stderr, _ := cfg.Stderr.(*os.File)
	return w.WithTerminals(stdin, stdout, stderr)
}
