package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasi-adapter/errors"
	"github.com/wippyai/wasi-adapter/runtime"
	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

type runOptions struct {
	configFile  string
	stdin       string
	cwd         string
	variant     string
	call        string
	traceCSV    string
	env         []string
	dirs        []string
	trace       int
	memoryLimit uint32
	emptyStdin  bool
	interactive bool
}

func runCommand() *cobra.Command {
	var opts runOptions

	command := &cobra.Command{
		Use:   "run [flags] module.wasm [args...]",
		Short: "run a preview1 module",
		Long: "Run a WASI preview1 module. Arguments after the module path are passed\n" +
			"to the guest; the module's base name is argv[0].",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}
	command.Flags().SetInterspersed(false)

	f := command.Flags()
	f.StringVar(&opts.configFile, "config", "", "YAML run configuration; flags override its fields")
	f.StringArrayVarP(&opts.env, "env", "e", nil, "set a guest environment variable (NAME=VALUE)")
	f.StringArrayVarP(&opts.dirs, "dir", "d", nil, "preopen a host directory (host[:guest])")
	f.StringVar(&opts.stdin, "stdin", "", "read guest stdin from this file")
	f.BoolVar(&opts.emptyStdin, "empty-stdin", false, "give the guest a stdin that is always at end of stream")
	f.StringVar(&opts.cwd, "cwd", "", "guest working directory")
	f.StringVar(&opts.variant, "variant", "command", "adapter variant: command or reactor")
	f.StringVar(&opts.call, "call", "", "export to call after _initialize (reactor variant)")
	f.Uint32Var(&opts.memoryLimit, "memory-limit", 0, "guest memory limit in 64KiB pages")
	f.IntVar(&opts.trace, "trace", 0, "record the last N flat-interface calls")
	f.StringVar(&opts.traceCSV, "trace-csv", "", "write the call trace to this CSV file")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "browse the call trace after the guest exits")

	return command
}

// config layers the YAML file and then the flags over the defaults.
// Scalar flags replace file values; --env and --dir extend them.
func (o *runOptions) config(cmd *cobra.Command, args []string) (*runtime.Config, []io.Closer, error) {
	cfg := runtime.DefaultConfig()
	cfg.Stdin = os.Stdin
	cfg.Stdout = cmd.OutOrStdout()
	cfg.Stderr = cmd.ErrOrStderr()

	stdinPath := ""
	if o.configFile != "" {
		fc, err := loadConfigFile(o.configFile)
		if err != nil {
			return nil, nil, err
		}
		if err := fc.apply(cfg); err != nil {
			return nil, nil, err
		}
		stdinPath = fc.Stdin
	}

	flags := cmd.Flags()
	for _, kv := range o.env {
		name, value, err := parseEnv(kv)
		if err != nil {
			return nil, nil, err
		}
		cfg.Env[name] = value
	}
	for _, d := range o.dirs {
		p, err := parseDir(d)
		if err != nil {
			return nil, nil, err
		}
		cfg.Preopens = append(cfg.Preopens, p)
	}
	if flags.Changed("stdin") {
		stdinPath = o.stdin
	}
	if flags.Changed("empty-stdin") {
		cfg.EmptyStdin = o.emptyStdin
	}
	if flags.Changed("cwd") {
		cfg.Cwd = o.cwd
	}
	if flags.Changed("variant") {
		v, err := parseVariant(o.variant)
		if err != nil {
			return nil, nil, err
		}
		cfg.Variant = v
	}
	if flags.Changed("memory-limit") {
		cfg.MemoryLimitPages = o.memoryLimit
	}
	if flags.Changed("trace") {
		cfg.Trace = o.trace
	}
	if cfg.Trace == 0 && (o.traceCSV != "" || o.interactive) {
		cfg.Trace = defaultTraceLimit
	}

	guestArgs := cfg.Args
	if len(args) > 1 {
		guestArgs = args[1:]
	}
	cfg.Args = append([]string{filepath.Base(args[0])}, guestArgs...)

	if o.call != "" && cfg.Variant != preview1.VariantReactor {
		return nil, nil, errors.InvalidInput(errors.PhaseConfig, "--call needs the reactor variant")
	}

	var closers []io.Closer
	if stdinPath != "" {
		f, err := os.Open(stdinPath)
		if err != nil {
			return nil, nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
				Path(stdinPath).
				Detail("stdin file").
				Cause(err).
				Build()
		}
		cfg.Stdin = f
		closers = append(closers, f)
	}
	return cfg, closers, nil
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, closers, err := o.config(cmd, args)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	wasm, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	rt, err := runtime.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	mod, err := rt.Load(ctx, wasm)
	if err != nil {
		return err
	}
	defer mod.Close(ctx)

	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return err
	}
	defer inst.Close(ctx)

	code, runErr := o.execute(ctx, cmd, cfg, inst)

	if tr := inst.Trace(); tr != nil {
		rows := traceRows(tr.Records())
		if o.traceCSV != "" {
			if err := writeTraceFile(o.traceCSV, rows); err != nil {
				return err
			}
		}
		if o.interactive {
			if err := runViewer(args[0], rows, tr.Dropped()); err != nil {
				return err
			}
		}
	}

	if runErr != nil {
		return runErr
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func (o *runOptions) execute(ctx context.Context, cmd *cobra.Command, cfg *runtime.Config, inst *runtime.Instance) (int, error) {
	if cfg.Variant == preview1.VariantCommand {
		return inst.Run(ctx)
	}
	if err := inst.Initialize(ctx); err != nil {
		return 1, err
	}
	if o.call == "" {
		return 0, nil
	}
	results, err := inst.Call(ctx, o.call)
	if err != nil {
		if exited, ok := inst.Exited(); exited {
			if ok {
				return 0, nil
			}
			return 1, nil
		}
		return 1, err
	}
	values := make([]string, len(results))
	for i, r := range results {
		values[i] = fmt.Sprint(r)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: [%s]\n", o.call, strings.Join(values, " "))
	return 0, nil
}
