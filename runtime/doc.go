// Package runtime provides the high-level API for running WASI preview1
// guests over the preview2 capability hosts.
//
// # Quick Start
//
//	ctx := context.Background()
//	cfg := runtime.DefaultConfig()
//	cfg.Args = []string{"hello.wasm"}
//	cfg.Stdout = os.Stdout
//
//	rt, err := runtime.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	code, err := rt.Run(ctx, wasmBytes)
//
// # Commands and Reactors
//
// A command (preview1.VariantCommand) gets real stdio on fds 0 to 2 and runs
// _start once:
//
//	mod, err := rt.Load(ctx, wasmBytes)
//	inst, err := mod.Instantiate(ctx)
//	defer inst.Close(ctx)
//	code, err := inst.Run(ctx)
//
// A reactor (preview1.VariantReactor) keeps the initial descriptors, where
// fd 0 is closed and fds 1 and 2 reach the stderr capability. The embedder
// calls Initialize and then individual exports:
//
//	inst, err := mod.Instantiate(ctx)
//	err = inst.Initialize(ctx)
//	results, err := inst.Call(ctx, "handle", 42)
//
// # Exit Codes
//
// Run returns 0 when the guest returns from _start or calls proc_exit(0),
// and 1 for any other proc_exit status. A trap, including a fatal adapter
// error (errors.IsFatal), returns 1 with the error.
//
// # Environment
//
// Every instance gets its own capability environment built from Config:
// arguments, environment, working directory, preopened directories and
// stdio. Preopens appear to the guest as fds 3 and up in Config order.
//
// # Tracing
//
// Set Config.Trace to keep the most recent flat-interface calls of each
// instance; Instance.Trace returns them.
package runtime
