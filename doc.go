// Package wasiadapter runs guests built against WASI preview1 on top of the
// preview2 capability interface.
//
// The flat preview1 interface (numeric descriptors, fixed-layout records,
// POSIX-style errno values) is emulated by a descriptor table and a
// system-call translation layer that call into handle-based preview2 hosts.
//
// # Architecture Overview
//
//	wasiadapter/         Root package with the guest Memory interface
//	├── runtime/         High-level API: run a command or instantiate a reactor
//	├── engine/          wazero integration: the wasi_snapshot_preview1 host module
//	├── wasi/preview1/   Descriptor table, import allocation, flat-call dispatch
//	├── wasi/preview2/   Capability hosts (filesystem, io, clocks, random, cli)
//	├── resource/        Capability handle table with leak accounting
//	├── errors/          Structured error types for debugging
//	└── cmd/run/         CLI: run a guest, record and browse its call trace
//
// # Quick Start
//
// Run a preview1 command module:
//
//	cfg := runtime.DefaultConfig()
//	cfg.Args = []string{"hello.wasm", "world"}
//	cfg.Preopens = []runtime.Preopen{{Host: "/tmp/data", Guest: "/data"}}
//
//	rt, err := runtime.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	code, err := rt.Run(ctx, wasmBytes)
//
// # Memory Model
//
// Every pointer and length the guest passes is validated into a view of
// linear memory at the dispatch boundary. A pointer range outside memory is
// reported to the guest as EFAULT. Internal bookkeeping failures are fatal:
// they trap the guest call instead of returning an errno.
//
// # Thread Safety
//
// An adapter instance serves exactly one guest module. Calls into one
// instance must not overlap; a re-entrant call is a fatal error.
package wasiadapter
