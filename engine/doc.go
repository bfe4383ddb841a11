// Package engine runs preview1 guests on wazero with the flat interface
// served by the adapter in wasi/preview1.
//
// # Architecture
//
// The engine package provides three main types:
//
//	WazeroEngine   - Owns the wazero runtime and the wasi_snapshot_preview1 host module
//	WazeroModule   - A compiled guest module, can create instances
//	WazeroInstance - A running guest bound to its own preview1.Adapter
//
// # Instantiation Flow
//
//  1. WazeroEngine.LoadModule() compiles the guest binary
//  2. WazeroModule.Instantiate() creates an adapter over the given
//     capabilities and instantiates the guest without running _start
//  3. WazeroInstance.Run() installs stdio and calls _start (command
//     variant), or Initialize() and Call() drive a reactor
//
// # Host Module
//
// One wasi_snapshot_preview1 host module serves every instance of an
// engine. Each call finds its adapter through the call context, which the
// instance prepares before entering the guest. Guest memory is reached
// through WazeroMemory, whose reads alias linear memory.
//
// # Exit and Traps
//
// proc_exit reports the status to the exit capability, closes the guest
// module and unwinds with sys.ExitError; Run returns the exit code. An
// adapter invariant violation panics with a fatal errors.Error, which
// wazero turns into a trap; errors.IsFatal detects it in the returned
// error.
//
// # Tracing
//
// With Config.Trace set, every flat-interface call is recorded with its
// raw parameters, errno and duration in a bounded per-instance Trace.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is NOT thread-safe and should be used by a single goroutine.
//
// Most users should use the runtime package for a simpler API.
package engine
