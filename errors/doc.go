// Package errors provides structured error types for the wasi-adapter module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the flat-interface call name, an optional path into
// adapter state, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDispatch, errors.KindFatal).
//		Call("fd_readdir").
//		Path("state", "dirent_cache").
//		Detail("cached name exceeds %d bytes", 256).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Fatal("descriptor %d borrowed twice", fd)
//	err := errors.OutOfBounds(errors.PhaseDispatch, ptr, length)
//
// Errors of KindFatal are never returned to the guest. Host functions raise
// them with panic, which halts the guest call; IsFatal detects them after
// the engine has wrapped the recovered value.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
