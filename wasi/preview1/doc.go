// Package preview1 implements the wasi_snapshot_preview1 calls on top of
// the preview2 capability hosts.
//
// An Adapter owns one State: the descriptor table with its free list, the
// argument, environment and preopen caches, the single-slot dirent cache
// used to resume fd_readdir, and the default clock handles. Variable-length
// capability results are placed through ImportAlloc, either straight into a
// guest buffer (WithBuffer) or into the long-lived Arena (WithArena).
//
// Every call returns an Errno. Invariant violations inside the adapter
// panic with a fatal *errors.Error; the engine turns that into a trap.
package preview1
