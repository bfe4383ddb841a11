// Package filesystem implements the capability-style filesystem interfaces
// used by the flat-interface adapter.
//
// Implements:
//   - wasi:filesystem/types - descriptors, directory streams and path operations
//   - wasi:filesystem/preopens - preopened directories, in configuration order
//
// Every path is resolved relative to a directory descriptor and may not
// escape it. Descriptor flags gate access: reads need the read flag, writes
// need the write flag and directory changes need mutate-directory.
//
// Host errors are translated errno for errno into ErrorCode values.
package filesystem
