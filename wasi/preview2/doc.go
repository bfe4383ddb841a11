// Package preview2 implements the capability interface that preview1 calls
// are translated onto.
//
// This package provides the resource table and the resources (streams,
// descriptors, directory iterators, pollables, clocks) shared by the host
// implementations in the sub-packages.
//
// # Quick Start
//
// Create a capability environment:
//
//	wasi := preview2.New().
//	    WithEnv(map[string]string{"HOME": "/home/user"}).
//	    WithArgs([]string{"program", "--verbose"}).
//	    WithPreopen("/srv/data", "/data").
//	    WithStdin([]byte("input data"))
//
// # Resource Management
//
// Capabilities are handles into a ResourceTable:
//
//   - ResourceTable: Manages handle lifecycle and reuse
//   - Resource: Interface for all capabilities (streams, files, clocks)
//   - Pollable: Interface for resources that support polling
//
// Handles are released by the host operation that drops them. Close clears
// whatever is left.
//
// # Implemented Interfaces
//
// Sub-packages provide the hosts:
//
//   - cli: Environment, arguments, stdio, terminals, exit
//   - clocks: Wall clock and monotonic clock with subscription support
//   - filesystem: File and directory operations confined to preopens
//   - io: Streams and batched polling
//   - random: Cryptographic random bytes
//
// # Capturing Output
//
// Without WithStdout/WithStderr, output is buffered:
//
//	stdout := wasi.Stdout()  // captured stdout bytes
//	stderr := wasi.Stderr()  // captured stderr bytes
//
// # Thread Safety
//
// A single environment serves one guest instance at a time.
package preview2
