// Package io implements the stream and poll interfaces.
//
// Implements:
//   - wasi:io/streams - input and output streams
//   - wasi:io/poll - pollables and the blocking poll call
//
// Streams are resources in the shared table. Any resource with a Read
// method is an input stream and any resource with a Write method is an
// output stream, so stdio, memory buffers and file streams share one path.
package io
