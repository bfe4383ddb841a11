// Package cli implements the command-line interfaces.
//
// Implements:
//   - wasi:cli/environment - environment variables, arguments and cwd
//   - wasi:cli/exit - exit status reported to the embedder
//   - wasi:cli/stdin, stdout, stderr - stdio stream handles
//   - wasi:cli/terminal-* - terminal detection for the stdio files
package cli
