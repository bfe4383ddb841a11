package preview2

import (
	"io"
	"os"
)

// Preopen maps a host directory to the name the guest sees it under.
type Preopen struct {
	HostPath  string
	GuestPath string
}

// WASI configures a capability environment. Use builder methods to set up.
type WASI struct {
	resources *ResourceTable
	stdin     *InputStreamResource
	stdout    *OutputStreamResource
	stderr    *OutputStreamResource
	exit      func(ok bool)
	env       map[string]string
	terminals [3]*os.File
	cwd       string
	args      []string
	preopens  []Preopen
}

// New creates a new capability environment
func New() *WASI {
	w := &WASI{
		resources: NewResourceTable(),
		stdin:     NewInputStreamResource(nil),
		stdout:    NewOutputStreamResource(nil),
		stderr:    NewOutputStreamResource(nil),
		env:       make(map[string]string),
		args:      nil,
		cwd:       "/",
	}
	return w
}

// WithEnv sets environment variables
func (w *WASI) WithEnv(env map[string]string) *WASI {
	w.env = env
	return w
}

// WithArgs sets command-line arguments
func (w *WASI) WithArgs(args []string) *WASI {
	w.args = args
	return w
}

// WithCwd sets the current working directory
func (w *WASI) WithCwd(cwd string) *WASI {
	w.cwd = cwd
	return w
}

// WithPreopen appends a preopened directory. Preopens are listed to the
// guest in the order they were added.
func (w *WASI) WithPreopen(hostPath, guestPath string) *WASI {
	w.preopens = append(w.preopens, Preopen{HostPath: hostPath, GuestPath: guestPath})
	return w
}

// WithPreopens replaces the preopened directories
func (w *WASI) WithPreopens(preopens []Preopen) *WASI {
	w.preopens = preopens
	return w
}

// WithStdin sets stdin data
func (w *WASI) WithStdin(data []byte) *WASI {
	w.stdin = NewInputStreamResource(data)
	return w
}

// WithStdinReader streams stdin from r
func (w *WASI) WithStdinReader(r io.Reader) *WASI {
	w.stdin = NewInputStreamResource(r)
	return w
}

// WithStdout sends stdout to dest instead of the internal buffer
func (w *WASI) WithStdout(dest io.Writer) *WASI {
	w.stdout = NewOutputStreamResource(dest)
	return w
}

// WithStderr sends stderr to dest instead of the internal buffer
func (w *WASI) WithStderr(dest io.Writer) *WASI {
	w.stderr = NewOutputStreamResource(dest)
	return w
}

// WithTerminals sets the host files probed for terminal attachment. A nil
// file is never a terminal.
func (w *WASI) WithTerminals(stdin, stdout, stderr *os.File) *WASI {
	w.terminals = [3]*os.File{stdin, stdout, stderr}
	return w
}

// WithExit sets the callback run by the exit capability
func (w *WASI) WithExit(exit func(ok bool)) *WASI {
	w.exit = exit
	return w
}

// Stdout returns stdout contents
func (w *WASI) Stdout() []byte {
	return w.stdout.Bytes()
}

// Stderr returns stderr contents
func (w *WASI) Stderr() []byte {
	return w.stderr.Bytes()
}

// Resources returns the resource table
func (w *WASI) Resources() *ResourceTable {
	return w.resources
}

// Env returns environment variables
func (w *WASI) Env() map[string]string {
	return w.env
}

// Args returns command-line arguments
func (w *WASI) Args() []string {
	return w.args
}

// Cwd returns current working directory
func (w *WASI) Cwd() string {
	return w.cwd
}

// Preopens returns preopened directories in guest order
func (w *WASI) Preopens() []Preopen {
	return w.preopens
}

// Stdin returns stdin resource
func (w *WASI) Stdin() *InputStreamResource {
	return w.stdin
}

// StdoutResource returns stdout resource
func (w *WASI) StdoutResource() *OutputStreamResource {
	return w.stdout
}

// StderrResource returns stderr resource
func (w *WASI) StderrResource() *OutputStreamResource {
	return w.stderr
}

// Terminals returns the files probed for terminal attachment
func (w *WASI) Terminals() (stdin, stdout, stderr *os.File) {
	return w.terminals[0], w.terminals[1], w.terminals[2]
}

// Exit returns the exit callback, or nil
func (w *WASI) Exit() func(ok bool) {
	return w.exit
}

// Close cleans up all resources
func (w *WASI) Close() {
	w.resources.Clear()
}
