package preview2

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/wippyai/wasi-adapter/resource"
)

// MaxAllocationSize is the maximum size for single allocations (1 GB) to prevent DoS
const MaxAllocationSize = 1 << 30

// DefaultBufferSize is the default write budget reported by output streams (64 KB)
const DefaultBufferSize = 65536

// ResourceType identifies the type of a capability for type-safe handle management.
type ResourceType = resource.Kind

const (
	ResourcePollable             = resource.KindPollable
	ResourceInputStream          = resource.KindInputStream
	ResourceOutputStream         = resource.KindOutputStream
	ResourceDescriptor           = resource.KindDescriptor
	ResourceDirectoryEntryStream = resource.KindDirectoryEntryStream
	ResourceClock                = resource.KindClock
	ResourceTerminalInput        = resource.KindTerminalInput
	ResourceTerminalOutput       = resource.KindTerminalOutput
)

// Resource is a capability that can be managed by ResourceTable.
type Resource interface {
	// Type returns the resource type identifier.
	Type() ResourceType
	// Drop releases any underlying resources.
	Drop()
}

// ResourceTable manages capability handles.
// It is an adapter over resource.Table that speaks uint32 handles.
type ResourceTable struct {
	table *resource.Table
}

// NewResourceTable creates a new resource table
func NewResourceTable() *ResourceTable {
	return &ResourceTable{
		table: resource.NewTable(),
	}
}

// Add stores a resource and returns a stable handle.
func (t *ResourceTable) Add(r Resource) uint32 {
	return uint32(t.table.Insert(r.Type(), r))
}

// Get returns the resource for a handle, or (nil, false) if invalid.
func (t *ResourceTable) Get(handle uint32) (Resource, bool) {
	v, ok := t.table.Get(resource.Handle(handle))
	if !ok {
		return nil, false
	}
	r, ok := v.(Resource)
	return r, ok
}

// Remove calls Drop on the resource and removes it from the table.
// It reports whether the handle was live.
func (t *ResourceTable) Remove(handle uint32) bool {
	_, ok := t.table.Remove(resource.Handle(handle))
	return ok
}

// Len returns the number of live handles.
func (t *ResourceTable) Len() int {
	return t.table.Len()
}

// Subscribe registers an observer for handle lifecycle events.
func (t *ResourceTable) Subscribe(o resource.Observer) {
	t.table.Subscribe(o)
}

// Unsubscribe removes an observer.
func (t *ResourceTable) Unsubscribe(o resource.Observer) {
	t.table.Unsubscribe(o)
}

// Clear drops and removes all resources. Used during shutdown.
func (t *ResourceTable) Clear() {
	t.table.Clear()
}

// Pollable is the interface for resources that can be polled.
type Pollable interface {
	Resource
	// Ready returns true if the resource is ready for I/O.
	Ready() bool
	// Block waits until the resource becomes ready or ctx is canceled.
	Block(ctx context.Context)
}

// Deadliner is implemented by pollables that become ready at a fixed time.
type Deadliner interface {
	Deadline() time.Time
}

// PollableResource is a basic pollable that can be manually set ready.
type PollableResource struct {
	ready bool
}

// NewReadyPollable returns a pollable that is already ready.
func NewReadyPollable() *PollableResource {
	return &PollableResource{ready: true}
}

func (p *PollableResource) Type() ResourceType { return ResourcePollable }
func (p *PollableResource) Drop()              {}
func (p *PollableResource) Ready() bool        { return p.ready }
func (p *PollableResource) SetReady(r bool)    { p.ready = r }
func (p *PollableResource) Block(ctx context.Context) {
	p.ready = true
}

// TimerPollable implements a time-based pollable that becomes ready at a deadline
type TimerPollable struct {
	deadline time.Time
}

// NewTimerPollable creates a pollable that becomes ready at the specified deadline
func NewTimerPollable(deadline time.Time) *TimerPollable {
	return &TimerPollable{deadline: deadline}
}

func (p *TimerPollable) Type() ResourceType  { return ResourcePollable }
func (p *TimerPollable) Drop()               {}
func (p *TimerPollable) Ready() bool         { return !time.Now().Before(p.deadline) }
func (p *TimerPollable) Deadline() time.Time { return p.deadline }
func (p *TimerPollable) Block(ctx context.Context) {
	remaining := time.Until(p.deadline)
	if remaining <= 0 {
		return
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// InputStreamResource wraps byte data or an io.Reader. The reader is not
// closed on Drop: stdio streams outlive the handles that expose them.
type InputStreamResource struct {
	reader io.Reader
	data   []byte
	offset int
	closed bool
}

func NewInputStreamResource(source interface{}) *InputStreamResource {
	s := &InputStreamResource{}
	switch v := source.(type) {
	case []byte:
		s.data = v
	case io.Reader:
		s.reader = v
	}
	return s
}

func (s *InputStreamResource) Type() ResourceType { return ResourceInputStream }
func (s *InputStreamResource) Drop()              {}

func (s *InputStreamResource) Read(length uint64) ([]byte, error) {
	if s.closed {
		return nil, &StreamError{Closed: true}
	}
	if length > MaxAllocationSize {
		length = MaxAllocationSize
	}
	if s.reader != nil {
		buf := make([]byte, length)
		n, err := s.reader.Read(buf)
		if err != nil {
			s.closed = true
			if n > 0 {
				return buf[:n], nil
			}
			if errors.Is(err, io.EOF) {
				return nil, &StreamError{Closed: true}
			}
			return nil, &StreamError{LastOpFailed: true}
		}
		return buf[:n], nil
	}
	remaining := len(s.data) - s.offset
	if remaining == 0 {
		s.closed = true
		return nil, &StreamError{Closed: true}
	}
	toRead := int(length)
	if toRead > remaining {
		toRead = remaining
	}
	result := s.data[s.offset : s.offset+toRead]
	s.offset += toRead
	return result, nil
}

// FileInputStreamResource reads a file starting at a fixed offset. The
// offset advances with every read; it is never shared with other streams.
type FileInputStreamResource struct {
	file   *os.File
	offset int64
	closed bool
}

// NewFileInputStreamResource opens path for reading at offset.
func NewFileInputStreamResource(path string, offset int64) (*FileInputStreamResource, error) {
	f, err := os.Open(path) //nolint:gosec // path is resolved inside a preopen by the filesystem host
	if err != nil {
		return nil, err
	}
	return &FileInputStreamResource{file: f, offset: offset}, nil
}

func (s *FileInputStreamResource) Type() ResourceType { return ResourceInputStream }

func (s *FileInputStreamResource) Drop() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	s.closed = true
}

func (s *FileInputStreamResource) Read(length uint64) ([]byte, error) {
	if s.closed || s.file == nil {
		return nil, &StreamError{Closed: true}
	}
	if length > MaxAllocationSize {
		length = MaxAllocationSize
	}
	buf := make([]byte, length)
	n, err := s.file.ReadAt(buf, s.offset)
	s.offset += int64(n)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		return buf[:0], nil
	}
	if errors.Is(err, io.EOF) {
		return nil, &StreamError{Closed: true}
	}
	return nil, &StreamError{LastOpFailed: true}
}

// OutputStreamResource writes to an io.Writer, or to an internal buffer
// when none is given.
type OutputStreamResource struct {
	writer io.Writer
	buf    bytes.Buffer
	closed bool
}

func NewOutputStreamResource(dest io.Writer) *OutputStreamResource {
	return &OutputStreamResource{writer: dest}
}

func (s *OutputStreamResource) Type() ResourceType { return ResourceOutputStream }
func (s *OutputStreamResource) Drop()              {}

func (s *OutputStreamResource) Write(data []byte) error {
	if s.closed {
		return &StreamError{Closed: true}
	}
	if s.writer == nil {
		_, _ = s.buf.Write(data)
		return nil
	}
	if _, err := s.writer.Write(data); err != nil {
		return &StreamError{LastOpFailed: true}
	}
	return nil
}

// Bytes returns everything written so far. It is empty unless the stream
// writes to its internal buffer or to a *bytes.Buffer.
func (s *OutputStreamResource) Bytes() []byte {
	if b, ok := s.writer.(*bytes.Buffer); ok {
		return b.Bytes()
	}
	return s.buf.Bytes()
}

func (s *OutputStreamResource) CheckWrite() (uint64, error) {
	if s.closed {
		return 0, &StreamError{Closed: true}
	}
	return DefaultBufferSize, nil
}

// FileOutputStreamResource implements an output stream that writes to a file
type FileOutputStreamResource struct {
	file   *os.File
	append bool
	closed bool
}

// NewFileOutputStreamResource creates a file output stream. flag is or-ed
// into the open flags (for example O_SYNC for sync descriptors).
func NewFileOutputStreamResource(path string, offset int64, append bool, flag int) (*FileOutputStreamResource, error) {
	flags := os.O_WRONLY | flag
	if append {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // path is resolved inside a preopen by the filesystem host
	if err != nil {
		return nil, err
	}
	if !append && offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &FileOutputStreamResource{file: f, append: append}, nil
}

func (s *FileOutputStreamResource) Type() ResourceType { return ResourceOutputStream }

func (s *FileOutputStreamResource) Drop() {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}
	s.closed = true
}

func (s *FileOutputStreamResource) Write(data []byte) error {
	if s.closed || s.file == nil {
		return &StreamError{Closed: true}
	}
	_, err := s.file.Write(data)
	if err != nil {
		return &StreamError{LastOpFailed: true}
	}
	return nil
}

func (s *FileOutputStreamResource) CheckWrite() (uint64, error) {
	if s.closed || s.file == nil {
		return 0, &StreamError{Closed: true}
	}
	return DefaultBufferSize, nil
}

func (s *FileOutputStreamResource) Flush() error {
	if s.closed || s.file == nil {
		return &StreamError{Closed: true}
	}
	return s.file.Sync()
}

// StreamError represents a stream failure.
type StreamError struct {
	Closed       bool // Stream is closed
	LastOpFailed bool // Previous operation failed
}

func (e *StreamError) Error() string {
	if e.Closed {
		return "stream closed"
	}
	return "stream error"
}

// DescriptorResource represents an open file or directory. Flags holds the
// filesystem descriptor-flags bits the descriptor was opened with.
type DescriptorResource struct {
	path  string
	isDir bool
	flags uint8
}

func NewDescriptorResource(path string, isDir bool, flags uint8) *DescriptorResource {
	return &DescriptorResource{
		path:  path,
		isDir: isDir,
		flags: flags,
	}
}

func (d *DescriptorResource) Type() ResourceType { return ResourceDescriptor }
func (d *DescriptorResource) Drop()              {}
func (d *DescriptorResource) Path() string       { return d.path }
func (d *DescriptorResource) IsDir() bool        { return d.isDir }
func (d *DescriptorResource) Flags() uint8       { return d.flags }
func (d *DescriptorResource) SetFlags(f uint8)   { d.flags = f }

// DirectoryEntryStreamResource iterates over directory entries.
type DirectoryEntryStreamResource struct {
	entries []DirectoryEntry
	offset  int
}

// DirectoryEntry represents a single entry in a directory listing.
type DirectoryEntry struct {
	Name  string
	Inode uint64
	Type  uint8
}

func NewDirectoryEntryStreamResource(entries []DirectoryEntry) *DirectoryEntryStreamResource {
	return &DirectoryEntryStreamResource{
		entries: entries,
	}
}

func (d *DirectoryEntryStreamResource) Type() ResourceType { return ResourceDirectoryEntryStream }
func (d *DirectoryEntryStreamResource) Drop()              { d.entries = nil }
func (d *DirectoryEntryStreamResource) ReadNext() *DirectoryEntry {
	if d.offset >= len(d.entries) {
		return nil
	}
	entry := d.entries[d.offset]
	d.offset++
	return &entry
}

// ClockKind selects the time source behind a clock handle.
type ClockKind uint8

const (
	ClockMonotonic ClockKind = iota
	ClockWall
)

// ClockResource is a handle to a clock instance.
type ClockResource struct {
	kind ClockKind
}

func NewClockResource(kind ClockKind) *ClockResource {
	return &ClockResource{kind: kind}
}

func (c *ClockResource) Type() ResourceType { return ResourceClock }
func (c *ClockResource) Drop()              {}
func (c *ClockResource) Kind() ClockKind    { return c.kind }

// TerminalResource marks a stdio stream attached to a terminal.
type TerminalResource struct {
	output bool
}

func NewTerminalResource(output bool) *TerminalResource {
	return &TerminalResource{output: output}
}

func (t *TerminalResource) Type() ResourceType {
	if t.output {
		return ResourceTerminalOutput
	}
	return ResourceTerminalInput
}
func (t *TerminalResource) Drop() {}
