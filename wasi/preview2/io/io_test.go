package io

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

func TestPollHost_Poll(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewPollHost(resources)
	ctx := context.Background()

	p1 := &preview2.PollableResource{}
	p1.SetReady(true)
	h1 := resources.Add(p1)

	h2 := resources.Add(preview2.NewTimerPollable(time.Now().Add(time.Hour)))

	p3 := &preview2.PollableResource{}
	p3.SetReady(true)
	h3 := resources.Add(p3)

	ready := host.Poll(ctx, []uint32{h1, h2, h3})

	if len(ready) != 2 {
		t.Fatalf("expected 2 ready pollables, got %d", len(ready))
	}
	if ready[0] != 0 || ready[1] != 2 {
		t.Errorf("expected indices [0, 2], got %v", ready)
	}
}

func TestPollHost_PollBlocksOnEarliestTimer(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewPollHost(resources)
	ctx := context.Background()

	late := resources.Add(preview2.NewTimerPollable(time.Now().Add(time.Hour)))
	soon := resources.Add(preview2.NewTimerPollable(time.Now().Add(5 * time.Millisecond)))

	start := time.Now()
	ready := host.Poll(ctx, []uint32{late, soon})
	elapsed := time.Since(start)

	if len(ready) != 1 || ready[0] != 1 {
		t.Fatalf("expected [1], got %v", ready)
	}
	if elapsed < 5*time.Millisecond {
		t.Errorf("poll returned after %v, before the timer fired", elapsed)
	}
	if elapsed > 10*time.Second {
		t.Errorf("poll waited on the later timer (%v)", elapsed)
	}
}

func TestPollHost_PollCanceled(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewPollHost(resources)

	late := resources.Add(preview2.NewTimerPollable(time.Now().Add(time.Hour)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if ready := host.Poll(ctx, []uint32{late}); len(ready) != 0 {
		t.Errorf("expected no ready pollables after cancel, got %v", ready)
	}
}

func TestPollHost_PollInvalidHandles(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewPollHost(resources)

	stream := resources.Add(preview2.NewInputStreamResource([]byte("x")))
	if ready := host.Poll(context.Background(), []uint32{9999, stream}); len(ready) != 0 {
		t.Errorf("expected no ready pollables, got %v", ready)
	}
}

func TestPollHost_MethodPollableReady(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewPollHost(resources)
	ctx := context.Background()

	p := &preview2.PollableResource{}
	p.SetReady(true)
	handle := resources.Add(p)

	if !host.MethodPollableReady(ctx, handle) {
		t.Error("expected pollable to be ready")
	}

	p.SetReady(false)
	if host.MethodPollableReady(ctx, handle) {
		t.Error("expected pollable to not be ready")
	}

	host.ResourceDropPollable(ctx, handle)
	if host.MethodPollableReady(ctx, handle) {
		t.Error("dropped pollable reported ready")
	}
}

func TestPollHost_MethodPollableBlock(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewPollHost(resources)
	ctx := context.Background()

	p := &preview2.PollableResource{}
	handle := resources.Add(p)

	host.MethodPollableBlock(ctx, handle)
	if !p.Ready() {
		t.Error("expected pollable to be ready after block")
	}
}

func TestStreamsHost_InputStreamRead(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewStreamsHost(resources)
	ctx := context.Background()

	handle := resources.Add(preview2.NewInputStreamResource([]byte("hello world")))

	data, err := host.MethodInputStreamRead(ctx, handle, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected 'hello', got '%s'", data)
	}

	data, err = host.MethodInputStreamBlockingRead(ctx, handle, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != " world" {
		t.Errorf("expected ' world', got '%s'", data)
	}

	_, err = host.MethodInputStreamRead(ctx, handle, 10)
	if err == nil || !err.Closed {
		t.Errorf("expected closed at end of stream, got %v", err)
	}
}

func TestStreamsHost_Subscribe(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewStreamsHost(resources)
	poll := NewPollHost(resources)
	ctx := context.Background()

	in := resources.Add(preview2.NewInputStreamResource([]byte("x")))
	out := resources.Add(preview2.NewOutputStreamResource(nil))

	for _, p := range []uint32{host.MethodInputStreamSubscribe(ctx, in), host.MethodOutputStreamSubscribe(ctx, out)} {
		if !poll.MethodPollableReady(ctx, p) {
			t.Errorf("stream pollable %d not ready", p)
		}
		poll.ResourceDropPollable(ctx, p)
	}
	if resources.Len() != 2 {
		t.Errorf("resources = %d, want 2 after dropping pollables", resources.Len())
	}
}

func TestStreamsHost_OutputStreamWrite(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewStreamsHost(resources)
	ctx := context.Background()

	var buf bytes.Buffer
	handle := resources.Add(preview2.NewOutputStreamResource(&buf))

	if err := host.MethodOutputStreamWrite(ctx, handle, []byte("hello ")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := host.MethodOutputStreamBlockingWriteAndFlush(ctx, handle, []byte("world")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "hello world" {
		t.Errorf("expected 'hello world', got '%s'", buf.String())
	}

	size, err := host.MethodOutputStreamCheckWrite(ctx, handle)
	if err != nil || size != preview2.DefaultBufferSize {
		t.Errorf("check-write = %d, %v", size, err)
	}
	if err := host.MethodOutputStreamFlush(ctx, handle); err != nil {
		t.Errorf("flush: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, bytes.ErrTooLarge }

func TestStreamsHost_OutputStreamFailure(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewStreamsHost(resources)
	ctx := context.Background()

	handle := resources.Add(preview2.NewOutputStreamResource(failingWriter{}))
	err := host.MethodOutputStreamWrite(ctx, handle, []byte("x"))
	if err == nil || !err.LastOpFailed {
		t.Errorf("expected last-operation-failed, got %v", err)
	}
}

func TestStreamsHost_InvalidHandles(t *testing.T) {
	resources := preview2.NewResourceTable()
	host := NewStreamsHost(resources)
	ctx := context.Background()

	if _, err := host.MethodInputStreamRead(ctx, 9999, 1); err == nil || !err.Closed {
		t.Errorf("read invalid handle: %v", err)
	}
	if err := host.MethodOutputStreamWrite(ctx, 9999, []byte("x")); err == nil || !err.Closed {
		t.Errorf("write invalid handle: %v", err)
	}
	if _, err := host.MethodOutputStreamCheckWrite(ctx, 9999); err == nil || !err.Closed {
		t.Errorf("check-write invalid handle: %v", err)
	}

	out := resources.Add(preview2.NewOutputStreamResource(nil))
	if _, err := host.MethodInputStreamRead(ctx, out, 1); err == nil {
		t.Error("read from an output stream should fail")
	}
	host.ResourceDropOutputStream(ctx, out)
	if resources.Len() != 0 {
		t.Errorf("resources = %d after drop", resources.Len())
	}
}

func TestNewHost(t *testing.T) {
	h := NewHost(preview2.NewResourceTable())
	if h.Poll == nil || h.Streams == nil {
		t.Fatal("NewHost left a host nil")
	}
}
