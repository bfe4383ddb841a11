package io

import (
	"context"
	"errors"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

type inputStream interface {
	Read(uint64) ([]byte, error)
}

type outputStream interface {
	Write([]byte) error
}

type StreamsHost struct {
	resources *preview2.ResourceTable
}

func NewStreamsHost(resources *preview2.ResourceTable) *StreamsHost {
	return &StreamsHost{resources: resources}
}

func streamError(err error) *preview2.StreamError {
	if err == nil {
		return nil
	}
	var se *preview2.StreamError
	if errors.As(err, &se) {
		return se
	}
	return &preview2.StreamError{LastOpFailed: true}
}

func (h *StreamsHost) input(self uint32) (inputStream, bool) {
	r, ok := h.resources.Get(self)
	if !ok {
		return nil, false
	}
	// Any resource with a Read method: stdin, buffers and file streams.
	stream, ok := r.(inputStream)
	return stream, ok
}

func (h *StreamsHost) output(self uint32) (outputStream, bool) {
	r, ok := h.resources.Get(self)
	if !ok {
		return nil, false
	}
	stream, ok := r.(outputStream)
	return stream, ok
}

// MethodInputStreamRead reads up to length bytes. A closed stream reports
// StreamError.Closed; a read that produced nothing is not an error.
func (h *StreamsHost) MethodInputStreamRead(_ context.Context, self uint32, length uint64) ([]byte, *preview2.StreamError) {
	stream, ok := h.input(self)
	if !ok {
		return nil, &preview2.StreamError{Closed: true}
	}
	data, err := stream.Read(length)
	if err != nil {
		return nil, streamError(err)
	}
	return data, nil
}

// Every input stream this host serves blocks inside Read, so the blocking
// variant is the same call.
func (h *StreamsHost) MethodInputStreamBlockingRead(ctx context.Context, self uint32, length uint64) ([]byte, *preview2.StreamError) {
	return h.MethodInputStreamRead(ctx, self, length)
}

func (h *StreamsHost) MethodInputStreamSubscribe(_ context.Context, _ uint32) uint32 {
	return h.resources.Add(preview2.NewReadyPollable())
}

func (h *StreamsHost) MethodOutputStreamCheckWrite(_ context.Context, self uint32) (uint64, *preview2.StreamError) {
	r, ok := h.resources.Get(self)
	if !ok {
		return 0, &preview2.StreamError{Closed: true}
	}

	stream, ok := r.(interface{ CheckWrite() (uint64, error) })
	if !ok {
		return preview2.DefaultBufferSize, nil
	}

	size, err := stream.CheckWrite()
	if err != nil {
		return 0, streamError(err)
	}
	return size, nil
}

func (h *StreamsHost) MethodOutputStreamWrite(_ context.Context, self uint32, contents []byte) *preview2.StreamError {
	stream, ok := h.output(self)
	if !ok {
		return &preview2.StreamError{Closed: true}
	}
	return streamError(stream.Write(contents))
}

func (h *StreamsHost) MethodOutputStreamBlockingWriteAndFlush(ctx context.Context, self uint32, contents []byte) *preview2.StreamError {
	if err := h.MethodOutputStreamWrite(ctx, self, contents); err != nil {
		return err
	}
	return h.MethodOutputStreamBlockingFlush(ctx, self)
}

func (h *StreamsHost) MethodOutputStreamFlush(_ context.Context, self uint32) *preview2.StreamError {
	r, ok := h.resources.Get(self)
	if !ok {
		return &preview2.StreamError{Closed: true}
	}

	if flusher, ok := r.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return streamError(err)
		}
	}
	return nil
}

func (h *StreamsHost) MethodOutputStreamBlockingFlush(ctx context.Context, self uint32) *preview2.StreamError {
	return h.MethodOutputStreamFlush(ctx, self)
}

func (h *StreamsHost) MethodOutputStreamSubscribe(_ context.Context, _ uint32) uint32 {
	return h.resources.Add(preview2.NewReadyPollable())
}

func (h *StreamsHost) ResourceDropInputStream(_ context.Context, self uint32) {
	h.resources.Remove(self)
}

func (h *StreamsHost) ResourceDropOutputStream(_ context.Context, self uint32) {
	h.resources.Remove(self)
}
