package io

import (
	"context"
	"time"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

type PollHost struct {
	resources *preview2.ResourceTable
}

func NewPollHost(resources *preview2.ResourceTable) *PollHost {
	return &PollHost{resources: resources}
}

// Poll blocks until at least one pollable is ready and returns the indices
// of every ready pollable, in ascending order. Handles that are not
// pollables are never ready. Poll returns an empty list when ctx ends or
// when nothing in the list can become ready.
func (h *PollHost) Poll(ctx context.Context, pollables []uint32) []uint32 {
	for {
		ready := make([]uint32, 0, len(pollables))
		var next preview2.Pollable
		var nextDeadline time.Time

		for i, handle := range pollables {
			p, ok := h.pollable(handle)
			if !ok {
				continue
			}
			if p.Ready() {
				ready = append(ready, uint32(i))
				continue
			}
			// Wait on the earliest deadline; a pollable without one is
			// only waited on when no timer is pending.
			if d, ok := p.(preview2.Deadliner); ok {
				if next == nil || nextDeadline.IsZero() || d.Deadline().Before(nextDeadline) {
					next, nextDeadline = p, d.Deadline()
				}
			} else if next == nil {
				next = p
			}
		}

		if len(ready) > 0 || next == nil {
			return ready
		}
		next.Block(ctx)
		if ctx.Err() != nil {
			return ready
		}
	}
}

func (h *PollHost) pollable(handle uint32) (preview2.Pollable, bool) {
	r, ok := h.resources.Get(handle)
	if !ok {
		return nil, false
	}
	p, ok := r.(preview2.Pollable)
	return p, ok
}

func (h *PollHost) MethodPollableReady(_ context.Context, self uint32) bool {
	p, ok := h.pollable(self)
	return ok && p.Ready()
}

func (h *PollHost) MethodPollableBlock(ctx context.Context, self uint32) {
	if p, ok := h.pollable(self); ok {
		p.Block(ctx)
	}
}

func (h *PollHost) ResourceDropPollable(_ context.Context, self uint32) {
	h.resources.Remove(self)
}
