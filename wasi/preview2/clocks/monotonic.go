package clocks

import (
	"context"
	"math"
	"time"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

// MonotonicClockHost measures nanoseconds since the host was created.
// Every method taking a clock handle reports false when the handle is not
// a monotonic clock.
type MonotonicClockHost struct {
	resources *preview2.ResourceTable
	startTime time.Time
}

func NewMonotonicClockHost(resources *preview2.ResourceTable) *MonotonicClockHost {
	return &MonotonicClockHost{
		resources: resources,
		startTime: time.Now(),
	}
}

// InstanceMonotonicClock returns a handle to the monotonic clock.
func (h *MonotonicClockHost) InstanceMonotonicClock(_ context.Context) uint32 {
	return h.resources.Add(preview2.NewClockResource(preview2.ClockMonotonic))
}

func (h *MonotonicClockHost) Now(_ context.Context, self uint32) (uint64, bool) {
	if !clockOf(h.resources, self, preview2.ClockMonotonic) {
		return 0, false
	}
	return uint64(time.Since(h.startTime).Nanoseconds()), true
}

func (h *MonotonicClockHost) Resolution(_ context.Context, self uint32) (uint64, bool) {
	if !clockOf(h.resources, self, preview2.ClockMonotonic) {
		return 0, false
	}
	return 1, true
}

// Subscribe returns a pollable that is ready once the clock reaches when.
// A relative subscription counts from now.
func (h *MonotonicClockHost) Subscribe(_ context.Context, self uint32, when uint64, absolute bool) (uint32, bool) {
	if !clockOf(h.resources, self, preview2.ClockMonotonic) {
		return 0, false
	}
	var deadline time.Time
	if absolute {
		deadline = h.startTime.Add(durationOf(when))
	} else {
		deadline = time.Now().Add(durationOf(when))
	}
	return h.resources.Add(preview2.NewTimerPollable(deadline)), true
}

func (h *MonotonicClockHost) ResourceDropMonotonicClock(_ context.Context, self uint32) {
	h.resources.Remove(self)
}

// durationOf saturates at the largest time.Duration.
func durationOf(ns uint64) time.Duration {
	if ns > uint64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}
