package clocks

import (
	"context"
	"math/bits"
	"time"

	"github.com/wippyai/wasi-adapter/wasi/preview2"
)

type WallClockHost struct {
	resources *preview2.ResourceTable
}

func NewWallClockHost(resources *preview2.ResourceTable) *WallClockHost {
	return &WallClockHost{resources: resources}
}

type Datetime struct {
	Seconds     uint64
	Nanoseconds uint32
}

// Nanos returns d in nanoseconds and false when that overflows 64 bits.
func (d Datetime) Nanos() (uint64, bool) {
	hi, lo := bits.Mul64(d.Seconds, 1_000_000_000)
	if hi != 0 {
		return 0, false
	}
	sum, carry := bits.Add64(lo, uint64(d.Nanoseconds), 0)
	return sum, carry == 0
}

func (h *WallClockHost) InstanceWallClock(_ context.Context) uint32 {
	return h.resources.Add(preview2.NewClockResource(preview2.ClockWall))
}

func (h *WallClockHost) Now(_ context.Context, self uint32) (Datetime, bool) {
	if !clockOf(h.resources, self, preview2.ClockWall) {
		return Datetime{}, false
	}
	now := time.Now()
	return Datetime{
		Seconds:     uint64(now.Unix()),
		Nanoseconds: uint32(now.Nanosecond()),
	}, true
}

func (h *WallClockHost) Resolution(_ context.Context, self uint32) (Datetime, bool) {
	if !clockOf(h.resources, self, preview2.ClockWall) {
		return Datetime{}, false
	}
	return Datetime{Nanoseconds: 1}, true
}

func (h *WallClockHost) ResourceDropWallClock(_ context.Context, self uint32) {
	h.resources.Remove(self)
}
