package preview1

import (
	"context"

	wasiadapter "github.com/wippyai/wasi-adapter"
)

// checkClock maps the clock ids the capability interface has no clock for.
func checkClock(id Clockid) Errno {
	switch id {
	case ClockidRealtime, ClockidMonotonic:
		return ErrnoSuccess
	case ClockidProcessCputime, ClockidThreadCputime:
		return ErrnoNotsup
	}
	return ErrnoInval
}

func (a *Adapter) ClockResGet(ctx context.Context, mem wasiadapter.Memory, id Clockid, resPtr uint32) Errno {
	return a.with(ctx, "clock_res_get", func(s *State) Errno {
		if errno := checkClock(id); errno != ErrnoSuccess {
			return errno
		}
		var res uint64
		if id == ClockidMonotonic {
			r, ok := s.caps.MonotonicClock.Resolution(ctx, s.monotonicClockHandle(ctx))
			if !ok {
				panic(fatal("monotonic clock handle rejected"))
			}
			res = r
		} else {
			r, ok := s.caps.WallClock.Resolution(ctx, s.wallClockHandle(ctx))
			if !ok {
				panic(fatal("wall clock handle rejected"))
			}
			if res, ok = r.Nanos(); !ok {
				return ErrnoOverflow
			}
		}
		return storeU64(mem, resPtr, res)
	})
}

// ClockTimeGet ignores precision; both clocks report nanoseconds.
func (a *Adapter) ClockTimeGet(ctx context.Context, mem wasiadapter.Memory, id Clockid, precision uint64, timePtr uint32) Errno {
	return a.with(ctx, "clock_time_get", func(s *State) Errno {
		if errno := checkClock(id); errno != ErrnoSuccess {
			return errno
		}
		now, errno := s.now(ctx, id)
		if errno != ErrnoSuccess {
			return errno
		}
		return storeU64(mem, timePtr, now)
	})
}

// now reads a supported clock in nanoseconds.
func (s *State) now(ctx context.Context, id Clockid) (uint64, Errno) {
	if id == ClockidMonotonic {
		t, ok := s.caps.MonotonicClock.Now(ctx, s.monotonicClockHandle(ctx))
		if !ok {
			panic(fatal("monotonic clock handle rejected"))
		}
		return t, ErrnoSuccess
	}
	d, ok := s.caps.WallClock.Now(ctx, s.wallClockHandle(ctx))
	if !ok {
		panic(fatal("wall clock handle rejected"))
	}
	t, ok := d.Nanos()
	if !ok {
		return 0, ErrnoOverflow
	}
	return t, ErrnoSuccess
}
