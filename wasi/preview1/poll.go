package preview1

import (
	"context"

	"github.com/willf/bitset"

	wasiadapter "github.com/wippyai/wasi-adapter"
)

// PollOneoff waits until at least one subscription is ready and writes an
// event for each ready one, in the order the host reported them.
func (a *Adapter) PollOneoff(ctx context.Context, mem wasiadapter.Memory, in, out, nsubs, neventsPtr uint32) Errno {
	return a.with(ctx, "poll_oneoff", func(s *State) Errno {
		if nsubs == 0 {
			return ErrnoInval
		}
		inSize, errno := arraySize(nsubs, SubscriptionSize)
		if errno != ErrnoSuccess {
			return errno
		}
		outSize, errno := arraySize(nsubs, EventSize)
		if errno != ErrnoSuccess {
			return errno
		}
		inBuf, errno := view(mem, in, inSize)
		if errno != ErrnoSuccess {
			return errno
		}
		outBuf, errno := view(mem, out, outSize)
		if errno != ErrnoSuccess {
			return errno
		}
		n, errno := s.poll(ctx, inBuf, outBuf, nsubs)
		if errno != ErrnoSuccess {
			return errno
		}
		return storeU32(mem, neventsPtr, n)
	})
}

func (s *State) poll(ctx context.Context, inBuf, outBuf []byte, nsubs uint32) (uint32, Errno) {
	subs := make([]Subscription, nsubs)
	errs := make([]Errno, nsubs)
	pollables := make([]uint32, 0, nsubs)
	defer func() {
		for _, p := range pollables {
			s.caps.Poll.ResourceDropPollable(ctx, p)
		}
	}()

	for i := range subs {
		sub := decodeSubscription(inBuf[i*SubscriptionSize:])
		subs[i] = sub
		p, errno := s.subscribe(ctx, sub, &errs[i])
		if errno != ErrnoSuccess {
			return 0, errno
		}
		pollables = append(pollables, p)
	}

	// The ready list is materialized at the tail of the event buffer, which
	// always has room for one u32 per subscription.
	tail := outBuf[len(outBuf)-int(nsubs)*4:]
	raw := WithBuffer(&s.importAlloc, tail, func() []byte {
		ready := s.caps.Poll.Poll(ctx, pollables)
		dst := s.importAlloc.Alloc(4, uint32(len(ready))*4)
		for i, idx := range ready {
			le.PutUint32(dst[i*4:], idx)
		}
		return dst
	})
	// raw aliases the tail of outBuf, so the indices are copied out before
	// any event is written. Duplicate reports are dropped.
	indices := make([]uint32, 0, len(raw)/4)
	seen := bitset.New(uint(nsubs))
	for i := 0; i+4 <= len(raw); i += 4 {
		idx := le.Uint32(raw[i:])
		if idx >= nsubs || seen.Test(uint(idx)) {
			continue
		}
		seen.Set(uint(idx))
		indices = append(indices, idx)
	}

	var count uint32
	for _, idx := range indices {
		ev := s.event(ctx, subs[idx], errs[idx])
		b := ev.Encode()
		copy(outBuf[count*EventSize:], b[:])
		count++
	}
	return count, ErrnoSuccess
}

// subscribe creates the pollable for sub. An fd subscription on a
// descriptor without a stream gets an immediately ready timer and its
// event carries EBADF.
func (s *State) subscribe(ctx context.Context, sub Subscription, eventErr *Errno) (uint32, Errno) {
	switch sub.Type {
	case EventtypeClock:
		return s.subscribeClock(ctx, sub)
	case EventtypeFdRead, EventtypeFdWrite:
		if d, errno := s.get(sub.Fd); errno == ErrnoSuccess && sub.Type == EventtypeFdRead &&
			d.Kind == DescriptorStreams && d.Streams.Kind == StreamEmptyInput {
			// Always at end of stream, so always ready.
			return s.monotonicSubscribe(ctx, 0, false), ErrnoSuccess
		}
		var stream uint32
		var errno Errno
		if sub.Type == EventtypeFdRead {
			stream, errno = s.getReadStream(ctx, sub.Fd)
		} else {
			stream, errno = s.getWriteStream(ctx, sub.Fd)
		}
		switch errno {
		case ErrnoSuccess:
			if sub.Type == EventtypeFdRead {
				return s.caps.Streams.MethodInputStreamSubscribe(ctx, stream), ErrnoSuccess
			}
			return s.caps.Streams.MethodOutputStreamSubscribe(ctx, stream), ErrnoSuccess
		case ErrnoBadf:
			*eventErr = ErrnoBadf
			return s.monotonicSubscribe(ctx, 0, false), ErrnoSuccess
		}
		return 0, errno
	}
	return 0, ErrnoInval
}

func (s *State) subscribeClock(ctx context.Context, sub Subscription) (uint32, Errno) {
	absolute := sub.Flags&SubclockflagsAbstime != 0
	switch sub.ClockID {
	case ClockidRealtime:
		if !absolute {
			return s.monotonicSubscribe(ctx, sub.Timeout, false), ErrnoSuccess
		}
		// No realtime pollables exist; wait out the remaining time on the
		// monotonic clock instead.
		now, errno := s.now(ctx, ClockidRealtime)
		if errno != ErrnoSuccess {
			return 0, errno
		}
		var timeout uint64
		if sub.Timeout > now {
			timeout = sub.Timeout - now
		}
		return s.monotonicSubscribe(ctx, timeout, false), ErrnoSuccess
	case ClockidMonotonic:
		return s.monotonicSubscribe(ctx, sub.Timeout, absolute), ErrnoSuccess
	}
	return 0, ErrnoInval
}

func (s *State) monotonicSubscribe(ctx context.Context, when uint64, absolute bool) uint32 {
	p, ok := s.caps.MonotonicClock.Subscribe(ctx, s.monotonicClockHandle(ctx), when, absolute)
	if !ok {
		panic(fatal("monotonic clock handle rejected"))
	}
	return p
}

// event builds the result record for a ready subscription.
func (s *State) event(ctx context.Context, sub Subscription, errno Errno) Event {
	ev := Event{Userdata: sub.Userdata, Type: sub.Type, Error: errno}
	if sub.Type == EventtypeClock || errno != ErrnoSuccess {
		return ev
	}
	d, errno := s.get(sub.Fd)
	if errno != ErrnoSuccess || d.Kind != DescriptorStreams {
		ev.Error = ErrnoBadf
		return ev
	}
	st := d.Streams
	if sub.Type == EventtypeFdWrite {
		if st.Kind == StreamEmptyInput {
			ev.Error = ErrnoBadf
			return ev
		}
		ev.Nbytes = 1
		return ev
	}

	switch st.Kind {
	case StreamFile:
		stat, err := s.caps.Filesystem.MethodDescriptorStat(ctx, st.File.Handle)
		if err != nil {
			ev.Error, ev.Nbytes = errnoOf(err), 1
			return ev
		}
		if stat.Size > st.File.Position {
			ev.Nbytes = stat.Size - st.File.Position
		}
		if ev.Nbytes == 0 {
			ev.Flags = EventrwflagsHangup
		}
	case StreamEmptyInput:
		ev.Flags = EventrwflagsHangup
	default:
		ev.Nbytes = 1
	}
	return ev
}
