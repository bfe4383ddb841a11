package engine

import (
	"sync"
	"time"

	"github.com/wippyai/wasi-adapter/wasi/preview1"
)

// TraceRecord is one flat-interface call made by a guest.
type TraceRecord struct {
	Seq      uint64
	Call     string
	Params   []uint64
	Errno    preview1.Errno
	Duration time.Duration
}

// Trace keeps the most recent calls of one instance, up to a fixed limit.
type Trace struct {
	mu      sync.Mutex
	records []TraceRecord
	start   int
	limit   int
	seq     uint64
}

// NewTrace creates a trace that keeps at most limit records.
func NewTrace(limit int) *Trace {
	if limit <= 0 {
		limit = 1
	}
	return &Trace{limit: limit}
}

func (t *Trace) add(call string, params []uint64, errno preview1.Errno, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	rec := TraceRecord{
		Seq:      t.seq,
		Call:     call,
		Params:   append([]uint64(nil), params...),
		Errno:    errno,
		Duration: d,
	}
	if len(t.records) < t.limit {
		t.records = append(t.records, rec)
		return
	}
	t.records[t.start] = rec
	t.start = (t.start + 1) % t.limit
}

// Records returns the kept records, oldest first.
func (t *Trace) Records() []TraceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]TraceRecord, 0, len(t.records))
	out = append(out, t.records[t.start:]...)
	return append(out, t.records[:t.start]...)
}

// Total returns how many calls were recorded, including dropped ones.
func (t *Trace) Total() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// Dropped returns how many of the oldest records were discarded.
func (t *Trace) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq - uint64(len(t.records))
}
