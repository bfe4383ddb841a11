package io

import "github.com/wippyai/wasi-adapter/wasi/preview2"

// Host aggregates the poll and streams hosts over one resource table.
type Host struct {
	Poll    *PollHost
	Streams *StreamsHost
}

func NewHost(resources *preview2.ResourceTable) *Host {
	return &Host{
		Poll:    NewPollHost(resources),
		Streams: NewStreamsHost(resources),
	}
}
