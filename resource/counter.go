package resource

import "sync"

// LiveCounter is an Observer that tracks how many handles of each kind are
// alive. A counter subscribed before a guest runs reports handles the guest
// leaked when it finishes.
type LiveCounter struct {
	mu    sync.Mutex
	live  map[Kind]int
	peak  int
	total int
}

// NewLiveCounter creates an empty counter.
func NewLiveCounter() *LiveCounter {
	return &LiveCounter{live: make(map[Kind]int)}
}

// OnResourceEvent implements Observer.
func (c *LiveCounter) OnResourceEvent(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case EventCreated:
		c.live[e.Kind]++
		c.total++
		if c.total > c.peak {
			c.peak = c.total
		}
	case EventDropped:
		c.live[e.Kind]--
		c.total--
	}
}

// Live returns the number of live handles of kind.
func (c *LiveCounter) Live(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live[kind]
}

// Total returns the number of live handles of every kind.
func (c *LiveCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Peak returns the largest Total observed.
func (c *LiveCounter) Peak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}

// Snapshot returns the live count per kind, omitting kinds with none alive.
func (c *LiveCounter) Snapshot() map[Kind]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[Kind]int, len(c.live))
	for k, n := range c.live {
		if n != 0 {
			out[k] = n
		}
	}
	return out
}
