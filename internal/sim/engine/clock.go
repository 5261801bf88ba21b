package engine

import (
	"sync"
	"time"

	"voxelbyte/internal/sim/streaming"
)

type Clock = streaming.Clock

// MonotonicClock counts seconds since it was created.
type MonotonicClock struct {
	start time.Time
}

func NewMonotonicClock() *MonotonicClock { return &MonotonicClock{start: time.Now()} }

func (c *MonotonicClock) Elapsed() float64 { return time.Since(c.start).Seconds() }

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

func (c *ManualClock) Elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(sec float64) {
	c.mu.Lock()
	c.now = sec
	c.mu.Unlock()
}

func (c *ManualClock) Advance(sec float64) {
	c.mu.Lock()
	c.now += sec
	c.mu.Unlock()
}
