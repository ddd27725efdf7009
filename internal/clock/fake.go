package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when told to. After advances
// the clock by the requested duration and fires immediately, so loops with
// deliberate waits run without real delays while still observing elapsed
// time through Now.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	slept   []time.Duration
}

func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d > 0 {
		c.current = c.current.Add(d)
	}
	c.slept = append(c.slept, d)

	fired := make(chan time.Time, 1)
	fired <- c.current
	return fired
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Waits returns every duration passed to After, in call order.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.slept))
	copy(out, c.slept)
	return out
}
