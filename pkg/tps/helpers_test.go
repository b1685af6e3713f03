package tps

import (
	"sync"
	"time"
)

var testBase = time.Date(2025, 11, 20, 10, 30, 0, 0, time.UTC)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testBase}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func contentKeys(values ...string) []MonitorKey {
	keys := make([]MonitorKey, 0, len(values))
	for _, v := range values {
		keys = append(keys, ContentKey(v))
	}
	return keys
}
