package vpn

import (
	"sync"
	"time"
)

// fakeClock is a manual timers implementation. advance fires due
// callbacks on the calling goroutine in deadline order.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	entries []*fakeEntry
}

type fakeEntry struct {
	tk       *task
	fn       func(*task)
	next     time.Time
	interval time.Duration
	periodic bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) every(interval time.Duration, fn func(*task)) *task {
	return c.add(interval, fn, true)
}

func (c *fakeClock) after(delay time.Duration, fn func(*task)) *task {
	return c.add(delay, fn, false)
}

func (c *fakeClock) add(d time.Duration, fn func(*task), periodic bool) *task {
	tk := newTask()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, &fakeEntry{
		tk:       tk,
		fn:       fn,
		next:     c.now.Add(d),
		interval: d,
		periodic: periodic,
	})
	return tk
}

// pending returns the number of live tasks.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	return len(c.entries)
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		c.prune()
		var due *fakeEntry
		for _, e := range c.entries {
			if e.next.After(target) {
				continue
			}
			if due == nil || e.next.Before(due.next) {
				due = e
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = due.next
		if due.periodic {
			due.next = due.next.Add(due.interval)
		} else {
			due.tk.cancel()
		}
		c.mu.Unlock()

		due.fn(due.tk)
	}
}

func (c *fakeClock) prune() {
	live := c.entries[:0]
	for _, e := range c.entries {
		select {
		case <-e.tk.done():
		default:
			live = append(live, e)
		}
	}
	clear(c.entries[len(live):])
	c.entries = live
}
