package vpn

import (
	"sync"
	"time"
)

// task is a cancellable background timer. Its callback never runs after
// cancel returns on the goroutine that owns the slot holding it.
type task struct {
	stop chan struct{}
	once sync.Once
}

func newTask() *task {
	return &task{stop: make(chan struct{})}
}

func (t *task) cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
}

func (t *task) done() <-chan struct{} {
	return t.stop
}

// taskSlot holds at most one task of a given purpose. It is only touched
// from the event loop.
type taskSlot struct {
	current *task
}

// replace cancels the previous task, if any, and installs t.
func (s *taskSlot) replace(t *task) {
	s.current.cancel()
	s.current = t
}

func (s *taskSlot) stop() {
	s.current.cancel()
	s.current = nil
}

func (s *taskSlot) owns(t *task) bool {
	return t != nil && s.current == t
}

func (s *taskSlot) active() bool {
	return s.current != nil
}

// timers starts tasks whose callbacks run on the event loop.
type timers interface {
	every(interval time.Duration, fn func(*task)) *task
	after(delay time.Duration, fn func(*task)) *task
}
