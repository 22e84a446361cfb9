package vpn

import "time"

// ReconnectScheduler counts down once per interval and fires a single
// reconnect when the count reaches zero. At most one countdown is alive.
type ReconnectScheduler struct {
	clock     timers
	interval  time.Duration
	slot      taskSlot
	remaining *int

	onTick func(remaining int)
	onFire func()
}

func newReconnectScheduler(clock timers, interval time.Duration, onTick func(int), onFire func()) *ReconnectScheduler {
	return &ReconnectScheduler{
		clock:    clock,
		interval: interval,
		onTick:   onTick,
		onFire:   onFire,
	}
}

// Arm starts a countdown from n, superseding any pending one.
func (s *ReconnectScheduler) Arm(n int) {
	if n < 1 {
		n = 1
	}
	remaining := n
	s.remaining = &remaining
	s.slot.replace(s.clock.every(s.interval, s.tick))
}

// Cancel stops a pending countdown and clears the remaining count.
func (s *ReconnectScheduler) Cancel() {
	s.slot.stop()
	s.remaining = nil
}

// Active reports whether a countdown is pending.
func (s *ReconnectScheduler) Active() bool {
	return s.remaining != nil
}

// Remaining returns a copy of the live count, or nil.
func (s *ReconnectScheduler) Remaining() *int {
	if s.remaining == nil {
		return nil
	}
	r := *s.remaining
	return &r
}

func (s *ReconnectScheduler) tick(tk *task) {
	if !s.slot.owns(tk) || s.remaining == nil {
		return
	}
	*s.remaining--
	if *s.remaining > 0 {
		s.onTick(*s.remaining)
		return
	}
	s.Cancel()
	s.onFire()
}
