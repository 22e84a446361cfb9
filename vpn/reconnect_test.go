package vpn

import (
	"testing"
	"time"
)

type countdownRecorder struct {
	ticks []int
	fires int
}

func newTestScheduler(clock *fakeClock) (*ReconnectScheduler, *countdownRecorder) {
	rec := &countdownRecorder{}
	s := newReconnectScheduler(clock, time.Second,
		func(r int) { rec.ticks = append(rec.ticks, r) },
		func() { rec.fires++ })
	return s, rec
}

func TestReconnectScheduler_FiresOnceAtN(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		clock := newFakeClock()
		s, rec := newTestScheduler(clock)

		s.Arm(n)
		if r := s.Remaining(); r == nil || *r != n {
			t.Fatalf("n=%d: Remaining() = %v after Arm", n, r)
		}

		for tick := 1; tick < n; tick++ {
			clock.advance(time.Second)
			if rec.fires != 0 {
				t.Fatalf("n=%d: fired at tick %d", n, tick)
			}
		}
		clock.advance(time.Second)
		if rec.fires != 1 {
			t.Fatalf("n=%d: fires = %d at tick n, want 1", n, rec.fires)
		}
		if s.Active() || s.Remaining() != nil {
			t.Errorf("n=%d: countdown still active after firing", n)
		}

		clock.advance(10 * time.Second)
		if rec.fires != 1 {
			t.Errorf("n=%d: fires = %d later, want 1", n, rec.fires)
		}
		if len(rec.ticks) != n-1 {
			t.Errorf("n=%d: ticks = %v", n, rec.ticks)
		}
	}
}

func TestReconnectScheduler_TickValues(t *testing.T) {
	clock := newFakeClock()
	s, rec := newTestScheduler(clock)

	s.Arm(4)
	clock.advance(4 * time.Second)

	want := []int{3, 2, 1}
	if len(rec.ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", rec.ticks, want)
	}
	for i := range want {
		if rec.ticks[i] != want[i] {
			t.Errorf("ticks = %v, want %v", rec.ticks, want)
			break
		}
	}
}

func TestReconnectScheduler_CancelBeforeN(t *testing.T) {
	for cancelAt := 0; cancelAt < 5; cancelAt++ {
		clock := newFakeClock()
		s, rec := newTestScheduler(clock)

		s.Arm(5)
		clock.advance(time.Duration(cancelAt) * time.Second)
		s.Cancel()

		if s.Remaining() != nil {
			t.Errorf("cancelAt=%d: Remaining() not nil after Cancel", cancelAt)
		}
		clock.advance(10 * time.Second)
		if rec.fires != 0 {
			t.Errorf("cancelAt=%d: fired %d times after Cancel", cancelAt, rec.fires)
		}
	}
}

func TestReconnectScheduler_ArmSupersedes(t *testing.T) {
	clock := newFakeClock()
	s, rec := newTestScheduler(clock)

	s.Arm(3)
	clock.advance(2 * time.Second)
	s.Arm(3)
	clock.advance(2 * time.Second)

	if rec.fires != 0 {
		t.Fatalf("fires = %d, re-arm should restart the countdown", rec.fires)
	}
	if clock.pending() != 1 {
		t.Errorf("pending tasks = %d, want 1", clock.pending())
	}

	clock.advance(time.Second)
	if rec.fires != 1 {
		t.Errorf("fires = %d, want 1", rec.fires)
	}
}

func TestReconnectScheduler_RemainingIsCopy(t *testing.T) {
	clock := newFakeClock()
	s, _ := newTestScheduler(clock)

	s.Arm(5)
	r := s.Remaining()
	*r = 1

	if got := s.Remaining(); *got != 5 {
		t.Errorf("Remaining() = %d after mutating copy, want 5", *got)
	}
}
