package vpn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yllada/cilpea-vpn/common"
)

type fakeSource struct {
	mu     sync.Mutex
	status ConnectionStatus
	drops  []string
}

func (s *fakeSource) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Session: Session{Status: s.status}}
}

func (s *fakeSource) ReportDrop(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConnected {
		return ErrNotConnected
	}
	s.drops = append(s.drops, code)
	s.status = StatusError
	return nil
}

type fakeProber struct {
	err   error
	calls int
}

func (p *fakeProber) Probe(ctx context.Context) (time.Duration, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	return 12 * time.Millisecond, nil
}

func TestHealthState_String(t *testing.T) {
	tests := []struct {
		state    HealthState
		expected string
	}{
		{HealthHealthy, "Healthy"},
		{HealthDegraded, "Degraded"},
		{HealthUnhealthy, "Unhealthy"},
		{HealthUnknown, "Unknown"},
		{HealthState(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("HealthState.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDefaultHealthConfig(t *testing.T) {
	config := DefaultHealthConfig()

	if config.CheckInterval != 10*time.Second {
		t.Errorf("CheckInterval = %v, want 10s", config.CheckInterval)
	}
	if config.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %v, want 3", config.FailureThreshold)
	}
	if config.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", config.ProbeTimeout)
	}
}

func TestHealthChecker_StartStop(t *testing.T) {
	hc := NewHealthChecker(&fakeSource{}, &fakeProber{}, HealthConfig{CheckInterval: time.Hour})

	if hc.IsRunning() {
		t.Error("Should not be running initially")
	}

	hc.Start()
	hc.Start()
	if !hc.IsRunning() {
		t.Error("Should be running after Start()")
	}

	hc.Stop()
	hc.Stop()
	if hc.IsRunning() {
		t.Error("Should not be running after Stop()")
	}
}

func TestHealthChecker_SkipsWhenNotConnected(t *testing.T) {
	prober := &fakeProber{}
	hc := NewHealthChecker(&fakeSource{status: StatusDisconnected}, prober, HealthConfig{})

	hc.check()

	if prober.calls != 0 {
		t.Errorf("probe calls = %d, want 0", prober.calls)
	}
	if hc.Health().State != HealthUnknown {
		t.Errorf("State = %s, want Unknown", hc.Health().State)
	}
}

func TestHealthChecker_Healthy(t *testing.T) {
	hc := NewHealthChecker(&fakeSource{status: StatusConnected}, &fakeProber{}, HealthConfig{})

	var changes []HealthState
	hc.SetOnHealthChange(func(_, newState HealthState) { changes = append(changes, newState) })
	hc.check()

	h := hc.Health()
	if h.State != HealthHealthy || h.Latency != 12*time.Millisecond {
		t.Errorf("health = %+v", h)
	}
	if len(changes) != 1 || changes[0] != HealthHealthy {
		t.Errorf("changes = %v", changes)
	}
}

func TestHealthChecker_ReportsDropAtThreshold(t *testing.T) {
	source := &fakeSource{status: StatusConnected}
	prober := &fakeProber{err: errors.New("no route")}
	hc := NewHealthChecker(source, prober, HealthConfig{FailureThreshold: 3})

	hc.check()
	hc.check()
	if hc.Health().State != HealthDegraded || len(source.drops) != 0 {
		t.Fatalf("after 2 failures: state = %s, drops = %v", hc.Health().State, source.drops)
	}

	hc.check()
	if len(source.drops) != 1 || source.drops[0] != common.CodeHealthCheck {
		t.Errorf("drops = %v, want [%s]", source.drops, common.CodeHealthCheck)
	}

	// The session is now in Error, so further checks do nothing.
	hc.check()
	if prober.calls != 3 || len(source.drops) != 1 {
		t.Errorf("calls = %d, drops = %v", prober.calls, source.drops)
	}
}

func TestHealthChecker_RecoveryResetsFailures(t *testing.T) {
	source := &fakeSource{status: StatusConnected}
	prober := &fakeProber{err: errors.New("timeout")}
	hc := NewHealthChecker(source, prober, HealthConfig{FailureThreshold: 2})

	hc.check()
	prober.err = nil
	hc.check()
	prober.err = errors.New("timeout")
	hc.check()

	if h := hc.Health(); h.ConsecutiveFails != 1 || h.State != HealthDegraded {
		t.Errorf("health = %+v", h)
	}
	if len(source.drops) != 0 {
		t.Errorf("drops = %v, want none", source.drops)
	}
}
