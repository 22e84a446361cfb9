// Package vpn provides the tunnel session controller.
// This file contains the HealthChecker, which probes a connected tunnel and
// reports it as dropped after repeated failures.
package vpn

import (
	"context"
	"sync"
	"time"

	"github.com/yllada/cilpea-vpn/common"
)

// HealthState represents the current health state of the tunnel.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthDegraded
	HealthUnhealthy
)

// String returns a human-readable representation of the health state.
func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "Healthy"
	case HealthDegraded:
		return "Degraded"
	case HealthUnhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// HealthConfig holds configuration for the health checker.
type HealthConfig struct {
	// CheckInterval is how often to probe the tunnel.
	CheckInterval time.Duration
	// FailureThreshold is how many consecutive failures count as a drop.
	FailureThreshold int
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
}

// DefaultHealthConfig returns sensible defaults for health checking.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		CheckInterval:    10 * time.Second,
		FailureThreshold: 3,
		ProbeTimeout:     5 * time.Second,
	}
}

// TunnelHealth is the last observed health of the tunnel.
type TunnelHealth struct {
	State            HealthState
	LastCheck        time.Time
	LastSuccess      time.Time
	ConsecutiveFails int
	Latency          time.Duration
}

// sessionSource is the part of Manager the checker needs.
type sessionSource interface {
	Snapshot() Snapshot
	ReportDrop(code string) error
}

// HealthChecker probes the tunnel while the session is Connected.
type HealthChecker struct {
	mu             sync.RWMutex
	config         HealthConfig
	source         sessionSource
	prober         common.Prober
	running        bool
	stopChan       chan struct{}
	health         TunnelHealth
	onHealthChange func(oldState, newState HealthState)
}

// NewHealthChecker creates a health checker for the session behind source.
func NewHealthChecker(source sessionSource, prober common.Prober, config HealthConfig) *HealthChecker {
	def := DefaultHealthConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = def.ProbeTimeout
	}
	return &HealthChecker{
		config:   config,
		source:   source,
		prober:   prober,
		stopChan: make(chan struct{}),
	}
}

// SetOnHealthChange sets a callback for health state changes.
func (hc *HealthChecker) SetOnHealthChange(callback func(oldState, newState HealthState)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.onHealthChange = callback
}

// Start begins the health checking loop.
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	hc.stopChan = make(chan struct{})
	stop := hc.stopChan
	hc.mu.Unlock()

	common.LogInfo("Health checker started (interval: %v)", hc.config.CheckInterval)

	go hc.runLoop(stop)
}

// Stop stops the health checking loop.
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = false
	close(hc.stopChan)
	hc.mu.Unlock()

	common.LogInfo("Health checker stopped")
}

// IsRunning returns whether the health checker is currently running.
func (hc *HealthChecker) IsRunning() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.running
}

// Health returns a copy of the last observed tunnel health.
func (hc *HealthChecker) Health() TunnelHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.health
}

func (hc *HealthChecker) runLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(hc.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			hc.check()
		}
	}
}

// check runs one probe when the session is Connected and resets tracking
// otherwise.
func (hc *HealthChecker) check() {
	if hc.source.Snapshot().Session.Status != StatusConnected {
		hc.mu.Lock()
		hc.health = TunnelHealth{}
		hc.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hc.config.ProbeTimeout)
	latency, err := hc.prober.Probe(ctx)
	cancel()

	hc.mu.Lock()
	health := &hc.health
	health.LastCheck = time.Now()
	oldState := health.State

	if err != nil {
		health.ConsecutiveFails++
		health.Latency = 0
		common.LogWarn("Health check failed (attempt %d/%d): %v",
			health.ConsecutiveFails, hc.config.FailureThreshold, err)

		if health.ConsecutiveFails >= hc.config.FailureThreshold {
			health.State = HealthUnhealthy
		} else {
			health.State = HealthDegraded
		}
	} else {
		health.ConsecutiveFails = 0
		health.LastSuccess = health.LastCheck
		health.Latency = latency
		health.State = HealthHealthy
	}
	newState := health.State
	callback := hc.onHealthChange
	if newState == HealthUnhealthy {
		// The drop ends this session; the next one starts from scratch.
		hc.health = TunnelHealth{}
	}
	hc.mu.Unlock()

	if oldState != newState {
		common.LogInfo("Tunnel health changed: %s -> %s", oldState, newState)
		if callback != nil {
			callback(oldState, newState)
		}
	}

	if newState == HealthUnhealthy {
		if err := hc.source.ReportDrop(common.CodeHealthCheck); err != nil {
			common.LogDebug("Health drop not applied: %v", err)
		}
	}
}
