// Package gateway provides the simulated tunnel endpoint used by the
// CILPEA VPN client. It stands in for a real transport and models the
// latency, failures and link loss the session controller has to handle.
package gateway

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yllada/cilpea-vpn/common"
)

// Options configures a simulated gateway.
type Options struct {
	// ProfileID selects the access key in Credentials.
	ProfileID string
	// Address, Protocol and Cipher are reported on connect.
	Address  string
	Protocol string
	Cipher   string
	// ConnectLatency is the minimum connect time; ConnectJitter is added
	// uniformly on top.
	ConnectLatency time.Duration
	ConnectJitter  time.Duration
	// DisconnectLatency is the teardown time.
	DisconnectLatency time.Duration
	// FailureRate is the probability in [0,1] that a connect fails the
	// handshake.
	FailureRate float64
	// ProbeLossRate is the probability in [0,1] that a health probe fails.
	ProbeLossRate float64
	// RequireCredentials rejects connects without a stored access key.
	RequireCredentials bool
	// Credentials holds access keys. Required when RequireCredentials is set.
	Credentials common.CredentialStore
	// Seed makes the random rolls reproducible. Zero uses the clock.
	Seed uint64
}

// DefaultOptions returns the reference gateway behaviour.
func DefaultOptions() Options {
	return Options{
		ProfileID:         common.DefaultProfile,
		Address:           common.DefaultTunnelAddress,
		Protocol:          common.DefaultProtocol,
		Cipher:            common.DefaultCipher,
		ConnectLatency:    1500 * time.Millisecond,
		ConnectJitter:     500 * time.Millisecond,
		DisconnectLatency: 1500 * time.Millisecond,
	}
}

// Simulated is an in-process TunnelGateway. It also implements
// common.DropNotifier and common.Prober.
type Simulated struct {
	opts Options

	mu        sync.Mutex
	rng       *rand.Rand
	connected bool
	onDrop    func(code string) error
}

// New creates a simulated gateway.
func New(opts Options) *Simulated {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulated{
		opts: opts,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Connect establishes the simulated tunnel.
func (g *Simulated) Connect(ctx context.Context) (common.TunnelInfo, error) {
	if g.opts.RequireCredentials {
		if err := g.checkCredentials(); err != nil {
			return common.TunnelInfo{}, err
		}
	}

	if err := wait(ctx, g.opts.ConnectLatency+g.jitter()); err != nil {
		return common.TunnelInfo{}, err
	}

	if g.roll(g.opts.FailureRate) {
		common.LogDebug("Simulated gateway: handshake failure for profile %s", g.opts.ProfileID)
		return common.TunnelInfo{}, &common.GatewayError{Code: common.CodeHandshakeFailed, Err: common.ErrConnectionFailed}
	}

	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()

	return common.TunnelInfo{
		Address:  g.opts.Address,
		Protocol: g.opts.Protocol,
		Cipher:   g.opts.Cipher,
	}, nil
}

// Disconnect tears the simulated tunnel down.
func (g *Simulated) Disconnect(ctx context.Context) error {
	if err := wait(ctx, g.opts.DisconnectLatency); err != nil {
		return err
	}
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	return nil
}

// OnDrop implements common.DropNotifier.
func (g *Simulated) OnDrop(handler func(code string) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onDrop = handler
}

// SimulateDrop cuts an established tunnel and notifies the drop handler.
// The handler's error is returned.
func (g *Simulated) SimulateDrop(code string) error {
	if code == "" {
		code = common.CodeCriticalDrop
	}

	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return common.ErrNotConnected
	}
	g.connected = false
	handler := g.onDrop
	g.mu.Unlock()

	common.LogWarn("Simulated gateway: dropping tunnel (%s)", code)
	if handler != nil {
		return handler(code)
	}
	return nil
}

// Probe implements common.Prober with a short simulated round trip.
func (g *Simulated) Probe(ctx context.Context) (time.Duration, error) {
	g.mu.Lock()
	connected := g.connected
	latency := time.Duration(20+g.rng.IntN(40)) * time.Millisecond
	g.mu.Unlock()

	if !connected {
		return 0, common.ErrNotConnected
	}
	if err := wait(ctx, latency); err != nil {
		return 0, err
	}
	if g.roll(g.opts.ProbeLossRate) {
		return 0, common.ErrTimeout
	}
	return latency, nil
}

// Connected reports whether the simulated tunnel is up.
func (g *Simulated) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *Simulated) checkCredentials() error {
	if g.opts.Credentials == nil {
		return &common.GatewayError{Code: common.CodeAuthFailed, Err: common.ErrCredentialsNotFound}
	}
	secret, err := g.opts.Credentials.Get(g.opts.ProfileID)
	if err == nil && secret == "" {
		err = common.ErrCredentialsNotFound
	}
	if err != nil {
		if !errors.Is(err, common.ErrCredentialsNotFound) {
			common.LogWarn("Simulated gateway: credential lookup failed: %v", err)
		}
		return &common.GatewayError{Code: common.CodeAuthFailed, Err: err}
	}
	return nil
}

func (g *Simulated) jitter() time.Duration {
	if g.opts.ConnectJitter <= 0 {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Duration(g.rng.Int64N(int64(g.opts.ConnectJitter)))
}

func (g *Simulated) roll(p float64) bool {
	if p <= 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < p
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
