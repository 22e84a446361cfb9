package ui

import (
	"errors"
	"sync"

	"github.com/yllada/cilpea-vpn/vpn"
)

// fakeController records commands and serves a settable snapshot.
type fakeController struct {
	mu      sync.Mutex
	snap    vpn.Snapshot
	err     error
	calls   []string
	auto    []bool
	updates chan struct{}
}

func newFakeController(status vpn.ConnectionStatus) *fakeController {
	return &fakeController{
		snap:    vpn.Snapshot{Session: vpn.Session{Status: status, Stats: vpn.SessionStats{Uptime: "00:00:00"}}},
		updates: make(chan struct{}, 1),
	}
}

func (c *fakeController) record(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	return c.err
}

func (c *fakeController) RequestConnect() error     { return c.record("connect") }
func (c *fakeController) RequestDisconnect() error  { return c.record("disconnect") }
func (c *fakeController) ReportExternalDrop() error { return c.record("drop") }

func (c *fakeController) SetAutoReconnect(enabled bool) error {
	c.mu.Lock()
	c.auto = append(c.auto, enabled)
	c.mu.Unlock()
	return c.record("auto")
}

func (c *fakeController) Snapshot() vpn.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *fakeController) Subscribe() (<-chan struct{}, func()) {
	return c.updates, func() {}
}

func (c *fakeController) setSession(s vpn.Session) {
	c.mu.Lock()
	c.snap.Session = s
	c.mu.Unlock()
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *fakeController) callNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

var errRejected = errors.New("rejected")
