// Package vpn provides the tunnel session controller.
// This file contains the Manager type which owns the session state machine
// and serializes every mutation through a single event loop.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yllada/cilpea-vpn/common"
)

// Options configures a Manager. Zero fields take the values from
// DefaultOptions.
type Options struct {
	// AutoReconnect is the initial reconnect policy.
	AutoReconnect bool
	// CountdownSeconds is the reconnect countdown length.
	CountdownSeconds int
	// GracePeriod is how long a failed connect stays in Error before
	// reverting to Disconnected when auto-reconnect is off.
	GracePeriod time.Duration
	// TickInterval drives telemetry and the reconnect countdown.
	TickInterval time.Duration
	// GatewayTimeout bounds each gateway call.
	GatewayTimeout time.Duration
	// WindowSize is the telemetry window length.
	WindowSize int
	// LogCapacity is the event log bound.
	LogCapacity int
	// Generator produces traffic samples.
	Generator SampleGenerator
	// Now returns the current time.
	Now func() time.Time
	// Logger receives a copy of every session log entry.
	Logger common.Logger
}

// DefaultOptions returns the reference controller settings.
func DefaultOptions() Options {
	return Options{
		CountdownSeconds: common.ReconnectCountdown,
		GracePeriod:      common.GracePeriod,
		TickInterval:     common.MonitorInterval,
		GatewayTimeout:   common.ConnectionTimeout,
		WindowSize:       common.TelemetryWindowSize,
		LogCapacity:      common.LogCapacity,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CountdownSeconds <= 0 {
		o.CountdownSeconds = d.CountdownSeconds
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = d.GracePeriod
	}
	if o.TickInterval <= 0 {
		o.TickInterval = d.TickInterval
	}
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = d.GatewayTimeout
	}
	if o.WindowSize <= 0 {
		o.WindowSize = d.WindowSize
	}
	if o.LogCapacity <= 0 {
		o.LogCapacity = d.LogCapacity
	}
	if o.Generator == nil {
		o.Generator = NewRandomGenerator(0)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = common.GetLogger()
	}
	return o
}

type event struct {
	fn   func()
	done chan struct{}
}

// Manager is the session lifecycle controller. Commands may be issued from
// any goroutine; state is only ever touched by the event loop.
type Manager struct {
	gateway common.TunnelGateway
	opts    Options
	logger  common.Logger
	clock   timers

	// Owned by the event loop.
	session       Session
	window        *TelemetryWindow
	logs          *LogBuffer
	autoReconnect bool
	failureCode   string
	telemetry     *TelemetrySimulator
	reconnect     *ReconnectScheduler
	grace         taskSlot
	attempt       uint64
	cancelCall    context.CancelFunc

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan event
	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	snapshot Snapshot

	subsMu     sync.Mutex
	subs       map[int]chan struct{}
	nextSub    int
	subsClosed bool
}

// NewManager creates a controller driving gw and starts its event loop.
// Call Close to release it.
func NewManager(gw common.TunnelGateway, opts Options) *Manager {
	return newManager(gw, opts, nil)
}

func newManager(gw common.TunnelGateway, opts Options, clock timers) *Manager {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		gateway:       gw,
		opts:          opts,
		logger:        opts.Logger,
		session:       newSession(),
		window:        NewTelemetryWindow(opts.WindowSize, opts.Now()),
		logs:          NewLogBuffer(opts.LogCapacity),
		autoReconnect: opts.AutoReconnect,
		ctx:           ctx,
		cancel:        cancel,
		events:        make(chan event),
		closing:       make(chan struct{}),
		stopped:       make(chan struct{}),
		subs:          make(map[int]chan struct{}),
	}
	m.clock = clock
	if m.clock == nil {
		m.clock = m
	}
	m.logs.now = opts.Now
	m.telemetry = newTelemetrySimulator(m.window, &m.session.Stats, opts.Generator,
		m.clock, opts.TickInterval, opts.Now, func() bool { return m.session.Status == StatusConnected })
	m.reconnect = newReconnectScheduler(m.clock, opts.TickInterval, m.onCountdownTick, m.onCountdownFire)

	m.appendLog(fmt.Sprintf("%s Manager Core v%s loaded.", common.AppName, common.CoreVersion), SeveritySuccess)
	m.publish()

	if dn, ok := gw.(common.DropNotifier); ok {
		dn.OnDrop(m.gatewayDropped)
	}

	go m.run()
	return m
}

// RequestConnect starts a connection attempt. It is rejected without any
// state change while a connection exists or another transition is running.
func (m *Manager) RequestConnect() error {
	var err error
	if perr := m.do(func() { err = m.connect() }); perr != nil {
		return perr
	}
	return err
}

// RequestDisconnect tears down a Connected or Error session.
func (m *Manager) RequestDisconnect() error {
	var err error
	if perr := m.do(func() { err = m.disconnect() }); perr != nil {
		return perr
	}
	return err
}

// ReportExternalDrop marks a Connected session as unexpectedly lost.
func (m *Manager) ReportExternalDrop() error {
	return m.ReportDrop(common.CodeCriticalDrop)
}

// ReportDrop is ReportExternalDrop with a caller-supplied drop code.
func (m *Manager) ReportDrop(code string) error {
	if code == "" {
		code = common.CodeCriticalDrop
	}
	var err error
	if perr := m.do(func() { err = m.drop(code) }); perr != nil {
		return perr
	}
	return err
}

// SetAutoReconnect toggles the reconnect policy.
func (m *Manager) SetAutoReconnect(enabled bool) error {
	return m.do(func() { m.setAutoReconnect(enabled) })
}

// Snapshot returns a copy of the current session, telemetry window,
// event log and reconnect policy.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.Session = snap.Session.clone()
	snap.Reconnect = snap.Reconnect.clone()
	snap.Telemetry = append([]TrafficSample(nil), snap.Telemetry...)
	snap.Logs = append([]LogEntry(nil), snap.Logs...)
	return snap
}

// Subscribe returns a channel that receives a value after every state
// change. Notifications coalesce; read Snapshot on wake-up. The channel is
// closed by the returned cancel func or by Close.
func (m *Manager) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if m.subsClosed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	return ch, func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// Close cancels every timer and in-flight gateway call and stops the
// event loop. Commands issued afterwards return ErrClosed.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.closing)
		m.cancel()
	})
	<-m.stopped
	return nil
}

func (m *Manager) run() {
	defer close(m.stopped)
	for {
		select {
		case ev := <-m.events:
			ev.fn()
			m.publish()
			if ev.done != nil {
				close(ev.done)
			}
		case <-m.closing:
			m.shutdown()
			return
		}
	}
}

// do runs fn on the event loop and waits for it.
func (m *Manager) do(fn func()) error {
	ev := event{fn: fn, done: make(chan struct{})}
	select {
	case m.events <- ev:
	case <-m.closing:
		return ErrClosed
	}
	<-ev.done
	return nil
}

// post queues fn without waiting. It gives up when stop fires or the
// manager closes.
func (m *Manager) post(stop <-chan struct{}, fn func()) bool {
	select {
	case m.events <- event{fn: fn}:
		return true
	case <-stop:
		return false
	case <-m.closing:
		return false
	}
}

func (m *Manager) shutdown() {
	m.reconnect.Cancel()
	m.grace.stop()
	m.telemetry.Stop()
	m.endCall()
	m.publish()

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subsClosed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

// every implements timers with a ticker goroutine per task.
func (m *Manager) every(interval time.Duration, fn func(*task)) *task {
	tk := newTask()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !m.post(tk.done(), func() { fn(tk) }) {
					return
				}
			case <-tk.done():
				return
			case <-m.closing:
				return
			}
		}
	}()
	return tk
}

// after implements timers with a one-shot timer goroutine.
func (m *Manager) after(delay time.Duration, fn func(*task)) *task {
	tk := newTask()
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			m.post(tk.done(), func() { fn(tk) })
		case <-tk.done():
		case <-m.closing:
		}
	}()
	return tk
}

func (m *Manager) connect() error {
	switch m.session.Status {
	case StatusConnected:
		return ErrAlreadyConnected
	case StatusConnecting, StatusDisconnecting:
		return ErrTransitionInProgress
	}

	m.reconnect.Cancel()
	m.grace.stop()

	m.session.Status = StatusConnecting
	m.session.Detail = "Initializing..."
	m.session.Failure = FailureNone
	m.failureCode = ""
	m.appendLog("Initiating connection sequence...", SeverityInfo)

	ctx, attempt := m.beginCall()
	go func() {
		info, err := m.gateway.Connect(ctx)
		m.post(nil, func() { m.finishConnect(attempt, info, err) })
	}()
	return nil
}

func (m *Manager) finishConnect(attempt uint64, info common.TunnelInfo, err error) {
	if attempt != m.attempt || m.session.Status != StatusConnecting {
		return
	}
	m.endCall()

	if err != nil {
		code := common.FailureCode(err, common.CodeConnectFailed)
		m.logger.Debug("Gateway connect failed: %v", err)
		m.fail(FailureConnect, code, fmt.Sprintf("Failed to establish connection (%s).", code))
		return
	}

	now := m.opts.Now()
	m.session.Status = StatusConnected
	m.session.ConnectedSince = &now
	m.session.TunnelAddress = orDefault(info.Address, common.DefaultTunnelAddress)
	m.session.Protocol = orDefault(info.Protocol, common.DefaultProtocol)
	m.session.Detail = orDefault(info.Cipher, common.DefaultCipher)
	m.session.Failure = FailureNone

	m.appendLog("Initialization Sequence Completed.", SeveritySuccess)
	m.appendLog(fmt.Sprintf("Tunnel address assigned: %s (%s).", m.session.TunnelAddress, m.session.Protocol), SeveritySuccess)
	m.telemetry.Start(now)
}

func (m *Manager) disconnect() error {
	switch m.session.Status {
	case StatusDisconnected:
		return ErrNotConnected
	case StatusConnecting, StatusDisconnecting:
		return ErrTransitionInProgress
	}

	m.reconnect.Cancel()
	m.grace.stop()
	// Flatline as soon as the session leaves Connected.
	m.telemetry.Stop()

	m.session.Status = StatusDisconnecting
	m.session.Detail = "Terminating..."
	m.session.ConnectedSince = nil
	m.appendLog("Terminating tunnel session...", SeverityWarning)

	ctx, attempt := m.beginCall()
	go func() {
		err := m.gateway.Disconnect(ctx)
		m.post(nil, func() { m.finishDisconnect(attempt, err) })
	}()
	return nil
}

func (m *Manager) finishDisconnect(attempt uint64, err error) {
	if attempt != m.attempt || m.session.Status != StatusDisconnecting {
		return
	}
	m.endCall()

	if err != nil {
		code := common.FailureCode(err, common.CodeDisconnectFailed)
		m.logger.Debug("Gateway disconnect failed: %v", err)
		m.fail(FailureDisconnect, code, fmt.Sprintf("Failed to terminate connection (%s).", code))
		return
	}

	m.resetIdle()
	m.appendLog("Connection terminated by user.", SeverityInfo)
}

// resetIdle puts the session into Disconnected/"Ready" with the tunnel
// fields and counters cleared.
func (m *Manager) resetIdle() {
	m.session.Status = StatusDisconnected
	m.session.Detail = "Ready"
	m.session.Failure = FailureNone
	m.session.TunnelAddress = common.PlaceholderAddress
	m.session.Stats = SessionStats{Uptime: FormatUptime(0)}
	m.failureCode = ""
}

func (m *Manager) drop(code string) error {
	if m.session.Status != StatusConnected {
		return ErrNotConnected
	}
	m.fail(FailureDrop, code, fmt.Sprintf("Unexpected connection drop detected (%s).", code))
	return nil
}

func (m *Manager) gatewayDropped(code string) error {
	err := m.ReportDrop(code)
	if err != nil && !errors.Is(err, ErrClosed) {
		m.logger.Debug("Ignoring gateway drop %s: %v", code, err)
	}
	return err
}

// fail moves the session into Error with exactly one error log entry and
// then applies the recovery policy.
func (m *Manager) fail(kind FailureKind, code, message string) {
	m.telemetry.Stop()

	m.session.Status = StatusError
	m.session.Detail = code
	m.session.ConnectedSince = nil
	m.session.Failure = kind
	m.failureCode = code
	m.appendLog(message, SeverityError)

	switch {
	case !kind.Retryable():
	case m.autoReconnect:
		m.armReconnect()
	case kind == FailureConnect:
		m.armGrace()
	}
}

func (m *Manager) setAutoReconnect(enabled bool) {
	m.autoReconnect = enabled

	if enabled {
		m.appendLog("Auto-reconnect enabled.", SeverityInfo)
		if m.session.Status == StatusError && m.session.Failure.Retryable() && !m.reconnect.Active() {
			m.armReconnect()
		}
		return
	}

	m.appendLog("Auto-reconnect disabled.", SeverityInfo)
	if !m.reconnect.Active() {
		m.grace.stop()
		return
	}
	m.reconnect.Cancel()
	m.session.Detail = m.failureCode
	if m.session.Failure == FailureConnect {
		m.armGrace()
	}
}

func (m *Manager) armReconnect() {
	m.grace.stop()
	m.reconnect.Arm(m.opts.CountdownSeconds)
	m.logger.Warn("Connection lost, auto-reconnect in %ds", m.opts.CountdownSeconds)
}

func (m *Manager) armGrace() {
	m.grace.replace(m.clock.after(m.opts.GracePeriod, m.onGraceExpired))
}

func (m *Manager) onGraceExpired(tk *task) {
	if !m.grace.owns(tk) {
		return
	}
	m.grace.stop()
	if m.session.Status != StatusError {
		return
	}
	m.resetIdle()
	m.appendLog("Session reset after failed connection.", SeverityInfo)
}

func (m *Manager) onCountdownTick(remaining int) {
	m.session.Detail = fmt.Sprintf("Retrying in %ds", remaining)
}

func (m *Manager) onCountdownFire() {
	m.appendLog("Attempting auto-reconnection...", SeverityInfo)
	if err := m.connect(); err != nil {
		m.logger.Warn("Auto-reconnect skipped: %v", err)
	}
}

// beginCall supersedes any in-flight gateway call.
func (m *Manager) beginCall() (context.Context, uint64) {
	m.endCall()
	m.attempt++
	ctx, cancel := context.WithTimeout(m.ctx, m.opts.GatewayTimeout)
	m.cancelCall = cancel
	return ctx, m.attempt
}

func (m *Manager) endCall() {
	if m.cancelCall != nil {
		m.cancelCall()
		m.cancelCall = nil
	}
}

func (m *Manager) appendLog(message string, severity Severity) {
	entry := m.logs.Append(message, severity)
	switch severity {
	case SeverityError:
		m.logger.Error("%s", entry.Message)
	case SeverityWarning:
		m.logger.Warn("%s", entry.Message)
	default:
		m.logger.Info("%s", entry.Message)
	}
}

func (m *Manager) publish() {
	snap := Snapshot{
		Session:   m.session.clone(),
		Telemetry: m.window.Samples(),
		Logs:      m.logs.Snapshot(),
		Reconnect: ReconnectPolicy{
			Enabled:          m.autoReconnect,
			CountdownSeconds: m.opts.CountdownSeconds,
			Remaining:        m.reconnect.Remaining(),
		},
	}

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
