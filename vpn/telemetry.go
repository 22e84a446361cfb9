package vpn

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yllada/cilpea-vpn/common"
)

// SampleGenerator produces traffic samples while the tunnel is up.
// Tests inject deterministic implementations.
type SampleGenerator interface {
	// Sample returns the rates observed at the given instant.
	Sample(at time.Time) TrafficSample
	// Transfer returns the bytes moved since the previous tick.
	Transfer() (in, out uint64)
}

// Reference sample ranges, half-open.
const (
	minDownload = 10
	maxDownload = 90
	minUpload   = 5
	maxUpload   = 35

	maxTransferIn  = common.MiB / 2
	maxTransferOut = common.MiB / 5
)

// RandomGenerator draws uniformly distributed samples.
type RandomGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomGenerator returns a generator seeded with seed, or with a
// time-based seed when seed is zero.
func NewRandomGenerator(seed uint64) *RandomGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomGenerator{rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

// Sample implements SampleGenerator.
func (g *RandomGenerator) Sample(at time.Time) TrafficSample {
	g.mu.Lock()
	defer g.mu.Unlock()
	return TrafficSample{
		Timestamp: at,
		Download:  minDownload + g.rng.IntN(maxDownload-minDownload),
		Upload:    minUpload + g.rng.IntN(maxUpload-minUpload),
	}
}

// Transfer implements SampleGenerator.
func (g *RandomGenerator) Transfer() (in, out uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in = uint64(g.rng.Float64() * maxTransferIn)
	out = uint64(g.rng.Float64() * maxTransferOut)
	return in, out
}

// TelemetryWindow keeps the most recent samples, oldest first.
type TelemetryWindow struct {
	samples []TrafficSample
	size    int
}

// NewTelemetryWindow returns a window pre-seeded with size zero samples.
func NewTelemetryWindow(size int, now time.Time) *TelemetryWindow {
	if size <= 0 {
		size = common.TelemetryWindowSize
	}
	w := &TelemetryWindow{
		samples: make([]TrafficSample, size),
		size:    size,
	}
	for i := range w.samples {
		w.samples[i].Timestamp = now
	}
	return w
}

// Push appends s and evicts the oldest sample when full.
func (w *TelemetryWindow) Push(s TrafficSample) {
	if len(w.samples) < w.size {
		w.samples = append(w.samples, s)
		return
	}
	copy(w.samples, w.samples[1:])
	w.samples[len(w.samples)-1] = s
}

// Flatline rewrites every sample to zero rates, keeping timestamps.
func (w *TelemetryWindow) Flatline() {
	for i := range w.samples {
		w.samples[i].Upload = 0
		w.samples[i].Download = 0
	}
}

// Samples returns a copy of the window, oldest first.
func (w *TelemetryWindow) Samples() []TrafficSample {
	out := make([]TrafficSample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Len returns the number of samples held.
func (w *TelemetryWindow) Len() int {
	return len(w.samples)
}

// TelemetrySimulator runs the traffic and uptime ticks of a connected
// session. It writes only into the window and stats it was given.
type TelemetrySimulator struct {
	window   *TelemetryWindow
	stats    *SessionStats
	gen      SampleGenerator
	clock    timers
	interval time.Duration
	now      func() time.Time
	live     func() bool

	traffic taskSlot
	uptime  taskSlot
	since   time.Time
}

func newTelemetrySimulator(window *TelemetryWindow, stats *SessionStats, gen SampleGenerator,
	clock timers, interval time.Duration, now func() time.Time, live func() bool) *TelemetrySimulator {
	return &TelemetrySimulator{
		window:   window,
		stats:    stats,
		gen:      gen,
		clock:    clock,
		interval: interval,
		now:      now,
		live:     live,
	}
}

// Start begins both ticks, replacing any previous ones.
func (t *TelemetrySimulator) Start(since time.Time) {
	t.since = since
	t.stats.Uptime = FormatUptime(0)
	t.traffic.replace(t.clock.every(t.interval, t.onTraffic))
	t.uptime.replace(t.clock.every(t.interval, t.onUptime))
}

// Stop cancels both ticks and flatlines the window.
func (t *TelemetrySimulator) Stop() {
	t.traffic.stop()
	t.uptime.stop()
	t.window.Flatline()
}

// Running reports whether the ticks are active.
func (t *TelemetrySimulator) Running() bool {
	return t.traffic.active()
}

func (t *TelemetrySimulator) onTraffic(tk *task) {
	if !t.traffic.owns(tk) {
		return
	}
	now := t.now()
	if !t.live() {
		t.window.Push(TrafficSample{Timestamp: now})
		return
	}

	s := t.gen.Sample(now)
	s.Timestamp = now
	s.Upload = max(s.Upload, 0)
	s.Download = max(s.Download, 0)
	t.window.Push(s)

	in, out := t.gen.Transfer()
	t.stats.BytesIn += in
	t.stats.BytesOut += out
}

func (t *TelemetrySimulator) onUptime(tk *task) {
	if !t.uptime.owns(tk) {
		return
	}
	t.stats.Uptime = FormatUptime(t.now().Sub(t.since))
}

// FormatUptime renders d as HH:MM:SS. Negative durations render as zero.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
