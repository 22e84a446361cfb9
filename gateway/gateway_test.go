package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yllada/cilpea-vpn/common"
)

type memStore map[string]string

func (m memStore) Store(id, secret string) error { m[id] = secret; return nil }
func (m memStore) Delete(id string) error        { delete(m, id); return nil }
func (m memStore) Get(id string) (string, error) {
	if s, ok := m[id]; ok {
		return s, nil
	}
	return "", common.ErrCredentialsNotFound
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.ConnectLatency = 0
	opts.ConnectJitter = 0
	opts.DisconnectLatency = 0
	opts.Seed = 1
	return opts
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Address != "10.8.0.45" || opts.Protocol != "UDP/443" || opts.Cipher != "AES-256-GCM" {
		t.Errorf("tunnel info = %s/%s/%s", opts.Address, opts.Protocol, opts.Cipher)
	}
	if opts.ConnectLatency != 1500*time.Millisecond || opts.DisconnectLatency != 1500*time.Millisecond {
		t.Errorf("latencies = %v/%v", opts.ConnectLatency, opts.DisconnectLatency)
	}
	if opts.ConnectLatency+opts.ConnectJitter != 2*time.Second {
		t.Errorf("max connect latency = %v, want 2s", opts.ConnectLatency+opts.ConnectJitter)
	}
}

func TestSimulated_ConnectDisconnect(t *testing.T) {
	g := New(fastOptions())

	info, err := g.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if info.Address != common.DefaultTunnelAddress || info.Cipher != common.DefaultCipher {
		t.Errorf("info = %+v", info)
	}
	if !g.Connected() {
		t.Error("Connected() = false after Connect")
	}

	if err := g.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if g.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
}

func TestSimulated_HonoursContext(t *testing.T) {
	opts := fastOptions()
	opts.ConnectLatency = time.Hour
	g := New(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Connect(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want deadline exceeded", err)
	}
	if common.FailureCode(err, common.CodeConnectFailed) != common.CodeGatewayTimeout {
		t.Error("deadline should map to GATEWAY_TIMEOUT")
	}
}

func TestSimulated_HandshakeFailure(t *testing.T) {
	opts := fastOptions()
	opts.FailureRate = 1
	g := New(opts)

	_, err := g.Connect(context.Background())
	if got := common.FailureCode(err, ""); got != common.CodeHandshakeFailed {
		t.Errorf("failure code = %q, want %q", got, common.CodeHandshakeFailed)
	}
	if g.Connected() {
		t.Error("failed connect left the gateway connected")
	}
}

func TestSimulated_Credentials(t *testing.T) {
	tests := []struct {
		name  string
		store common.CredentialStore
		want  string
	}{
		{"no store", nil, common.CodeAuthFailed},
		{"missing key", memStore{}, common.CodeAuthFailed},
		{"stored key", memStore{common.DefaultProfile: "k"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := fastOptions()
			opts.RequireCredentials = true
			opts.Credentials = tt.store

			_, err := New(opts).Connect(context.Background())
			if tt.want == "" {
				if err != nil {
					t.Errorf("Connect() error = %v", err)
				}
				return
			}
			if got := common.FailureCode(err, ""); got != tt.want {
				t.Errorf("failure code = %q, want %q", got, tt.want)
			}
			if !errors.Is(err, common.ErrCredentialsNotFound) {
				t.Errorf("error should wrap ErrCredentialsNotFound: %v", err)
			}
		})
	}
}

func TestSimulated_SimulateDrop(t *testing.T) {
	g := New(fastOptions())

	var got []string
	g.OnDrop(func(code string) error {
		got = append(got, code)
		return nil
	})

	if err := g.SimulateDrop(""); !errors.Is(err, common.ErrNotConnected) {
		t.Errorf("drop while down: err = %v", err)
	}

	g.Connect(context.Background())
	if err := g.SimulateDrop(""); err != nil {
		t.Fatalf("SimulateDrop() error = %v", err)
	}
	if len(got) != 1 || got[0] != common.CodeCriticalDrop {
		t.Errorf("handler calls = %v", got)
	}
	if g.Connected() {
		t.Error("Connected() = true after drop")
	}
}

func TestSimulated_SimulateDropReturnsHandlerError(t *testing.T) {
	g := New(fastOptions())
	g.OnDrop(func(string) error { return common.ErrTransitionInProgress })

	g.Connect(context.Background())
	if err := g.SimulateDrop(""); !errors.Is(err, common.ErrTransitionInProgress) {
		t.Errorf("SimulateDrop() error = %v, want handler error", err)
	}
}

func TestSimulated_Probe(t *testing.T) {
	g := New(fastOptions())

	if _, err := g.Probe(context.Background()); !errors.Is(err, common.ErrNotConnected) {
		t.Errorf("probe while down: err = %v", err)
	}

	g.Connect(context.Background())
	latency, err := g.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if latency < 20*time.Millisecond || latency >= 60*time.Millisecond {
		t.Errorf("latency = %v, want [20ms,60ms)", latency)
	}

	lossy := fastOptions()
	lossy.ProbeLossRate = 1
	lg := New(lossy)
	lg.Connect(context.Background())
	if _, err := lg.Probe(context.Background()); !errors.Is(err, common.ErrTimeout) {
		t.Errorf("lossy probe err = %v, want ErrTimeout", err)
	}
}
