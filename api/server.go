// Package api exposes the session controller over a local HTTP API.
// Routes are versioned under /v1 and served on the loopback interface.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/vpn"
	"golang.org/x/time/rate"
)

// Controller is the part of vpn.Manager the API drives.
type Controller interface {
	RequestConnect() error
	RequestDisconnect() error
	ReportExternalDrop() error
	SetAutoReconnect(enabled bool) error
	Snapshot() vpn.Snapshot
}

// ServerOptions configures the HTTP server.
// Timeouts are conservative defaults suitable for a local control-plane server.
type ServerOptions struct {
	Addr              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	// RateLimit and Burst bound state-changing requests.
	RateLimit float64
	Burst     int
	Logger    common.Logger
}

// Server hosts the HTTP API.
type Server struct {
	http     *http.Server
	ctrl     Controller
	logger   common.Logger
	opts     ServerOptions
	listener net.Listener
}

// NewServer constructs a new API server bound to ctrl.
// The server does not start listening until Start is called.
func NewServer(ctrl Controller, opts ServerOptions) *Server {
	if ctrl == nil {
		panic("api.NewServer: controller is nil")
	}
	if opts.Addr == "" {
		opts.Addr = common.DefaultAPIListen
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.ReadHeaderTimeout == 0 {
		opts.ReadHeaderTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = common.ShutdownTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.Logger == nil {
		opts.Logger = common.GetLogger()
	}

	s := &Server{
		ctrl:   ctrl,
		logger: opts.Logger,
		opts:   opts,
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(Recovery(s.logger))

	limiter := rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.Burst)

	r.Route("/"+common.APIVersion, func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/session", s.handleSession)
		r.Get("/telemetry", s.handleTelemetry)
		r.Get("/logs", s.handleLogs)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(limiter, s.logger))
			r.Post("/connect", s.handleConnect)
			r.Post("/disconnect", s.handleDisconnect)
			r.Post("/drop", s.handleDrop)
			r.Put("/auto-reconnect", s.handleAutoReconnect)
		})
	})

	return r
}

// Start binds the listen address and serves in a background goroutine.
// Bind errors are returned immediately; use Stop for graceful shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		s.logger.Info("API listening on http://%s/%s", ln.Addr(), common.APIVersion)
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opts.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server, waiting up to ShutdownTimeout.
func (s *Server) Stop(ctx context.Context) error {
	timeout := s.opts.ShutdownTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.http.Shutdown(ctx)
}
