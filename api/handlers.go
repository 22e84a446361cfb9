package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/yllada/cilpea-vpn/common"
	"github.com/yllada/cilpea-vpn/vpn"
)

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Session string `json:"session"`
}

// CommandResponse is returned by accepted state-changing requests.
type CommandResponse struct {
	Accepted bool        `json:"accepted"`
	Session  vpn.Session `json:"session"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type autoReconnectRequest struct {
	Enabled *bool `json:"enabled"`
}

type telemetryResponse struct {
	Samples  []vpn.TrafficSample `json:"samples"`
	BytesIn  uint64              `json:"bytes_in"`
	BytesOut uint64              `json:"bytes_out"`
	Uptime   string              `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: common.CoreVersion,
		Session: snap.Session.Status.Key(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, struct {
		vpn.Session
		Reconnect vpn.ReconnectPolicy `json:"reconnect"`
	}{snap.Session, snap.Reconnect})
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, telemetryResponse{
		Samples:  snap.Telemetry,
		BytesIn:  snap.Session.Stats.BytesIn,
		BytesOut: snap.Session.Stats.BytesOut,
		Uptime:   snap.Session.Stats.Uptime,
	})
}

// handleLogs returns log entries oldest first. ?limit=N keeps the newest N,
// ?after=<id> keeps only entries newer than id.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs := s.ctrl.Snapshot().Logs

	if after := r.URL.Query().Get("after"); after != "" {
		for i, e := range logs {
			if e.ID == after {
				logs = logs[i+1:]
				break
			}
		}
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(logs) {
			logs = logs[len(logs)-n:]
		}
	}

	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.command(w, s.ctrl.RequestConnect)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.command(w, s.ctrl.RequestDisconnect)
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	s.command(w, s.ctrl.ReportExternalDrop)
}

func (s *Server) handleAutoReconnect(w http.ResponseWriter, r *http.Request) {
	var req autoReconnectRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}
	enabled := *req.Enabled
	s.command(w, func() error { return s.ctrl.SetAutoReconnect(enabled) })
}

// command runs fn and reports the resulting session. Requests that do not
// apply in the current state are answered with 409 and change nothing.
func (s *Server) command(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, CommandResponse{
		Accepted: true,
		Session:  s.ctrl.Snapshot().Session,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, vpn.ErrAlreadyConnected),
		errors.Is(err, vpn.ErrNotConnected),
		errors.Is(err, vpn.ErrTransitionInProgress):
		return http.StatusConflict
	case errors.Is(err, vpn.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
