package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bolajil/genai-logistic-intelligent-hub/internal/logging"
)

// probeTimeout bounds each dependency probe so a hung backend turns into a
// failed check instead of a stalled /api/ready response.
const probeTimeout = 5 * time.Second

// Pinger is one readiness dependency: the vector store, the embedder,
// anything the server cannot answer queries without. Implementations must
// be safe for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is usable right now.
	Ping(ctx context.Context) error

	// Name labels the dependency in readiness responses ("embedder",
	// "qdrant", ...).
	Name() string
}

// MultiPinger folds several dependencies into a single probe.
type MultiPinger struct {
	pingers []Pinger
}

// NewMultiPinger builds a MultiPinger over the given probes, run in order.
func NewMultiPinger(pingers ...Pinger) *MultiPinger {
	return &MultiPinger{pingers: pingers}
}

// Ping probes each dependency in turn and stops at the first failure,
// prefixing the error with the failing dependency's name.
func (m *MultiPinger) Ping(ctx context.Context) error {
	for _, p := range m.pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Name identifies the aggregate in logs.
func (m *MultiPinger) Name() string { return "multi" }

// readyCheck is one dependency's result inside the readiness response.
type readyCheck struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// Error holds the failure reason; empty when OK.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body of GET /api/ready.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleReady implements GET /api/ready. Every registered Pinger runs with
// its own timeout and the worst result decides the status code: 200 when
// all dependencies answer, 503 otherwise. Liveness stays on /api/health so
// orchestrators can tell "process up" apart from "dependencies reachable".
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks, ready := s.runProbes(r.Context())

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(readyResponse{Ready: ready, Checks: checks}); err != nil {
		logging.FromContext(r.Context()).Error("ready: encode response", slog.Any("error", err))
	}
}

// runProbes pings every dependency and collects per-dependency results.
func (s *Server) runProbes(ctx context.Context) ([]readyCheck, bool) {
	ready := true
	checks := make([]readyCheck, 0, len(s.pingers))
	for _, p := range s.pingers {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p.Ping(probeCtx)
		cancel()

		check := readyCheck{Name: p.Name(), OK: err == nil}
		if err != nil {
			check.Error = err.Error()
			ready = false
			logging.FromContext(ctx).Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.Any("error", err),
			)
		}
		checks = append(checks, check)
	}
	return checks, ready
}
