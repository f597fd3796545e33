package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
)

// StatusServer exposes a session's live progress over HTTP while a long
// fuzz run is in flight, grounded on the teacher's chi-server example:
// same router, same middleware stack, same CORS policy, different
// handlers. It doubles as a Reporter so Driver.Run can feed it directly.
type StatusServer struct {
	addr string
	srv  *http.Server

	mu      sync.Mutex
	records int
	last    model.RunRecord
	started time.Time
	summary *SessionSummary
}

// NewStatusServer builds a StatusServer bound to addr. addr is typically
// Config.StatusAddr; the caller is responsible for checking it is
// non-empty before calling this (the status server is optional).
func NewStatusServer(addr string) *StatusServer {
	return &StatusServer{addr: addr, started: time.Now()}
}

// Report implements Reporter, recording the most recent RunRecord.
func (s *StatusServer) Report(r model.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records++
	s.last = r
}

// Finish implements Reporter, stashing the terminal summary so /summary
// keeps serving it after the run completes.
func (s *StatusServer) Finish(summary SessionSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = &summary
}

// Start launches the HTTP server in the background and returns
// immediately; call Shutdown to stop it.
func (s *StatusServer) Start() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/summary", s.handleSummary)

	s.srv = &http.Server{Addr: s.addr, Handler: r}
	go s.srv.ListenAndServe()
}

func (s *StatusServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"uptime":       time.Since(s.started).String(),
		"records_seen": s.records,
		"last_outcome": s.last.Outcome.Kind.String(),
	})
}

func (s *StatusServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	summary := s.summary
	s.mu.Unlock()

	if summary == nil {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "run in progress"})
		return
	}
	json.NewEncoder(w).Encode(summary)
}

// Shutdown stops the HTTP server with a short grace period.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
