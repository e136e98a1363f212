// Package server exposes export, import and the run ledger over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"boardsnap/internal/ledger"
	"boardsnap/internal/logging"
	"boardsnap/internal/runner"

	"github.com/gorilla/mux"
)

// Opener provides board pages. release is called when the run is over.
type Opener interface {
	Open(ctx context.Context, boardURL string) (page runner.Page, release func(), err error)
}

// Server handles the control API. Runs are executed one at a time; a request
// arriving while another run drives the browser gets 409.
type Server struct {
	runner *runner.Runner
	ledger *ledger.Ledger
	pages  Opener
	busy   sync.Mutex
	log    *logging.Logger
}

// New creates a Server.
func New(r *runner.Runner, l *ledger.Ledger, pages Opener) *Server {
	return &Server{
		runner: r,
		ledger: l,
		pages:  pages,
		log:    logging.Get(logging.CategoryServer),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/api/export", s.handleExport).Methods("POST")
	r.HandleFunc("/api/import", s.handleImport).Methods("POST")
	r.HandleFunc("/api/runs", s.handleListRuns).Methods("GET")
	r.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods("GET")
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("[%s] %s %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ExportRequest is the body of POST /api/export.
type ExportRequest struct {
	Board string `json:"board"`
	// Target is a directory or s3:// location; empty uses the configured output.
	Target string `json:"target,omitempty"`
}

// ImportRequest is the body of POST /api/import. Exactly one of Snapshot
// and Document is set.
type ImportRequest struct {
	Board    string          `json:"board"`
	Snapshot string          `json:"snapshot,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
}

// RunResponse carries a recorded run and, when it failed, the error.
type RunResponse struct {
	Run   *ledger.Run `json:"run"`
	Error string      `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Board == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"board\": url}")
		return
	}
	s.withPage(w, r, req.Board, func(ctx context.Context, page runner.Page) (*ledger.Run, error) {
		return s.runner.Export(ctx, page, req.Board, req.Target)
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Board == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"board\": url, \"snapshot\"|\"document\": ...}")
		return
	}
	if (req.Snapshot == "") == (len(req.Document) == 0) {
		writeError(w, http.StatusBadRequest, "exactly one of snapshot and document is required")
		return
	}
	s.withPage(w, r, req.Board, func(ctx context.Context, page runner.Page) (*ledger.Run, error) {
		if req.Snapshot != "" {
			return s.runner.Import(ctx, page, req.Board, req.Snapshot)
		}
		return s.runner.ImportData(ctx, page, req.Board, "request body", req.Document)
	})
}

func (s *Server) withPage(w http.ResponseWriter, r *http.Request, boardURL string, run func(context.Context, runner.Page) (*ledger.Run, error)) {
	if !s.busy.TryLock() {
		writeError(w, http.StatusConflict, "another run is in progress")
		return
	}
	defer s.busy.Unlock()

	ctx := r.Context()
	page, release, err := s.pages.Open(ctx, boardURL)
	if err != nil {
		s.log.Error("open %s: %v", boardURL, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer release()

	rec, err := run(ctx, page)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, RunResponse{Run: rec, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Run: rec})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		s.log.Error("list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := s.ledger.Get(r.Context(), id)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
