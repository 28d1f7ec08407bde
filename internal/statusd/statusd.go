// Package statusd exposes a small HTTP status endpoint for a long-running
// anonymization pass, mirroring the router/handler style of the teacher's
// query API server. Wiring a Server is entirely optional.
package statusd

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// Snapshot is the current progress of the run, reported at GET /status.
type Snapshot struct {
	CurrentFile string `json:"current_file"`
	Blocks      uint64 `json:"blocks"`
	Records     uint64 `json:"records"`
	Anonymized  uint64 `json:"anonymized"`
}

// Server serves live progress over HTTP.
type Server struct {
	mu       sync.RWMutex
	snapshot Snapshot

	httpServer *http.Server
}

// NewServer builds a status server listening on addr. Call Start to run it
// in the background.
func NewServer(addr string) *Server {
	s := &Server{}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

// Start launches the HTTP server in the background. Bind errors are sent
// on the returned channel; a nil send means the server shut down cleanly.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Update replaces the current progress snapshot. Safe to call from the
// controller's goroutine while Start's server goroutine reads concurrently.
func (s *Server) Update(currentFile string, blocks, records, anonymized uint64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.snapshot = Snapshot{CurrentFile: currentFile, Blocks: blocks, Records: records, Anonymized: anonymized}
	s.mu.Unlock()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}
