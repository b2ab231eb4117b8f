package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/jpillora/requestlog"
	"github.com/jpillora/velox"
)

// PollInterval is how often Server refreshes its pushed state from the
// StatsSource. It does not need to track the control plane's own facet
// bumps precisely; the debug feed is advisory.
const PollInterval = time.Second

// Server hosts the read-only debug HTTP surface.
type Server struct {
	src   StatsSource
	state *State
	mux   *http.ServeMux
}

// NewServer builds a Server that polls src for updates. Handler and Run
// both consult it lazily, so it is safe to construct before src's
// backing manager is fully wired.
func NewServer(src StatsSource) *Server {
	s := &Server{src: src, state: newState(), mux: http.NewServeMux()}
	s.mux.Handle("/sync", velox.SyncHandler(s.state))
	s.mux.HandleFunc("/status", s.handleStatus)
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.state.snapshot()); err != nil {
		log.Printf("[WARN] observe: encode status: %v", err)
	}
}

// Handler wraps the mux with compression and structured access logging,
// matching the corpus's gziphandler+requestlog pairing for its own
// debug/API surface.
func (s *Server) Handler() http.Handler {
	return gziphandler.GzipHandler(requestlog.Wrap(s.mux))
}

// Run serves the debug surface on addr until ctx is cancelled. An empty
// addr disables the surface entirely and Run returns immediately, per
// config.Config.DebugAddr's documented meaning.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	go s.pollLoop(ctx)

	httpSrv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("observe: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("observe: serve: %w", err)
		}
		return nil
	}
}

func (s *Server) pollLoop(ctx context.Context) {
	t := time.NewTicker(PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.state.update(s.src.Stats())
		}
	}
}
