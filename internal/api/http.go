package api

import (
	"net/http"

	"github.com/heysubinoy/dollarkv/internal/protocol"
	"github.com/heysubinoy/dollarkv/internal/server"
	"github.com/heysubinoy/dollarkv/internal/store"
	"github.com/heysubinoy/dollarkv/pkg/kv"
)

// Server exposes read-only admin endpoints next to the TCP protocol.
// Writes only go through the protocol.
type Server struct {
	Store   kv.Store
	Metrics *store.InstrumentedStore
	Conns   *server.Server
}

// NewServer creates a new HTTP admin server. metrics and conns may be nil,
// in which case their sections are omitted from /metrics.
func NewServer(st kv.Store, metrics *store.InstrumentedStore, conns *server.Server) *Server {
	return &Server{
		Store:   st,
		Metrics: metrics,
		Conns:   conns,
	}
}

// RegisterRoutes registers all HTTP handlers on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/get", s.handleGet)
	mux.HandleFunc("/metrics", MetricsHandler(s.Metrics, s.Conns))
	mux.HandleFunc("/healthz", handleHealth)
}

// handleGet handles GET /get?key=foo requests.
// Returns the value as plain text or appropriate error codes.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}
	if !protocol.ValidKey(key) {
		http.Error(w, "Key must contain only a-z", http.StatusBadRequest)
		return
	}

	value, ok, err := s.Store.Get(key)
	if err != nil {
		http.Error(w, "Failed to get key", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(value))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok"))
}
