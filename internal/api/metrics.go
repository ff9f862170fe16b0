package api

import (
	"encoding/json"
	"net/http"

	"github.com/heysubinoy/dollarkv/internal/server"
	"github.com/heysubinoy/dollarkv/internal/store"
)

// MetricsHandler returns current store and connection metrics as JSON.
// Either source may be nil.
func MetricsHandler(instrumentedStore *store.InstrumentedStore, conns *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		response := map[string]interface{}{}

		if instrumentedStore != nil {
			metrics := instrumentedStore.GetMetrics()
			response["operations"] = map[string]uint64{
				"get":    metrics.GetCount,
				"put":    metrics.PutCount,
				"hits":   metrics.GetHits,
				"misses": metrics.GetMisses,
				"errors": metrics.ErrorCount,
			}
			response["avg_latency"] = map[string]string{
				"get": metrics.GetAvgLatency.String(),
				"put": metrics.PutAvgLatency.String(),
			}
		}
		if conns != nil {
			response["connections"] = conns.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}
