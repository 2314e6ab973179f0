package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the body of GET /health. Sessions counts live
// WebSocket sessions so probes double as a cheap load signal.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status:   "ok",
			Sessions: g.sessions.Len(),
		})
	}
}
