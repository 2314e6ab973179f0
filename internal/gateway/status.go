package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Sessions       int     `json:"sessions"`
	Provider       string  `json:"provider,omitempty"`
	Model          string  `json:"model,omitempty"`
	ProviderHealth string  `json:"provider_health,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
			Sessions:      g.sessions.Len(),
			Provider:      g.providerInfo.Name,
			Model:         g.providerInfo.Model,
		}
		if g.health != nil {
			resp.ProviderHealth = g.health.State().String()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
