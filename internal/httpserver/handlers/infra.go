package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/railmeter/railmeter/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Epoch      uint64                     `json:"epoch"`
	Providers  int                        `json:"providers"`
	Pending    int                        `json:"pending"`
	Services   int                        `json:"active_services"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		stats := d.Manager.Counts()

		components := map[string]componentStatus{
			"redis": checkRedis(d),
		}

		response := infraResponse{
			Epoch:      uint64(d.Clock.Current()),
			Providers:  stats.ApprovedProviders,
			Pending:    stats.PendingProviders,
			Services:   stats.ActiveServices,
			Components: components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func checkRedis(d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "snapshots-disabled",
			Error:  "client not initialized",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "snapshots-disabled",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "snapshots-enabled",
		Error:  "none",
	}
}
