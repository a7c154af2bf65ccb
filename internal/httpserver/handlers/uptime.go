package handlers

import (
	"net/http"
	"strconv"

	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/httpserver/deps"
)

type reportRequest struct {
	Online bool `json:"online"`
}

// ReportUptime files an online/offline report for the current epoch on the
// caller's authority. The core rejects callers that are neither the service's
// provider, the monitor, nor the owner.
func ReportUptime(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := serviceID(r)
		if err != nil {
			http.Error(w, "invalid service id", http.StatusBadRequest)
			return
		}
		var req reportRequest
		if err := decode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := d.Manager.ReportUptime(r.Context(), caller(r), id, req.Online); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"online": req.Online})
	}
}

type uptimeStatsResponse struct {
	PercentageBps uint64 `json:"percentage_bps"`
	TotalEpochs   uint64 `json:"total_epochs"`
	OnlineEpochs  uint64 `json:"online_epochs"`
}

// GetUptime returns uptime stats for a service over the (from, to] window.
func GetUptime(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := serviceID(r)
		if err != nil {
			http.Error(w, "invalid service id", http.StatusBadRequest)
			return
		}
		from, err := epochParam(r, "from")
		if err != nil {
			http.Error(w, "invalid from epoch", http.StatusBadRequest)
			return
		}
		to, err := epochParam(r, "to")
		if err != nil {
			http.Error(w, "invalid to epoch", http.StatusBadRequest)
			return
		}

		stats, err := d.Manager.ServiceUptime(id, from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, uptimeStatsResponse{
			PercentageBps: stats.PercentageBps,
			TotalEpochs:   stats.TotalEpochs,
			OnlineEpochs:  stats.OnlineEpochs,
		})
	}
}

type statusResponse struct {
	Online       bool   `json:"online"`
	LastReported uint64 `json:"last_reported"`
}

// GetStatus returns the service's current online status.
func GetStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := serviceID(r)
		if err != nil {
			http.Error(w, "invalid service id", http.StatusBadRequest)
			return
		}

		online, lastReported, err := d.Manager.ServiceStatus(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{
			Online:       online,
			LastReported: uint64(lastReported),
		})
	}
}

func epochParam(r *http.Request, name string) (epoch.Epoch, error) {
	v, err := strconv.ParseUint(r.URL.Query().Get(name), 10, 64)
	return epoch.Epoch(v), err
}
