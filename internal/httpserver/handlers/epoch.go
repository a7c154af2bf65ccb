package handlers

import (
	"net/http"

	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/httpserver/deps"
	"github.com/railmeter/railmeter/internal/logger"
)

type epochResponse struct {
	Epoch uint64 `json:"epoch"`
}

// CurrentEpoch returns the clock position.
func CurrentEpoch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, epochResponse{Epoch: uint64(d.Clock.Current())})
	}
}

type advanceRequest struct {
	Epochs uint64 `json:"epochs"`
}

// AdvanceEpoch moves the clock forward. Owner route; used by deployments that
// follow an external chain clock instead of the wall-clock ticker.
func AdvanceEpoch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req advanceRequest
		if err := decode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Epochs == 0 {
			http.Error(w, "epochs must be positive", http.StatusBadRequest)
			return
		}

		current := d.Clock.Advance(epoch.Epoch(req.Epochs))
		d.Logger.Info("epoch advanced via api",
			logger.Uint64("epochs", req.Epochs),
			logger.Uint64("current", uint64(current)))
		writeJSON(w, http.StatusOK, epochResponse{Epoch: uint64(current)})
	}
}

// Snapshot triggers an immediate state snapshot to Redis. Owner route.
func Snapshot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.SnapshotTrigger <- struct{}{}:
			d.Logger.Info("manual snapshot triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusAccepted)
		default:
			d.Logger.Warn("snapshot already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}
}
