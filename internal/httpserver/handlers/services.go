package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/httpserver/deps"
)

type serviceResponse struct {
	ID            uint64 `json:"id"`
	Provider      string `json:"provider"`
	Metadata      string `json:"metadata,omitempty"`
	RailID        uint64 `json:"rail_id"`
	RatePerEpoch  string `json:"rate_per_epoch"`
	Active        bool   `json:"active"`
	ActivatedAt   uint64 `json:"activated_at"`
	DeactivatedAt uint64 `json:"deactivated_at,omitempty"`
}

func toServiceResponse(svc domain.Service) serviceResponse {
	return serviceResponse{
		ID:            svc.ID,
		Provider:      string(svc.Provider),
		Metadata:      svc.Metadata,
		RailID:        svc.RailID,
		RatePerEpoch:  svc.RatePerEpoch.String(),
		Active:        svc.Active,
		ActivatedAt:   uint64(svc.ActivatedAt),
		DeactivatedAt: uint64(svc.DeactivatedAt),
	}
}

type activateRequest struct {
	Provider string `json:"provider"`
	Metadata string `json:"metadata"`
}

// ActivateService creates a billable service for an approved provider.
// Owner route.
func ActivateService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activateRequest
		if err := decode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		id, err := d.Manager.ActivateService(r.Context(), d.Owner, domain.Address(req.Provider), req.Metadata)
		if err != nil {
			writeError(w, err)
			return
		}

		svc, err := d.Manager.GetService(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toServiceResponse(svc))
	}
}

// DeactivateService retires a service. Owner route.
func DeactivateService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := serviceID(r)
		if err != nil {
			http.Error(w, "invalid service id", http.StatusBadRequest)
			return
		}

		if err := d.Manager.DeactivateService(r.Context(), d.Owner, id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
	}
}

// GetService returns a service record, active or retired.
func GetService(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := serviceID(r)
		if err != nil {
			http.Error(w, "invalid service id", http.StatusBadRequest)
			return
		}

		svc, err := d.Manager.GetService(id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, toServiceResponse(svc))
	}
}

// SetServiceOnline reports the service online on the owner's authority.
// Owner route.
func SetServiceOnline(d deps.Deps) http.HandlerFunc {
	return setStatus(d, true)
}

// SetServiceOffline reports the service offline on the owner's authority.
// Owner route.
func SetServiceOffline(d deps.Deps) http.HandlerFunc {
	return setStatus(d, false)
}

func setStatus(d deps.Deps, online bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := serviceID(r)
		if err != nil {
			http.Error(w, "invalid service id", http.StatusBadRequest)
			return
		}

		if online {
			err = d.Manager.SetServiceOnline(r.Context(), d.Owner, id)
		} else {
			err = d.Manager.SetServiceOffline(r.Context(), d.Owner, id)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"online": online})
	}
}

func serviceID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}
