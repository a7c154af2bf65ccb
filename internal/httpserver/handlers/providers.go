package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/httpserver/deps"
)

type providerResponse struct {
	ID           uint64 `json:"id"`
	Owner        string `json:"owner"`
	RegisteredAt uint64 `json:"registered_at"`
	ApprovedAt   uint64 `json:"approved_at"`
	Approved     bool   `json:"approved"`
}

// RegisterProvider opens a pending registration for the calling address.
func RegisterProvider(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Manager.RegisterProvider(r.Context(), caller(r)); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
	}
}

type approveRequest struct {
	Provider string `json:"provider"`
}

// ApproveProvider approves a pending provider. Owner route.
func ApproveProvider(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req approveRequest
		if err := decode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		id, err := d.Manager.ApproveProvider(r.Context(), d.Owner, domain.Address(req.Provider))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
	}
}

// RejectProvider clears a pending registration. Owner route.
func RejectProvider(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req approveRequest
		if err := decode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := d.Manager.RejectProvider(r.Context(), d.Owner, domain.Address(req.Provider)); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
	}
}

// RemoveProvider revokes approval for a provider id. Owner route.
func RemoveProvider(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid provider id", http.StatusBadRequest)
			return
		}

		if err := d.Manager.RemoveProvider(r.Context(), d.Owner, id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}

// GetProvider returns the provider record at an id, tombstoned or not.
func GetProvider(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid provider id", http.StatusBadRequest)
			return
		}

		rec, err := d.Manager.ProviderByID(id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, providerResponse{
			ID:           rec.ID,
			Owner:        string(rec.Owner),
			RegisteredAt: uint64(rec.RegisteredAt),
			ApprovedAt:   uint64(rec.ApprovedAt),
			Approved:     rec.Approved,
		})
	}
}
