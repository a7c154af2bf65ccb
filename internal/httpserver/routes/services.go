package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/railmeter/railmeter/internal/httpserver/deps"
	"github.com/railmeter/railmeter/internal/httpserver/handlers"
	"github.com/railmeter/railmeter/internal/httpserver/mw"
)

func init() { Register(registerServices) }

func registerServices(r chi.Router, d deps.Deps) {
	r.Get("/services/{id}", handlers.GetService(d))

	owner := r.With(mw.RequireOwner(d.OwnerToken, d.Logger))
	owner.Post("/services", handlers.ActivateService(d))
	owner.Post("/services/{id}/deactivate", handlers.DeactivateService(d))
	owner.Post("/services/{id}/online", handlers.SetServiceOnline(d))
	owner.Post("/services/{id}/offline", handlers.SetServiceOffline(d))
}
