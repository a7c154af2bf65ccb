package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/railmeter/railmeter/internal/httpserver/deps"
	"github.com/railmeter/railmeter/internal/httpserver/handlers"
	"github.com/railmeter/railmeter/internal/httpserver/mw"
)

func init() { Register(registerProviders) }

func registerProviders(r chi.Router, d deps.Deps) {
	r.Post("/providers/register", handlers.RegisterProvider(d))
	r.Get("/providers/{id}", handlers.GetProvider(d))

	owner := r.With(mw.RequireOwner(d.OwnerToken, d.Logger))
	owner.Post("/providers/approve", handlers.ApproveProvider(d))
	owner.Post("/providers/reject", handlers.RejectProvider(d))
	owner.Delete("/providers/{id}", handlers.RemoveProvider(d))
}
