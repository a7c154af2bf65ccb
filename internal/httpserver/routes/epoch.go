package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/railmeter/railmeter/internal/httpserver/deps"
	"github.com/railmeter/railmeter/internal/httpserver/handlers"
	"github.com/railmeter/railmeter/internal/httpserver/mw"
)

func init() { Register(registerEpoch) }

func registerEpoch(r chi.Router, d deps.Deps) {
	r.Get("/epoch", handlers.CurrentEpoch(d))

	owner := r.With(mw.RequireOwner(d.OwnerToken, d.Logger))
	owner.Post("/epoch/advance", handlers.AdvanceEpoch(d))
	owner.Post("/snapshot", handlers.Snapshot(d))
}
