package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/railmeter/railmeter/internal/httpserver/deps"
	"github.com/railmeter/railmeter/internal/httpserver/handlers"
	"github.com/railmeter/railmeter/internal/httpserver/mw"
)

func init() { Register(registerPayments) }

func registerPayments(r chi.Router, d deps.Deps) {
	r.Get("/rails/{id}", handlers.GetRail(d))
	r.Get("/accounts", handlers.GetAccount(d))

	owner := r.With(mw.RequireOwner(d.OwnerToken, d.Logger))
	owner.Post("/deposits", handlers.Deposit(d))
	owner.Post("/payments/usage", handlers.SendUsagePayment(d))
	owner.Post("/rails/{id}/settle", handlers.SettleRail(d))
}
