package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/railmeter/railmeter/internal/httpserver/deps"
	"github.com/railmeter/railmeter/internal/httpserver/handlers"
	"github.com/railmeter/railmeter/internal/httpserver/mw"
)

func init() { Register(registerUptime) }

func registerUptime(r chi.Router, d deps.Deps) {
	// Reports come from providers and the monitor; one report per epoch is the
	// expected cadence, so keep the limiter tight.
	limited := r.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             10,
		RefillPerIPPerMin: 30,
		MaxEntries:        10000,
		SweepInterval:     time.Minute,
		IdleTTL:           15 * time.Minute,
		TrustProxy:        d.TrustProxy,
	}))
	limited.Post("/services/{id}/uptime", handlers.ReportUptime(d))

	r.Get("/services/{id}/uptime", handlers.GetUptime(d))
	r.Get("/services/{id}/status", handlers.GetStatus(d))
}
