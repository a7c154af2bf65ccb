package mw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/railmeter/railmeter/internal/logger"
	"github.com/railmeter/railmeter/internal/utils"
)

// CallerHeader carries the caller's ledger address on every API request.
// Handlers pass it down as the explicit authority parameter of the core
// operations; the core, not the HTTP layer, decides what the caller may do.
const CallerHeader = "X-Railmeter-Caller"

// RequireOwner guards owner-only routes with a bearer token. The token only
// proves the request comes from the billing operator's tooling; the operator
// address itself is injected by the handler, not taken from the request.
func RequireOwner(token string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				log.Warn("rejected owner-route request",
					logger.String("path", r.URL.Path),
					logger.String("remote_ip", utils.ClientIP(r, false)))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
