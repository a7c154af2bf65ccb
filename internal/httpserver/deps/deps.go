package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/lifecycle"
	"github.com/railmeter/railmeter/internal/logger"
	"github.com/railmeter/railmeter/internal/payments"
	"github.com/railmeter/railmeter/internal/uptime"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	OwnerToken string         // bearer token guarding owner-only routes
	Owner      domain.Address // the billing operator, injected as authority on owner routes
	TrustProxy bool           // true if running behind a trusted reverse proxy (e.g., cloudflared)

	Clock    *epoch.Clock
	Manager  *lifecycle.Manager
	Payments *payments.Ledger
	Uptime   *uptime.Ledger

	RedisClient     *redis.Client // Redis client connection
	SnapshotTrigger chan struct{} // Channel to trigger a manual state snapshot
}
