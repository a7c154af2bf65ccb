package scheduler

import (
	"context"
	"fmt"

	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/lifecycle"
	"github.com/railmeter/railmeter/internal/logger"
	"github.com/railmeter/railmeter/internal/payments"
	redisstore "github.com/railmeter/railmeter/internal/store/redis"
	"github.com/railmeter/railmeter/internal/uptime"
)

// RestoreSyncer loads the persisted state from Redis into memory on startup
type RestoreSyncer struct {
	store    *redisstore.Store
	clock    *epoch.Clock
	uptime   *uptime.Ledger
	manager  *lifecycle.Manager
	payments *payments.Ledger
	logger   logger.Logger
}

// NewRestoreSyncer creates a new restore syncer
func NewRestoreSyncer(
	store *redisstore.Store,
	clock *epoch.Clock,
	uptimeLedger *uptime.Ledger,
	manager *lifecycle.Manager,
	paymentsLedger *payments.Ledger,
	log logger.Logger,
) *RestoreSyncer {
	return &RestoreSyncer{
		store:    store,
		clock:    clock,
		uptime:   uptimeLedger,
		manager:  manager,
		payments: paymentsLedger,
		logger:   log,
	}
}

// Sync loads the state snapshot from Redis and restores the in-memory
// ledgers. Returns false when no snapshot exists (fresh start).
func (rs *RestoreSyncer) Sync(ctx context.Context) (bool, error) {
	rs.logger.Info("restoring state from redis")

	state, err := rs.store.LoadState(ctx)
	if err != nil {
		return false, err
	}
	if state == nil {
		rs.logger.Info("no state snapshot found, starting fresh")
		return false, nil
	}

	if err := rs.clock.Restore(state.Epoch); err != nil {
		return false, fmt.Errorf("failed to restore epoch clock: %w", err)
	}
	rs.uptime.Restore(state.Uptime)
	rs.payments.Restore(state.Payments)
	rs.manager.Restore(state.Lifecycle)

	rs.logger.Info("state restored from redis",
		logger.Uint64("epoch", uint64(state.Epoch)))
	return true, nil
}
