package scheduler

import (
	"context"
	"time"

	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/lifecycle"
	"github.com/railmeter/railmeter/internal/logger"
	"github.com/railmeter/railmeter/internal/payments"
	redisstore "github.com/railmeter/railmeter/internal/store/redis"
	"github.com/railmeter/railmeter/internal/uptime"
)

// Snapshotter periodically persists the full engine state to Redis.
type Snapshotter struct {
	clock         *epoch.Clock
	uptime        *uptime.Ledger
	manager       *lifecycle.Manager
	payments      *payments.Ledger
	store         *redisstore.Store
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSnapshotter creates a new state snapshotter
func NewSnapshotter(
	clock *epoch.Clock,
	uptimeLedger *uptime.Ledger,
	manager *lifecycle.Manager,
	paymentsLedger *payments.Ledger,
	store *redisstore.Store,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Snapshotter {
	return &Snapshotter{
		clock:         clock,
		uptime:        uptimeLedger,
		manager:       manager,
		payments:      paymentsLedger,
		store:         store,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic snapshot process
func (s *Snapshotter) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Flush(ctx); err != nil {
					s.logger.Error("failed to snapshot state",
						logger.Error(err))
				}
			case <-s.manualTrigger:
				s.logger.Info("manual snapshot triggered")
				if err := s.Flush(ctx); err != nil {
					s.logger.Error("failed to snapshot state",
						logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the snapshotter
func (s *Snapshotter) Stop() {
	close(s.stopCh)
}

// Flush captures and persists the current state.
func (s *Snapshotter) Flush(ctx context.Context) error {
	state := &redisstore.State{
		Epoch:     s.clock.Current(),
		Uptime:    s.uptime.Export(),
		Lifecycle: s.manager.Export(),
		Payments:  s.payments.Export(),
	}
	if err := s.store.SaveState(ctx, state); err != nil {
		return err
	}

	s.logger.Debug("state snapshot saved",
		logger.Uint64("epoch", uint64(state.Epoch)))
	return nil
}
