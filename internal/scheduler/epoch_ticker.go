package scheduler

import (
	"context"
	"time"

	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/logger"
)

// EpochTicker advances the epoch clock at a fixed wall-clock interval.
//
// Deployments that follow an external chain clock leave the interval at zero
// and advance through the API instead.
type EpochTicker struct {
	clock    *epoch.Clock
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewEpochTicker creates a new epoch ticker
func NewEpochTicker(clock *epoch.Clock, log logger.Logger, interval time.Duration) *EpochTicker {
	return &EpochTicker{
		clock:    clock,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins advancing the clock. No-op when the interval is zero.
func (et *EpochTicker) Start(ctx context.Context) {
	if et.interval <= 0 {
		et.logger.Info("epoch ticker disabled, clock advances manually")
		return
	}

	ticker := time.NewTicker(et.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				current := et.clock.Advance(1)
				et.logger.Debug("epoch advanced",
					logger.Uint64("epoch", uint64(current)))
			case <-et.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the ticker
func (et *EpochTicker) Stop() {
	close(et.stopCh)
}
