// Package arbiter converts raw elapsed-time settlement proposals into
// uptime-adjusted amounts. It is consulted by the payments ledger during rail
// settlement and is a pure reader: identical inputs at identical ledger state
// always produce identical output, so retried settlements are safe.
package arbiter

import (
	"fmt"
	"math/big"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/logger"
)

// Note is attached to every arbitrated settlement.
const Note = "payment adjusted for service uptime"

// ServiceLookup resolves the service bound to a rail.
type ServiceLookup interface {
	ServiceByRail(railID uint64) (domain.Service, bool)
}

// UptimeReader answers range uptime queries in basis points.
type UptimeReader interface {
	Percentage(provider domain.Address, from, to epoch.Epoch) (uint64, error)
}

// Arbiter scales settlement proposals by verified uptime over the exact
// settlement window.
type Arbiter struct {
	services ServiceLookup
	uptime   UptimeReader
	logger   logger.Logger
}

// New creates an arbiter over the given service mapping and uptime engine.
func New(services ServiceLookup, uptime UptimeReader, log logger.Logger) *Arbiter {
	return &Arbiter{
		services: services,
		uptime:   uptime,
		logger:   log,
	}
}

// ArbitratePayment returns the uptime-adjusted amount for the settlement
// window (from, to] and the epoch to settle through, which is always to: the
// arbiter withholds money, never time.
//
// A rail with no service mapping is a bookkeeping defect and fails loudly.
func (a *Arbiter) ArbitratePayment(railID uint64, proposed *big.Int, from, to epoch.Epoch, rate *big.Int) (domain.ArbitrationResult, error) {
	svc, ok := a.services.ServiceByRail(railID)
	if !ok {
		return domain.ArbitrationResult{}, fmt.Errorf("no service mapped to rail %d: %w", railID, domain.ErrConsistency)
	}

	pct, err := a.uptime.Percentage(svc.Provider, from, to)
	if err != nil {
		return domain.ArbitrationResult{}, fmt.Errorf("uptime query for rail %d: %w", railID, err)
	}

	// modified = rate * (to - from) * pct / 10000, truncating toward zero.
	modified := new(big.Int).Mul(rate, new(big.Int).SetUint64(uint64(to-from)))
	modified.Mul(modified, new(big.Int).SetUint64(pct))
	modified.Div(modified, new(big.Int).SetUint64(epoch.MaxBps))

	a.logger.Debug("payment arbitrated",
		logger.Uint64("rail_id", railID),
		logger.String("proposed", proposed.String()),
		logger.String("modified", modified.String()),
		logger.Uint64("uptime_bps", pct))

	return domain.ArbitrationResult{
		Amount:     modified,
		SettleUpTo: to,
		Note:       Note,
	}, nil
}
