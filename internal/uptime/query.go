package uptime

import (
	"fmt"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
)

// Lookback bounds every backward scan to one billing month of epochs. A record
// older than that is treated as absent.
const Lookback = epoch.EpochsPerMonth

// RangeStats is the result of a range uptime query over (From, To].
type RangeStats struct {
	PercentageBps uint64
	TotalEpochs   uint64
	OnlineEpochs  uint64
}

// IsOnline reports the provider's status at the given epoch.
//
// Unknown providers and epochs before registration are offline. An exact
// record at the epoch wins; otherwise the most recent record within the
// lookback window decides. With no record in reach the provider is presumed
// ONLINE: absence of evidence means healthy. That fail-open default is a
// deliberate business rule, not a missing fail-closed check.
func (l *Ledger) IsOnline(provider domain.Address, at epoch.Epoch) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.isOnlineLocked(provider, at)
}

func (l *Ledger) isOnlineLocked(provider domain.Address, at epoch.Epoch) bool {
	registered, ok := l.registeredAt[provider]
	if !ok || at < registered {
		return false
	}

	recs := l.records[provider]
	if rec, ok := recs[at]; ok {
		return rec.Online
	}

	// Backward scan, bounded by registration and the lookback window.
	for e := at; e > registered; e-- {
		if at-e >= Lookback {
			return true
		}
		if rec, ok := recs[e-1]; ok {
			return rec.Online
		}
	}
	return true
}

// Percentage returns the provider's uptime over (from, to] in basis points,
// rounded down. Unknown providers score 0.
func (l *Ledger) Percentage(provider domain.Address, from, to epoch.Epoch) (uint64, error) {
	stats, err := l.RangeStats(provider, from, to)
	if err != nil {
		return 0, err
	}
	return stats.PercentageBps, nil
}

// RangeStats walks every epoch in (from, to] and counts the online ones.
// O(range width x lookback): callers keep ranges narrow, the arbiter passes
// the exact settlement window which is days to weeks of epochs.
func (l *Ledger) RangeStats(provider domain.Address, from, to epoch.Epoch) (RangeStats, error) {
	if to <= from {
		return RangeStats{}, fmt.Errorf("epoch range (%d, %d] is empty: %w", from, to, domain.ErrValidation)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	total := uint64(to - from)
	if _, ok := l.registeredAt[provider]; !ok {
		return RangeStats{TotalEpochs: total}, nil
	}

	var online uint64
	for e := from + 1; e <= to; e++ {
		if l.isOnlineLocked(provider, e) {
			online++
		}
	}

	return RangeStats{
		PercentageBps: online * epoch.MaxBps / total,
		TotalEpochs:   total,
		OnlineEpochs:  online,
	}, nil
}

// CurrentStatus returns the provider's status as of now: the newest record
// within the lookback window, or (online, registeredAt) if none exists.
func (l *Ledger) CurrentStatus(provider domain.Address, now epoch.Epoch) (online bool, lastReported epoch.Epoch, err error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	registered, ok := l.registeredAt[provider]
	if !ok {
		return false, 0, fmt.Errorf("provider %s not tracked: %w", provider, domain.ErrInvalidState)
	}

	recs := l.records[provider]
	for e := now; e >= registered; e-- {
		if now-e >= Lookback {
			break
		}
		if rec, ok := recs[e]; ok {
			return rec.Online, rec.ReportedAt, nil
		}
		if e == 0 {
			break
		}
	}
	return true, registered, nil
}
