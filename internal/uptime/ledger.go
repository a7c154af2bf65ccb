// Package uptime records online/offline transitions per provider as a sparse
// epoch-indexed map and answers point-in-time and range uptime queries over it.
//
// The ledger itself is policy-free storage; authorization and active-service
// gating happen in the lifecycle manager, which owns all writes. The query
// engine and the payment arbiter only read.
package uptime

import (
	"fmt"
	"sync"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
)

// Ledger stores per-provider registration epochs, last-report epochs and the
// sparse record map.
type Ledger struct {
	mu           sync.RWMutex
	registeredAt map[domain.Address]epoch.Epoch
	lastReport   map[domain.Address]epoch.Epoch
	records      map[domain.Address]map[epoch.Epoch]domain.UptimeRecord
}

// NewLedger creates an empty uptime ledger.
func NewLedger() *Ledger {
	return &Ledger{
		registeredAt: make(map[domain.Address]epoch.Epoch),
		lastReport:   make(map[domain.Address]epoch.Epoch),
		records:      make(map[domain.Address]map[epoch.Epoch]domain.UptimeRecord),
	}
}

// Register starts tracking a provider as of the given epoch. Registering an
// already-tracked provider keeps the original registration epoch and history:
// a provider deactivated and re-activated later keeps one continuous timeline.
func (l *Ledger) Register(provider domain.Address, at epoch.Epoch) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.registeredAt[provider]; ok {
		return
	}
	l.registeredAt[provider] = at
	l.lastReport[provider] = at
	l.records[provider] = make(map[epoch.Epoch]domain.UptimeRecord)
}

// Registered reports whether the provider is tracked.
func (l *Ledger) Registered(provider domain.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.registeredAt[provider]
	return ok
}

// RegisteredAt returns the provider's registration epoch.
func (l *Ledger) RegisteredAt(provider domain.Address) (epoch.Epoch, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	at, ok := l.registeredAt[provider]
	return at, ok
}

// LastReport returns the epoch of the provider's most recent report.
func (l *Ledger) LastReport(provider domain.Address) (epoch.Epoch, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	at, ok := l.lastReport[provider]
	return at, ok
}

// Record writes the provider's status at the given epoch. Reporting twice in
// the same epoch overwrites: last write wins.
func (l *Ledger) Record(provider domain.Address, online bool, reporter domain.Address, at epoch.Epoch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.registeredAt[provider]; !ok {
		return fmt.Errorf("provider %s not tracked: %w", provider, domain.ErrInvalidState)
	}

	l.records[provider][at] = domain.UptimeRecord{
		Online:     online,
		ReportedAt: at,
		Reporter:   reporter,
	}
	if at > l.lastReport[provider] {
		l.lastReport[provider] = at
	}
	return nil
}

// RecordAt returns the exact record at an epoch, if one exists.
func (l *Ledger) RecordAt(provider domain.Address, at epoch.Epoch) (domain.UptimeRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[provider][at]
	return rec, ok
}
