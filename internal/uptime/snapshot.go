package uptime

import (
	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
)

// Snapshot is the serializable form of the ledger, used by the redis
// snapshot store.
type Snapshot struct {
	Providers map[domain.Address]ProviderSnapshot
}

// ProviderSnapshot is one provider's full uptime history.
type ProviderSnapshot struct {
	RegisteredAt epoch.Epoch
	LastReport   epoch.Epoch
	Records      map[epoch.Epoch]domain.UptimeRecord
}

// Export copies the ledger state into a snapshot.
func (l *Ledger) Export() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := &Snapshot{Providers: make(map[domain.Address]ProviderSnapshot, len(l.registeredAt))}
	for provider, registered := range l.registeredAt {
		records := make(map[epoch.Epoch]domain.UptimeRecord, len(l.records[provider]))
		for e, rec := range l.records[provider] {
			records[e] = rec
		}
		snap.Providers[provider] = ProviderSnapshot{
			RegisteredAt: registered,
			LastReport:   l.lastReport[provider],
			Records:      records,
		}
	}
	return snap
}

// Restore replaces the ledger state with a snapshot.
func (l *Ledger) Restore(snap *Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.registeredAt = make(map[domain.Address]epoch.Epoch, len(snap.Providers))
	l.lastReport = make(map[domain.Address]epoch.Epoch, len(snap.Providers))
	l.records = make(map[domain.Address]map[epoch.Epoch]domain.UptimeRecord, len(snap.Providers))

	for provider, ps := range snap.Providers {
		l.registeredAt[provider] = ps.RegisteredAt
		l.lastReport[provider] = ps.LastReport
		records := make(map[epoch.Epoch]domain.UptimeRecord, len(ps.Records))
		for e, rec := range ps.Records {
			records[e] = rec
		}
		l.records[provider] = records
	}
}
