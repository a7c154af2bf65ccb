package lifecycle

import "github.com/railmeter/railmeter/internal/domain"

// Snapshot is the serializable form of the lifecycle state.
type Snapshot struct {
	Pending       map[domain.Address]domain.PendingProvider
	Arena         []domain.ApprovedProvider
	Services      map[uint64]domain.Service
	NextServiceID uint64
}

// Export copies the lifecycle state into a snapshot.
func (m *Manager) Export() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{
		Pending:       make(map[domain.Address]domain.PendingProvider, len(m.registry.pending)),
		Arena:         make([]domain.ApprovedProvider, len(m.registry.arena)),
		Services:      make(map[uint64]domain.Service, len(m.services)),
		NextServiceID: m.nextServiceID,
	}
	for addr, p := range m.registry.pending {
		snap.Pending[addr] = p
	}
	copy(snap.Arena, m.registry.arena)
	for id, svc := range m.services {
		snap.Services[id] = copyService(svc)
	}
	return snap
}

// Restore replaces the lifecycle state with a snapshot. The derived
// address-to-id and rail-to-service indexes are rebuilt rather than stored.
func (m *Manager) Restore(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registry = newRegistry()
	for addr, p := range snap.Pending {
		m.registry.pending[addr] = p
	}
	m.registry.arena = make([]domain.ApprovedProvider, len(snap.Arena))
	copy(m.registry.arena, snap.Arena)
	for _, slot := range m.registry.arena {
		if slot.Approved {
			m.registry.ids[slot.Owner] = slot.ID
		}
	}

	m.services = make(map[uint64]*domain.Service, len(snap.Services))
	m.byProvider = make(map[domain.Address]uint64, len(snap.Services))
	m.byRail = make(map[uint64]uint64, len(snap.Services))
	for id, svc := range snap.Services {
		cp := copyService(&svc)
		m.services[id] = &cp
		if svc.Active {
			m.byProvider[svc.Provider] = id
		}
		if svc.RailID != 0 {
			m.byRail[svc.RailID] = id
		}
	}
	m.nextServiceID = snap.NextServiceID
	if m.nextServiceID == 0 {
		m.nextServiceID = 1
	}
}
