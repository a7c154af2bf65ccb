package lifecycle

import (
	"fmt"
	"math/big"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/uptime"
)

// GetService returns a copy of the service record, active or retired.
func (m *Manager) GetService(serviceID uint64) (domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	svc, ok := m.services[serviceID]
	if !ok {
		return domain.Service{}, fmt.Errorf("service %d does not exist: %w", serviceID, domain.ErrInvalidState)
	}
	return copyService(svc), nil
}

// ServiceByRail resolves the service bound to a rail. Used by the arbiter.
func (m *Manager) ServiceByRail(railID uint64) (domain.Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	serviceID, ok := m.byRail[railID]
	if !ok {
		return domain.Service{}, false
	}
	return copyService(m.services[serviceID]), true
}

// ActiveServiceID returns the id of the provider's active service, if any.
func (m *Manager) ActiveServiceID(provider domain.Address) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byProvider[provider]
	return id, ok
}

// ProviderByID returns the arena slot for a provider id, tombstoned or not.
func (m *Manager) ProviderByID(id uint64) (domain.ApprovedProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.registry.byID(id)
}

// ApprovedProvider returns the approved record for an address.
func (m *Manager) ApprovedProvider(provider domain.Address) (domain.ApprovedProvider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.registry.approvedByAddress(provider)
}

// PendingProvider returns the pending record for an address.
func (m *Manager) PendingProvider(provider domain.Address) (domain.PendingProvider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.registry.pendingByAddress(provider)
}

// ServiceUptime answers a range uptime query for a service's provider over
// (from, to].
func (m *Manager) ServiceUptime(serviceID uint64, from, to epoch.Epoch) (uptime.RangeStats, error) {
	m.mu.Lock()
	svc, ok := m.services[serviceID]
	if !ok {
		m.mu.Unlock()
		return uptime.RangeStats{}, fmt.Errorf("service %d does not exist: %w", serviceID, domain.ErrInvalidState)
	}
	provider := svc.Provider
	m.mu.Unlock()

	return m.uptime.RangeStats(provider, from, to)
}

// ServiceStatus returns the service's current status and the epoch of the
// report it derives from.
func (m *Manager) ServiceStatus(serviceID uint64) (online bool, lastReported epoch.Epoch, err error) {
	m.mu.Lock()
	svc, ok := m.services[serviceID]
	if !ok {
		m.mu.Unlock()
		return false, 0, fmt.Errorf("service %d does not exist: %w", serviceID, domain.ErrInvalidState)
	}
	provider := svc.Provider
	m.mu.Unlock()

	return m.uptime.CurrentStatus(provider, m.clock.Current())
}

// Stats summarizes registry and service counts for the infra endpoint.
type Stats struct {
	PendingProviders  int
	ApprovedProviders int
	TotalServices     int
	ActiveServices    int
}

// Snapshot of counts; approved excludes tombstoned slots.
func (m *Manager) Counts() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		PendingProviders:  len(m.registry.pending),
		ApprovedProviders: len(m.registry.ids),
		TotalServices:     len(m.services),
		ActiveServices:    len(m.byProvider),
	}
}

func copyService(s *domain.Service) domain.Service {
	cp := *s
	if s.RatePerEpoch != nil {
		cp.RatePerEpoch = new(big.Int).Set(s.RatePerEpoch)
	}
	return cp
}
