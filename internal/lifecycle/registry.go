package lifecycle

import (
	"fmt"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
)

// registry tracks provider onboarding: pending registrations and the
// approved-provider arena.
//
// The arena is append-only: slot i holds provider id i+1, and removal
// tombstones the slot (Approved=false, address mapping cleared) instead of
// compacting, so ids issued earlier stay dereferenceable forever.
//
// Not safe for concurrent use on its own; the manager serializes access.
type registry struct {
	pending map[domain.Address]domain.PendingProvider
	arena   []domain.ApprovedProvider
	ids     map[domain.Address]uint64
}

func newRegistry() *registry {
	return &registry{
		pending: make(map[domain.Address]domain.PendingProvider),
		ids:     make(map[domain.Address]uint64),
	}
}

// registerPending opens a pending registration. Fails if the provider is
// already pending or already approved.
func (r *registry) registerPending(provider domain.Address, at epoch.Epoch) error {
	if _, ok := r.pending[provider]; ok {
		return fmt.Errorf("provider %s already has a pending registration: %w", provider, domain.ErrInvalidState)
	}
	if _, ok := r.ids[provider]; ok {
		return fmt.Errorf("provider %s is already approved: %w", provider, domain.ErrInvalidState)
	}
	r.pending[provider] = domain.PendingProvider{RegisteredAt: at}
	return nil
}

// approve moves a pending provider into the arena and returns its new id.
// A pending record must exist: approving an already-approved or never-
// registered provider is an error, never a no-op.
func (r *registry) approve(provider domain.Address, at epoch.Epoch) (uint64, error) {
	pend, ok := r.pending[provider]
	if !ok {
		return 0, fmt.Errorf("provider %s has no pending registration: %w", provider, domain.ErrInvalidState)
	}

	id := uint64(len(r.arena)) + 1
	r.arena = append(r.arena, domain.ApprovedProvider{
		ID:           id,
		Owner:        provider,
		RegisteredAt: pend.RegisteredAt,
		ApprovedAt:   at,
		Approved:     true,
	})
	r.ids[provider] = id
	delete(r.pending, provider)
	return id, nil
}

// reject clears a pending registration without approving it.
func (r *registry) reject(provider domain.Address) error {
	if _, ok := r.pending[provider]; !ok {
		return fmt.Errorf("provider %s has no pending registration: %w", provider, domain.ErrInvalidState)
	}
	delete(r.pending, provider)
	return nil
}

// remove revokes approval for the provider at the given id, tombstoning its
// arena slot.
func (r *registry) remove(id uint64) error {
	slot, err := r.byID(id)
	if err != nil {
		return err
	}
	if !slot.Approved {
		return fmt.Errorf("provider id %d is already removed: %w", id, domain.ErrInvalidState)
	}
	r.arena[id-1].Approved = false
	delete(r.ids, slot.Owner)
	return nil
}

// byID returns the arena slot for an id, tombstoned or not.
func (r *registry) byID(id uint64) (domain.ApprovedProvider, error) {
	if id == 0 || id > uint64(len(r.arena)) {
		return domain.ApprovedProvider{}, fmt.Errorf("provider id %d does not exist: %w", id, domain.ErrInvalidState)
	}
	return r.arena[id-1], nil
}

// approvedByAddress returns the approved record for an address, if the
// provider is currently approved.
func (r *registry) approvedByAddress(provider domain.Address) (domain.ApprovedProvider, bool) {
	id, ok := r.ids[provider]
	if !ok {
		return domain.ApprovedProvider{}, false
	}
	return r.arena[id-1], true
}

// pendingByAddress returns the pending record for an address.
func (r *registry) pendingByAddress(provider domain.Address) (domain.PendingProvider, bool) {
	p, ok := r.pending[provider]
	return p, ok
}
