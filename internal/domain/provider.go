package domain

import "github.com/railmeter/railmeter/internal/epoch"

// PendingProvider exists only between registration and approval/rejection.
type PendingProvider struct {
	// RegisteredAt is the epoch the provider asked to join.
	RegisteredAt epoch.Epoch
}

// ApprovedProvider is an arena slot in the approved-provider registry.
//
// Slots are assigned sequential ids (slot index = id - 1, ids start at 1) and
// are never compacted: removing a provider clears Approved and the
// address-to-id mapping but keeps the slot, so ids issued earlier stay stable.
type ApprovedProvider struct {
	// ID is the sequential provider id. 0 means "not approved".
	ID uint64

	// Owner is the provider's address.
	Owner Address

	// RegisteredAt is carried over from the pending record.
	RegisteredAt epoch.Epoch

	// ApprovedAt is the epoch of approval.
	ApprovedAt epoch.Epoch

	// Approved is cleared when the provider is removed. The slot itself
	// is a tombstone from then on.
	Approved bool
}
