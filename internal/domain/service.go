package domain

import (
	"math/big"

	"github.com/railmeter/railmeter/internal/epoch"
)

// Service is one billable service instance, bound 1:1 to a payment rail.
// At most one active service exists per provider at a time.
//
// A service is never physically deleted: deactivation forces the rate to zero
// and clears Active, but the rail id and uptime history stay queryable.
type Service struct {
	// ID is the sequential service identifier, assigned at activation.
	// IDs start at 1.
	ID uint64

	// Provider is the address operating the service.
	Provider Address

	// Metadata is an opaque description supplied at activation.
	// Bounded to MaxMetadataBytes.
	Metadata string

	// RailID is the payment rail backing this service. 0 means unset.
	RailID uint64

	// RatePerEpoch is the fixed per-epoch payment rate, computed once at
	// activation as monthlyRate / EpochsPerMonth in base token units.
	// Forced to zero on deactivation.
	RatePerEpoch *big.Int

	// Active is false after deactivation.
	Active bool

	// ActivatedAt is the epoch the service was activated.
	ActivatedAt epoch.Epoch

	// DeactivatedAt is the epoch the service was deactivated; 0 while active.
	DeactivatedAt epoch.Epoch
}

// MaxMetadataBytes caps the service description size.
const MaxMetadataBytes = 1024

// MaxReasonChars caps the usage-payment reason length.
const MaxReasonChars = 256
