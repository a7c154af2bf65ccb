// Package epoch defines the shared logical clock used by every billing
// component. One epoch corresponds to one unit of underlying chain progress;
// all uptime records, rail settlements and rate computations are indexed by it.
package epoch

// Epoch is a discrete tick of the shared logical clock.
// Epochs only ever increase.
type Epoch uint64

const (
	// EpochsPerDay is the number of epochs in one day at the reference
	// chain cadence (30s per epoch).
	EpochsPerDay Epoch = 2880

	// EpochsPerMonth is the billing month used to derive per-epoch rates
	// and to bound uptime lookback scans.
	EpochsPerMonth Epoch = EpochsPerDay * 30

	// MaxBps is the basis-point scale: 10000 == 100%.
	MaxBps uint64 = 10000
)
