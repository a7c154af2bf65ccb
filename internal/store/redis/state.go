package redis

import (
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/lifecycle"
	"github.com/railmeter/railmeter/internal/payments"
	"github.com/railmeter/railmeter/internal/uptime"
)

// State bundles everything the billing engine needs to survive a restart:
// the epoch clock position and the three ledger snapshots. The pieces are
// written together so a loaded State is always internally consistent.
type State struct {
	Epoch     epoch.Epoch         `json:"epoch"`
	Uptime    *uptime.Snapshot    `json:"uptime"`
	Lifecycle *lifecycle.Snapshot `json:"lifecycle"`
	Payments  *payments.Snapshot  `json:"payments"`
}
