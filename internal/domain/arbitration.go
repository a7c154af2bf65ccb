package domain

import (
	"math/big"

	"github.com/railmeter/railmeter/internal/epoch"
)

// ArbitrationResult is the arbiter's verdict on a proposed rail settlement.
type ArbitrationResult struct {
	// Amount is the uptime-adjusted settlement amount. Never exceeds the
	// proposed amount.
	Amount *big.Int

	// SettleUpTo is the epoch the rail may settle through. The arbiter
	// never withholds the time window, only the amount, so this is always
	// the end of the requested range.
	SettleUpTo epoch.Epoch

	// Note is a fixed human-readable explanation of the adjustment.
	Note string
}
