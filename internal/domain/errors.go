package domain

import "errors"

// Error taxonomy shared by every billing component. Call sites wrap these with
// fmt.Errorf("...: %w", Err...) so callers can branch with errors.Is while
// logs keep the full context.
//
// Every failure aborts the whole call with no state change. There is no
// partial-success mode: the payments ledger treats any arbiter or lifecycle
// error as blocking.
var (
	// ErrUnauthorized: the caller lacks the required role (owner-only
	// operation, or an uptime report from neither provider, monitor nor owner).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState: the operation does not apply to the current lifecycle
	// state (nonexistent or inactive service, double registration, approval
	// without a pending record, second active service for one provider).
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation: malformed input (zero amount, empty or oversized string
	// fields, epoch range with to <= from).
	ErrValidation = errors.New("validation failed")

	// ErrConsistency: internal bookkeeping broke (a rail with no service
	// mapping during arbitration). A defect, never a user error.
	ErrConsistency = errors.New("consistency violation")
)
