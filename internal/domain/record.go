package domain

import "github.com/railmeter/railmeter/internal/epoch"

// UptimeRecord is one recorded online/offline transition.
//
// A record at epoch E means the service's status from E onward, until the
// next recorded epoch, is exactly Online. Absence of a record means
// "unchanged from the most recent prior record".
type UptimeRecord struct {
	// Online is the status as of the report.
	Online bool

	// ReportedAt is the epoch the record pertains to. It always equals the
	// key the record is stored under; a zero value distinguishes "no record"
	// from "record exists".
	ReportedAt epoch.Epoch

	// Reporter is the address that filed the report.
	Reporter Address
}

// Exists reports whether the record is a real report rather than the zero value.
func (r UptimeRecord) Exists() bool {
	return r.ReportedAt != 0
}
