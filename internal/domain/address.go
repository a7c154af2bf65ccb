package domain

// Address identifies a principal on the payments ledger: the billing operator,
// a storage provider, the monitor, or the platform fee account.
//
// Addresses are opaque strings; the core only ever compares them for equality.
type Address string

// Zero reports whether the address is unset.
func (a Address) Zero() bool {
	return a == ""
}
