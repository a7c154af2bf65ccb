package payments

import (
	"math/big"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
)

// Rail is a directional, rate-based recurring payment channel between a payer
// and a payee, managed by an operator and adjusted by an arbiter at
// settlement time.
type Rail struct {
	ID       uint64
	Token    string
	From     domain.Address
	To       domain.Address
	Operator domain.Address
	Arbiter  domain.Address

	// Rate is the per-epoch payment in base token units.
	Rate *big.Int

	// LockupPeriod is the number of future epochs the recurring-rate
	// reserve must cover.
	LockupPeriod epoch.Epoch

	// LockupFixed is the reserve earmarked for one-time payments, distinct
	// from the recurring-rate reserve.
	LockupFixed *big.Int

	// CommissionBps is the operator commission on settled amounts.
	CommissionBps uint64

	// LastSettled is the epoch the rail has been settled through.
	LastSettled epoch.Epoch
}

// lockupObligation is the total balance the payer must keep reserved for this
// rail: the recurring reserve plus the fixed reserve.
func (r *Rail) lockupObligation() *big.Int {
	obligation := new(big.Int).Mul(r.Rate, new(big.Int).SetUint64(uint64(r.LockupPeriod)))
	return obligation.Add(obligation, r.LockupFixed)
}

// Account is a per-token balance on the ledger.
type Account struct {
	// Funds is the deposited balance.
	Funds *big.Int

	// LockupCurrent is the part of Funds reserved for rail obligations and
	// unavailable for withdrawal.
	LockupCurrent *big.Int
}

// Available returns the withdrawable part of the balance.
func (a *Account) Available() *big.Int {
	return new(big.Int).Sub(a.Funds, a.LockupCurrent)
}

func copyRail(r *Rail) Rail {
	cp := *r
	cp.Rate = new(big.Int).Set(r.Rate)
	cp.LockupFixed = new(big.Int).Set(r.LockupFixed)
	return cp
}

func copyAccount(a *Account) Account {
	return Account{
		Funds:         new(big.Int).Set(a.Funds),
		LockupCurrent: new(big.Int).Set(a.LockupCurrent),
	}
}
