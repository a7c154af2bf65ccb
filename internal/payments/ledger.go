// Package payments is the in-process payments ledger: it holds deposited
// balances, manages payment rails and executes settlement with platform fee
// splitting, consulting the registered arbiter before paying out.
//
// Every operation validates fully before mutating anything, so a failed call
// leaves no partial state behind.
package payments

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/logger"
)

// Arbiter adjusts a proposed settlement amount before finalization.
// A returned error blocks the settlement entirely.
type Arbiter interface {
	ArbitratePayment(railID uint64, proposed *big.Int, from, to epoch.Epoch, rate *big.Int) (domain.ArbitrationResult, error)
}

// PaymentResult describes an executed one-time payment.
type PaymentResult struct {
	Ref      string
	Amount   *big.Int
	Fee      *big.Int
	NetPayee *big.Int
}

// SettlementResult describes an executed rail settlement.
type SettlementResult struct {
	Ref         string
	Amount      *big.Int
	Fee         *big.Int
	NetPayee    *big.Int
	SettledUpTo epoch.Epoch
	Note        string
}

// Ledger is the mutex-guarded payments state: accounts per token and owner,
// rails, and the arbiters registered to adjudicate them.
type Ledger struct {
	mu         sync.Mutex
	logger     logger.Logger
	clock      *epoch.Clock
	feeBps     uint64
	feeAccount domain.Address
	accounts   map[string]map[domain.Address]*Account
	rails      map[uint64]*Rail
	nextRailID uint64
	arbiters   map[domain.Address]Arbiter
}

// NewLedger creates an empty payments ledger. feeBps is the platform fee in
// basis points, deducted from every payout and credited to feeAccount.
func NewLedger(clock *epoch.Clock, feeBps uint64, feeAccount domain.Address, log logger.Logger) *Ledger {
	return &Ledger{
		logger:     log,
		clock:      clock,
		feeBps:     feeBps,
		feeAccount: feeAccount,
		accounts:   make(map[string]map[domain.Address]*Account),
		rails:      make(map[uint64]*Rail),
		nextRailID: 1,
		arbiters:   make(map[domain.Address]Arbiter),
	}
}

// RegisterArbiter binds an arbiter implementation to its ledger address.
// Rails referencing an unregistered arbiter address cannot settle.
func (l *Ledger) RegisterArbiter(addr domain.Address, a Arbiter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.arbiters[addr] = a
}

// Deposit credits an account balance.
func (l *Ledger) Deposit(token string, account domain.Address, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.account(token, account)
	acct.Funds.Add(acct.Funds, amount)
	return nil
}

// Withdraw debits the unlocked part of an account balance.
func (l *Ledger) Withdraw(token string, account domain.Address, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.account(token, account)
	if acct.Available().Cmp(amount) < 0 {
		return fmt.Errorf("withdraw %s exceeds available balance %s: %w",
			amount, acct.Available(), domain.ErrInvalidState)
	}
	acct.Funds.Sub(acct.Funds, amount)
	return nil
}

// CreateRail opens a new rail with zero rate and lockup, settled through the
// current epoch. Rail ids are sequential starting at 1.
func (l *Ledger) CreateRail(token string, from, to, operator, arbiter domain.Address, commissionBps uint64) (uint64, error) {
	if from.Zero() || to.Zero() || operator.Zero() {
		return 0, fmt.Errorf("rail endpoints must be set: %w", domain.ErrValidation)
	}
	if commissionBps > epoch.MaxBps {
		return 0, fmt.Errorf("commission %d exceeds %d bps: %w", commissionBps, epoch.MaxBps, domain.ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextRailID
	l.nextRailID++

	l.rails[id] = &Rail{
		ID:            id,
		Token:         token,
		From:          from,
		To:            to,
		Operator:      operator,
		Arbiter:       arbiter,
		Rate:          new(big.Int),
		LockupFixed:   new(big.Int),
		CommissionBps: commissionBps,
		LastSettled:   l.clock.Current(),
	}

	l.logger.Info("rail created",
		logger.Uint64("rail_id", id),
		logger.String("from", string(from)),
		logger.String("to", string(to)))
	return id, nil
}

// OpenRail creates a rail with its per-epoch rate and lockup period already
// in force, reserving the recurring lockup from the payer in the same step.
// The whole setup is validated first, so a failure creates nothing.
func (l *Ledger) OpenRail(token string, from, to, operator, arbiter domain.Address, commissionBps uint64, rate *big.Int, lockupPeriod epoch.Epoch) (uint64, error) {
	if from.Zero() || to.Zero() || operator.Zero() {
		return 0, fmt.Errorf("rail endpoints must be set: %w", domain.ErrValidation)
	}
	if commissionBps > epoch.MaxBps {
		return 0, fmt.Errorf("commission %d exceeds %d bps: %w", commissionBps, epoch.MaxBps, domain.ErrValidation)
	}
	if err := requireNonNegative(rate); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	obligation := new(big.Int).Mul(rate, new(big.Int).SetUint64(uint64(lockupPeriod)))
	payer := l.account(token, from)
	newLockup := new(big.Int).Add(payer.LockupCurrent, obligation)
	if newLockup.Cmp(payer.Funds) > 0 {
		return 0, fmt.Errorf("funds %s cannot cover lockup %s: %w", payer.Funds, newLockup, domain.ErrInvalidState)
	}

	id := l.nextRailID
	l.nextRailID++

	l.rails[id] = &Rail{
		ID:            id,
		Token:         token,
		From:          from,
		To:            to,
		Operator:      operator,
		Arbiter:       arbiter,
		Rate:          new(big.Int).Set(rate),
		LockupPeriod:  lockupPeriod,
		LockupFixed:   new(big.Int),
		CommissionBps: commissionBps,
		LastSettled:   l.clock.Current(),
	}
	payer.LockupCurrent.Set(newLockup)

	l.logger.Info("rail opened",
		logger.Uint64("rail_id", id),
		logger.String("from", string(from)),
		logger.String("to", string(to)),
		logger.String("rate", rate.String()))
	return id, nil
}

// CloseRail zeroes the rail's rate and releases every reserve it holds on the
// payer. Operator-only. The rail stays settleable for the epochs already
// elapsed; only value can move, not new obligations.
func (l *Ledger) CloseRail(caller domain.Address, railID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rail, err := l.rail(railID)
	if err != nil {
		return err
	}
	if caller != rail.Operator {
		return fmt.Errorf("caller %s is not the rail operator: %w", caller, domain.ErrUnauthorized)
	}

	payer := l.account(rail.Token, rail.From)
	payer.LockupCurrent.Sub(payer.LockupCurrent, rail.lockupObligation())

	rail.Rate = new(big.Int)
	rail.LockupPeriod = 0
	rail.LockupFixed = new(big.Int)

	l.logger.Info("rail closed", logger.Uint64("rail_id", railID))
	return nil
}

// ModifyRailLockup changes the rail's lockup period and fixed lockup amount.
// Operator-only. The payer's balance must cover the new total obligation.
func (l *Ledger) ModifyRailLockup(caller domain.Address, railID uint64, period epoch.Epoch, fixed *big.Int) error {
	if err := requireNonNegative(fixed); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rail, err := l.rail(railID)
	if err != nil {
		return err
	}
	if caller != rail.Operator {
		return fmt.Errorf("caller %s is not the rail operator: %w", caller, domain.ErrUnauthorized)
	}

	oldObligation := rail.lockupObligation()
	next := copyRail(rail)
	next.LockupPeriod = period
	next.LockupFixed = new(big.Int).Set(fixed)
	delta := new(big.Int).Sub(next.lockupObligation(), oldObligation)

	acct := l.account(rail.Token, rail.From)
	newLockup := new(big.Int).Add(acct.LockupCurrent, delta)
	if newLockup.Cmp(acct.Funds) > 0 {
		return fmt.Errorf("funds %s cannot cover lockup %s: %w", acct.Funds, newLockup, domain.ErrInvalidState)
	}

	rail.LockupPeriod = period
	rail.LockupFixed.Set(fixed)
	acct.LockupCurrent.Set(newLockup)
	return nil
}

// ModifyRailPayment changes the rail's per-epoch rate and optionally executes
// a one-time payment drawn from the fixed lockup. Operator-only.
//
// The one-time amount is fee-split and credited to the payee immediately; the
// fixed lockup and the payer's funds shrink by the gross amount in the same
// call, so the whole mutation is atomic.
func (l *Ledger) ModifyRailPayment(caller domain.Address, railID uint64, rate, oneTime *big.Int) (*PaymentResult, error) {
	if err := requireNonNegative(rate); err != nil {
		return nil, err
	}
	if oneTime == nil {
		oneTime = new(big.Int)
	}
	if err := requireNonNegative(oneTime); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rail, err := l.rail(railID)
	if err != nil {
		return nil, err
	}
	if caller != rail.Operator {
		return nil, fmt.Errorf("caller %s is not the rail operator: %w", caller, domain.ErrUnauthorized)
	}
	if oneTime.Cmp(rail.LockupFixed) > 0 {
		return nil, fmt.Errorf("one-time payment %s exceeds fixed lockup %s: %w",
			oneTime, rail.LockupFixed, domain.ErrValidation)
	}

	oldObligation := rail.lockupObligation()
	next := copyRail(rail)
	next.Rate = new(big.Int).Set(rate)
	next.LockupFixed = new(big.Int).Sub(rail.LockupFixed, oneTime)
	delta := new(big.Int).Sub(next.lockupObligation(), oldObligation)

	payer := l.account(rail.Token, rail.From)
	newFunds := new(big.Int).Sub(payer.Funds, oneTime)
	newLockup := new(big.Int).Add(payer.LockupCurrent, delta)
	if newFunds.Sign() < 0 || newLockup.Cmp(newFunds) > 0 {
		return nil, fmt.Errorf("funds %s cannot cover payment and lockup: %w", payer.Funds, domain.ErrInvalidState)
	}

	rail.Rate.Set(rate)
	rail.LockupFixed.Set(next.LockupFixed)
	payer.Funds.Set(newFunds)
	payer.LockupCurrent.Set(newLockup)

	result := &PaymentResult{
		Ref:    uuid.NewString(),
		Amount: new(big.Int).Set(oneTime),
	}
	result.Fee, result.NetPayee = l.payOut(rail, oneTime)

	if oneTime.Sign() > 0 {
		l.logger.Info("one-time payment executed",
			logger.Uint64("rail_id", railID),
			logger.String("ref", result.Ref),
			logger.String("amount", oneTime.String()),
			logger.String("fee", result.Fee.String()))
	}
	return result, nil
}

// SettleRail settles the rail through upTo. The rail's arbiter is consulted
// with the raw elapsed-time proposal and may reduce the amount; an arbiter
// error blocks settlement. The approved amount minus fees goes to the payee.
//
// The arbiter reads lifecycle and uptime state guarded by their own locks, so
// the ledger lock is released for the duration of the callback. The rail's
// terms are captured before and re-checked after; a rail that changed in
// between fails the settlement instead of paying out on stale numbers.
func (l *Ledger) SettleRail(railID uint64, upTo epoch.Epoch) (*SettlementResult, error) {
	l.mu.Lock()

	rail, err := l.rail(railID)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	now := l.clock.Current()
	if upTo > now {
		l.mu.Unlock()
		return nil, fmt.Errorf("cannot settle through future epoch %d (now %d): %w", upTo, now, domain.ErrValidation)
	}
	if upTo <= rail.LastSettled {
		l.mu.Unlock()
		return nil, fmt.Errorf("rail %d already settled through %d: %w", railID, rail.LastSettled, domain.ErrValidation)
	}

	lastSettled := rail.LastSettled
	rate := new(big.Int).Set(rail.Rate)

	var arb Arbiter
	if !rail.Arbiter.Zero() {
		var ok bool
		arb, ok = l.arbiters[rail.Arbiter]
		if !ok {
			l.mu.Unlock()
			return nil, fmt.Errorf("rail %d arbiter %s not registered: %w", railID, rail.Arbiter, domain.ErrConsistency)
		}
	}
	l.mu.Unlock()

	span := new(big.Int).SetUint64(uint64(upTo - lastSettled))
	proposed := new(big.Int).Mul(rate, span)

	amount := proposed
	settledUpTo := upTo
	note := ""
	if arb != nil {
		verdict, err := arb.ArbitratePayment(railID, new(big.Int).Set(proposed), lastSettled, upTo, new(big.Int).Set(rate))
		if err != nil {
			return nil, fmt.Errorf("settlement of rail %d blocked: %w", railID, err)
		}
		if verdict.Amount == nil || verdict.Amount.Sign() < 0 || verdict.Amount.Cmp(proposed) > 0 {
			return nil, fmt.Errorf("arbiter approved %v outside [0, %s]: %w", verdict.Amount, proposed, domain.ErrConsistency)
		}
		if verdict.SettleUpTo <= lastSettled || verdict.SettleUpTo > upTo {
			return nil, fmt.Errorf("arbiter settle-through %d outside (%d, %d]: %w",
				verdict.SettleUpTo, lastSettled, upTo, domain.ErrConsistency)
		}
		amount = verdict.Amount
		settledUpTo = verdict.SettleUpTo
		note = verdict.Note
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rail, err = l.rail(railID)
	if err != nil {
		return nil, err
	}
	if rail.LastSettled != lastSettled || rail.Rate.Cmp(rate) != 0 {
		return nil, fmt.Errorf("rail %d changed during arbitration: %w", railID, domain.ErrInvalidState)
	}

	payer := l.account(rail.Token, rail.From)
	if payer.Funds.Cmp(amount) < 0 {
		return nil, fmt.Errorf("payer funds %s cannot cover settlement %s: %w", payer.Funds, amount, domain.ErrInvalidState)
	}

	payer.Funds.Sub(payer.Funds, amount)
	fee, net := l.payOut(rail, amount)
	rail.LastSettled = settledUpTo

	result := &SettlementResult{
		Ref:         uuid.NewString(),
		Amount:      new(big.Int).Set(amount),
		Fee:         fee,
		NetPayee:    net,
		SettledUpTo: settledUpTo,
		Note:        note,
	}

	l.logger.Info("rail settled",
		logger.Uint64("rail_id", railID),
		logger.String("ref", result.Ref),
		logger.String("amount", amount.String()),
		logger.String("fee", fee.String()),
		logger.Uint64("settled_up_to", uint64(settledUpTo)))
	return result, nil
}

// GetRail returns a copy of the rail.
func (l *Ledger) GetRail(railID uint64) (Rail, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rail, err := l.rail(railID)
	if err != nil {
		return Rail{}, err
	}
	return copyRail(rail), nil
}

// GetAccount returns a copy of the account. Unknown accounts are zero.
func (l *Ledger) GetAccount(token string, owner domain.Address) Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	return copyAccount(l.account(token, owner))
}

// payOut splits amount into platform fee, operator commission and payee net,
// crediting each account. The payer's funds were already debited.
func (l *Ledger) payOut(rail *Rail, amount *big.Int) (fee, net *big.Int) {
	fee = new(big.Int).Mul(amount, new(big.Int).SetUint64(l.feeBps))
	fee.Div(fee, new(big.Int).SetUint64(epoch.MaxBps))

	commission := new(big.Int).Mul(amount, new(big.Int).SetUint64(rail.CommissionBps))
	commission.Div(commission, new(big.Int).SetUint64(epoch.MaxBps))

	net = new(big.Int).Sub(amount, fee)
	net.Sub(net, commission)

	if fee.Sign() > 0 && !l.feeAccount.Zero() {
		feeAcct := l.account(rail.Token, l.feeAccount)
		feeAcct.Funds.Add(feeAcct.Funds, fee)
	}
	if commission.Sign() > 0 {
		opAcct := l.account(rail.Token, rail.Operator)
		opAcct.Funds.Add(opAcct.Funds, commission)
	}
	payee := l.account(rail.Token, rail.To)
	payee.Funds.Add(payee.Funds, net)
	return fee, net
}

// account returns the live account record, creating a zero one if needed.
// Callers hold l.mu.
func (l *Ledger) account(token string, owner domain.Address) *Account {
	byOwner, ok := l.accounts[token]
	if !ok {
		byOwner = make(map[domain.Address]*Account)
		l.accounts[token] = byOwner
	}
	acct, ok := byOwner[owner]
	if !ok {
		acct = &Account{Funds: new(big.Int), LockupCurrent: new(big.Int)}
		byOwner[owner] = acct
	}
	return acct
}

func (l *Ledger) rail(railID uint64) (*Rail, error) {
	rail, ok := l.rails[railID]
	if !ok {
		return nil, fmt.Errorf("rail %d does not exist: %w", railID, domain.ErrInvalidState)
	}
	return rail, nil
}

func requirePositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive: %w", domain.ErrValidation)
	}
	return nil
}

func requireNonNegative(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("amount must not be negative: %w", domain.ErrValidation)
	}
	return nil
}
