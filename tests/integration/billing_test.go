package integration

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/railmeter/railmeter/internal/arbiter"
	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/lifecycle"
	"github.com/railmeter/railmeter/internal/listener"
	"github.com/railmeter/railmeter/internal/logger"
	"github.com/railmeter/railmeter/internal/payments"
	"github.com/railmeter/railmeter/internal/uptime"
)

const (
	token      = "USDFC"
	owner      = domain.Address("0xowner")
	monitor    = domain.Address("0xmonitor")
	provider   = domain.Address("0xprovider")
	feeAccount = domain.Address("0xfees")
)

type billingStack struct {
	clock    *epoch.Clock
	uptime   *uptime.Ledger
	payments *payments.Ledger
	manager  *lifecycle.Manager
}

// newBillingStack wires the full engine the way the service binary does:
// payments ledger with a 0.1% platform fee, lifecycle manager as rail
// operator, and the uptime arbiter registered under the owner address.
func newBillingStack(t *testing.T) *billingStack {
	t.Helper()

	clock := epoch.NewClock(1000)
	up := uptime.NewLedger()
	pay := payments.NewLedger(clock, 10, feeAccount, logger.Nop())

	params := lifecycle.Params{
		Token:        token,
		MonthlyRate:  new(big.Int).Mul(big.NewInt(10), new(big.Int).SetUint64(uint64(epoch.EpochsPerMonth))),
		LockupPeriod: 100,
	}
	manager := lifecycle.NewManager(clock, up, pay, listener.Multi{}, owner, monitor, params, logger.Nop())
	pay.RegisterArbiter(owner, arbiter.New(manager, up, logger.Nop()))

	if err := pay.Deposit(token, owner, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("Deposit() failed: %v", err)
	}
	return &billingStack{clock: clock, uptime: up, payments: pay, manager: manager}
}

func TestSubscriptionBillingFlow(t *testing.T) {
	s := newBillingStack(t)
	ctx := context.Background()

	// Onboard and activate.
	if err := s.manager.RegisterProvider(ctx, provider); err != nil {
		t.Fatalf("RegisterProvider() failed: %v", err)
	}
	providerID, err := s.manager.ApproveProvider(ctx, owner, provider)
	if err != nil {
		t.Fatalf("ApproveProvider() failed: %v", err)
	}
	if providerID != 1 {
		t.Fatalf("provider id = %d, want 1", providerID)
	}

	serviceID, err := s.manager.ActivateService(ctx, owner, provider, `{"region":"eu-west"}`)
	if err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}

	svc, err := s.manager.GetService(serviceID)
	if err != nil {
		t.Fatalf("GetService() failed: %v", err)
	}
	if svc.RatePerEpoch.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("RatePerEpoch = %s, want 10", svc.RatePerEpoch)
	}

	// A fully online first 100 epochs.
	s.clock.Advance(100)
	stats, err := s.manager.ServiceUptime(serviceID, 1000, 1100)
	if err != nil {
		t.Fatalf("ServiceUptime() failed: %v", err)
	}
	if stats.PercentageBps != 10000 || stats.OnlineEpochs != 100 {
		t.Errorf("uptime = %d bps over %d/%d, want 10000 bps 100/100",
			stats.PercentageBps, stats.OnlineEpochs, stats.TotalEpochs)
	}

	// The monitor flags an outage and the clock moves on.
	if err := s.manager.ReportUptime(ctx, monitor, serviceID, false); err != nil {
		t.Fatalf("ReportUptime() failed: %v", err)
	}
	s.clock.Advance(50)

	// (1000, 1150]: 99 online epochs before the outage report at 1100.
	pct, err := s.uptime.Percentage(provider, 1000, 1150)
	if err != nil {
		t.Fatalf("Percentage() failed: %v", err)
	}
	if pct != 6600 {
		t.Errorf("Percentage() = %d, want 6600", pct)
	}

	// Settlement is arbitrated down to the observed uptime share.
	res, err := s.payments.SettleRail(svc.RailID, 1150)
	if err != nil {
		t.Fatalf("SettleRail() failed: %v", err)
	}

	// rate 10 * 150 epochs * 6600 / 10000 = 990.
	if res.Amount.Cmp(big.NewInt(990)) != 0 {
		t.Errorf("settled amount = %s, want 990", res.Amount)
	}
	if res.SettledUpTo != 1150 {
		t.Errorf("SettledUpTo = %d, want 1150", res.SettledUpTo)
	}
	if res.Note != arbiter.Note {
		t.Errorf("Note = %q, want the arbiter note", res.Note)
	}

	// 0.1% of 990 floors to 0, so the provider receives the full amount.
	if got := s.payments.GetAccount(token, provider).Funds; got.Cmp(big.NewInt(990)) != 0 {
		t.Errorf("provider funds = %s, want 990", got)
	}

	// Usage payment on top of the subscription, fee netted off.
	payRes, err := s.manager.SendUsagePayment(ctx, owner, provider, big.NewInt(50_000), "cdn overage 2026-08")
	if err != nil {
		t.Fatalf("SendUsagePayment() failed: %v", err)
	}
	if payRes.Fee.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("usage payment fee = %s, want 50", payRes.Fee)
	}
	if payRes.NetPayee.Cmp(big.NewInt(49_950)) != 0 {
		t.Errorf("usage payment net = %s, want 49950", payRes.NetPayee)
	}

	// The one-off lockup top-up is fully consumed.
	rail, err := s.payments.GetRail(svc.RailID)
	if err != nil {
		t.Fatalf("GetRail() failed: %v", err)
	}
	if rail.LockupFixed.Sign() != 0 {
		t.Errorf("LockupFixed = %s after usage payment, want 0", rail.LockupFixed)
	}

	// Provider balance reflects both payouts.
	want := big.NewInt(990 + 49_950)
	if got := s.payments.GetAccount(token, provider).Funds; got.Cmp(want) != 0 {
		t.Errorf("provider funds = %s, want %s", got, want)
	}
	if got := s.payments.GetAccount(token, feeAccount).Funds; got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("fee account funds = %s, want 50", got)
	}
}

// Settlements take the payments lock and read lifecycle/uptime state through
// the arbiter, while lifecycle operations take the manager lock and call into
// the payments ledger. Hammering both sides concurrently must always make
// progress.
func TestConcurrentSettlementsAndPayments(t *testing.T) {
	s := newBillingStack(t)
	ctx := context.Background()

	if err := s.manager.RegisterProvider(ctx, provider); err != nil {
		t.Fatalf("RegisterProvider() failed: %v", err)
	}
	if _, err := s.manager.ApproveProvider(ctx, owner, provider); err != nil {
		t.Fatalf("ApproveProvider() failed: %v", err)
	}
	serviceID, err := s.manager.ActivateService(ctx, owner, provider, "")
	if err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}
	svc, err := s.manager.GetService(serviceID)
	if err != nil {
		t.Fatalf("GetService() failed: %v", err)
	}
	s.clock.Advance(200)

	const (
		workers    = 4
		iterations = 25
	)
	var wg sync.WaitGroup
	var settled, paid int64
	var mu sync.Mutex

	for g := 0; g < workers; g++ {
		wg.Add(2)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				upTo := epoch.Epoch(1000 + g*iterations + i + 1)
				if _, err := s.payments.SettleRail(svc.RailID, upTo); err == nil {
					mu.Lock()
					settled++
					mu.Unlock()
				}
			}
		}(g)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if _, err := s.manager.SendUsagePayment(ctx, owner, provider, big.NewInt(100), "load"); err == nil {
					mu.Lock()
					paid++
					mu.Unlock()
				}
				_ = s.manager.ReportUptime(ctx, monitor, serviceID, i%2 == 0)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("settlements and payments stopped making progress; ledger and lifecycle locks are wedged")
	}

	if settled == 0 {
		t.Error("no settlement went through")
	}
	if paid != workers*iterations {
		t.Errorf("usage payments = %d, want %d", paid, workers*iterations)
	}
}

func TestDeactivationStopsBilling(t *testing.T) {
	s := newBillingStack(t)
	ctx := context.Background()

	if err := s.manager.RegisterProvider(ctx, provider); err != nil {
		t.Fatalf("RegisterProvider() failed: %v", err)
	}
	if _, err := s.manager.ApproveProvider(ctx, owner, provider); err != nil {
		t.Fatalf("ApproveProvider() failed: %v", err)
	}
	serviceID, err := s.manager.ActivateService(ctx, owner, provider, "")
	if err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}
	svc, err := s.manager.GetService(serviceID)
	if err != nil {
		t.Fatalf("GetService() failed: %v", err)
	}

	s.clock.Advance(10)
	if err := s.manager.DeactivateService(ctx, owner, serviceID); err != nil {
		t.Fatalf("DeactivateService() failed: %v", err)
	}
	s.clock.Advance(90)

	// Settling after deactivation pays only the active, online stretch:
	// rate was zeroed at 1010 and the provider marked offline, so the
	// arbitrated amount covers 9 online epochs of a 100-epoch window and
	// the zero rate cancels even that.
	res, err := s.payments.SettleRail(svc.RailID, 1100)
	if err != nil {
		t.Fatalf("SettleRail() failed: %v", err)
	}
	if res.Amount.Sign() != 0 {
		t.Errorf("settled amount = %s after deactivation, want 0", res.Amount)
	}

	// History stays queryable.
	retired, err := s.manager.GetService(serviceID)
	if err != nil {
		t.Fatalf("GetService() after deactivation failed: %v", err)
	}
	if retired.Active || retired.DeactivatedAt != 1010 {
		t.Errorf("service = %+v, want retired at epoch 1010", retired)
	}
}
