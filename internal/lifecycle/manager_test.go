package lifecycle

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/logger"
	"github.com/railmeter/railmeter/internal/payments"
	"github.com/railmeter/railmeter/internal/uptime"
)

const (
	owner    = domain.Address("owner")
	monitor  = domain.Address("monitor")
	provider = domain.Address("provider-1")
	stranger = domain.Address("stranger")
)

// recordingListener counts notifications and can be armed to fail.
type recordingListener struct {
	registered   int
	deregistered int
	reported     int
	fail         error
}

func (r *recordingListener) ServiceRegistered(context.Context, uint64, domain.Address, epoch.Epoch) error {
	if r.fail != nil {
		return r.fail
	}
	r.registered++
	return nil
}

func (r *recordingListener) UptimeReported(context.Context, domain.Address, bool, domain.Address, epoch.Epoch) error {
	if r.fail != nil {
		return r.fail
	}
	r.reported++
	return nil
}

func (r *recordingListener) ServiceDeregistered(context.Context, uint64, domain.Address, epoch.Epoch) error {
	if r.fail != nil {
		return r.fail
	}
	r.deregistered++
	return nil
}

type fixture struct {
	clock    *epoch.Clock
	uptime   *uptime.Ledger
	payments *payments.Ledger
	listener *recordingListener
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := epoch.NewClock(100)
	up := uptime.NewLedger()
	pay := payments.NewLedger(clock, 10, "platform-fees", logger.Nop())
	rec := &recordingListener{}

	params := Params{
		Token: "RMT",
		// 5 base units per epoch once divided by the billing month.
		MonthlyRate:  new(big.Int).Mul(big.NewInt(5), new(big.Int).SetUint64(uint64(epoch.EpochsPerMonth))),
		LockupPeriod: 10,
	}
	m := NewManager(clock, up, pay, rec, owner, monitor, params, logger.Nop())

	if err := pay.Deposit(params.Token, owner, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("Deposit() failed: %v", err)
	}
	return &fixture{clock: clock, uptime: up, payments: pay, listener: rec, manager: m}
}

func (f *fixture) onboard(t *testing.T, addr domain.Address) uint64 {
	t.Helper()
	ctx := context.Background()
	if err := f.manager.RegisterProvider(ctx, addr); err != nil {
		t.Fatalf("RegisterProvider(%s) failed: %v", addr, err)
	}
	id, err := f.manager.ApproveProvider(ctx, owner, addr)
	if err != nil {
		t.Fatalf("ApproveProvider(%s) failed: %v", addr, err)
	}
	return id
}

func TestProviderOnboarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.manager.ApproveProvider(ctx, stranger, provider); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-owner approve = %v, want ErrUnauthorized", err)
	}
	if err := f.manager.RegisterProvider(ctx, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty-address register = %v, want ErrValidation", err)
	}

	id := f.onboard(t, provider)
	if id != 1 {
		t.Errorf("first provider id = %d, want 1", id)
	}

	rec, ok := f.manager.ApprovedProvider(provider)
	if !ok {
		t.Fatal("approved provider should resolve by address")
	}
	if rec.ID != 1 || !rec.Approved {
		t.Errorf("approved record = %+v, want id 1 approved", rec)
	}
}

func TestActivateService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)

	serviceID, err := f.manager.ActivateService(ctx, owner, provider, `{"region":"eu-west"}`)
	if err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}
	if serviceID != 1 {
		t.Errorf("service id = %d, want 1", serviceID)
	}

	svc, err := f.manager.GetService(serviceID)
	if err != nil {
		t.Fatalf("GetService() failed: %v", err)
	}
	if !svc.Active || svc.Provider != provider || svc.ActivatedAt != 100 {
		t.Errorf("service = %+v, want active for %s at epoch 100", svc, provider)
	}
	if svc.RatePerEpoch.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("RatePerEpoch = %s, want 5", svc.RatePerEpoch)
	}

	rail, err := f.payments.GetRail(svc.RailID)
	if err != nil {
		t.Fatalf("GetRail() failed: %v", err)
	}
	if rail.Rate.Cmp(big.NewInt(5)) != 0 || rail.LockupPeriod != 10 {
		t.Errorf("rail = rate %s period %d, want rate 5 period 10", rail.Rate, rail.LockupPeriod)
	}

	if !f.uptime.IsOnline(provider, 100) {
		t.Error("provider should be reported online at activation")
	}

	if f.listener.registered != 1 || f.listener.reported != 1 {
		t.Errorf("notifications = %d registered, %d reported; want 1 and 1",
			f.listener.registered, f.listener.reported)
	}

	// One active service per provider.
	if _, err := f.manager.ActivateService(ctx, owner, provider, ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second activation = %v, want ErrInvalidState", err)
	}
}

func TestActivateServiceValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.manager.ActivateService(ctx, stranger, provider, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-owner activation = %v, want ErrUnauthorized", err)
	}
	if _, err := f.manager.ActivateService(ctx, owner, provider, ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("unapproved provider activation = %v, want ErrInvalidState", err)
	}

	f.onboard(t, provider)
	long := make([]byte, domain.MaxMetadataBytes+1)
	if _, err := f.manager.ActivateService(ctx, owner, provider, string(long)); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("oversized metadata = %v, want ErrValidation", err)
	}
}

func TestActivateServiceRequiresFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)

	// Drain the operator account below the 5*10 lockup requirement.
	if err := f.payments.Withdraw("RMT", owner, big.NewInt(999_960)); err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}

	if _, err := f.manager.ActivateService(ctx, owner, provider, ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("underfunded activation = %v, want ErrInvalidState", err)
	}
}

func TestActivateServiceRespectsLockedFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)
	f.onboard(t, "provider-2")

	if _, err := f.manager.ActivateService(ctx, owner, provider, ""); err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}

	// Leave the operator with 90 in funds but only 40 unlocked: the first
	// rail's reserve of 50 must count against the second activation.
	if err := f.payments.Withdraw("RMT", owner, big.NewInt(999_910)); err != nil {
		t.Fatalf("Withdraw() failed: %v", err)
	}

	registered := f.listener.registered
	if _, err := f.manager.ActivateService(ctx, owner, "provider-2", ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("over-committed activation = %v, want ErrInvalidState", err)
	}

	// The failed activation left nothing behind: no second rail, no second
	// service, and listeners never heard about it.
	if _, err := f.payments.GetRail(2); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("GetRail(2) after failed activation = %v, want ErrInvalidState", err)
	}
	if _, err := f.manager.GetService(2); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("GetService(2) after failed activation = %v, want ErrInvalidState", err)
	}
	if f.listener.registered != registered {
		t.Errorf("registered notifications = %d, want unchanged %d", f.listener.registered, registered)
	}
}

func TestDeactivateService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)

	serviceID, err := f.manager.ActivateService(ctx, owner, provider, "")
	if err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}
	f.clock.Advance(50)

	if err := f.manager.DeactivateService(ctx, stranger, serviceID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-owner deactivation = %v, want ErrUnauthorized", err)
	}
	if err := f.manager.DeactivateService(ctx, owner, serviceID); err != nil {
		t.Fatalf("DeactivateService() failed: %v", err)
	}

	svc, err := f.manager.GetService(serviceID)
	if err != nil {
		t.Fatalf("GetService() failed: %v", err)
	}
	if svc.Active || svc.DeactivatedAt != 150 || svc.RatePerEpoch.Sign() != 0 {
		t.Errorf("service after deactivation = %+v, want inactive at 150 with zero rate", svc)
	}

	rail, err := f.payments.GetRail(svc.RailID)
	if err != nil {
		t.Fatalf("GetRail() failed: %v", err)
	}
	if rail.Rate.Sign() != 0 {
		t.Errorf("rail rate after deactivation = %s, want 0", rail.Rate)
	}

	if f.uptime.IsOnline(provider, 150) {
		t.Error("provider should be reported offline at deactivation")
	}
	if f.listener.deregistered != 1 {
		t.Errorf("deregistered notifications = %d, want 1", f.listener.deregistered)
	}

	if err := f.manager.DeactivateService(ctx, owner, serviceID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second deactivation = %v, want ErrInvalidState", err)
	}

	// The provider is free to run a fresh service afterwards.
	next, err := f.manager.ActivateService(ctx, owner, provider, "")
	if err != nil {
		t.Fatalf("re-activation failed: %v", err)
	}
	if next != serviceID+1 {
		t.Errorf("re-activation id = %d, want %d", next, serviceID+1)
	}
}

func TestReportUptimeAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)

	serviceID, err := f.manager.ActivateService(ctx, owner, provider, "")
	if err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}
	f.clock.Advance(1)

	cases := []struct {
		name    string
		caller  domain.Address
		wantErr error
	}{
		{"provider", provider, nil},
		{"monitor", monitor, nil},
		{"owner", owner, nil},
		{"stranger", stranger, domain.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.manager.ReportUptime(ctx, tc.caller, serviceID, false)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("ReportUptime() failed: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("ReportUptime() = %v, want %v", err, tc.wantErr)
			}
		})
	}

	if err := f.manager.SetServiceOnline(ctx, stranger, serviceID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-owner SetServiceOnline = %v, want ErrUnauthorized", err)
	}
	if err := f.manager.SetServiceOnline(ctx, owner, serviceID); err != nil {
		t.Fatalf("SetServiceOnline() failed: %v", err)
	}
	online, _, err := f.uptime.CurrentStatus(provider, f.clock.Current())
	if err != nil {
		t.Fatalf("CurrentStatus() failed: %v", err)
	}
	if !online {
		t.Error("provider should be online after SetServiceOnline")
	}
}

func TestSendUsagePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)

	if _, err := f.manager.ActivateService(ctx, owner, provider, ""); err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}

	amount := big.NewInt(50_000)
	res, err := f.manager.SendUsagePayment(ctx, owner, provider, amount, "march overage")
	if err != nil {
		t.Fatalf("SendUsagePayment() failed: %v", err)
	}

	// 0.1% platform fee on 50000 is 50.
	if res.Fee.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("Fee = %s, want 50", res.Fee)
	}
	if res.NetPayee.Cmp(big.NewInt(49_950)) != 0 {
		t.Errorf("NetPayee = %s, want 49950", res.NetPayee)
	}
	if got := f.payments.GetAccount("RMT", provider).Funds; got.Cmp(big.NewInt(49_950)) != 0 {
		t.Errorf("provider funds = %s, want 49950", got)
	}

	// The one-off lockup top-up is fully consumed by the payment.
	svc, err := f.manager.GetService(1)
	if err != nil {
		t.Fatalf("GetService() failed: %v", err)
	}
	rail, err := f.payments.GetRail(svc.RailID)
	if err != nil {
		t.Fatalf("GetRail() failed: %v", err)
	}
	if rail.LockupFixed.Sign() != 0 {
		t.Errorf("LockupFixed after payment = %s, want 0", rail.LockupFixed)
	}
	if rail.Rate.Cmp(svc.RatePerEpoch) != 0 {
		t.Errorf("rail rate = %s, want unchanged %s", rail.Rate, svc.RatePerEpoch)
	}
}

func TestSendUsagePaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	amount := big.NewInt(100)
	if _, err := f.manager.SendUsagePayment(ctx, stranger, provider, amount, "x"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("non-owner payment = %v, want ErrUnauthorized", err)
	}
	if _, err := f.manager.SendUsagePayment(ctx, owner, provider, big.NewInt(0), "x"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("zero amount = %v, want ErrValidation", err)
	}
	if _, err := f.manager.SendUsagePayment(ctx, owner, provider, amount, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty reason = %v, want ErrValidation", err)
	}

	long := make([]rune, domain.MaxReasonChars+1)
	for i := range long {
		long[i] = 'r'
	}
	if _, err := f.manager.SendUsagePayment(ctx, owner, provider, amount, string(long)); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("oversized reason = %v, want ErrValidation", err)
	}

	// Approved but no active service.
	f.onboard(t, provider)
	if _, err := f.manager.SendUsagePayment(ctx, owner, provider, amount, "x"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("payment without active service = %v, want ErrInvalidState", err)
	}
}

func TestListenerFailureAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)

	f.listener.fail = errors.New("stream unavailable")
	if _, err := f.manager.ActivateService(ctx, owner, provider, ""); err == nil {
		t.Fatal("ActivateService() should fail when a listener fails")
	}

	// Nothing was committed: no service, no rail, provider untracked.
	if _, err := f.manager.GetService(1); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("GetService() after aborted activation = %v, want ErrInvalidState", err)
	}
	if _, err := f.payments.GetRail(1); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("GetRail() after aborted activation = %v, want ErrInvalidState", err)
	}
	if f.uptime.Registered(provider) {
		t.Error("provider should not be tracked after aborted activation")
	}

	f.listener.fail = nil
	serviceID, err := f.manager.ActivateService(ctx, owner, provider, "")
	if err != nil {
		t.Fatalf("ActivateService() after recovery failed: %v", err)
	}
	f.clock.Advance(1)

	f.listener.fail = errors.New("stream unavailable")
	if err := f.manager.ReportUptime(ctx, provider, serviceID, false); err == nil {
		t.Fatal("ReportUptime() should fail when a listener fails")
	}
	if !f.uptime.IsOnline(provider, f.clock.Current()) {
		t.Error("aborted report must not change the uptime record")
	}
}

func TestListenerFailureAbortsDeactivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)

	serviceID, err := f.manager.ActivateService(ctx, owner, provider, "")
	if err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}
	f.clock.Advance(5)

	f.listener.fail = errors.New("stream unavailable")
	if err := f.manager.DeactivateService(ctx, owner, serviceID); err == nil {
		t.Fatal("DeactivateService() should fail when a listener fails")
	}

	// Aborted teardown leaves the service billing exactly as before.
	svc, err := f.manager.GetService(serviceID)
	if err != nil {
		t.Fatalf("GetService() failed: %v", err)
	}
	if !svc.Active || svc.RatePerEpoch.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("service after aborted deactivation = %+v, want active at rate 5", svc)
	}
	rail, err := f.payments.GetRail(svc.RailID)
	if err != nil {
		t.Fatalf("GetRail() failed: %v", err)
	}
	if rail.Rate.Cmp(big.NewInt(5)) != 0 || rail.LockupPeriod != 10 {
		t.Errorf("rail after aborted deactivation = rate %s period %d, want rate 5 period 10",
			rail.Rate, rail.LockupPeriod)
	}
	if !f.uptime.IsOnline(provider, f.clock.Current()) {
		t.Error("provider should still be online after aborted deactivation")
	}

	f.listener.fail = nil
	if err := f.manager.DeactivateService(ctx, owner, serviceID); err != nil {
		t.Fatalf("DeactivateService() after recovery failed: %v", err)
	}
	if got := f.payments.GetAccount("RMT", owner).LockupCurrent; got.Sign() != 0 {
		t.Errorf("operator lockup = %s after deactivation, want released", got)
	}
}

func TestSnapshotRestoreRebuildsIndexes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onboard(t, provider)

	serviceID, err := f.manager.ActivateService(ctx, owner, provider, "meta")
	if err != nil {
		t.Fatalf("ActivateService() failed: %v", err)
	}

	snap := f.manager.Export()
	restored := NewManager(f.clock, f.uptime, f.payments, f.listener, owner, monitor, Params{
		Token:        "RMT",
		MonthlyRate:  new(big.Int).Mul(big.NewInt(5), new(big.Int).SetUint64(uint64(epoch.EpochsPerMonth))),
		LockupPeriod: 10,
	}, logger.Nop())
	restored.Restore(snap)

	svc, err := restored.GetService(serviceID)
	if err != nil {
		t.Fatalf("GetService() after restore failed: %v", err)
	}
	if svc.Provider != provider || !svc.Active {
		t.Errorf("restored service = %+v, want active for %s", svc, provider)
	}
	if got, ok := restored.ActiveServiceID(provider); !ok || got != serviceID {
		t.Errorf("ActiveServiceID() after restore = (%d, %v), want (%d, true)", got, ok, serviceID)
	}
	if _, ok := restored.ServiceByRail(svc.RailID); !ok {
		t.Error("rail index should be rebuilt on restore")
	}
	if _, ok := restored.ApprovedProvider(provider); !ok {
		t.Error("provider index should be rebuilt on restore")
	}

	// Ids keep counting from where the snapshot left off.
	if err := restored.RegisterProvider(ctx, "provider-2"); err != nil {
		t.Fatalf("RegisterProvider() failed: %v", err)
	}
	id, err := restored.ApproveProvider(ctx, owner, "provider-2")
	if err != nil {
		t.Fatalf("ApproveProvider() failed: %v", err)
	}
	if id != 2 {
		t.Errorf("post-restore provider id = %d, want 2", id)
	}
}
