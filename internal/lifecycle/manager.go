// Package lifecycle manages provider onboarding and the life of billable
// service instances: registration, approval, activation against a payment
// rail, uptime reporting and usage payments.
//
// The manager is the only writer to the uptime ledger and the only principal
// allowed to mutate rate or lockup on the rails it operates. All mutating
// calls take the caller's address explicitly and check authority at entry.
package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
	"github.com/railmeter/railmeter/internal/listener"
	"github.com/railmeter/railmeter/internal/logger"
	"github.com/railmeter/railmeter/internal/payments"
	"github.com/railmeter/railmeter/internal/uptime"
)

// Params are the billing parameters fixed at startup.
type Params struct {
	// Token is the settlement token symbol.
	Token string

	// MonthlyRate is the subscription price per service per month, in base
	// token units.
	MonthlyRate *big.Int

	// LockupPeriod is the recurring reserve window required to back a new
	// rail, in epochs.
	LockupPeriod epoch.Epoch
}

// Manager is the service lifecycle state machine.
type Manager struct {
	mu        sync.Mutex
	logger    logger.Logger
	clock     *epoch.Clock
	uptime    *uptime.Ledger
	payments  *payments.Ledger
	listeners listener.Listener

	owner   domain.Address
	monitor domain.Address
	params  Params

	registry      *registry
	services      map[uint64]*domain.Service
	byProvider    map[domain.Address]uint64
	byRail        map[uint64]uint64
	nextServiceID uint64
}

// NewManager wires the lifecycle manager. owner is the billing operator
// (payer on every rail); monitor is the external verifier allowed to file
// uptime reports alongside the provider and the owner.
func NewManager(
	clock *epoch.Clock,
	uptimeLedger *uptime.Ledger,
	paymentsLedger *payments.Ledger,
	listeners listener.Listener,
	owner domain.Address,
	monitor domain.Address,
	params Params,
	log logger.Logger,
) *Manager {
	return &Manager{
		logger:        log,
		clock:         clock,
		uptime:        uptimeLedger,
		payments:      paymentsLedger,
		listeners:     listeners,
		owner:         owner,
		monitor:       monitor,
		params:        params,
		registry:      newRegistry(),
		services:      make(map[uint64]*domain.Service),
		byProvider:    make(map[domain.Address]uint64),
		byRail:        make(map[uint64]uint64),
		nextServiceID: 1,
	}
}

// Owner returns the billing operator address.
func (m *Manager) Owner() domain.Address {
	return m.owner
}

// RegisterProvider opens a pending registration for the caller.
func (m *Manager) RegisterProvider(_ context.Context, caller domain.Address) error {
	if caller.Zero() {
		return fmt.Errorf("caller address required: %w", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.registry.registerPending(caller, m.clock.Current()); err != nil {
		return err
	}
	m.logger.Info("provider registration pending", logger.String("provider", string(caller)))
	return nil
}

// ApproveProvider approves a pending provider and returns its sequential id.
// Owner-only.
func (m *Manager) ApproveProvider(_ context.Context, caller, provider domain.Address) (uint64, error) {
	if err := m.requireOwner(caller); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.registry.approve(provider, m.clock.Current())
	if err != nil {
		return 0, err
	}
	m.logger.Info("provider approved",
		logger.String("provider", string(provider)),
		logger.Uint64("provider_id", id))
	return id, nil
}

// RejectProvider clears a pending registration. Owner-only.
func (m *Manager) RejectProvider(_ context.Context, caller, provider domain.Address) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.registry.reject(provider); err != nil {
		return err
	}
	m.logger.Info("provider rejected", logger.String("provider", string(provider)))
	return nil
}

// RemoveProvider revokes approval for the provider at the given id.
// Owner-only. The id stays issued; the arena slot becomes a tombstone.
func (m *Manager) RemoveProvider(_ context.Context, caller domain.Address, id uint64) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.registry.remove(id); err != nil {
		return err
	}
	m.logger.Info("provider removed", logger.Uint64("provider_id", id))
	return nil
}

// ActivateService creates a billable service for an approved provider:
// a new rail with the derived per-epoch rate, backed by the owner's deposited
// funds, with the provider reported online as of now. Returns the service id.
//
// Listeners are notified before any ledger write so a notification failure
// aborts with no state change.
func (m *Manager) ActivateService(ctx context.Context, caller, provider domain.Address, metadata string) (uint64, error) {
	if err := m.requireOwner(caller); err != nil {
		return 0, err
	}
	if len(metadata) > domain.MaxMetadataBytes {
		return 0, fmt.Errorf("metadata exceeds %d bytes: %w", domain.MaxMetadataBytes, domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registry.approvedByAddress(provider); !ok {
		return 0, fmt.Errorf("provider %s is not approved: %w", provider, domain.ErrInvalidState)
	}
	if _, ok := m.byProvider[provider]; ok {
		return 0, fmt.Errorf("provider %s already runs an active service: %w", provider, domain.ErrInvalidState)
	}

	// The new rail reserves rate*lockupPeriod on top of what existing rails
	// already hold, so the check is against the unlocked balance.
	rate := new(big.Int).Div(m.params.MonthlyRate, new(big.Int).SetUint64(uint64(epoch.EpochsPerMonth)))
	required := new(big.Int).Mul(rate, new(big.Int).SetUint64(uint64(m.params.LockupPeriod)))
	acct := m.payments.GetAccount(m.params.Token, m.owner)
	if acct.Available().Cmp(required) < 0 {
		return 0, fmt.Errorf("operator available balance %s cannot back a new rail (need %s): %w",
			acct.Available(), required, domain.ErrInvalidState)
	}

	now := m.clock.Current()
	serviceID := m.nextServiceID

	if err := m.listeners.ServiceRegistered(ctx, serviceID, provider, now); err != nil {
		return 0, err
	}
	if err := m.listeners.UptimeReported(ctx, provider, true, caller, now); err != nil {
		return 0, err
	}

	railID, err := m.payments.OpenRail(m.params.Token, m.owner, provider, m.owner, m.owner, 0, rate, m.params.LockupPeriod)
	if err != nil {
		return 0, fmt.Errorf("rail setup for %s: %w", provider, err)
	}

	m.uptime.Register(provider, now)
	if err := m.uptime.Record(provider, true, caller, now); err != nil {
		return 0, err
	}

	m.services[serviceID] = &domain.Service{
		ID:           serviceID,
		Provider:     provider,
		Metadata:     metadata,
		RailID:       railID,
		RatePerEpoch: rate,
		Active:       true,
		ActivatedAt:  now,
	}
	m.byProvider[provider] = serviceID
	m.byRail[railID] = serviceID
	m.nextServiceID++

	m.logger.Info("service activated",
		logger.Uint64("service_id", serviceID),
		logger.String("provider", string(provider)),
		logger.Uint64("rail_id", railID),
		logger.String("rate_per_epoch", rate.String()))
	return serviceID, nil
}

// DeactivateService retires a service: rail rate to zero, rate on the record
// forced to zero, provider reported offline. The service and its history stay
// queryable. Owner-only.
func (m *Manager) DeactivateService(ctx context.Context, caller domain.Address, serviceID uint64) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	svc, err := m.activeService(serviceID)
	if err != nil {
		return err
	}
	// The rail is resolved before anyone is notified: once listeners hear
	// about the deregistration the teardown must not be able to fail.
	if _, err := m.payments.GetRail(svc.RailID); err != nil {
		return fmt.Errorf("rail %d lookup for teardown: %w", svc.RailID, err)
	}

	now := m.clock.Current()
	if err := m.listeners.ServiceDeregistered(ctx, serviceID, svc.Provider, now); err != nil {
		return err
	}
	if err := m.listeners.UptimeReported(ctx, svc.Provider, false, caller, now); err != nil {
		return err
	}

	if err := m.payments.CloseRail(m.owner, svc.RailID); err != nil {
		return fmt.Errorf("rail %d teardown: %w", svc.RailID, err)
	}
	if err := m.uptime.Record(svc.Provider, false, caller, now); err != nil {
		return err
	}

	svc.Active = false
	svc.RatePerEpoch = new(big.Int)
	svc.DeactivatedAt = now
	delete(m.byProvider, svc.Provider)

	m.logger.Info("service deactivated",
		logger.Uint64("service_id", serviceID),
		logger.String("provider", string(svc.Provider)))
	return nil
}

// ReportUptime files an online/offline report for the current epoch. The
// caller must be the service's provider, the monitor, or the owner. Listeners
// are notified before the record is committed; their failure aborts the call.
func (m *Manager) ReportUptime(ctx context.Context, caller domain.Address, serviceID uint64, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	svc, err := m.activeService(serviceID)
	if err != nil {
		return err
	}
	if caller != svc.Provider && caller != m.monitor && caller != m.owner {
		return fmt.Errorf("caller %s may not report for service %d: %w", caller, serviceID, domain.ErrUnauthorized)
	}

	now := m.clock.Current()
	if err := m.listeners.UptimeReported(ctx, svc.Provider, online, caller, now); err != nil {
		return err
	}
	return m.uptime.Record(svc.Provider, online, caller, now)
}

// SetServiceOnline reports the service online. Owner-only.
func (m *Manager) SetServiceOnline(ctx context.Context, caller domain.Address, serviceID uint64) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	return m.ReportUptime(ctx, caller, serviceID, true)
}

// SetServiceOffline reports the service offline. Owner-only.
func (m *Manager) SetServiceOffline(ctx context.Context, caller domain.Address, serviceID uint64) error {
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	return m.ReportUptime(ctx, caller, serviceID, false)
}

// SendUsagePayment pays a one-time amount to an approved provider with an
// active service, topping up the rail's fixed lockup first when it cannot
// cover the amount. The payments ledger nets the platform fee off before
// crediting the provider. Owner-only.
func (m *Manager) SendUsagePayment(_ context.Context, caller, provider domain.Address, amount *big.Int, reason string) (*payments.PaymentResult, error) {
	if err := m.requireOwner(caller); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("usage payment amount must be positive: %w", domain.ErrValidation)
	}
	if reason == "" {
		return nil, fmt.Errorf("usage payment reason required: %w", domain.ErrValidation)
	}
	if len([]rune(reason)) > domain.MaxReasonChars {
		return nil, fmt.Errorf("usage payment reason exceeds %d characters: %w", domain.MaxReasonChars, domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.registry.approvedByAddress(provider); !ok {
		return nil, fmt.Errorf("provider %s is not approved: %w", provider, domain.ErrInvalidState)
	}
	serviceID, ok := m.byProvider[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s has no active service: %w", provider, domain.ErrInvalidState)
	}
	svc := m.services[serviceID]

	rail, err := m.payments.GetRail(svc.RailID)
	if err != nil {
		return nil, err
	}
	if rail.LockupFixed.Cmp(amount) < 0 {
		if err := m.payments.ModifyRailLockup(m.owner, svc.RailID, rail.LockupPeriod, amount); err != nil {
			return nil, fmt.Errorf("rail %d lockup top-up: %w", svc.RailID, err)
		}
	}

	result, err := m.payments.ModifyRailPayment(m.owner, svc.RailID, svc.RatePerEpoch, amount)
	if err != nil {
		return nil, fmt.Errorf("usage payment to %s: %w", provider, err)
	}

	m.logger.Info("usage payment sent",
		logger.String("provider", string(provider)),
		logger.String("amount", amount.String()),
		logger.String("reason", reason),
		logger.String("ref", result.Ref))
	return result, nil
}

func (m *Manager) requireOwner(caller domain.Address) error {
	if caller != m.owner {
		return fmt.Errorf("caller %s is not the billing operator: %w", caller, domain.ErrUnauthorized)
	}
	return nil
}

// activeService returns the live record for an existing, active service.
// Callers hold m.mu.
func (m *Manager) activeService(serviceID uint64) (*domain.Service, error) {
	svc, ok := m.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %d does not exist: %w", serviceID, domain.ErrInvalidState)
	}
	if !svc.Active {
		return nil, fmt.Errorf("service %d is deactivated: %w", serviceID, domain.ErrInvalidState)
	}
	return svc, nil
}
