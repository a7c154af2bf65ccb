// Package listener defines the push-callback capability notified on service
// registration, uptime reports and deregistration.
//
// Notification failures are never swallowed: the lifecycle manager notifies
// before committing state, and a listener error aborts the whole operation so
// the ledger and the listeners' view never diverge.
package listener

import (
	"context"
	"fmt"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
)

// Listener receives billing lifecycle events.
type Listener interface {
	ServiceRegistered(ctx context.Context, serviceID uint64, provider domain.Address, at epoch.Epoch) error
	UptimeReported(ctx context.Context, provider domain.Address, online bool, reporter domain.Address, at epoch.Epoch) error
	ServiceDeregistered(ctx context.Context, serviceID uint64, provider domain.Address, at epoch.Epoch) error
}

// Multi fans an event out to several listeners. The first error aborts the
// fan-out and propagates.
type Multi []Listener

// ServiceRegistered notifies every listener in order.
func (m Multi) ServiceRegistered(ctx context.Context, serviceID uint64, provider domain.Address, at epoch.Epoch) error {
	for _, l := range m {
		if err := l.ServiceRegistered(ctx, serviceID, provider, at); err != nil {
			return fmt.Errorf("service registered notification: %w", err)
		}
	}
	return nil
}

// UptimeReported notifies every listener in order.
func (m Multi) UptimeReported(ctx context.Context, provider domain.Address, online bool, reporter domain.Address, at epoch.Epoch) error {
	for _, l := range m {
		if err := l.UptimeReported(ctx, provider, online, reporter, at); err != nil {
			return fmt.Errorf("uptime reported notification: %w", err)
		}
	}
	return nil
}

// ServiceDeregistered notifies every listener in order.
func (m Multi) ServiceDeregistered(ctx context.Context, serviceID uint64, provider domain.Address, at epoch.Epoch) error {
	for _, l := range m {
		if err := l.ServiceDeregistered(ctx, serviceID, provider, at); err != nil {
			return fmt.Errorf("service deregistered notification: %w", err)
		}
	}
	return nil
}
