package uptime

import (
	"errors"
	"testing"

	"github.com/railmeter/railmeter/internal/domain"
	"github.com/railmeter/railmeter/internal/epoch"
)

func TestPercentageInvalidRange(t *testing.T) {
	l := NewLedger()
	l.Register(provider, 0)

	tests := []struct {
		name string
		from epoch.Epoch
		to   epoch.Epoch
	}{
		{name: "equal bounds", from: 100, to: 100},
		{name: "inverted bounds", from: 200, to: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Percentage(provider, tt.from, tt.to); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Percentage(%d, %d) = %v, want ErrValidation", tt.from, tt.to, err)
			}
		})
	}
}

func TestPercentageUnknownProvider(t *testing.T) {
	l := NewLedger()

	pct, err := l.Percentage("nobody", 0, 100)
	if err != nil {
		t.Fatalf("Percentage() failed: %v", err)
	}
	if pct != 0 {
		t.Errorf("Percentage() = %d for unknown provider, want 0", pct)
	}
}

func TestPercentageAlwaysOnline(t *testing.T) {
	// A provider never reported offline scores 10000 over any valid range
	// after registration.
	l := NewLedger()
	l.Register(provider, 100)
	mustRecord(t, l, provider, true, 100)

	for _, span := range []epoch.Epoch{1, 50, 1000} {
		pct, err := l.Percentage(provider, 100, 100+span)
		if err != nil {
			t.Fatalf("Percentage() failed: %v", err)
		}
		if pct != epoch.MaxBps {
			t.Errorf("Percentage over %d epochs = %d, want %d", span, pct, epoch.MaxBps)
		}
	}
}

func TestPercentageMixedWindow(t *testing.T) {
	// Online epochs 101-140 (40), offline 141-160 (20), online 161-200 (40):
	// 80 of 100 epochs online.
	l := NewLedger()
	l.Register(provider, 100)
	mustRecord(t, l, provider, true, 100)
	mustRecord(t, l, provider, false, 141)
	mustRecord(t, l, provider, true, 161)

	stats, err := l.RangeStats(provider, 100, 200)
	if err != nil {
		t.Fatalf("RangeStats() failed: %v", err)
	}
	if stats.TotalEpochs != 100 {
		t.Errorf("TotalEpochs = %d, want 100", stats.TotalEpochs)
	}
	if stats.OnlineEpochs != 80 {
		t.Errorf("OnlineEpochs = %d, want 80", stats.OnlineEpochs)
	}
	if stats.PercentageBps != 8000 {
		t.Errorf("PercentageBps = %d, want 8000", stats.PercentageBps)
	}
}

func TestPercentageRoundsDown(t *testing.T) {
	// 1 online epoch out of 3: 3333 bps, truncated.
	l := NewLedger()
	l.Register(provider, 0)
	mustRecord(t, l, provider, false, 1)
	mustRecord(t, l, provider, true, 3)

	pct, err := l.Percentage(provider, 0, 3)
	if err != nil {
		t.Fatalf("Percentage() failed: %v", err)
	}
	if pct != 3333 {
		t.Errorf("Percentage() = %d, want 3333", pct)
	}
}

func TestPercentageCountsEpochsBeforeRegistrationOffline(t *testing.T) {
	l := NewLedger()
	l.Register(provider, 100)
	mustRecord(t, l, provider, true, 100)

	// Range (90, 110]: epochs 91-100 predate registration... epoch 100 is
	// the registration epoch itself and has an online record, 91-99 are
	// offline, 101-110 online: 11 of 20.
	stats, err := l.RangeStats(provider, 90, 110)
	if err != nil {
		t.Fatalf("RangeStats() failed: %v", err)
	}
	if stats.OnlineEpochs != 11 {
		t.Errorf("OnlineEpochs = %d, want 11", stats.OnlineEpochs)
	}
	if stats.PercentageBps != 5500 {
		t.Errorf("PercentageBps = %d, want 5500", stats.PercentageBps)
	}
}
