package lifecycle

import (
	"errors"
	"testing"

	"github.com/railmeter/railmeter/internal/domain"
)

func TestRegistrySequentialIDs(t *testing.T) {
	r := newRegistry()

	addrs := []domain.Address{"alpha", "beta", "gamma"}
	for _, a := range addrs {
		if err := r.registerPending(a, 10); err != nil {
			t.Fatalf("registerPending(%s) failed: %v", a, err)
		}
	}

	for i, a := range addrs {
		id, err := r.approve(a, 20)
		if err != nil {
			t.Fatalf("approve(%s) failed: %v", a, err)
		}
		if want := uint64(i + 1); id != want {
			t.Errorf("approve(%s) id = %d, want %d", a, id, want)
		}
	}
}

func TestRegistryDoubleRegistration(t *testing.T) {
	r := newRegistry()

	if err := r.registerPending("alpha", 10); err != nil {
		t.Fatalf("registerPending() failed: %v", err)
	}
	if err := r.registerPending("alpha", 11); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second registerPending() = %v, want ErrInvalidState", err)
	}

	if _, err := r.approve("alpha", 20); err != nil {
		t.Fatalf("approve() failed: %v", err)
	}
	if err := r.registerPending("alpha", 30); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("registerPending() after approval = %v, want ErrInvalidState", err)
	}
	if _, err := r.approve("alpha", 30); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second approve() = %v, want ErrInvalidState", err)
	}
}

func TestRegistryApproveRequiresPending(t *testing.T) {
	r := newRegistry()

	if _, err := r.approve("ghost", 10); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("approve() without registration = %v, want ErrInvalidState", err)
	}
	if err := r.reject("ghost"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("reject() without registration = %v, want ErrInvalidState", err)
	}
}

func TestRegistryRejectClearsPending(t *testing.T) {
	r := newRegistry()

	if err := r.registerPending("alpha", 10); err != nil {
		t.Fatalf("registerPending() failed: %v", err)
	}
	if err := r.reject("alpha"); err != nil {
		t.Fatalf("reject() failed: %v", err)
	}

	// A rejected provider may start over.
	if err := r.registerPending("alpha", 20); err != nil {
		t.Fatalf("registerPending() after rejection failed: %v", err)
	}
}

func TestRegistryRemoveKeepsIDsStable(t *testing.T) {
	r := newRegistry()

	for _, a := range []domain.Address{"alpha", "beta"} {
		if err := r.registerPending(a, 10); err != nil {
			t.Fatalf("registerPending(%s) failed: %v", a, err)
		}
		if _, err := r.approve(a, 20); err != nil {
			t.Fatalf("approve(%s) failed: %v", a, err)
		}
	}

	if err := r.remove(1); err != nil {
		t.Fatalf("remove(1) failed: %v", err)
	}
	if err := r.remove(1); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second remove(1) = %v, want ErrInvalidState", err)
	}

	// The removed slot stays issued as a tombstone; beta keeps id 2.
	tomb, err := r.byID(1)
	if err != nil {
		t.Fatalf("byID(1) failed: %v", err)
	}
	if tomb.Approved {
		t.Error("removed slot should be tombstoned")
	}
	beta, err := r.byID(2)
	if err != nil {
		t.Fatalf("byID(2) failed: %v", err)
	}
	if beta.Owner != "beta" {
		t.Errorf("byID(2).Owner = %s, want beta", beta.Owner)
	}
	if _, ok := r.approvedByAddress("alpha"); ok {
		t.Error("removed provider should not resolve by address")
	}

	// New approvals continue after the tombstone.
	if err := r.registerPending("gamma", 30); err != nil {
		t.Fatalf("registerPending(gamma) failed: %v", err)
	}
	id, err := r.approve("gamma", 40)
	if err != nil {
		t.Fatalf("approve(gamma) failed: %v", err)
	}
	if id != 3 {
		t.Errorf("approve(gamma) id = %d, want 3", id)
	}
}
