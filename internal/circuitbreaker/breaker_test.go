package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBreaker_AllowWhenClosed(t *testing.T) {
	b := New(3, 100*time.Millisecond)
	if !b.Allow("zoho") {
		t.Fatal("expected closed circuit to allow")
	}
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := New(3, 100*time.Millisecond)

	b.RecordFailure("zoho")
	b.RecordFailure("zoho")
	if !b.Allow("zoho") {
		t.Fatal("should still allow before threshold")
	}

	b.RecordFailure("zoho")
	if b.Allow("zoho") {
		t.Fatal("should be open after 3 failures")
	}
	if b.State("zoho") != StateOpen {
		t.Fatalf("expected StateOpen, got %v", b.State("zoho"))
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := New(1, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure("zoho")
	if b.Allow("zoho") {
		t.Fatal("expected open circuit to reject")
	}

	now = now.Add(time.Minute)
	if !b.Allow("zoho") {
		t.Fatal("expected one probe after openDuration")
	}
	if b.State("zoho") != StateHalfOpen {
		t.Fatalf("expected half-open, got %v", b.State("zoho"))
	}
	if b.Allow("zoho") {
		t.Fatal("second request during probe should be rejected")
	}

	b.RecordSuccess("zoho")
	if b.State("zoho") != StateClosed {
		t.Fatalf("expected closed after successful probe, got %v", b.State("zoho"))
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := New(1, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.RecordFailure("zoho")
	now = now.Add(2 * time.Minute)
	_ = b.Allow("zoho")
	b.RecordFailure("zoho")

	if b.State("zoho") != StateOpen {
		t.Fatalf("expected open after failed probe, got %v", b.State("zoho"))
	}
}

func TestBreaker_KeysAreIndependent(t *testing.T) {
	b := New(1, time.Minute)
	b.RecordFailure("zoho.contacts")
	if b.Allow("zoho.contacts") {
		t.Fatal("contacts should be open")
	}
	if !b.Allow("zoho.recurring") {
		t.Fatal("recurring should be unaffected")
	}
}

func TestBreaker_Execute(t *testing.T) {
	b := New(2, time.Minute)
	transport := errors.New("connection refused")
	rejected := errors.New("rejected")
	isTransport := func(err error) bool { return errors.Is(err, transport) }

	if err := b.Execute("k", isTransport, func() error { return rejected }); err != rejected {
		t.Fatalf("expected rejection passthrough, got %v", err)
	}
	if b.State("k") != StateClosed {
		t.Fatal("business rejection must not trip the breaker")
	}

	_ = b.Execute("k", isTransport, func() error { return transport })
	_ = b.Execute("k", isTransport, func() error { return transport })

	called := false
	err := b.Execute("k", isTransport, func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Fatal("fn must not run while open")
	}
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	b := New(100, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure("zoho")
			_ = b.Allow("zoho")
			b.RecordSuccess("zoho")
		}()
	}
	wg.Wait()
}

func TestState_String(t *testing.T) {
	if StateHalfOpen.String() != "half_open" || State(9).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
}
