package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/navvoice/pkg/errorsx"
)

func TestRetryPolicyRetriesTransportOnly(t *testing.T) {
	policy := NewRetryPolicy(2, time.Millisecond)

	calls := 0
	err := policy.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 2 {
			return errorsx.New(errorsx.ReasonTransportDial, "refused")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, got %v after %d calls", err, calls)
	}

	calls = 0
	err = policy.Do(context.Background(), func(int) error {
		calls++
		return errorsx.New(errorsx.ReasonRemote, "bad audio")
	})
	if calls != 1 || !errorsx.HasReason(err, errorsx.ReasonRemote) {
		t.Fatalf("expected a single attempt for remote errors, got %d (%v)", calls, err)
	}
}

func TestRetryPolicyStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := NewRetryPolicy(5, time.Hour)
	calls := 0
	err := policy.Do(ctx, func(int) error {
		calls++
		return errorsx.New(errorsx.ReasonTransport, "down")
	})
	if calls != 1 || err == nil {
		t.Fatalf("expected one attempt before giving up, got %d", calls)
	}
}

func TestRetryPolicyZeroRetries(t *testing.T) {
	policy := NewRetryPolicy(0, time.Millisecond)
	calls := 0
	_ = policy.Do(context.Background(), func(int) error {
		calls++
		return errorsx.New(errorsx.ReasonTransport, "down")
	})
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.OnError(errors.New("plain"))
	cb.OnError(errorsx.New(errorsx.ReasonTransportRecv, "reset"))
	if !cb.Allow() {
		t.Fatalf("expected breaker closed after one counted failure")
	}
	cb.OnError(errorsx.New(errorsx.ReasonRemote, "10001"))
	if cb.Allow() {
		t.Fatalf("expected breaker open after threshold")
	}
	now = now.Add(time.Minute)
	if !cb.Allow() {
		t.Fatalf("expected breaker to close after cooldown")
	}
	cb.OnSuccess()
	if !cb.Allow() {
		t.Fatalf("expected breaker closed after success")
	}
}

func TestIsCircuitOpen(t *testing.T) {
	if !IsCircuitOpen(ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen to match")
	}
	if !errorsx.IsTransport(ErrCircuitOpen) {
		t.Fatalf("expected open circuit to read as a transport failure")
	}
}
