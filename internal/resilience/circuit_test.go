package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUnavailable = NewTransientError(errors.New("resend: http 503"), 503)

func failN(t *testing.T, cb *CircuitBreaker, n int, err error) {
	t.Helper()
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return err })
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("email", CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(t, cb, 3, errUnavailable)

	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	err := cb.Execute(context.Background(), func(context.Context) error {
		t.Error("must not be called while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("email", CircuitBreakerConfig{FailureThreshold: 2})
	failN(t, cb, 5, &StatusError{Service: "resend", StatusCode: 422})

	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("email", CircuitBreakerConfig{FailureThreshold: 3})
	failN(t, cb, 2, errUnavailable)
	_ = cb.Execute(context.Background(), func(context.Context) error { return nil })
	failN(t, cb, 2, errUnavailable)

	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("email", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.now = func() time.Time { return now }

	failN(t, cb, 1, errUnavailable)
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	now = now.Add(11 * time.Second)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %s, want half-open", cb.State())
	}

	if err := cb.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want closed after probe", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("email", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.now = func() time.Time { return now }

	failN(t, cb, 1, errUnavailable)
	now = now.Add(11 * time.Second)
	failN(t, cb, 1, errUnavailable)

	if cb.State() != CircuitOpen {
		t.Errorf("state = %s, want open", cb.State())
	}
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker("sec", DefaultCircuitBreakerConfig())
	got, err := ExecuteVal(context.Background(), cb, func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("got %d, %v", got, err)
	}
}

func TestBreakers_SharesPerService(t *testing.T) {
	b := NewBreakers(CircuitBreakerConfig{FailureThreshold: 1})
	if b.Get("email") != b.Get("email") {
		t.Error("expected the same breaker for one service")
	}
	failN(t, b.Get("email"), 1, errUnavailable)

	states := b.States()
	if states["email"] != CircuitOpen {
		t.Errorf("email = %s, want open", states["email"])
	}
	if b.Get("sec").State() != CircuitClosed {
		t.Error("sec breaker should be independent")
	}
}
