package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream 503")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type transition struct{ from, to State }

func newTestBreaker() (*CircuitBreaker, *fakeClock, *[]transition) {
	clock := &fakeClock{t: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)}
	var seen []transition
	cb := New(Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          10 * time.Second,
		Component:        "weather_api",
		Now:              clock.Now,
		OnStateChange: func(_ string, from, to State) {
			seen = append(seen, transition{from, to})
		},
	})
	return cb, clock, &seen
}

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _, seen := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Call(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d error = %v, want upstream error", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Call(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("Call() while open error = %v, want ErrOpen", err)
	}
	if called {
		t.Fatal("fn called while circuit open")
	}
	if len(*seen) != 1 || (*seen)[0] != (transition{StateClosed, StateOpen}) {
		t.Errorf("transitions = %v, want [closed->open]", *seen)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _, _ := newTestBreaker()
	ctx := context.Background()
	_ = cb.Call(ctx, fail)
	_ = cb.Call(ctx, fail)
	_ = cb.Call(ctx, succeed)
	_ = cb.Call(ctx, fail)
	_ = cb.Call(ctx, fail)
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock, seen := newTestBreaker()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, fail)
	}

	clock.Advance(11 * time.Second)
	if err := cb.Call(ctx, succeed); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() after one probe = %v, want half_open", cb.State())
	}
	if err := cb.Call(ctx, succeed); err != nil {
		t.Fatalf("second probe error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}

	want := []transition{{StateClosed, StateOpen}, {StateOpen, StateHalfOpen}, {StateHalfOpen, StateClosed}}
	if len(*seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", *seen, want)
	}
	for i := range want {
		if (*seen)[i] != want[i] {
			t.Errorf("transition[%d] = %v, want %v", i, (*seen)[i], want[i])
		}
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock, _ := newTestBreaker()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, fail)
	}
	clock.Advance(11 * time.Second)
	_ = cb.Call(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open after failed probe", cb.State())
	}
	if err := cb.Call(ctx, succeed); !errors.Is(err, ErrOpen) {
		t.Fatalf("Call() error = %v, want ErrOpen (cool-down restarted)", err)
	}
}

func TestCircuitBreaker_CallerCancellationIgnored(t *testing.T) {
	cb, _, _ := newTestBreaker()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = cb.Call(ctx, func(context.Context) error { return context.Canceled })
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed; cancellations must not trip the breaker", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half_open", State(9): "unknown"}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
