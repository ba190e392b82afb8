package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestDefaultPolicyDoesNotRetry(t *testing.T) {
	exec := NewExecutor(Policy{BreakerEnabled: false}, nil)

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "status", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) Outcome {
		return Outcome{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestCallRetriesWhenPolicyAllows(t *testing.T) {
	exec := NewExecutor(Policy{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}, nil)

	attempts := 0
	errTemp := errors.New("temporary")
	got, err := Call(context.Background(), exec, "package", func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errTemp
		}
		return "ok", nil
	}, func(err error) Outcome {
		return Outcome{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got != "ok" || attempts != 3 {
		t.Fatalf("expected ok after 3 attempts, got %q after %d", got, attempts)
	}
}

func TestCallWithNilExecutorRunsDirectly(t *testing.T) {
	got, err := Call(context.Background(), nil, "direct", func(context.Context) (int, error) {
		return 42, nil
	}, nil)
	if err != nil || got != 42 {
		t.Fatalf("expected 42, got %d err=%v", got, err)
	}
}

func TestExecuteOpensCircuitAndNotifiesListener(t *testing.T) {
	var transitions []string
	exec := NewExecutor(Policy{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, func(_, from, to string) {
		transitions = append(transitions, from+"->"+to)
	})

	errDown := errors.New("backend down")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "get_package", func(context.Context) error {
			return errDown
		}, nil)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected backend error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "get_package", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
}

func TestIgnoredFailuresDoNotTripBreaker(t *testing.T) {
	exec := NewExecutor(Policy{
		BreakerEnabled:      true,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 0.1,
	}, nil)

	errMissing := errors.New("not found")
	for i := 0; i < 5; i++ {
		err := exec.Execute(context.Background(), "get_package", func(context.Context) error {
			return errMissing
		}, func(error) Outcome {
			return Outcome{Retryable: false, RecordFailure: false}
		})
		if !errors.Is(err, errMissing) {
			t.Fatalf("expected not found on iteration %d, got %v", i, err)
		}
	}
}
