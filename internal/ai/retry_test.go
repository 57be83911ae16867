package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func classifyTransient(err error) (bool, time.Duration) {
	return errors.Is(err, errTransient), 0
}

func TestRetry(t *testing.T) {
	t.Parallel()

	fast := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	cases := []struct {
		name      string
		policy    RetryPolicy
		classify  Classifier
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{name: "first call succeeds", policy: fast, classify: classifyTransient, errs: []error{nil}, wantCalls: 1},
		{name: "retries transient", policy: fast, classify: classifyTransient, errs: []error{errTransient, errTransient, nil}, wantCalls: 3},
		{name: "exhausted", policy: fast, classify: classifyTransient, errs: []error{errTransient, errTransient, errTransient}, wantCalls: 3, wantErr: true},
		{name: "terminal error", policy: fast, classify: classifyTransient, errs: []error{errors.New("bad request")}, wantCalls: 1, wantErr: true},
		{name: "zero attempts means one", policy: RetryPolicy{}, classify: classifyTransient, errs: []error{errTransient}, wantCalls: 1, wantErr: true},
		{
			name:   "long server delay is terminal",
			policy: fast,
			classify: func(error) (bool, time.Duration) {
				return true, time.Minute
			},
			errs:      []error{errTransient},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			out, err := Retry(context.Background(), tc.policy, nil, tc.classify, func(context.Context) (string, error) {
				err := tc.errs[calls]
				calls++
				if err != nil {
					return "", err
				}
				return "ok", nil
			})

			if calls != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, calls)
			}
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil || out != "ok" {
				t.Fatalf("unexpected result %q, %v", out, err)
			}
		})
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}, nil, classifyTransient, func(context.Context) (string, error) {
		calls++
		cancel()
		return "", errTransient
	})

	if !errors.Is(err, context.Canceled) && !errors.Is(err, errTransient) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Duration{
		"quota exhausted, retry after 60 seconds": time.Minute,
		"Please retry in 1.5s.":                   1500 * time.Millisecond,
		"internal error":                          0,
	}
	for msg, want := range cases {
		if got := RetryAfter(msg); got != want {
			t.Fatalf("RetryAfter(%q) = %s, want %s", msg, got, want)
		}
	}
}
