package retry

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quarrydale/tradetools/internal/broker"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Timeout:        time.Second,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	var calls int32
	got, err := Do(context.Background(), quietLogger(), fastConfig(), "fetch quote",
		func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 42, nil
		})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 42 || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("got %d after %d calls", got, calls)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	got, err := Do(context.Background(), quietLogger(), fastConfig(), "fetch chain",
		func(context.Context) (string, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return "", errors.New("connection reset by peer")
			}
			return "ok", nil
		})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("got = %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestDo_PermanentErrorNoRetry(t *testing.T) {
	var calls int32
	_, err := Do(context.Background(), quietLogger(), fastConfig(), "fetch quote",
		func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, &broker.APIError{Status: 404, Body: "not found"}
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on permanent error)", n)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int32
	_, err := Do(context.Background(), quietLogger(), fastConfig(), "fetch quote",
		func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, &broker.APIError{Status: 503, Body: "unavailable"}
		})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "after 4 attempts") {
		t.Fatalf("err = %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 4 {
		t.Fatalf("calls = %d, want 4", n)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, quietLogger(), fastConfig(), "fetch quote",
		func(context.Context) (int, error) {
			return 0, errors.New("should not matter")
		})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"api 429", &broker.APIError{Status: 429}, true},
		{"api 503", &broker.APIError{Status: 503}, true},
		{"api 404", &broker.APIError{Status: 404}, false},
		{"timeout string", errors.New("i/o timeout"), true},
		{"dns string", errors.New("dns lookup failed"), true},
		{"validation", errors.New("invalid symbol"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
