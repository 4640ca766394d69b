// Package retry wraps market-data fetches with bounded retries and
// jittered exponential backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quarrydale/tradetools/internal/broker"
)

type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Do runs fn with retries on transient errors. The whole operation is
// bounded by cfg.Timeout on top of any deadline already on ctx.
func Do[T any](ctx context.Context, logger *logrus.Logger, cfg Config, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	opCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-opCtx.Done():
			return zero, fmt.Errorf("%s timed out after %v: %w", op, cfg.Timeout, opCtx.Err())
		default:
		}

		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s canceled: %w", op, ctx.Err())
		}

		result, err := fn(opCtx)
		if err == nil {
			if attempt > 0 {
				logger.Infof("%s succeeded on attempt %d", op, attempt+1)
			}
			return result, nil
		}

		lastErr = err
		logger.Warnf("%s attempt %d/%d failed: %v", op, attempt+1, cfg.MaxRetries+1, err)

		if IsTransient(err) && attempt < cfg.MaxRetries {
			logger.Debugf("transient error, retrying in %v", backoff)
			select {
			case <-time.After(backoff):
				backoff = nextBackoff(backoff, cfg.MaxBackoff)
			case <-opCtx.Done():
				return zero, fmt.Errorf("%s timed out during backoff: %w", op, opCtx.Err())
			case <-ctx.Done():
				return zero, fmt.Errorf("%s canceled during backoff: %w", op, ctx.Err())
			}
		} else {
			break
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxRetries+1, lastErr)
}

func nextBackoff(currentBackoff, maxBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			logrus.Warnf("failed to generate jitter: %v", err)
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

// IsTransient reports whether an error looks retryable: a 429 or 5xx
// API status, or a network-level failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *broker.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
