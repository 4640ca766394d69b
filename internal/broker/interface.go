package broker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// MarketData defines the read-only interface the tools consume.
type MarketData interface {
	GetQuote(symbol string) (*QuoteItem, error)
	GetQuotes(symbols []string) ([]QuoteItem, error)
	GetExpirations(symbol string) ([]string, error)
	GetOptionChain(symbol, expiration string, withGreeks bool) ([]Option, error)
	GetOptionChainCtx(ctx context.Context, symbol, expiration string, withGreeks bool) ([]Option, error)
	GetMarketClock(delayed bool) (*MarketClockResponse, error)
	GetMarketCalendar(month, year int) (*MarketCalendarResponse, error)
	GetHistoricalData(symbol string, interval string, startDate, endDate time.Time) ([]HistoricalDataPoint, error)
	IsTradingDay(delayed bool) (bool, error)
}

// Ensure TradierAPI implements MarketData at compile time.
var _ MarketData = (*TradierAPI)(nil)

// isPermanentAPIError checks if an error is a permanent API error.
// 4xx errors are permanent except 429 Too Many Requests, which is retryable.
func isPermanentAPIError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != 429
	}
	return false
}

// CircuitBreakerClient wraps a MarketData client with circuit breaker
// functionality so a flapping API does not stall the polling tools.
type CircuitBreakerClient struct {
	client  MarketData
	breaker *gobreaker.CircuitBreaker
}

// Ensure CircuitBreakerClient implements MarketData at compile time.
var _ MarketData = (*CircuitBreakerClient)(nil)

// exec is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	client MarketData,
	fn func(MarketData) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(client) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerClient creates a CircuitBreakerClient with sensible defaults.
func NewCircuitBreakerClient(client MarketData) *CircuitBreakerClient {
	return NewCircuitBreakerClientWithSettings(client, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// NewCircuitBreakerClientWithSettings creates a CircuitBreakerClient with custom settings.
func NewCircuitBreakerClientWithSettings(client MarketData, settings CircuitBreakerSettings) *CircuitBreakerClient {
	gbSettings := gobreaker.Settings{
		Name:        "MarketDataCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.Warnf("circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// GetQuote wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) GetQuote(symbol string) (*QuoteItem, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) (*QuoteItem, error) { return m.GetQuote(symbol) })
}

// GetQuotes wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) GetQuotes(symbols []string) ([]QuoteItem, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) ([]QuoteItem, error) { return m.GetQuotes(symbols) })
}

// GetExpirations wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) GetExpirations(symbol string) ([]string, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) ([]string, error) { return m.GetExpirations(symbol) })
}

// GetOptionChain wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) GetOptionChain(symbol, expiration string, withGreeks bool) ([]Option, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) ([]Option, error) {
		return m.GetOptionChain(symbol, expiration, withGreeks)
	})
}

// GetOptionChainCtx wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) GetOptionChainCtx(ctx context.Context, symbol, expiration string, withGreeks bool) ([]Option, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) ([]Option, error) {
		return m.GetOptionChainCtx(ctx, symbol, expiration, withGreeks)
	})
}

// GetMarketClock wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) GetMarketClock(delayed bool) (*MarketClockResponse, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) (*MarketClockResponse, error) {
		return m.GetMarketClock(delayed)
	})
}

// GetMarketCalendar wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) GetMarketCalendar(month, year int) (*MarketCalendarResponse, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) (*MarketCalendarResponse, error) {
		return m.GetMarketCalendar(month, year)
	})
}

// GetHistoricalData wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) GetHistoricalData(symbol string, interval string, startDate, endDate time.Time) ([]HistoricalDataPoint, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) ([]HistoricalDataPoint, error) {
		return m.GetHistoricalData(symbol, interval, startDate, endDate)
	})
}

// IsTradingDay wraps the underlying client call with circuit breaker
func (c *CircuitBreakerClient) IsTradingDay(delayed bool) (bool, error) {
	return execCircuitBreaker(c.breaker, c.client, func(m MarketData) (bool, error) {
		return m.IsTradingDay(delayed)
	})
}
