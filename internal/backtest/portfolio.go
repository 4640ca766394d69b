package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one executed rebalance in the ledger.
type Trade struct {
	Date   time.Time
	Side   string // "buy" | "sell"
	Shares decimal.Decimal
	Price  decimal.Decimal
	Value  decimal.Decimal
}

// Portfolio is a long-only cash/shares ledger kept in decimals so
// repeated rebalances do not accumulate float drift.
type Portfolio struct {
	Cash       decimal.Decimal
	Shares     decimal.Decimal
	Commission decimal.Decimal // per executed trade
	Trades     []Trade
}

// NewPortfolio creates a ledger with the given starting cash.
func NewPortfolio(initialCash, commission float64) *Portfolio {
	return &Portfolio{
		Cash:       decimal.NewFromFloat(initialCash),
		Shares:     decimal.Zero,
		Commission: decimal.NewFromFloat(commission),
	}
}

// Equity is cash plus position value at the given price.
func (p *Portfolio) Equity(price float64) decimal.Decimal {
	return p.Cash.Add(p.Shares.Mul(decimal.NewFromFloat(price)))
}

// Allocation is the fraction of equity held in shares at the given price.
func (p *Portfolio) Allocation(price float64) float64 {
	equity := p.Equity(price)
	if equity.IsZero() {
		return 0
	}
	pos := p.Shares.Mul(decimal.NewFromFloat(price))
	f, _ := pos.Div(equity).Float64()
	return f
}

// Rebalance moves the position toward the target allocation fraction at
// the given price. Share counts are kept to four decimal places. A move
// smaller than the commission-adjusted minimum is skipped.
func (p *Portfolio) Rebalance(date time.Time, price float64, target float64) error {
	if price <= 0 {
		return fmt.Errorf("invalid price %.4f", price)
	}
	if target < 0 || target > 1 {
		return fmt.Errorf("target allocation %.4f out of [0,1]", target)
	}

	px := decimal.NewFromFloat(price)
	equity := p.Equity(price)
	targetValue := equity.Mul(decimal.NewFromFloat(target))
	currentValue := p.Shares.Mul(px)
	diff := targetValue.Sub(currentValue)

	if diff.Abs().LessThan(px) {
		// Less than one share of drift
		return nil
	}

	shares := diff.Div(px).Round(4)
	value := shares.Mul(px)

	if shares.IsPositive() {
		cost := value.Add(p.Commission)
		if cost.GreaterThan(p.Cash) {
			// Clip to what cash affords
			shares = p.Cash.Sub(p.Commission).Div(px).Round(4)
			if !shares.IsPositive() {
				return nil
			}
			value = shares.Mul(px)
			cost = value.Add(p.Commission)
		}
		p.Cash = p.Cash.Sub(cost)
		p.Shares = p.Shares.Add(shares)
		p.Trades = append(p.Trades, Trade{Date: date, Side: "buy", Shares: shares, Price: px, Value: value})
	} else {
		sell := shares.Neg()
		if sell.GreaterThan(p.Shares) {
			sell = p.Shares
		}
		if !sell.IsPositive() {
			return nil
		}
		value = sell.Mul(px)
		p.Cash = p.Cash.Add(value).Sub(p.Commission)
		p.Shares = p.Shares.Sub(sell)
		p.Trades = append(p.Trades, Trade{Date: date, Side: "sell", Shares: sell, Price: px, Value: value})
	}

	return nil
}
