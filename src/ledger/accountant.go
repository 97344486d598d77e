// Package ledger computes the next state of a position ledger from a trade
// event. Everything here works on values; persistence belongs to the caller.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/src/model"
)

var hundred = decimal.NewFromInt(100)

// now stamps new events. Tests replace it.
var now = func() time.Time { return time.Now().UTC() }

// FixResult is the outcome of closing part of a position.
type FixResult struct {
	Ledger model.Ledger
	// Closed is the asset quantity taken out of the position.
	Closed decimal.Decimal
	// Gained is the USDT received for the closed quantity.
	Gained decimal.Decimal
	// Realized is the profit against the average entry price.
	Realized decimal.Decimal
}

// Add records a purchase of amount units at price and recomputes the
// weighted average entry price.
func Add(l model.Ledger, price, amount decimal.Decimal) (model.Ledger, error) {
	if err := checkInputs(price, amount); err != nil {
		return l, err
	}
	if !price.IsPositive() {
		return l, fmt.Errorf("price %s: %w", price, ErrNotPositive)
	}
	if !amount.IsPositive() {
		return l, fmt.Errorf("amount %s: %w", amount, ErrNotPositive)
	}

	capital := l.CapitalTotal.Add(price.Mul(amount))
	asset := l.AssetTotal.Add(amount)
	if !asset.IsPositive() {
		return l, fmt.Errorf("asset total %s: %w", asset, ErrEmptyPositionAfter)
	}

	return model.Ledger{
		AveragePrice: capital.Div(asset),
		AssetTotal:   asset,
		CapitalTotal: capital,
		History:      appendEvent(l.History, model.ActionAdd, price, amount),
	}, nil
}

// Fix closes percent of the held quantity at price. The average entry price of
// the remaining quantity is left as it is.
func Fix(l model.Ledger, price, percent decimal.Decimal) (FixResult, error) {
	if err := checkInputs(price, percent); err != nil {
		return FixResult{Ledger: l}, err
	}
	if !price.IsPositive() {
		return FixResult{Ledger: l}, fmt.Errorf("price %s: %w", price, ErrNotPositive)
	}
	if !percent.IsPositive() || percent.GreaterThan(hundred) {
		return FixResult{Ledger: l}, fmt.Errorf("percent %s: %w", percent, ErrPercentOutOfRange)
	}
	if !l.AssetTotal.IsPositive() {
		return FixResult{Ledger: l}, ErrNoOpenPosition
	}

	closed := l.AssetTotal.Mul(percent).Div(hundred)
	if percent.Equal(hundred) {
		closed = l.AssetTotal
	}
	asset := l.AssetTotal.Sub(closed)
	capital := l.CapitalTotal.Sub(l.AveragePrice.Mul(closed))
	if asset.IsZero() {
		// a fully closed position carries no capital, whatever rounding left behind
		capital = decimal.Zero
	}

	return FixResult{
		Ledger: model.Ledger{
			AveragePrice: l.AveragePrice,
			AssetTotal:   asset,
			CapitalTotal: capital,
			History:      appendEvent(l.History, model.ActionFix, price, closed),
		},
		Closed:   closed,
		Gained:   closed.Mul(price),
		Realized: price.Sub(l.AveragePrice).Mul(closed),
	}, nil
}

func checkInputs(values ...decimal.Decimal) error {
	for _, v := range values {
		// printing v would expand the exponent being rejected
		if err := checkBounds(v); err != nil {
			return err
		}
	}
	return nil
}

// Drift measures how far capital_total has moved away from
// average_price * asset_total.
func Drift(l model.Ledger) decimal.Decimal {
	return l.CapitalTotal.Sub(l.AveragePrice.Mul(l.AssetTotal)).Abs()
}

// Unrealized is the profit of the open position valued at price.
func Unrealized(l model.Ledger, price decimal.Decimal) decimal.Decimal {
	return price.Sub(l.AveragePrice).Mul(l.AssetTotal)
}

func appendEvent(history []model.Event, action model.Action, price, amount decimal.Decimal) []model.Event {
	at := now()
	out := make([]model.Event, len(history), len(history)+1)
	copy(out, history)
	return append(out, model.Event{Action: action, Price: price, Amount: amount, Time: &at})
}
