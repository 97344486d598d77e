// Package connectors fetches current market prices from exchanges.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNoPrice    = errors.New("no price available")
	ErrStalePrice = errors.New("price is stale")
)

// PriceSource returns the last traded price of symbol against the configured
// quote currency.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// NewPriceSource builds the source selected by PRICE_SOURCE. A stream source
// must be started with Run before it returns prices.
func NewPriceSource(cfg Config) (PriceSource, error) {
	switch strings.ToLower(cfg.PriceSource) {
	case SourceMEXC, "":
		return NewMEXCClient(cfg.MEXCBaseURL, cfg.Quote), nil
	case SourceBinance:
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		return NewBinanceREST(&http.Client{Timeout: timeout}, cfg.BinanceBaseURL, cfg.Quote), nil
	case SourceStream:
		return NewBinanceStream(cfg.BinanceStreamURL, cfg.Quote, cfg.StreamSymbols, cfg.StreamMaxAge), nil
	default:
		return nil, fmt.Errorf("unknown PRICE_SOURCE %q", cfg.PriceSource)
	}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", raw, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("price %s: %w", p, ErrNoPrice)
	}
	return p, nil
}
