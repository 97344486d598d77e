package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
)

type tickerGetter interface {
	GetTicker(pair goex.CurrencyPair) (*goex.Ticker, error)
}

// BinanceREST reads spot tickers through the goex Binance client.
type BinanceREST struct {
	api   tickerGetter
	quote string
}

func NewBinanceREST(httpClient *http.Client, endpoint, quote string) *BinanceREST {
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}
	if quote == "" {
		quote = "USDT"
	}
	apiConfig := &goex.APIConfig{
		HttpClient: httpClient,
		Endpoint:   endpoint,
	}
	return &BinanceREST{api: binance.NewWithConfig(apiConfig), quote: quote}
}

func (b *BinanceREST) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	pair := goex.NewCurrencyPair(goex.Currency{Symbol: strings.ToUpper(symbol)}, goex.Currency{Symbol: b.quote})

	t, err := b.api.GetTicker(pair)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance ticker %s: %w", pair.String(), err)
	}
	if t == nil || t.Last <= 0 {
		return decimal.Zero, fmt.Errorf("binance ticker %s: %w", pair.String(), ErrNoPrice)
	}
	return decimal.NewFromFloat(t.Last), nil
}
