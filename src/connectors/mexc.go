package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 5 * time.Second

	mexcTickerPath = "/open/api/v2/market/ticker"
)

type mexcTickerResponse struct {
	Code int `json:"code"`
	Data []struct {
		Symbol string `json:"symbol"`
		Last   string `json:"last"`
	} `json:"data"`
}

// MEXCClient reads spot tickers from the public MEXC REST API.
type MEXCClient struct {
	baseURL string
	quote   string
	http    *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func NewMEXCClient(baseURL, quote string) *MEXCClient {
	if baseURL == "" {
		baseURL = "https://www.mexc.com"
		logger.Warnf("No MEXC base URL provided, using default: %s", baseURL)
	}
	if quote == "" {
		quote = "USDT"
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &MEXCClient{
		baseURL: baseURL,
		quote:   quote,
		http:    httpClient,
	}
}

func (c *MEXCClient) pair(symbol string) string {
	return strings.ToUpper(symbol) + "_" + c.quote
}

func (c *MEXCClient) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	pair := c.pair(symbol)

	var out mexcTickerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", pair).
		SetResult(&out).
		Get(mexcTickerPath)
	if err != nil {
		return decimal.Zero, fmt.Errorf("mexc ticker %s: %w", pair, err)
	}
	if resp.IsError() {
		logger.WithFields(map[string]interface{}{
			"connector": "mexc",
			"symbol":    pair,
			"status":    resp.StatusCode(),
		}).Warn("MEXC ticker request failed")
		return decimal.Zero, fmt.Errorf("mexc ticker %s: http %d", pair, resp.StatusCode())
	}
	if len(out.Data) == 0 {
		return decimal.Zero, fmt.Errorf("mexc ticker %s: %w", pair, ErrNoPrice)
	}

	return parsePrice(out.Data[0].Last)
}
