package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	SourceMEXC    = "mexc"
	SourceBinance = "binance"
	SourceStream  = "stream"
)

type Config struct {
	PriceSource string `envconfig:"PRICE_SOURCE" default:"mexc"` // mexc | binance | stream
	Quote       string `envconfig:"PRICE_QUOTE" default:"USDT"`

	MEXCBaseURL      string        `envconfig:"MEXC_BASE_URL" default:"https://www.mexc.com"`
	BinanceBaseURL   string        `envconfig:"BINANCE_BASE_URL" default:"https://api.binance.com"`
	BinanceStreamURL string        `envconfig:"BINANCE_STREAM_URL" default:"wss://stream.binance.com:9443"`
	StreamSymbols    []string      `envconfig:"STREAM_SYMBOLS" default:"ETH"`
	StreamMaxAge     time.Duration `envconfig:"STREAM_MAX_AGE" default:"2m"`

	// Bound on a single REST price request.
	RequestTimeout time.Duration `envconfig:"PRICE_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
