package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	streamBackoffMin = time.Second
	streamBackoffMax = time.Minute

	// miniTicker frames arrive every second; a silent connection is dead.
	streamReadTimeout = time.Minute
	streamWriteWait   = 10 * time.Second
)

type miniTickerMessage struct {
	Stream string `json:"stream"`
	Data   struct {
		Symbol string `json:"s"`
		Close  string `json:"c"`
	} `json:"data"`
}

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

// BinanceStream keeps the last miniTicker close of each subscribed symbol.
type BinanceStream struct {
	baseURL string
	quote   string
	symbols []string
	maxAge  time.Duration
	dialer  *websocket.Dialer
	now     func() time.Time

	// readTimeout is refreshed by every frame and ping.
	readTimeout time.Duration

	mu     sync.RWMutex
	prices map[string]cachedPrice
}

func NewBinanceStream(baseURL, quote string, symbols []string, maxAge time.Duration) *BinanceStream {
	if quote == "" {
		quote = "USDT"
	}
	syms := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			syms = append(syms, strings.ToUpper(s))
		}
	}
	return &BinanceStream{
		baseURL: strings.TrimRight(baseURL, "/"),
		quote:   strings.ToUpper(quote),
		symbols: syms,
		maxAge:  maxAge,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		},
		readTimeout: streamReadTimeout,
		now:         time.Now,
		prices:      map[string]cachedPrice{},
	}
}

func (s *BinanceStream) streamURL() string {
	names := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		names[i] = strings.ToLower(sym+s.quote) + "@miniTicker"
	}
	return s.baseURL + "/stream?streams=" + strings.Join(names, "/")
}

func (s *BinanceStream) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	key := strings.ToUpper(symbol) + s.quote

	s.mu.RLock()
	p, ok := s.prices[key]
	s.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", key, ErrNoPrice)
	}
	if s.maxAge > 0 && s.now().Sub(p.at) > s.maxAge {
		return decimal.Zero, fmt.Errorf("%s last seen %s: %w", key, p.at.Format(time.RFC3339), ErrStalePrice)
	}
	return p.price, nil
}

// Run reads the combined stream until ctx is done, reconnecting with
// exponential backoff.
func (s *BinanceStream) Run(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("binance stream: no symbols configured")
	}
	log := logger.WithFields(map[string]interface{}{
		"connector": "binance_stream",
		"url":       s.streamURL(),
	})

	backoff := streamBackoffMin
	for {
		started := time.Now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			log.Info("Binance stream stopped")
			return nil
		}
		if time.Since(started) > streamBackoffMax {
			backoff = streamBackoffMin
		}
		log.WithError(err).WithField("retry_in", backoff.String()).Warn("Binance stream disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > streamBackoffMax {
			backoff = streamBackoffMax
		}
	}
}

func (s *BinanceStream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	extend := func() error {
		return conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	}
	if err := extend(); err != nil {
		return fmt.Errorf("ws set deadline: %w", err)
	}
	conn.SetPingHandler(func(data string) error {
		if err := extend(); err != nil {
			return err
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(streamWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read failed: %w", err)
		}
		if err := extend(); err != nil {
			return fmt.Errorf("ws set deadline: %w", err)
		}
		s.handle(msg)
	}
}

func (s *BinanceStream) handle(msg []byte) {
	var m miniTickerMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		logger.WithError(err).WithField("raw", string(msg)).Debug("Ignoring unreadable stream frame")
		return
	}
	if m.Data.Symbol == "" {
		return
	}
	price, err := parsePrice(m.Data.Close)
	if err != nil {
		logger.WithError(err).WithField("symbol", m.Data.Symbol).Debug("Ignoring stream frame without price")
		return
	}

	s.mu.Lock()
	s.prices[strings.ToUpper(m.Data.Symbol)] = cachedPrice{price: price, at: s.now()}
	s.mu.Unlock()
}
