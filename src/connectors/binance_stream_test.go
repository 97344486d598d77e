package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceStreamURL(t *testing.T) {
	s := NewBinanceStream("wss://stream.example:9443/", "usdt", []string{"eth", " btc ", ""}, time.Minute)
	assert.Equal(t, "wss://stream.example:9443/stream?streams=ethusdt@miniTicker/btcusdt@miniTicker", s.streamURL())
}

func TestBinanceStreamCachesPrices(t *testing.T) {
	queries := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"ethusdt@miniTicker","data":{"e":"24hrMiniTicker","s":"ETHUSDT","c":"1901.25"}}`))
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	s := NewBinanceStream("ws"+strings.TrimPrefix(server.URL, "http"), "USDT", []string{"ETH"}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := s.LastPrice(context.Background(), "eth")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	price, err := s.LastPrice(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("1901.25")))
	assert.Equal(t, "streams=ethusdt@miniTicker", <-queries)

	_, err = s.LastPrice(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrNoPrice)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestBinanceStreamStalePrice(t *testing.T) {
	s := NewBinanceStream("ws://unused", "USDT", []string{"ETH"}, time.Minute)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.handle([]byte(`{"data":{"s":"ETHUSDT","c":"1800"}}`))

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err := s.LastPrice(context.Background(), "ETH")
	assert.ErrorIs(t, err, ErrStalePrice)
}

func TestBinanceStreamDropsSilentConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	defer server.Close()
	defer close(release)

	s := NewBinanceStream("ws"+strings.TrimPrefix(server.URL, "http"), "USDT", []string{"ETH"}, time.Minute)
	s.readTimeout = 100 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- s.session(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "ws read failed")
	case <-time.After(5 * time.Second):
		t.Fatal("session kept waiting on a silent connection")
	}
}

func TestBinanceStreamPingExtendsDeadline(t *testing.T) {
	upgrader := websocket.Upgrader{}
	pongs := make(chan string, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPongHandler(func(data string) error {
			pongs <- data
			return nil
		})
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		for i := 0; i < 4; i++ {
			time.Sleep(50 * time.Millisecond)
			if err := conn.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{"s":"ETHUSDT","c":"1777"}}`))
		time.Sleep(time.Second)
	}))
	defer server.Close()

	s := NewBinanceStream("ws"+strings.TrimPrefix(server.URL, "http"), "USDT", []string{"ETH"}, time.Minute)
	s.readTimeout = 150 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- s.session(context.Background()) }()

	// four pings 50ms apart outlast a single 150ms deadline
	require.Eventually(t, func() bool {
		_, err := s.LastPrice(context.Background(), "ETH")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hb", <-pongs)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end after the server went quiet")
	}
}
