// Package watcher polls prices and alerts once when a symbol enters its buy
// or sell zone.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/connectors"
)

// Notifier delivers alert text to the owner.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type zoneState struct {
	notifiedBuy  bool
	notifiedSell bool
}

type Watcher struct {
	source     connectors.PriceSource
	notifier   Notifier
	zones      []Zone
	interval   time.Duration
	maxBackoff time.Duration

	states   map[string]*zoneState
	failures int
}

func New(source connectors.PriceSource, notifier Notifier, zones []Zone, interval, maxBackoff time.Duration) *Watcher {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	if maxBackoff < interval {
		maxBackoff = interval
	}
	states := make(map[string]*zoneState, len(zones))
	for _, z := range zones {
		states[z.Symbol] = &zoneState{}
	}
	return &Watcher{
		source:     source,
		notifier:   notifier,
		zones:      zones,
		interval:   interval,
		maxBackoff: maxBackoff,
		states:     states,
	}
}

// Run checks all zones every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	logger.WithFields(map[string]interface{}{
		"zones":    len(w.zones),
		"interval": w.interval.String(),
	}).Info("Price watcher started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Price watcher stopped")
			return nil

		case <-timer.C:
			timer.Reset(w.Check(ctx))
		}
	}
}

// Check runs one pass over the zones and returns the delay before the next one.
func (w *Watcher) Check(ctx context.Context) time.Duration {
	failed := false
	for _, z := range w.zones {
		if ctx.Err() != nil {
			break
		}
		if err := w.checkZone(ctx, z); err != nil {
			failed = true
			logger.WithFields(map[string]interface{}{
				"service": "Watcher",
				"symbol":  z.Symbol,
			}).WithError(err).Warn("Price check failed")
		}
	}

	if !failed {
		w.failures = 0
		return w.interval
	}
	w.failures++
	return w.backoff()
}

func (w *Watcher) backoff() time.Duration {
	d := w.interval
	for i := 0; i < w.failures && d < w.maxBackoff; i++ {
		d *= 2
	}
	if d > w.maxBackoff {
		d = w.maxBackoff
	}
	return d
}

func (w *Watcher) checkZone(ctx context.Context, z Zone) error {
	price, err := w.source.LastPrice(ctx, z.Symbol)
	if err != nil {
		return err
	}
	st := w.states[z.Symbol]

	switch {
	case price.LessThan(z.Buy) && !st.notifiedBuy:
		if err := w.notifier.Notify(ctx, buyAlert(z.Symbol, price)); err != nil {
			return fmt.Errorf("notify buy zone: %w", err)
		}
		st.notifiedBuy, st.notifiedSell = true, false
	case price.GreaterThan(z.Sell) && !st.notifiedSell:
		if err := w.notifier.Notify(ctx, sellAlert(z.Symbol, price)); err != nil {
			return fmt.Errorf("notify sell zone: %w", err)
		}
		st.notifiedSell, st.notifiedBuy = true, false
	}
	return nil
}

func buyAlert(symbol string, price decimal.Decimal) string {
	return fmt.Sprintf("📉 <b>%s</b> dropped to $%s, entry zone!", symbol, price.StringFixed(2))
}

func sellAlert(symbol string, price decimal.Decimal) string {
	return fmt.Sprintf("📈 <b>%s</b> reached $%s, profit taking zone!", symbol, price.StringFixed(2))
}
