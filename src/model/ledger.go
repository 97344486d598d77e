package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action identifies the kind of a ledger event.
type Action string

const (
	ActionAdd Action = "add"
	ActionFix Action = "fix"
)

const (
	// RowTimeLayout is used when a history entry is rendered for export.
	RowTimeLayout = "2006-01-02 15:04:05"
	// RowTimeMissing stands in for events recorded without a timestamp.
	RowTimeMissing = "-"
)

// Event is one immutable entry of a ledger history.
type Event struct {
	Action Action
	Price  decimal.Decimal
	Amount decimal.Decimal
	Time   *time.Time
}

// Ledger is the position of one asset symbol: weighted average entry price,
// held quantity, deployed capital and the chronological event history.
type Ledger struct {
	AveragePrice decimal.Decimal
	AssetTotal   decimal.Decimal
	CapitalTotal decimal.Decimal
	History      []Event
}

// ZeroLedger returns an empty position with no history.
func ZeroLedger() Ledger {
	return Ledger{
		AveragePrice: decimal.Zero,
		AssetTotal:   decimal.Zero,
		CapitalTotal: decimal.Zero,
		History:      []Event{},
	}
}

// IsZero reports whether the ledger holds nothing and has no history.
func (l Ledger) IsZero() bool {
	return l.AveragePrice.IsZero() && l.AssetTotal.IsZero() && l.CapitalTotal.IsZero() && len(l.History) == 0
}

// Equal compares two ledgers field by field, including the full history.
func (l Ledger) Equal(o Ledger) bool {
	if !l.AveragePrice.Equal(o.AveragePrice) ||
		!l.AssetTotal.Equal(o.AssetTotal) ||
		!l.CapitalTotal.Equal(o.CapitalTotal) ||
		len(l.History) != len(o.History) {
		return false
	}
	for i := range l.History {
		if !l.History[i].Equal(o.History[i]) {
			return false
		}
	}
	return true
}

// Equal compares two events. Timestamps are compared as instants.
func (e Event) Equal(o Event) bool {
	if e.Action != o.Action || !e.Price.Equal(o.Price) || !e.Amount.Equal(o.Amount) {
		return false
	}
	if e.Time == nil || o.Time == nil {
		return e.Time == nil && o.Time == nil
	}
	return e.Time.Equal(*o.Time)
}

// Row is the read-only view of a history entry handed to exporters.
type Row struct {
	Time   string
	Action Action
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Rows returns the history in insertion order.
func (l Ledger) Rows() []Row {
	rows := make([]Row, 0, len(l.History))
	for _, ev := range l.History {
		ts := RowTimeMissing
		if ev.Time != nil {
			ts = ev.Time.UTC().Format(RowTimeLayout)
		}
		rows = append(rows, Row{Time: ts, Action: ev.Action, Price: ev.Price, Amount: ev.Amount})
	}
	return rows
}

// ---------------------------------------------------------------------
// Durable JSON layout
// ---------------------------------------------------------------------

type ledgerDocument struct {
	AveragePrice json.Number     `json:"average_price"`
	AssetTotal   json.Number     `json:"asset_total"`
	CapitalTotal json.Number     `json:"capital_total"`
	History      []eventDocument `json:"history"`
}

type eventDocument struct {
	Action Action      `json:"action"`
	Price  json.Number `json:"price"`
	Amount json.Number `json:"amount"`
	Time   *time.Time  `json:"time,omitempty"`
}

// MarshalJSON writes the four top-level fields with exact decimal literals.
func (l Ledger) MarshalJSON() ([]byte, error) {
	doc := ledgerDocument{
		AveragePrice: json.Number(l.AveragePrice.String()),
		AssetTotal:   json.Number(l.AssetTotal.String()),
		CapitalTotal: json.Number(l.CapitalTotal.String()),
		History:      make([]eventDocument, 0, len(l.History)),
	}
	for _, ev := range l.History {
		doc.History = append(doc.History, eventDocument{
			Action: ev.Action,
			Price:  json.Number(ev.Price.String()),
			Amount: json.Number(ev.Amount.String()),
			Time:   ev.Time,
		})
	}
	return json.Marshal(doc)
}

// legacy single-asset keys written by the first version of the bot
var (
	averageKeys = []string{"average_price", "avg_price"}
	capitalKeys = []string{"capital_total", "usdt_total"}
)

// UnmarshalJSON reads the durable layout. The legacy layout
// (avg_price / <asset>_total / usdt_total) is accepted as well.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("ledger document is null")
	}

	avg, err := decimalField(raw, averageKeys...)
	if err != nil {
		return err
	}
	capital, err := decimalField(raw, capitalKeys...)
	if err != nil {
		return err
	}
	asset, err := decimalField(raw, assetKeys(raw)...)
	if err != nil {
		return err
	}

	history := []Event{}
	if msg, ok := raw["history"]; ok && !isNull(msg) {
		var docs []eventDocument
		if err := json.Unmarshal(msg, &docs); err != nil {
			return fmt.Errorf("history: %w", err)
		}
		for i, d := range docs {
			ev, err := d.event()
			if err != nil {
				return fmt.Errorf("history[%d]: %w", i, err)
			}
			history = append(history, ev)
		}
	}

	*l = Ledger{AveragePrice: avg, AssetTotal: asset, CapitalTotal: capital, History: history}
	return nil
}

func (d eventDocument) event() (Event, error) {
	if d.Action != ActionAdd && d.Action != ActionFix {
		return Event{}, fmt.Errorf("unknown action %q", d.Action)
	}
	price, err := numberToDecimal(d.Price)
	if err != nil {
		return Event{}, fmt.Errorf("price: %w", err)
	}
	amount, err := numberToDecimal(d.Amount)
	if err != nil {
		return Event{}, fmt.Errorf("amount: %w", err)
	}
	return Event{Action: d.Action, Price: price, Amount: amount, Time: d.Time}, nil
}

// assetKeys prefers asset_total, then the legacy "<asset>_total" keys in
// lexical order.
func assetKeys(raw map[string]json.RawMessage) []string {
	keys := []string{"asset_total"}
	if _, ok := raw["asset_total"]; ok {
		return keys
	}
	legacy := make([]string, 0, 1)
	for k := range raw {
		if !strings.HasSuffix(k, "_total") {
			continue
		}
		if k == "capital_total" || k == "usdt_total" {
			continue
		}
		legacy = append(legacy, k)
	}
	sort.Strings(legacy)
	return append(keys, legacy...)
}

func decimalField(raw map[string]json.RawMessage, keys ...string) (decimal.Decimal, error) {
	for _, k := range keys {
		msg, ok := raw[k]
		if !ok || isNull(msg) {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(msg, &n); err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", k, err)
		}
		d, err := numberToDecimal(n)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", k, err)
		}
		return d, nil
	}
	return decimal.Zero, nil
}

func numberToDecimal(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, fmt.Errorf("missing number")
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, err
	}
	// stored values stay within what the accountant can produce
	if v.Exponent() > maxStoredExponent || v.Exponent() < -maxStoredExponent {
		return decimal.Zero, fmt.Errorf("number %s out of range", n.String())
	}
	return v, nil
}

const maxStoredExponent = 64

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}
