// Package journal runs the Load, compute, Save cycle of every ledger
// operation under a per-symbol lock.
package journal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/ledger"
	"tradejournal/src/model"
	"tradejournal/src/store"
)

// CorruptionHook is called when a persisted ledger could not be read and an
// empty one was used in its place.
type CorruptionHook func(ctx context.Context, symbol string)

type Journal struct {
	store          store.Store
	locks          *keyedMutex
	onCorrupt      CorruptionHook
	driftTolerance decimal.Decimal
}

type Option func(*Journal)

func WithCorruptionHook(fn CorruptionHook) Option {
	return func(j *Journal) { j.onCorrupt = fn }
}

// WithDriftTolerance sets how far capital_total may move away from
// average_price * asset_total before a warning is logged.
func WithDriftTolerance(tol decimal.Decimal) Option {
	return func(j *Journal) { j.driftTolerance = tol }
}

func New(s store.Store, opts ...Option) *Journal {
	j := &Journal{
		store:          s,
		locks:          newKeyedMutex(),
		driftTolerance: decimal.New(1, -6),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Status is a read of one symbol's ledger.
type Status struct {
	Symbol string
	Ledger model.Ledger
	Load   store.LoadStatus
	Drift  decimal.Decimal
}

func (j *Journal) Add(ctx context.Context, symbol string, price, amount decimal.Decimal) (model.Ledger, error) {
	var next model.Ledger
	err := j.update(ctx, "Add", symbol, func(l model.Ledger) (model.Ledger, error) {
		var err error
		next, err = ledger.Add(l, price, amount)
		return next, err
	})
	return next, err
}

func (j *Journal) Fix(ctx context.Context, symbol string, price, percent decimal.Decimal) (ledger.FixResult, error) {
	var res ledger.FixResult
	err := j.update(ctx, "Fix", symbol, func(l model.Ledger) (model.Ledger, error) {
		var err error
		res, err = ledger.Fix(l, price, percent)
		return res.Ledger, err
	})
	return res, err
}

func (j *Journal) Reset(ctx context.Context, symbol string) error {
	sym, err := store.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	unlock := j.locks.lock(sym)
	defer unlock()

	if err := j.store.Reset(ctx, sym); err != nil {
		return fmt.Errorf("reset %s: %w", sym, err)
	}
	logger.WithFields(map[string]interface{}{
		"service": "Journal",
		"op":      "Reset",
		"symbol":  sym,
	}).Info("Ledger reset")
	return nil
}

func (j *Journal) Get(ctx context.Context, symbol string) (Status, error) {
	sym, err := store.NormalizeSymbol(symbol)
	if err != nil {
		return Status{}, err
	}
	unlock := j.locks.lock(sym)
	defer unlock()

	l, status, err := j.load(ctx, "Get", sym)
	if err != nil {
		return Status{}, err
	}
	return Status{Symbol: sym, Ledger: l, Load: status, Drift: ledger.Drift(l)}, nil
}

// History returns the last n events, oldest first. n <= 0 returns all of them.
func (j *Journal) History(ctx context.Context, symbol string, n int) ([]model.Event, error) {
	st, err := j.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}
	events := st.Ledger.History
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	out := make([]model.Event, len(events))
	copy(out, events)
	return out, nil
}

func (j *Journal) Symbols(ctx context.Context) ([]string, error) {
	return j.store.Symbols(ctx)
}

// update holds the symbol lock across the whole cycle. Nothing is saved when
// compute fails.
func (j *Journal) update(ctx context.Context, op, symbol string, compute func(model.Ledger) (model.Ledger, error)) error {
	sym, err := store.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	unlock := j.locks.lock(sym)
	defer unlock()

	fields := map[string]interface{}{
		"service": "Journal",
		"op":      op,
		"symbol":  sym,
	}

	current, _, err := j.load(ctx, op, sym)
	if err != nil {
		return err
	}

	next, err := compute(current)
	if err != nil {
		logger.WithFields(fields).WithError(err).Info("Ledger operation rejected")
		return err
	}

	if err := j.store.Save(ctx, sym, next); err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to save ledger")
		return fmt.Errorf("save %s: %w", sym, err)
	}

	if drift := ledger.Drift(next); drift.GreaterThan(j.driftTolerance) {
		logger.WithFields(fields).WithField("drift", drift.String()).Warn("Capital total drifted from average * asset")
	}
	logger.WithFields(fields).WithFields(map[string]interface{}{
		"average_price": next.AveragePrice.String(),
		"asset_total":   next.AssetTotal.String(),
	}).Debug("Ledger updated")
	return nil
}

func (j *Journal) load(ctx context.Context, op, sym string) (model.Ledger, store.LoadStatus, error) {
	l, status, err := j.store.Load(ctx, sym)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"service": "Journal",
			"op":      op,
			"symbol":  sym,
		}).WithError(err).Error("Failed to load ledger")
		return l, status, fmt.Errorf("load %s: %w", sym, err)
	}
	if status == store.StatusCorrupt && j.onCorrupt != nil {
		j.onCorrupt(ctx, sym)
	}
	return l, status, nil
}
