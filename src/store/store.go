// Package store persists position ledgers, one record per asset symbol, with
// whole-ledger read and overwrite semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tradejournal/src/model"
)

var (
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrVersionConflict = errors.New("ledger was modified concurrently")
)

// LoadStatus tells how Load produced its ledger.
type LoadStatus int

const (
	StatusFound LoadStatus = iota
	StatusNotFound
	// StatusCorrupt means a record existed but could not be parsed; an empty
	// ledger was returned in its place.
	StatusCorrupt
)

func (s LoadStatus) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusCorrupt:
		return "corrupt"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Store is implemented by every ledger backend.
type Store interface {
	// Load returns the persisted ledger, or the zero ledger when the record is
	// missing or unreadable. Only I/O failures are returned as errors.
	Load(ctx context.Context, symbol string) (model.Ledger, LoadStatus, error)
	// Save atomically replaces the record for symbol.
	Save(ctx context.Context, symbol string, l model.Ledger) error
	// Reset replaces the record with the zero ledger.
	Reset(ctx context.Context, symbol string) error
	// Symbols lists the symbols that have a record.
	Symbols(ctx context.Context) ([]string, error)
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,20}$`)

// NormalizeSymbol upper-cases symbol and rejects anything that is not a plain
// ticker. A trailing quote currency such as "USDT" is kept.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(s) {
		return "", fmt.Errorf("%q: %w", symbol, ErrInvalidSymbol)
	}
	return s, nil
}
