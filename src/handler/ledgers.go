package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/journal"
	"tradejournal/src/model"
	"tradejournal/src/store"
)

type ledgerReader interface {
	Symbols(ctx context.Context) ([]string, error)
	Get(ctx context.Context, symbol string) (journal.Status, error)
}

type ledgerSummary struct {
	Symbol       string `json:"symbol"`
	AveragePrice string `json:"average_price"`
	AssetTotal   string `json:"asset_total"`
	CapitalTotal string `json:"capital_total"`
	Events       int    `json:"events"`
}

type ledgerDetail struct {
	Symbol string       `json:"symbol"`
	Status string       `json:"status"`
	Drift  string       `json:"drift"`
	Ledger model.Ledger `json:"ledger"`
}

// ListLedgersHandler returns a summary of every tracked ledger.
func ListLedgersHandler(ledgers ledgerReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbols, err := ledgers.Symbols(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to list ledgers")
			http.Error(w, "Failed to list ledgers", http.StatusInternalServerError)
			return
		}

		out := make([]ledgerSummary, 0, len(symbols))
		for _, sym := range symbols {
			st, err := ledgers.Get(r.Context(), sym)
			if err != nil {
				logger.WithError(err).WithField("symbol", sym).Error("failed to read ledger")
				http.Error(w, "Failed to read ledger", http.StatusInternalServerError)
				return
			}
			out = append(out, ledgerSummary{
				Symbol:       st.Symbol,
				AveragePrice: st.Ledger.AveragePrice.String(),
				AssetTotal:   st.Ledger.AssetTotal.String(),
				CapitalTotal: st.Ledger.CapitalTotal.String(),
				Events:       len(st.Ledger.History),
			})
		}
		writeJSON(w, out)
	}
}

// GetLedgerHandler returns one ledger with its full history.
func GetLedgerHandler(ledgers ledgerReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := ledgers.Get(r.Context(), chi.URLParam(r, "symbol"))
		if err != nil {
			if errors.Is(err, store.ErrInvalidSymbol) {
				http.Error(w, "invalid symbol", http.StatusBadRequest)
				return
			}
			logger.WithError(err).Error("failed to read ledger")
			http.Error(w, "Failed to read ledger", http.StatusInternalServerError)
			return
		}
		if st.Load == store.StatusNotFound {
			http.Error(w, "ledger not found", http.StatusNotFound)
			return
		}
		writeJSON(w, ledgerDetail{
			Symbol: st.Symbol,
			Status: st.Load.String(),
			Drift:  st.Drift.String(),
			Ledger: st.Ledger,
		})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}
