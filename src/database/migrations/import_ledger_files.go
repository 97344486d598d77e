package migrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradejournal/src/model"
	"tradejournal/src/store"
)

// importLedgerFiles copies the JSON ledgers of a file backend into
// ledger_records. Symbols that already have a row are left alone, as are
// files that cannot be parsed. A legacy data.json is imported under
// defaultSymbol unless that symbol has its own file.
func importLedgerFiles(dir, defaultSymbol string) func(*gorm.DB) error {
	return func(tx *gorm.DB) error {
		if dir == "" {
			return nil
		}
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			return nil
		}

		files, err := store.NewFileStore(dir)
		if err != nil {
			return err
		}
		ctx := context.Background()
		symbols, err := files.Symbols(ctx)
		if err != nil {
			return err
		}

		imported := 0
		for _, sym := range symbols {
			l, status, err := files.Load(ctx, sym)
			if err != nil {
				return fmt.Errorf("load %s: %w", sym, err)
			}
			ok, err := importLedger(tx, sym, l, status)
			if err != nil {
				return err
			}
			if ok {
				imported++
			}
		}

		if defaultSymbol != "" {
			sym, err := store.NormalizeSymbol(defaultSymbol)
			if err != nil {
				return fmt.Errorf("default symbol: %w", err)
			}
			l, status, err := files.LoadLegacy(ctx)
			if err != nil {
				return fmt.Errorf("load %s: %w", store.LegacyFile, err)
			}
			ok, err := importLedger(tx, sym, l, status)
			if err != nil {
				return err
			}
			if ok {
				imported++
			}
		}

		logrus.WithFields(map[string]interface{}{
			"dir":      dir,
			"imported": imported,
		}).Info("[migrations] ledger files imported")
		return nil
	}
}

func importLedger(tx *gorm.DB, sym string, l model.Ledger, status store.LoadStatus) (bool, error) {
	if status != store.StatusFound {
		return false, nil
	}

	var n int64
	if err := tx.Model(&model.LedgerRecord{}).Where("symbol = ?", sym).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	doc, err := json.Marshal(l)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", sym, err)
	}
	if err := tx.Create(&model.LedgerRecord{Symbol: sym, Document: string(doc), Version: 1}).Error; err != nil {
		return false, fmt.Errorf("insert %s: %w", sym, err)
	}
	return true, nil
}
