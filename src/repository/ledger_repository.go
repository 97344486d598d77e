package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradejournal/src/database"
	"tradejournal/src/model"
	"tradejournal/src/store"
)

// LedgerRepository is the SQL backend of store.Store. Writes are
// compare-and-swap on the row version observed by the last Load, so two
// processes sharing a database cannot silently overwrite each other.
type LedgerRepository struct {
	db *gorm.DB

	mu       sync.Mutex
	versions map[string]int64 // symbol -> version seen by the last Load/Save
}

var _ store.Store = (*LedgerRepository)(nil)

// NewLedgerRepository creates a repository on the main database.
func NewLedgerRepository() *LedgerRepository {
	return NewLedgerRepositoryWithDB(database.MainDB)
}

func NewLedgerRepositoryWithDB(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db, versions: map[string]int64{}}
}

func (r *LedgerRepository) observed(symbol string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.versions[symbol]
	return v, ok
}

func (r *LedgerRepository) observe(symbol string, version int64) {
	r.mu.Lock()
	r.versions[symbol] = version
	r.mu.Unlock()
}

func (r *LedgerRepository) Load(ctx context.Context, symbol string) (model.Ledger, store.LoadStatus, error) {
	sym, err := store.NormalizeSymbol(symbol)
	if err != nil {
		return model.ZeroLedger(), store.StatusNotFound, err
	}

	var rec model.LedgerRecord
	err = r.db.WithContext(ctx).Where("symbol = ?", sym).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.observe(sym, 0)
			return model.ZeroLedger(), store.StatusNotFound, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":   "LedgerRepository",
			"op":     "Load",
			"symbol": sym,
		}).WithError(err).Error("Failed to fetch ledger record")
		return model.ZeroLedger(), store.StatusNotFound, err
	}
	r.observe(sym, rec.Version)

	var l model.Ledger
	if err := json.Unmarshal([]byte(rec.Document), &l); err != nil {
		fields := map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "Load",
			"symbol":  sym,
			"version": rec.Version,
		}
		if qerr := r.quarantine(ctx, rec); qerr != nil {
			logger.WithFields(fields).WithError(qerr).Error("Failed to quarantine ledger document")
			return model.ZeroLedger(), store.StatusNotFound, fmt.Errorf("quarantine %s: %w", sym, qerr)
		}
		logger.WithFields(fields).WithError(err).Warn("Ledger document unreadable, starting from an empty ledger")
		return model.ZeroLedger(), store.StatusCorrupt, nil
	}
	return l, store.StatusFound, nil
}

// quarantine copies an unreadable document aside. Loading the same version
// again keeps the first copy.
func (r *LedgerRepository) quarantine(ctx context.Context, rec model.LedgerRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.LedgerQuarantine{Symbol: rec.Symbol, Version: rec.Version, Document: rec.Document}).Error
}

// Quarantined returns the unreadable documents kept for symbol, oldest first.
func (r *LedgerRepository) Quarantined(ctx context.Context, symbol string) ([]model.LedgerQuarantine, error) {
	sym, err := store.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	var out []model.LedgerQuarantine
	if err := r.db.WithContext(ctx).Where("symbol = ?", sym).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LedgerRepository) Save(ctx context.Context, symbol string, l model.Ledger) error {
	sym, err := store.NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", sym, err)
	}

	fields := map[string]interface{}{
		"repo":   "LedgerRepository",
		"op":     "Save",
		"symbol": sym,
	}

	version, seen := r.observed(sym)
	var next int64
	switch {
	case !seen:
		next, err = r.blindWrite(ctx, sym, string(doc))
	case version == 0:
		next, err = r.insert(ctx, sym, string(doc))
	default:
		next, err = r.swap(ctx, sym, string(doc), version)
	}
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			logger.WithFields(fields).WithField("version", version).Warn("Ledger version conflict")
		} else {
			logger.WithFields(fields).WithError(err).Error("Failed to save ledger record")
		}
		return err
	}

	r.observe(sym, next)
	logger.WithFields(fields).WithField("version", next).Debug("Ledger record saved")
	return nil
}

func (r *LedgerRepository) insert(ctx context.Context, sym, doc string) (int64, error) {
	rec := model.LedgerRecord{Symbol: sym, Document: doc, Version: 1}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || r.exists(ctx, sym) {
			return 0, fmt.Errorf("%s created elsewhere: %w", sym, store.ErrVersionConflict)
		}
		return 0, err
	}
	return 1, nil
}

func (r *LedgerRepository) exists(ctx context.Context, sym string) bool {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.LedgerRecord{}).Where("symbol = ?", sym).Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}

func (r *LedgerRepository) swap(ctx context.Context, sym, doc string, version int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.LedgerRecord{}).
		Where("symbol = ? AND version = ?", sym, version).
		Updates(map[string]interface{}{
			"previous_document": gorm.Expr("document"),
			"document":          doc,
			"version":           version + 1,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("%s at version %d: %w", sym, version, store.ErrVersionConflict)
	}
	return version + 1, nil
}

// blindWrite is used when nothing was loaded first, e.g. Reset.
func (r *LedgerRepository) blindWrite(ctx context.Context, sym, doc string) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.LedgerRecord
		err := tx.Where("symbol = ?", sym).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			next = 1
			return tx.Create(&model.LedgerRecord{Symbol: sym, Document: doc, Version: next}).Error
		}
		if err != nil {
			return err
		}
		next = rec.Version + 1
		return tx.Model(&model.LedgerRecord{}).
			Where("symbol = ?", sym).
			Updates(map[string]interface{}{
				"previous_document": rec.Document,
				"document":          doc,
				"version":           next,
				"updated_at":        time.Now().UTC(),
			}).Error
	})
	return next, err
}

func (r *LedgerRepository) Reset(ctx context.Context, symbol string) error {
	return r.Save(ctx, symbol, model.ZeroLedger())
}

func (r *LedgerRepository) Symbols(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.db.WithContext(ctx).
		Model(&model.LedgerRecord{}).
		Order("symbol").
		Pluck("symbol", &out).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "LedgerRepository",
			"op":   "Symbols",
		}).WithError(err).Error("Failed to list ledger symbols")
		return nil, err
	}
	return out, nil
}

// Previous returns the document replaced by the last write, if any.
func (r *LedgerRepository) Previous(ctx context.Context, symbol string) (string, error) {
	sym, err := store.NormalizeSymbol(symbol)
	if err != nil {
		return "", err
	}
	var rec model.LedgerRecord
	if err := r.db.WithContext(ctx).Where("symbol = ?", sym).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return rec.PreviousDocument, nil
}
