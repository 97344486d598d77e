package migrations

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradejournal/src/model"
	"tradejournal/src/store"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.LedgerRecord{}, &DataMigration{}))
	return db
}

func TestRunOnceSkipsAppliedMigration(t *testing.T) {
	db := openDB(t)
	calls := 0
	fn := func(*gorm.DB) error { calls++; return nil }

	require.NoError(t, RunOnce(db, "x", fn))
	require.NoError(t, RunOnce(db, "x", fn))
	assert.Equal(t, 1, calls)
}

func TestImportLedgerFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	files, err := store.NewFileStore(dir)
	require.NoError(t, err)

	l := model.ZeroLedger()
	l.AveragePrice = decimal.NewFromInt(1800)
	l.AssetTotal = decimal.NewFromInt(2)
	l.CapitalTotal = decimal.NewFromInt(3600)
	require.NoError(t, files.Save(ctx, "ETH", l))
	require.NoError(t, files.Save(ctx, "BTC", model.ZeroLedger()))

	db := openDB(t)
	require.NoError(t, db.Create(&model.LedgerRecord{Symbol: "BTC", Document: "{}", Version: 3}).Error)

	require.NoError(t, Run(db, Options{DataDir: dir}))

	var recs []model.LedgerRecord
	require.NoError(t, db.Order("symbol").Find(&recs).Error)
	require.Len(t, recs, 2)
	assert.Equal(t, "BTC", recs[0].Symbol)
	assert.Equal(t, int64(3), recs[0].Version, "existing rows are not overwritten")
	assert.Equal(t, "ETH", recs[1].Symbol)
	assert.Contains(t, recs[1].Document, `"asset_total":2`)

	// second run is a no-op
	require.NoError(t, Run(db, Options{DataDir: dir}))
	var n int64
	require.NoError(t, db.Model(&DataMigration{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestImportLegacyFileUnderDefaultSymbol(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"avg_price": 1800, "eth_total": 2, "usdt_total": 3600, "history": [{"action": "add", "price": 1800, "amount": 2}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.LegacyFile), []byte(legacy), 0o644))

	db := openDB(t)
	require.NoError(t, Run(db, Options{DataDir: dir, DefaultSymbol: "eth"}))

	var recs []model.LedgerRecord
	require.NoError(t, db.Order("symbol").Find(&recs).Error)
	require.Len(t, recs, 1)
	assert.Equal(t, "ETH", recs[0].Symbol)
	assert.Contains(t, recs[0].Document, `"asset_total":2`)

	_, err := os.Stat(filepath.Join(dir, store.LegacyFile))
	assert.NoError(t, err, "import leaves the source file in place")
}

func TestImportLedgerFilesMissingDir(t *testing.T) {
	db := openDB(t)
	require.NoError(t, Run(db, Options{DataDir: t.TempDir() + "/nope"}))
}
