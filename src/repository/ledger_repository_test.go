package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradejournal/src/model"
	"tradejournal/src/store"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.LedgerRecord{}, &model.LedgerQuarantine{}, &model.Exception{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func sampleLedger(avg, asset, capital string) model.Ledger {
	return model.Ledger{
		AveragePrice: decimal.RequireFromString(avg),
		AssetTotal:   decimal.RequireFromString(asset),
		CapitalTotal: decimal.RequireFromString(capital),
		History: []model.Event{
			{Action: model.ActionAdd, Price: decimal.RequireFromString(avg), Amount: decimal.RequireFromString(asset)},
		},
	}
}

func TestLedgerRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepositoryWithDB(newSQLiteDB(t))

	l, status, err := repo.Load(ctx, "eth")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if status != store.StatusNotFound || !l.IsZero() {
		t.Fatalf("expected empty ledger for unknown symbol, got %s %+v", status, l)
	}

	in := sampleLedger("1800", "2", "3600")
	if err := repo.Save(ctx, "eth", in); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	out, status, err := repo.Load(ctx, "ETH")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if status != store.StatusFound {
		t.Fatalf("expected found, got %s", status)
	}
	if !in.Equal(out) {
		t.Fatalf("ledger changed across round trip: %+v vs %+v", in, out)
	}

	next := sampleLedger("1900", "3", "5700")
	if err := repo.Save(ctx, "ETH", next); err != nil {
		t.Fatalf("unexpected second save error: %v", err)
	}
	prev, err := repo.Previous(ctx, "ETH")
	if err != nil {
		t.Fatalf("unexpected previous error: %v", err)
	}
	if !strings.Contains(prev, `"average_price":1800`) {
		t.Fatalf("previous document not kept: %s", prev)
	}
}

func TestLedgerRepositoryResetAndSymbols(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepositoryWithDB(newSQLiteDB(t))

	for _, sym := range []string{"SOL", "BTC"} {
		if err := repo.Save(ctx, sym, sampleLedger("10", "1", "10")); err != nil {
			t.Fatalf("save %s: %v", sym, err)
		}
	}
	// reset without a prior load goes through the blind write path
	other := NewLedgerRepositoryWithDB(repo.db)
	if err := other.Reset(ctx, "SOL"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := other.Reset(ctx, "SOL"); err != nil {
		t.Fatalf("second reset: %v", err)
	}

	l, status, err := repo.Load(ctx, "SOL")
	if err != nil || status != store.StatusFound || !l.IsZero() {
		t.Fatalf("expected zero ledger after reset, got %s %+v %v", status, l, err)
	}

	syms, err := repo.Symbols(ctx)
	if err != nil {
		t.Fatalf("symbols: %v", err)
	}
	if len(syms) != 2 || syms[0] != "BTC" || syms[1] != "SOL" {
		t.Fatalf("unexpected symbols: %v", syms)
	}
}

func TestLedgerRepositoryCorruptDocument(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	if err := db.Create(&model.LedgerRecord{Symbol: "ETH", Document: `{"average_price":`, Version: 4}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewLedgerRepositoryWithDB(db)

	l, status, err := repo.Load(ctx, "ETH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != store.StatusCorrupt || !l.IsZero() {
		t.Fatalf("expected corrupt status and zero ledger, got %s %+v", status, l)
	}

	if err := repo.Save(ctx, "ETH", sampleLedger("5", "1", "5")); err != nil {
		t.Fatalf("save over corrupt: %v", err)
	}
	prev, err := repo.Previous(ctx, "ETH")
	if err != nil {
		t.Fatalf("previous: %v", err)
	}
	if prev != `{"average_price":` {
		t.Fatalf("unreadable document was not preserved, got %q", prev)
	}

	// later writes push it out of previous_document, the quarantine copy stays
	for i := 0; i < 2; i++ {
		if _, _, err := repo.Load(ctx, "ETH"); err != nil {
			t.Fatalf("reload: %v", err)
		}
		if err := repo.Save(ctx, "ETH", sampleLedger("6", "1", "6")); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	kept, err := repo.Quarantined(ctx, "ETH")
	if err != nil {
		t.Fatalf("quarantined: %v", err)
	}
	if len(kept) != 1 || kept[0].Document != `{"average_price":` || kept[0].Version != 4 {
		t.Fatalf("unexpected quarantine rows: %+v", kept)
	}
}

func TestLedgerRepositoryQuarantinesOncePerVersion(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	if err := db.Create(&model.LedgerRecord{Symbol: "BTC", Document: `not json`, Version: 2}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	repo := NewLedgerRepositoryWithDB(db)

	for i := 0; i < 3; i++ {
		if _, status, err := repo.Load(ctx, "BTC"); err != nil || status != store.StatusCorrupt {
			t.Fatalf("load %d: %s %v", i, status, err)
		}
	}
	kept, err := repo.Quarantined(ctx, "BTC")
	if err != nil {
		t.Fatalf("quarantined: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("expected a single quarantine row, got %d", len(kept))
	}
}

func TestLedgerRepositoryDetectsConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	a := NewLedgerRepositoryWithDB(db)
	b := NewLedgerRepositoryWithDB(db)

	t.Run("both create", func(t *testing.T) {
		if _, _, err := a.Load(ctx, "ETH"); err != nil {
			t.Fatal(err)
		}
		if _, _, err := b.Load(ctx, "ETH"); err != nil {
			t.Fatal(err)
		}
		if err := a.Save(ctx, "ETH", sampleLedger("1", "1", "1")); err != nil {
			t.Fatalf("first writer should win: %v", err)
		}
		err := b.Save(ctx, "ETH", sampleLedger("2", "2", "4"))
		if !errors.Is(err, store.ErrVersionConflict) {
			t.Fatalf("expected version conflict, got %v", err)
		}
	})

	t.Run("both update", func(t *testing.T) {
		if _, _, err := a.Load(ctx, "ETH"); err != nil {
			t.Fatal(err)
		}
		if _, _, err := b.Load(ctx, "ETH"); err != nil {
			t.Fatal(err)
		}
		if err := b.Save(ctx, "ETH", sampleLedger("3", "3", "9")); err != nil {
			t.Fatalf("first writer should win: %v", err)
		}
		err := a.Save(ctx, "ETH", sampleLedger("4", "4", "16"))
		if !errors.Is(err, store.ErrVersionConflict) {
			t.Fatalf("expected version conflict, got %v", err)
		}

		l, _, err := a.Load(ctx, "ETH")
		if err != nil {
			t.Fatal(err)
		}
		if !l.AveragePrice.Equal(decimal.NewFromInt(3)) {
			t.Fatalf("losing write leaked into the store: %+v", l)
		}
		// after reloading, the writer can proceed
		if err := a.Save(ctx, "ETH", sampleLedger("4", "4", "16")); err != nil {
			t.Fatalf("save after reload: %v", err)
		}
	})
}

func TestLedgerRepositorySwapAffectingNoRows(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := NewLedgerRepositoryWithDB(mockDB)

	rows := sqlmock.NewRows([]string{"symbol", "document", "previous_document", "version"}).
		AddRow("ETH", `{"average_price":1,"asset_total":1,"capital_total":1,"history":[]}`, "", 7)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "ledger_records" WHERE symbol = $1`)).
		WillReturnRows(rows)

	if _, status, err := repo.Load(context.Background(), "ETH"); err != nil || status != store.StatusFound {
		t.Fatalf("unexpected load result: %s %v", status, err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "ledger_records" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Save(context.Background(), "ETH", sampleLedger("2", "1", "2"))
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestExceptionRepositoryCreate(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewExceptionRepositoryWithDB(db)

	exc := &model.Exception{Service: "tradejournal", Module: "journal", Method: "Load", Message: "boom", Level: "warn"}
	if err := repo.Create(context.Background(), exc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if exc.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	var stored []model.Exception
	if err := db.Find(&stored).Error; err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Message != "boom" {
		t.Fatalf("unexpected stored exceptions: %+v", stored)
	}
}
