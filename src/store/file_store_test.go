package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleLedger() model.Ledger {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return model.Ledger{
		AveragePrice: d("1833.3333333333333333"),
		AssetTotal:   d("1.5"),
		CapitalTotal: d("2750.00000000000000005"),
		History: []model.Event{
			{Action: model.ActionAdd, Price: d("1800"), Amount: d("2"), Time: &at},
			{Action: model.ActionAdd, Price: d("1900"), Amount: d("1"), Time: &at},
			{Action: model.ActionFix, Price: d("2000"), Amount: d("1.5")},
		},
	}
}

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "ledgers"))
	require.NoError(t, err)
	return s
}

func TestFileStoreLoadMissingReturnsZero(t *testing.T) {
	s := newFileStore(t)

	l, status, err := s.Load(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
	assert.True(t, l.IsZero())
	assert.NotNil(t, l.History)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	in := sampleLedger()

	require.NoError(t, s.Save(ctx, "ETH", in))

	out, status, err := s.Load(ctx, "eth")
	require.NoError(t, err)
	assert.Equal(t, StatusFound, status)
	assert.True(t, in.Equal(out))
}

func TestFileStoreResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	require.NoError(t, s.Save(ctx, "BTC", sampleLedger()))

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Reset(ctx, "BTC"))
		l, status, err := s.Load(ctx, "BTC")
		require.NoError(t, err)
		assert.Equal(t, StatusFound, status)
		assert.True(t, l.IsZero())
	}
}

func TestFileStoreCorruptIsQuarantined(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	p := filepath.Join(s.Dir(), "ETH.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"average_price": 18`), 0o644))

	l, status, err := s.Load(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, StatusCorrupt, status)
	assert.True(t, l.IsZero())

	_, statErr := os.Stat(p)
	assert.True(t, os.IsNotExist(statErr), "corrupt file should have been moved aside")

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "ETH.json.corrupt-") {
			found = true
			raw, err := os.ReadFile(filepath.Join(s.Dir(), e.Name()))
			require.NoError(t, err)
			assert.Equal(t, `{"average_price": 18`, string(raw))
		}
	}
	assert.True(t, found, "quarantined copy not found")

	// after quarantine the symbol is simply missing
	_, status, err = s.Load(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
}

func TestFileStoreReadsLegacyDocument(t *testing.T) {
	s := newFileStore(t)
	legacy := `{"avg_price": 1800, "eth_total": 2, "usdt_total": 3600, "history": [{"action": "add", "price": 1800, "amount": 2}]}`
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "ETH.json"), []byte(legacy), 0o644))

	l, status, err := s.Load(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, StatusFound, status)
	assert.True(t, l.AssetTotal.Equal(d("2")))
	assert.True(t, l.CapitalTotal.Equal(d("3600")))
	assert.Len(t, l.History, 1)
}

func TestFileStoreSymbols(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	require.NoError(t, s.Save(ctx, "eth", model.ZeroLedger()))
	require.NoError(t, s.Save(ctx, "BTC", model.ZeroLedger()))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))

	syms, err := s.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, syms)
}

func TestFileStoreLegacyFile(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	legacy := `{"avg_price": 1800, "eth_total": 2, "usdt_total": 3600, "history": []}`
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), LegacyFile), []byte(legacy), 0o644))

	syms, err := s.Symbols(ctx)
	require.NoError(t, err)
	assert.Empty(t, syms, "data.json is not a symbol")

	l, status, err := s.LoadLegacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFound, status)
	assert.True(t, l.AssetTotal.Equal(d("2")))

	adopted, err := s.AdoptLegacy(ctx, "eth")
	require.NoError(t, err)
	assert.True(t, adopted)

	syms, err = s.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH"}, syms)
	l, status, err = s.Load(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, StatusFound, status)
	assert.True(t, l.CapitalTotal.Equal(d("3600")))

	adopted, err = s.AdoptLegacy(ctx, "ETH")
	require.NoError(t, err)
	assert.False(t, adopted, "nothing left to adopt")
}

func TestFileStoreAdoptLegacyKeepsExistingLedger(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	require.NoError(t, s.Save(ctx, "ETH", sampleLedger()))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), LegacyFile), []byte(`{"avg_price": 1}`), 0o644))

	adopted, err := s.AdoptLegacy(ctx, "ETH")
	require.NoError(t, err)
	assert.False(t, adopted)

	l, _, err := s.Load(ctx, "ETH")
	require.NoError(t, err)
	assert.True(t, sampleLedger().Equal(l))
	_, err = os.Stat(filepath.Join(s.Dir(), LegacyFile))
	assert.NoError(t, err)
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, "SOL", sampleLedger()))
	}
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SOL.json", entries[0].Name())
}

func TestNormalizeSymbol(t *testing.T) {
	sym, err := NormalizeSymbol(" eth ")
	require.NoError(t, err)
	assert.Equal(t, "ETH", sym)

	for _, bad := range []string{"", "../etc", "ETH/USDT", strings.Repeat("A", 21)} {
		_, err := NormalizeSymbol(bad)
		assert.ErrorIs(t, err, ErrInvalidSymbol, bad)
	}
}
