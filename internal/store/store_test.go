package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/model"
	"github.com/newthinker/stocksync/internal/unit"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "stocks.db"), LogLevel: "silent"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func day(d int) time.Time {
	return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC)
}

func TestOpen_ConfigErrors(t *testing.T) {
	_, err := Open(Options{Driver: "sqlite"}, nil)
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = Open(Options{Driver: "oracle", DSN: "x"}, nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestStore_MigrateCreatesTables(t *testing.T) {
	s := openTest(t)
	for _, m := range model.All() {
		assert.True(t, s.DB().Migrator().HasTable(m), "missing table for %T", m)
	}
	require.NoError(t, s.Ping(context.Background()))
	// Migrate is repeatable.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestTable_UpsertIsIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	bars := NewTable[model.DailyBar](s, BySymbol)

	first := []model.DailyBar{
		{Symbol: "600519", TradeDate: day(6), Close: unit.Float64(1700)},
		{Symbol: "600519", TradeDate: day(7), Close: unit.Float64(1710)},
	}
	n, err := bars.Upsert(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same batch again leaves the row count unchanged.
	_, err = bars.Upsert(ctx, []model.DailyBar{
		{Symbol: "600519", TradeDate: day(6), Close: unit.Float64(1700)},
		{Symbol: "600519", TradeDate: day(7), Close: unit.Float64(1710)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count(t, s.DB(), &model.DailyBar{}))

	// Existing key updates non-key fields, new key adds one row.
	_, err = bars.Upsert(ctx, []model.DailyBar{
		{Symbol: "600519", TradeDate: day(7), Close: unit.Float64(1725.5), Volume: ptr(int64(3200))},
		{Symbol: "600519", TradeDate: day(8), Close: unit.Float64(1730)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count(t, s.DB(), &model.DailyBar{}))

	var got model.DailyBar
	require.NoError(t, s.DB().Where("symbol = ? AND trade_date = ?", "600519", day(7)).First(&got).Error)
	require.NotNil(t, got.Close)
	assert.InDelta(t, 1725.5, *got.Close, 1e-9)
	require.NotNil(t, got.Volume)
	assert.Equal(t, int64(3200), *got.Volume)
}

func TestTable_ExistingKeys(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	bars := NewTable[model.DailyBar](s, BySymbol)

	_, err := bars.Upsert(ctx, []model.DailyBar{
		{Symbol: "600519", TradeDate: day(6)},
		{Symbol: "600519", TradeDate: day(7)},
		{Symbol: "000001", TradeDate: day(7)},
	})
	require.NoError(t, err)

	keys, err := bars.ExistingKeys(ctx, "600519")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "600519|2024-05-06")
	assert.Contains(t, keys, "600519|2024-05-07")
	assert.NotContains(t, keys, "000001|2024-05-07")

	all := NewTable[model.DailyBar](s, nil)
	keys, err = all.ExistingKeys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestTable_RankKeysIncludeSpan(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	ranks := NewTable[model.MoneyFlowRank](s, func(tx *gorm.DB, target string) *gorm.DB {
		return tx.Where("time_span = ?", target)
	})

	_, err := ranks.Upsert(ctx, []model.MoneyFlowRank{
		{Symbol: "300750", TradeDate: day(6), TimeSpan: 0, Name: "宁德时代"},
		{Symbol: "300750", TradeDate: day(6), TimeSpan: 3, Name: "宁德时代"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count(t, s.DB(), &model.MoneyFlowRank{}))

	keys, err := ranks.ExistingKeys(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"300750|2024-05-06|3": {}}, keys)
}

func TestTable_BasicInfoUpdatedInPlace(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	info := NewTable[model.BasicInfo](s, nil)

	_, err := info.Upsert(ctx, []model.BasicInfo{{Symbol: "300750", Name: "宁德时代", Status: "未知"}})
	require.NoError(t, err)
	_, err = info.Upsert(ctx, []model.BasicInfo{{Symbol: "300750", Name: "宁德时代", Industry: "电池", Status: "上市"}})
	require.NoError(t, err)

	var got model.BasicInfo
	require.NoError(t, s.DB().First(&got, "symbol = ?", "300750").Error)
	assert.Equal(t, "电池", got.Industry)
	assert.Equal(t, "上市", got.Status)
	assert.Equal(t, int64(1), count(t, s.DB(), &model.BasicInfo{}))

	symbols, err := s.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"300750"}, symbols)
}

func TestTranslate_DuplicateKeyIsConstraintViolation(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.DB().WithContext(ctx).Create(&model.BasicInfo{Symbol: "300750", Name: "宁德时代"}).Error)
	err := s.DB().WithContext(ctx).Create(&model.BasicInfo{Symbol: "300750", Name: "宁德时代"}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	err = translate(model.BasicInfo{}.TableName(), err)
	assert.ErrorIs(t, err, core.ErrConstraintViolation)
	assert.NotErrorIs(t, err, core.ErrStoreFailed)
	assert.Contains(t, err.Error(), model.BasicInfo{}.TableName())
}

func TestTranslate_OtherErrorsAreStoreFailures(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.Close())

	err := s.DB().Create(&model.BasicInfo{Symbol: "300750", Name: "宁德时代"}).Error
	require.Error(t, err)
	assert.ErrorIs(t, translate(model.BasicInfo{}.TableName(), err), core.ErrStoreFailed)
}

func TestTable_UpsertEmpty(t *testing.T) {
	s := openTest(t)
	n, err := NewTable[model.FundFlow](s, BySymbol).Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTable_UpdateColumns(t *testing.T) {
	s := openTest(t)
	cols, err := NewTable[model.FinancialReport](s, BySymbol).columns()
	require.NoError(t, err)
	assert.Contains(t, cols, "eps")
	assert.Contains(t, cols, "updated_at")
	assert.NotContains(t, cols, "id")
	assert.NotContains(t, cols, "symbol")
	assert.NotContains(t, cols, "report_type")
	assert.NotContains(t, cols, "created_at")
}

func count(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func ptr[T any](v T) *T {
	return &v
}
