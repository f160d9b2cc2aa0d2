package dataset

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stocksync/internal/cache"
	"github.com/newthinker/stocksync/internal/calendar"
	"github.com/newthinker/stocksync/internal/collector/eastmoney"
	"github.com/newthinker/stocksync/internal/collector/ths"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/ingest"
	"github.com/newthinker/stocksync/internal/model"
	"github.com/newthinker/stocksync/internal/storage/archive"
	"github.com/newthinker/stocksync/internal/store"
)

func d(day int) time.Time {
	return time.Date(2024, 5, day, 0, 0, 0, 0, time.UTC)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "dataset.db"), LogLevel: "silent"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	return cache.New(fs, nil)
}

type symbols []string

func (s symbols) Symbols(context.Context) ([]string, error) { return s, nil }

type fakeDaily struct {
	frame *frame.Frame
	calls []ingest.DateRange
}

func (f *fakeDaily) Name() string { return "fake" }
func (f *fakeDaily) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (*frame.Frame, error) {
	f.calls = append(f.calls, ingest.DateRange{Start: start, End: end})
	return f.frame, nil
}

func week() *calendar.Calendar {
	return calendar.New([]time.Time{d(6), d(7), d(8), d(9), d(10), d(13)})
}

func TestDailyRange(t *testing.T) {
	cal := week()

	r, ok := DailyRange(cal, d(10), true, 3, 30)
	require.True(t, ok)
	assert.Equal(t, ingest.DateRange{Start: d(8), End: d(10)}, r)

	r, ok = DailyRange(cal, time.Date(2024, 5, 9, 16, 0, 0, 0, core.Shanghai), false, 3, 30)
	require.True(t, ok)
	assert.Equal(t, ingest.DateRange{Start: d(9), End: d(9)}, r)

	_, ok = DailyRange(cal, d(11), false, 3, 30)
	assert.False(t, ok, "saturday is not a trading day")
}

func TestDaily_Plan(t *testing.T) {
	job := NewDaily(&fakeDaily{}, nil, week())
	r := ingest.DateRange{Start: d(6), End: d(10)}

	existing := ingest.KeySet{"600519|2024-05-06": {}, "600519|2024-05-07": {}}
	got, ok := job.Plan(context.Background(), "600519", r, existing)
	require.True(t, ok)
	assert.Equal(t, ingest.DateRange{Start: d(8), End: d(10)}, got)

	for _, day := range []int{8, 9, 10} {
		existing[model.Key("600519", model.DateKey(d(day)))] = struct{}{}
	}
	_, ok = job.Plan(context.Background(), "600519", r, existing)
	assert.False(t, ok, "has imported")
}

func TestDaily_SyncDecodesBars(t *testing.T) {
	s := openStore(t)
	bars := frame.New(eastmoney.DailyColumns...)
	bars.Append("2024-05-08", "190.00", "195.50", "196.00", "189.10", "321000", "6.2亿", "3.63", "2.90", "5.51", "0.73")
	bars.Append("2024-05-09", "195.50", "--", "197.30", "193.00", "280000", "5.4亿", "2.20", "-0.66", "-1.30", "0.64")
	src := &fakeDaily{frame: bars}

	job := NewDaily(src, symbols{"300750"}, week())
	rep, err := ingest.Sync[model.DailyBar](context.Background(), ingest.NewEngine(nil), job,
		store.NewTable[model.DailyBar](s, store.BySymbol), ingest.DateRange{Start: d(8), End: d(9)})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Written)
	assert.Equal(t, 1, rep.Invalid, "a bar without close is skipped")
	require.Len(t, src.calls, 1)
	assert.Equal(t, d(8), src.calls[0].Start)

	var got model.DailyBar
	require.NoError(t, s.DB().First(&got, "symbol = ?", "300750").Error)
	assert.InDelta(t, 195.5, *got.Close, 1e-9)
	assert.InDelta(t, 195.5, *got.AdjClose, 1e-9)
	assert.Equal(t, int64(321000), *got.Volume)
	assert.InDelta(t, 6.2e8, *got.Turnover, 1e-3)
	assert.InDelta(t, 2.90, *got.ChangePercent, 1e-9)
	assert.Nil(t, got.PETTM)
}

func TestFundFlow_Select(t *testing.T) {
	f := frame.New(eastmoney.FundFlowColumns...)
	for _, day := range []string{"2024-04-25", "2024-05-06", "2024-05-07", "2024-05-08", "2024-05-09", "bogus"} {
		f.Append(day, "1.0E7")
	}
	job := NewFundFlow(nil, nil, 3, 7)
	got := job.Select(f)
	assert.Equal(t, []string{"2024-05-07", "2024-05-08", "2024-05-09"}, got.Column("日期"))

	sparse := frame.New(eastmoney.FundFlowColumns...)
	sparse.Append("2024-04-20", "1")
	sparse.Append("2024-05-09", "1")
	assert.Equal(t, []string{"2024-05-09"}, job.Select(sparse).Column("日期"), "rows older than the window are dropped")
}

func TestFundFlow_Decode(t *testing.T) {
	job := NewFundFlow(nil, nil, 3, 7)
	f := frame.New(eastmoney.FundFlowColumns...)
	f.Append("2024-05-09", "-120000000.0", "3.4E7", "2.1E7", "-5.0E7", "-7.0E7", "-6.10", "1.73", "1.07", "-2.54", "-3.56", "1710.00", "0.52")

	rec, err := job.Decode("600519", f.Row(0))
	require.NoError(t, err)
	assert.Equal(t, "600519", rec.Symbol)
	assert.Equal(t, d(9), rec.TradeDate)
	assert.InDelta(t, -1.2e8, *rec.MainNet, 1e-3)
	assert.InDelta(t, 3.4e7, *rec.RetailNet, 1e-3)
	assert.InDelta(t, -2.54, *rec.LargeOrderRatio, 1e-9)
	assert.InDelta(t, 1.07, *rec.MediumOrderRatio, 1e-9)
	assert.InDelta(t, 1.73, *rec.SmallOrderRatio, 1e-9)
}

type fakeRank struct {
	calls int
}

func (f *fakeRank) Name() string { return "fake" }
func (f *fakeRank) FetchRank(ctx context.Context, span core.TimeSpan) (*frame.Frame, error) {
	f.calls++
	out := frame.New(ths.RankColumns...)
	out.Append("1", "300750", "宁德时代", "194.20", "2.90%", "0.73%", "12.5亿", "10.1亿", "2.4亿", "22.6亿")
	out.Append("2", "1", "平安银行", "10.52", "1.25%", "0.45%", "8900.5万", "7800.2万", "1100.3万", "1.67亿")
	return out, nil
}

func TestMoneyFlow_SyncIsCachedAndIdempotent(t *testing.T) {
	s := openStore(t)
	c := newCache(t)
	src := &fakeRank{}
	tradeDate := time.Date(2024, 5, 9, 15, 30, 0, 0, core.Shanghai)
	sink := store.NewTable[model.MoneyFlowRank](s, RankScope(tradeDate))

	run := func() *ingest.Report {
		job := NewMoneyFlow(src, c, 12*time.Hour, []core.TimeSpan{core.SpanRealtime}, tradeDate)
		rep, err := ingest.Sync[model.MoneyFlowRank](context.Background(), ingest.NewEngine(nil), job, sink, ingest.DateRange{})
		require.NoError(t, err)
		return rep
	}

	first := run()
	assert.Equal(t, 2, first.Written)
	second := run()
	assert.Zero(t, second.Written)
	assert.Equal(t, 2, second.Filtered)
	assert.Equal(t, 1, src.calls, "second run is served from the cache file")

	var rows []model.MoneyFlowRank
	require.NoError(t, s.DB().Order("serial_number").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "300750", rows[0].Symbol)
	assert.Equal(t, d(9), rows[0].TradeDate.UTC())
	assert.Equal(t, 0, rows[0].TimeSpan)
	assert.InDelta(t, 1.25e9, *rows[0].InflowAmount, 1e-3)
	assert.InDelta(t, 2.9, *rows[0].ChangePercent, 1e-9)
	assert.Equal(t, "000001", rows[1].Symbol, "codes keep leading zeros")
	assert.InDelta(t, 89005000, *rows[1].InflowAmount, 1e-3)
}

func TestMoneyFlow_UnknownSpan(t *testing.T) {
	job := NewMoneyFlow(&fakeRank{}, newCache(t), time.Hour, nil, d(9))
	_, err := job.Fetch(context.Background(), "7", ingest.DateRange{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestFinancial_SelectAndDecode(t *testing.T) {
	job := NewFinancial(nil, nil, 2)
	job.SetClock(func() time.Time { return time.Date(2025, 8, 30, 10, 0, 0, 0, core.Shanghai) })

	f := frame.New("报告期", "每股收益", "营业总收入", "净资产收益率")
	f.Append("20221231", "49.93", "1275.54亿", "30.26")
	f.Append("20231231", "59.49", "150560330316.45", "34.19")
	f.Append("20250331", "21.38", "514.43亿", "10.82")
	f.Append("", "1", "1", "1")

	got := job.Select(f)
	assert.Equal(t, []string{"20231231", "20250331"}, got.Column("报告期"))

	key, err := job.Key("600519", got.Row(1))
	require.NoError(t, err)
	assert.Equal(t, "600519|2025-03-31|Q03", key)

	rec, err := job.Decode("600519", got.Row(1))
	require.NoError(t, err)
	assert.Equal(t, "Q03", rec.ReportType)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), rec.ReportDate)
	assert.InDelta(t, 21.38, *rec.EPS, 1e-9)
	assert.InDelta(t, 5.1443e10, *rec.TotalRevenue, 1)
	assert.InDelta(t, 10.82, *rec.ROE, 1e-9)
	assert.Nil(t, rec.NetProfit)
	assert.Equal(t, rec.NaturalKey(), key)
}

type fakeListing struct {
	calls int
}

func (f *fakeListing) Name() string { return "fake" }
func (f *fakeListing) FetchListing(ctx context.Context) (*frame.Frame, error) {
	f.calls++
	out := frame.New(eastmoney.ListingColumns...)
	out.Append("300750", "宁德时代")
	out.Append("1", "平安银行")
	out.Append("BAD", "坏数据")
	out.Append("300750", "宁德时代")
	return out, nil
}

type fakeProfiles struct {
	industry string
}

func (f *fakeProfiles) Name() string { return "fake" }
func (f *fakeProfiles) FetchProfile(ctx context.Context, symbol string) (*frame.Frame, error) {
	out := frame.New(eastmoney.ProfileColumns...)
	if symbol == "300750" {
		out.AppendRow(frame.Row{
			"股票代码": "300750", "股票简称": "宁德时代", "总股本": "4398807222",
			"流通股": "3875620000", "行业": f.industry, "上市时间": "20180611",
		})
	}
	return out, nil
}

func TestBasic_SyncRefreshesInPlace(t *testing.T) {
	s := openStore(t)
	c := newCache(t)
	listing := &fakeListing{}
	profiles := &fakeProfiles{industry: "电池"}
	sink := store.NewTable[model.BasicInfo](s, nil)

	run := func() *ingest.Report {
		job := NewBasic(listing, profiles, c, 7*24*time.Hour, nil)
		rep, err := ingest.Sync[model.BasicInfo](context.Background(), ingest.NewEngine(nil), job, sink, ingest.DateRange{})
		require.NoError(t, err)
		return rep
	}

	rep := run()
	assert.Equal(t, 2, rep.Targets, "invalid and duplicate codes are dropped")
	assert.Equal(t, 2, rep.Written)

	profiles.industry = "电力设备"
	rep = run()
	assert.Equal(t, 2, rep.Written, "basic info is rewritten every run")
	assert.Equal(t, 1, listing.calls, "listing is cached")

	var catl model.BasicInfo
	require.NoError(t, s.DB().First(&catl, "symbol = ?", "300750").Error)
	assert.Equal(t, "电力设备", catl.Industry)
	assert.Equal(t, string(core.BoardChiNext), catl.Market)
	assert.Equal(t, StatusListed, catl.Status)
	require.NotNil(t, catl.ListingDate)
	assert.Equal(t, "2018-06-11", catl.ListingDate.Format(core.DateLayout))
	assert.InDelta(t, 4398807222, *catl.TotalShares, 1)

	var pingan model.BasicInfo
	require.NoError(t, s.DB().First(&pingan, "symbol = ?", "000001").Error)
	assert.Equal(t, "平安银行", pingan.Name)
	assert.Equal(t, string(core.BoardMainSZ), pingan.Market)
	assert.Equal(t, StatusUnknown, pingan.Status)

	var n int64
	require.NoError(t, s.DB().Model(&model.BasicInfo{}).Count(&n).Error)
	assert.Equal(t, int64(2), n)
}

func TestLoadListing_CachedAcrossDays(t *testing.T) {
	c := newCache(t)
	listing := &fakeListing{}
	ctx := context.Background()

	_, err := LoadListing(ctx, c, listing, 7*24*time.Hour)
	require.NoError(t, err)

	c.SetClock(func() time.Time { return time.Now().Add(24 * time.Hour) })
	f, err := LoadListing(ctx, c, listing, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Len())
	assert.Equal(t, 1, listing.calls, "listing is reused until the ttl passes")

	c.SetClock(func() time.Time { return time.Now().Add(8 * 24 * time.Hour) })
	_, err = LoadListing(ctx, c, listing, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, listing.calls, "an expired listing is refetched")
}
