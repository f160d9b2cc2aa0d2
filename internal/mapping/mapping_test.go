package mapping

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
)

type flow struct {
	Symbol  string
	Date    time.Time
	Name    string
	Net     *float64
	Ratio   *float64
	Price   *float64
	Shares  *int64
	Listing *time.Time
}

var flowTable = New(
	Symbol("股票代码", func(r *flow) *string { return &r.Symbol }),
	Date("日期", func(r *flow) *time.Time { return &r.Date }),
	String("股票简称", func(r *flow) *string { return &r.Name }),
	Amount("净额", func(r *flow) **float64 { return &r.Net }),
	Percent("涨跌幅", func(r *flow) **float64 { return &r.Ratio }),
	Strict(Float("最新价", func(r *flow) **float64 { return &r.Price }), func(r *flow) *float64 { return r.Price }),
	Int64("总股本", func(r *flow) **int64 { return &r.Shares }),
	OptionalDate("上市时间", func(r *flow) **time.Time { return &r.Listing }),
)

func TestTable_Decode(t *testing.T) {
	rec, err := flowTable.Decode(frame.Row{
		"股票代码": "2594",
		"日期":   "2024-05-06",
		"股票简称": "比亚迪",
		"净额":   "-1.5亿",
		"涨跌幅":  "3.25%",
		"最新价":  "210.5",
		"总股本":  "2909000000",
		"上市时间": "20110630",
	})
	require.NoError(t, err)

	assert.Equal(t, "002594", rec.Symbol)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "比亚迪", rec.Name)
	require.NotNil(t, rec.Net)
	assert.InDelta(t, -150000000, *rec.Net, 1e-6)
	require.NotNil(t, rec.Ratio)
	assert.InDelta(t, 3.25, *rec.Ratio, 1e-9)
	require.NotNil(t, rec.Shares)
	assert.Equal(t, int64(2909000000), *rec.Shares)
	require.NotNil(t, rec.Listing)
	assert.Equal(t, 2011, rec.Listing.Year())
}

func TestTable_DecodeOptionalMissing(t *testing.T) {
	rec, err := flowTable.Decode(frame.Row{
		"股票代码": "600519",
		"日期":   "2024-05-06",
		"净额":   "--",
		"上市时间": "unknown",
	})
	require.NoError(t, err)
	assert.Nil(t, rec.Net)
	assert.Nil(t, rec.Ratio)
	assert.Nil(t, rec.Price)
	assert.Nil(t, rec.Listing)
}

func TestTable_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		row  frame.Row
	}{
		{"missing symbol", frame.Row{"日期": "2024-05-06"}},
		{"bad symbol", frame.Row{"股票代码": "ABC", "日期": "2024-05-06"}},
		{"missing date", frame.Row{"股票代码": "600519"}},
		{"bad date", frame.Row{"股票代码": "600519", "日期": "yesterday"}},
		{"strict number", frame.Row{"股票代码": "600519", "日期": "2024-05-06", "最新价": "n/a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := flowTable.Decode(tt.row)
			assert.True(t, errors.Is(err, core.ErrParseFailed), "got %v", err)
		})
	}
}

func TestTable_Columns(t *testing.T) {
	cols := flowTable.Columns()
	assert.Len(t, cols, 8)
	assert.Equal(t, "股票代码", cols[0])
}

func TestRequired(t *testing.T) {
	tbl := New(Required(Amount("净额", func(r *flow) **float64 { return &r.Net })))
	_, err := tbl.Decode(frame.Row{})
	assert.ErrorIs(t, err, core.ErrParseFailed)
}
