package eastmoney

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/core"
)

func TestEastmoney_ImplementsSources(t *testing.T) {
	var _ collector.DailySource = (*Eastmoney)(nil)
	var _ collector.FundFlowSource = (*Eastmoney)(nil)
	var _ collector.ProfileSource = (*Eastmoney)(nil)
	var _ collector.ListingSource = (*Eastmoney)(nil)
	var _ collector.CalendarSource = (*Eastmoney)(nil)
}

func TestSecID(t *testing.T) {
	tests := []struct {
		symbol string
		want   string
	}{
		{"600519", "1.600519"},
		{"688981", "1.688981"},
		{"900901", "1.900901"},
		{"000001", "0.000001"},
		{"300750", "0.300750"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SecID(tc.symbol), tc.symbol)
	}
}

func newTestSource(t *testing.T, h http.Handler) *Eastmoney {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	e := New(collector.NewClient(collector.ClientOptions{Name: "eastmoney"}, nil), nil)
	e.SetURLs(URLs{
		Quote:    srv.URL + "/quote",
		History:  srv.URL + "/kline",
		FundFlow: srv.URL + "/fflow",
		List:     srv.URL + "/clist",
	})
	return e
}

func TestFetchDaily(t *testing.T) {
	var query map[string]string
	e := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kline", r.URL.Path)
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		fmt.Fprint(w, `{"rc":0,"data":{"code":"300750","name":"宁德时代","klines":[
			"2024-05-06,190.00,195.50,196.00,189.10,321000,6.2E9,3.63,2.90,5.51,0.73",
			"2024-05-07,195.50,194.20,197.30,193.00,280000,5.4E9,2.20,-0.66,-1.30,0.64"]}}`)
	}))

	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC)
	f, err := e.FetchDaily(context.Background(), "300750", start, end)
	require.NoError(t, err)

	assert.Equal(t, "0.300750", query["secid"])
	assert.Equal(t, "101", query["klt"])
	assert.Equal(t, "1", query["fqt"])
	assert.Equal(t, "20240506", query["beg"])
	assert.Equal(t, "20240507", query["end"])

	require.Equal(t, 2, f.Len())
	assert.Equal(t, DailyColumns, f.Columns)
	row := f.Row(1)
	assert.Equal(t, "2024-05-07", row["日期"])
	assert.Equal(t, "194.20", row["收盘"])
	assert.Equal(t, "-0.66", row["涨跌幅"])
	assert.Equal(t, "0.64", row["换手率"])
}

func TestFetchDaily_NoData(t *testing.T) {
	e := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rc":0,"data":null}`)
	}))
	f, err := e.FetchDaily(context.Background(), "600519", time.Now(), time.Now())
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

func TestFetchDaily_ServerError(t *testing.T) {
	e := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	_, err := e.FetchDaily(context.Background(), "600519", time.Now(), time.Now())
	assert.ErrorIs(t, err, core.ErrFetchFailed)
}

func TestFetchFundFlow(t *testing.T) {
	e := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fflow", r.URL.Path)
		assert.Equal(t, "1.600519", r.URL.Query().Get("secid"))
		fmt.Fprint(w, `{"data":{"code":"600519","klines":[
			"2024-05-06,-1.2E8,3.4E7,2.1E7,-5.0E7,-7.0E7,-6.10,1.73,1.07,-2.54,-3.56,1710.00,0.52,0.00,0.00"]}}`)
	}))

	f, err := e.FetchFundFlow(context.Background(), "600519")
	require.NoError(t, err)
	require.Equal(t, 1, f.Len())
	row := f.Row(0)
	assert.Equal(t, "2024-05-06", row["日期"])
	assert.Equal(t, "-1.2E8", row["主力净流入-净额"])
	assert.Equal(t, "3.4E7", row["小单净流入-净额"])
	assert.Equal(t, "-2.54", row["大单净流入-净占比"])
	assert.Equal(t, "0.52", row["涨跌幅"])
}

func TestFetchProfile(t *testing.T) {
	e := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		fmt.Fprint(w, `{"data":{"f57":"300750","f58":"宁德时代","f84":4398807222.0,"f85":3875620000,
			"f127":"电池","f189":20180611,"f116":8.5E11,"f117":7.5E11,"f43":194.2}}`)
	}))

	f, err := e.FetchProfile(context.Background(), "300750")
	require.NoError(t, err)
	require.Equal(t, 1, f.Len())
	row := f.Row(0)
	assert.Equal(t, "300750", row["股票代码"])
	assert.Equal(t, "宁德时代", row["股票简称"])
	assert.Equal(t, "4398807222", row["总股本"])
	assert.Equal(t, "电池", row["行业"])
	assert.Equal(t, "20180611", row["上市时间"])
	assert.Equal(t, "194.2", row["最新"])
}

func TestFetchProfile_Unknown(t *testing.T) {
	e := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	}))
	f, err := e.FetchProfile(context.Background(), "999999")
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

func TestFetchListing_Pages(t *testing.T) {
	pages := map[int]string{
		1: `{"data":{"total":3,"diff":[{"f12":"000001","f14":"平安银行"},{"f12":"300750","f14":"宁德时代"}]}}`,
		2: `{"data":{"total":3,"diff":[{"f12":"600519","f14":"贵州茅台"}]}}`,
	}
	var calls int
	e := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		pn, _ := strconv.Atoi(r.URL.Query().Get("pn"))
		body, ok := pages[pn]
		if !ok {
			body = `{"data":null}`
		}
		fmt.Fprint(w, body)
	}))

	f, err := e.FetchListing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, ListingColumns, f.Columns)
	assert.Equal(t, []string{"000001", "300750", "600519"}, f.Column("代码"))
	assert.Equal(t, "贵州茅台", f.Row(2)["名称"])
}

func TestFetchTradeDates(t *testing.T) {
	e := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, calendarSecID, r.URL.Query().Get("secid"))
		fmt.Fprint(w, `{"data":{"klines":[
			"2024-05-06,3100,3140,3145,3098,1,1,1,1,1,1",
			"2024-05-07,3140,3147,3150,3130,1,1,1,1,1,1"]}}`)
	}))

	f, err := e.FetchTradeDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CalendarColumns, f.Columns)
	assert.Equal(t, []string{"2024-05-06", "2024-05-07"}, f.Column("trade_date"))
}
