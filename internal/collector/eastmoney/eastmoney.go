// Package eastmoney fetches A-share bars, fund flow, profiles, the listing
// and the trade calendar from the Eastmoney push2 endpoints.
package eastmoney

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
)

const (
	quoteURL    = "https://push2.eastmoney.com/api/qt/stock/get"
	historyURL  = "https://push2his.eastmoney.com/api/qt/stock/kline/get"
	fundFlowURL = "https://push2his.eastmoney.com/api/qt/stock/fflow/daykline/get"
	listURL     = "https://82.push2.eastmoney.com/api/qt/clist/get"

	// SSE composite index, used as the trading calendar.
	calendarSecID = "1.000001"

	listPageSize = 100
)

// Column sets returned by each fetch.
var (
	DailyColumns = []string{"日期", "开盘", "收盘", "最高", "最低", "成交量", "成交额", "振幅", "涨跌幅", "涨跌额", "换手率"}

	FundFlowColumns = []string{
		"日期",
		"主力净流入-净额", "小单净流入-净额", "中单净流入-净额", "大单净流入-净额", "超大单净流入-净额",
		"主力净流入-净占比", "小单净流入-净占比", "中单净流入-净占比", "大单净流入-净占比", "超大单净流入-净占比",
		"收盘价", "涨跌幅",
	}

	ProfileColumns = []string{"股票代码", "股票简称", "总股本", "流通股", "行业", "上市时间", "总市值", "流通市值", "最新"}

	ListingColumns = []string{"代码", "名称"}

	CalendarColumns = []string{"trade_date"}
)

// profileFields lists push2 field ids in ProfileColumns order.
var profileFields = []string{"f57", "f58", "f84", "f85", "f127", "f189", "f116", "f117", "f43"}

// URLs holds the endpoints, overridable for tests.
type URLs struct {
	Quote    string
	History  string
	FundFlow string
	List     string
}

// DefaultURLs returns the production endpoints.
func DefaultURLs() URLs {
	return URLs{
		Quote:    quoteURL,
		History:  historyURL,
		FundFlow: fundFlowURL,
		List:     listURL,
	}
}

// Eastmoney implements the daily, fund-flow, profile, listing and calendar
// sources.
type Eastmoney struct {
	client *collector.Client
	urls   URLs
	logger *zap.Logger
}

// New creates an Eastmoney source over client.
func New(client *collector.Client, logger *zap.Logger) *Eastmoney {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Eastmoney{
		client: client,
		urls:   DefaultURLs(),
		logger: logger.Named("eastmoney"),
	}
}

// SetURLs replaces the endpoints.
func (e *Eastmoney) SetURLs(u URLs) {
	e.urls = u
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

// SecID converts a six digit code to Eastmoney's market-qualified id.
// Shanghai = 1, everything else = 0.
func SecID(symbol string) string {
	if core.ExchangeOf(symbol) == core.ExchangeSH {
		return "1." + symbol
	}
	return "0." + symbol
}

// FetchDaily fetches forward-adjusted daily klines between start and end,
// both inclusive.
func (e *Eastmoney) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (*frame.Frame, error) {
	return e.klines(ctx, SecID(symbol), map[string]string{
		"fqt": "1",
		"beg": start.Format(core.CompactLayout),
		"end": end.Format(core.CompactLayout),
	}, DailyColumns)
}

// FetchTradeDates fetches every session date of the SSE composite index.
func (e *Eastmoney) FetchTradeDates(ctx context.Context) (*frame.Frame, error) {
	bars, err := e.klines(ctx, calendarSecID, map[string]string{
		"fqt": "0",
		"beg": "19900101",
		"end": "20500101",
	}, DailyColumns)
	if err != nil {
		return nil, err
	}
	out := frame.New(CalendarColumns...)
	for _, d := range bars.Column("日期") {
		out.Append(d)
	}
	return out, nil
}

func (e *Eastmoney) klines(ctx context.Context, secid string, params map[string]string, columns []string) (*frame.Frame, error) {
	query := map[string]string{
		"secid":   secid,
		"klt":     "101",
		"fields1": "f1,f2,f3,f4,f5,f6",
		"fields2": "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61",
		"ut":      "7eea3edcaed734bea9cbfc24409ed989",
	}
	for k, v := range params {
		query[k] = v
	}

	var result klineResponse
	if err := e.client.GetJSON(ctx, e.urls.History, query, &result); err != nil {
		return nil, err
	}
	out := frame.New(columns...)
	if result.Data == nil {
		return out, nil
	}
	appendLines(out, result.Data.Klines)
	return out, nil
}

// FetchFundFlow fetches the per-symbol daily money-flow history.
func (e *Eastmoney) FetchFundFlow(ctx context.Context, symbol string) (*frame.Frame, error) {
	query := map[string]string{
		"secid":   SecID(symbol),
		"lmt":     "0",
		"klt":     "101",
		"fields1": "f1,f2,f3,f7",
		"fields2": "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61,f62,f63,f64,f65",
		"ut":      "b2884a393a59ad64002292a3e90d46a5",
	}
	var result klineResponse
	if err := e.client.GetJSON(ctx, e.urls.FundFlow, query, &result); err != nil {
		return nil, err
	}
	out := frame.New(FundFlowColumns...)
	if result.Data == nil {
		return out, nil
	}
	appendLines(out, result.Data.Klines)
	return out, nil
}

// FetchProfile fetches one symbol's profile as a single row.
func (e *Eastmoney) FetchProfile(ctx context.Context, symbol string) (*frame.Frame, error) {
	query := map[string]string{
		"secid":  SecID(symbol),
		"fltt":   "2",
		"invt":   "2",
		"fields": strings.Join(profileFields, ","),
		"ut":     "fa5fd1943c7b386f172d6893dbfba10b",
	}
	var result struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := e.client.GetJSON(ctx, e.urls.Quote, query, &result); err != nil {
		return nil, err
	}
	out := frame.New(ProfileColumns...)
	if len(result.Data) == 0 {
		return out, nil
	}
	row := make([]string, len(profileFields))
	for i, f := range profileFields {
		row[i] = cell(result.Data[f])
	}
	out.Append(row...)
	return out, nil
}

// FetchListing pages through every Shanghai, Shenzhen and Beijing A-share.
func (e *Eastmoney) FetchListing(ctx context.Context) (*frame.Frame, error) {
	out := frame.New(ListingColumns...)
	for page := 1; ; page++ {
		query := map[string]string{
			"pn":     strconv.Itoa(page),
			"pz":     strconv.Itoa(listPageSize),
			"po":     "1",
			"np":     "1",
			"fltt":   "2",
			"invt":   "2",
			"fid":    "f12",
			"fs":     "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23,m:0 t:81 s:2048",
			"fields": "f12,f14",
			"ut":     "bd1d9ddb04089700cf9c27f6f7426281",
		}
		var result listResponse
		if err := e.client.GetJSON(ctx, e.urls.List, query, &result); err != nil {
			return nil, err
		}
		if result.Data == nil || len(result.Data.Diff) == 0 {
			break
		}
		for _, item := range result.Data.Diff {
			out.Append(cell(item["f12"]), cell(item["f14"]))
		}
		if out.Len() >= result.Data.Total {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, core.WrapError(core.ErrFetchFailed, err)
		}
	}
	e.logger.Debug("listing fetched", zap.Int("rows", out.Len()))
	return out, nil
}

// appendLines splits comma separated kline strings into rows.
func appendLines(f *frame.Frame, lines []string) {
	for _, line := range lines {
		f.Append(strings.Split(line, ",")...)
	}
}

// cell renders a JSON scalar as a frame cell. Numbers keep their shortest
// form, strings are unquoted, null becomes empty.
func cell(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strings.Trim(string(raw), `"`)
}

type klineResponse struct {
	Data *klineData `json:"data"`
}

type klineData struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Klines []string `json:"klines"`
}

type listResponse struct {
	Data *listData `json:"data"`
}

type listData struct {
	Total int                          `json:"total"`
	Diff  []map[string]json.RawMessage `json:"diff"`
}
