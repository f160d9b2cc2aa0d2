// Package sina fetches financial report abstracts from the Sina finance
// open API.
package sina

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
)

const reportURL = "https://quotes.sina.cn/cn/api/openapi.php/CompanyFinanceService.getFinanceReport2022"

// PeriodColumn holds the report period end date as yyyymmdd.
const PeriodColumn = "报告期"

// Sina implements collector.FinancialSource.
type Sina struct {
	client *collector.Client
	url    string
	logger *zap.Logger
}

// New creates a Sina source over client.
func New(client *collector.Client, logger *zap.Logger) *Sina {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sina{client: client, url: reportURL, logger: logger.Named("sina")}
}

// SetURL replaces the report endpoint.
func (s *Sina) SetURL(url string) {
	s.url = url
}

func (s *Sina) Name() string {
	return "sina"
}

// PaperCode qualifies a code with its lower-case exchange prefix.
func PaperCode(symbol string) string {
	return strings.ToLower(string(core.ExchangeOf(symbol))) + symbol
}

// FetchFinancialAbstract fetches the key-indicator report (gjzb) and pivots
// it to one row per report period, oldest first. Columns are 报告期 followed
// by every indicator title in first-seen order.
func (s *Sina) FetchFinancialAbstract(ctx context.Context, symbol string) (*frame.Frame, error) {
	query := map[string]string{
		"paperCode": PaperCode(symbol),
		"source":    "gjzb",
		"type":      "0",
		"page":      "1",
		"num":       "100",
	}
	var resp reportResponse
	if err := s.client.GetJSON(ctx, s.url, query, &resp); err != nil {
		return nil, err
	}

	reports := resp.Result.Data.ReportList
	periods := make([]string, 0, len(reports))
	for p := range reports {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	columns := []string{PeriodColumn}
	seen := map[string]bool{}
	for _, p := range periods {
		for _, item := range reports[p].Data {
			if item.Title == "" || seen[item.Title] {
				continue
			}
			seen[item.Title] = true
			columns = append(columns, item.Title)
		}
	}

	out := frame.New(columns...)
	for _, p := range periods {
		row := frame.Row{PeriodColumn: p}
		for _, item := range reports[p].Data {
			if _, dup := row[item.Title]; !dup {
				row[item.Title] = scalar(item.Value)
			}
		}
		out.AppendRow(row)
	}
	s.logger.Debug("financial abstract fetched",
		zap.String("symbol", symbol),
		zap.Int("periods", out.Len()))
	return out, nil
}

func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

type reportResponse struct {
	Result struct {
		Data struct {
			ReportList map[string]reportPeriod `json:"report_list"`
		} `json:"data"`
	} `json:"result"`
}

type reportPeriod struct {
	Data []reportItem `json:"data"`
}

type reportItem struct {
	Title string          `json:"item_title"`
	Value json.RawMessage `json:"item_value"`
}
