// Package ths scrapes the 10jqka individual money-flow ranking pages.
package ths

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/newthinker/stocksync/internal/collector"
	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
)

const baseURL = "http://data.10jqka.com.cn"

// RankColumns is the frame layout for every span.
var RankColumns = []string{"序号", "股票代码", "股票简称", "最新价", "涨跌幅", "换手率", "流入资金", "流出资金", "净额", "成交额"}

// spanColumns maps the cell order of the multi-day ranking tables, which
// carry staged change, cumulative turnover and net inflow only.
var spanColumns = []string{"序号", "股票代码", "股票简称", "最新价", "涨跌幅", "换手率", "净额"}

// Options configures the scraper.
type Options struct {
	BaseURL   string
	HexinV    string
	MaxPages  int
	PageDelay time.Duration
}

// THS implements collector.RankSource.
type THS struct {
	client *collector.Client
	opts   Options
	logger *zap.Logger
}

// New creates a ranking scraper over client.
func New(client *collector.Client, opts Options, logger *zap.Logger) *THS {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = baseURL
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 200
	}
	return &THS{client: client, opts: opts, logger: logger.Named("ths")}
}

func (t *THS) Name() string {
	return "ths"
}

func (t *THS) pageURL(span core.TimeSpan, page int) string {
	if span == core.SpanRealtime {
		return fmt.Sprintf("%s/funds/ggzjl/field/zdf/order/desc/page/%d/ajax/1/free/1/", t.opts.BaseURL, page)
	}
	return fmt.Sprintf("%s/funds/ggzjl/board/%d/field/zdf/order/desc/page/%d/ajax/1/free/1/", t.opts.BaseURL, int(span), page)
}

func (t *THS) headers() map[string]string {
	h := map[string]string{
		"Referer":          t.opts.BaseURL + "/funds/ggzjl/",
		"X-Requested-With": "XMLHttpRequest",
	}
	if t.opts.HexinV != "" {
		h["hexin-v"] = t.opts.HexinV
		h["Cookie"] = "v=" + t.opts.HexinV
	}
	return h
}

// FetchRank fetches every page of the ranking for span. Paging stops at the
// page count shown in the footer, at an empty page, or at MaxPages.
func (t *THS) FetchRank(ctx context.Context, span core.TimeSpan) (*frame.Frame, error) {
	cells := RankColumns
	if span != core.SpanRealtime {
		cells = spanColumns
	}

	out := frame.New(RankColumns...)
	total := 1
	for page := 1; page <= total && page <= t.opts.MaxPages; page++ {
		if page > 1 && t.opts.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, core.WrapError(core.ErrFetchFailed, ctx.Err())
			case <-time.After(t.opts.PageDelay):
			}
		}

		body, err := t.client.Get(ctx, t.pageURL(span, page), nil, t.headers())
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(transform.NewReader(bytes.NewReader(body), simplifiedchinese.GBK.NewDecoder()))
		if err != nil {
			return nil, core.WrapError(core.ErrFetchFailed, fmt.Errorf("ths page %d: %w", page, err))
		}

		n := 0
		doc.Find("table tbody tr").Each(func(_ int, tr *goquery.Selection) {
			row := frame.Row{}
			tr.Find("td").Each(func(j int, td *goquery.Selection) {
				if j < len(cells) {
					row[cells[j]] = strings.TrimSpace(td.Text())
				}
			})
			if row["股票代码"] == "" {
				return
			}
			out.AppendRow(row)
			n++
		})
		if n == 0 {
			break
		}
		if page == 1 {
			total = pageCount(doc)
		}
	}

	t.logger.Debug("ranking fetched",
		zap.String("span", span.Label()),
		zap.Int("rows", out.Len()))
	return out, nil
}

// pageCount reads "current/total" from the pager. Missing or malformed
// pagers mean a single page.
func pageCount(doc *goquery.Document) int {
	total := 1
	doc.Find(".page_info, #m-page span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		_, after, ok := strings.Cut(strings.TrimSpace(s.Text()), "/")
		if !ok {
			return true
		}
		if n, err := strconv.Atoi(strings.TrimSpace(after)); err == nil && n > 0 {
			total = n
			return false
		}
		return true
	})
	return total
}
