package core

import (
	"fmt"
	"strings"
	"time"
)

// Date layouts used across providers, cache keys and the database.
const (
	DateLayout     = "2006-01-02"
	CompactLayout  = "20060102"
	ShanghaiOffset = 8 * 60 * 60
)

// Shanghai is the exchange time zone. A fixed zone avoids depending on tzdata.
var Shanghai = time.FixedZone("CST", ShanghaiOffset)

// Exchange identifies where a symbol is listed.
type Exchange string

const (
	ExchangeSH Exchange = "SH"
	ExchangeSZ Exchange = "SZ"
	ExchangeBJ Exchange = "BJ"
)

// Board is the market segment label stored on basic info rows.
type Board string

const (
	BoardSTAR    Board = "科创板"
	BoardMainSH  Board = "主板-沪市"
	BoardMainSZ  Board = "主板-深市"
	BoardChiNext Board = "主板-创业板"
	BoardBSE     Board = "北交所"
	BoardOther   Board = "其他"
)

// NormalizeSymbol left-pads a numeric code to six digits and strips
// exchange decorations such as "sh600519" or "600519.SH".
func NormalizeSymbol(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.ToUpper(s)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(s, "SH"), "SZ"), "BJ")
	if s == "" || len(s) > 6 {
		return "", Errorf(ErrInvalidSymbol, "%q", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", Errorf(ErrInvalidSymbol, "%q", s)
		}
	}
	return strings.Repeat("0", 6-len(s)) + s, nil
}

// ExchangeOf maps a six digit code to its exchange.
func ExchangeOf(symbol string) Exchange {
	switch {
	case strings.HasPrefix(symbol, "6"), strings.HasPrefix(symbol, "9"):
		return ExchangeSH
	case strings.HasPrefix(symbol, "8"), strings.HasPrefix(symbol, "4"):
		return ExchangeBJ
	default:
		return ExchangeSZ
	}
}

// BoardOf classifies a symbol by code prefix.
func BoardOf(symbol string) Board {
	switch {
	case strings.HasPrefix(symbol, "68"):
		return BoardSTAR
	case strings.HasPrefix(symbol, "6"):
		return BoardMainSH
	case strings.HasPrefix(symbol, "0"):
		return BoardMainSZ
	case strings.HasPrefix(symbol, "3"):
		return BoardChiNext
	case strings.HasPrefix(symbol, "8"), strings.HasPrefix(symbol, "9"):
		return BoardBSE
	default:
		return BoardOther
	}
}

// TimeSpan selects a money-flow ranking window.
type TimeSpan int

const (
	SpanRealtime TimeSpan = 0
	Span3Day     TimeSpan = 3
	Span5Day     TimeSpan = 5
	Span10Day    TimeSpan = 10
)

// ParseTimeSpan accepts only the spans the ranking source publishes.
func ParseTimeSpan(v int) (TimeSpan, error) {
	switch TimeSpan(v) {
	case SpanRealtime, Span3Day, Span5Day, Span10Day:
		return TimeSpan(v), nil
	}
	return 0, Errorf(ErrConfigInvalid, "unsupported time span %d", v)
}

// Label returns the Chinese ranking name.
func (s TimeSpan) Label() string {
	switch s {
	case SpanRealtime:
		return "即时"
	case Span3Day:
		return "3日排行"
	case Span5Day:
		return "5日排行"
	case Span10Day:
		return "10日排行"
	}
	return fmt.Sprintf("%d日排行", int(s))
}

// ReportType derives the "Qmm" label from a report period end date.
func ReportType(reportDate time.Time) string {
	return fmt.Sprintf("Q%02d", int(reportDate.Month()))
}

// Day returns the Shanghai calendar date of t. Dates are carried as UTC
// midnight so that DATE columns round-trip regardless of session time zone.
func Day(t time.Time) time.Time {
	t = t.In(Shanghai)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses "2006-01-02" or "20060102" as a calendar date.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := DateLayout
	if len(s) == len(CompactLayout) {
		layout = CompactLayout
	} else if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, Errorf(ErrParseFailed, "date %q: %v", s, err)
	}
	return t, nil
}
