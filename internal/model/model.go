// Package model defines the persisted records. Every fact table carries a
// unique index on its natural key, which the store upserts against.
package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stocksync/internal/core"
)

// Record is implemented by every persisted type.
type Record interface {
	TableName() string
	// KeyColumns lists the natural key columns in index order.
	KeyColumns() []string
	// NaturalKey renders the natural key as a comparable string.
	NaturalKey() string
}

// Key joins natural key parts the same way ExistingKeys does.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

// DateKey formats a date the way keys and the database expect.
func DateKey(t time.Time) string {
	return t.Format(core.DateLayout)
}

// SpanKey formats a time span key part.
func SpanKey(span int) string {
	return strconv.Itoa(span)
}

// All lists one zero value per table, in migration order.
func All() []any {
	return []any{
		&BasicInfo{},
		&DailyBar{},
		&FundFlow{},
		&MoneyFlowRank{},
		&FinancialReport{},
	}
}

// DailyBar is one trading session for one symbol.
type DailyBar struct {
	ID            uint      `gorm:"primaryKey"`
	Symbol        string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_daily_symbol_date,priority:1"`
	TradeDate     time.Time `gorm:"type:date;not null;uniqueIndex:uk_daily_symbol_date,priority:2"`
	Open          *float64  `gorm:"type:decimal(12,4)"`
	High          *float64  `gorm:"type:decimal(12,4)"`
	Low           *float64  `gorm:"type:decimal(12,4)"`
	Close         *float64  `gorm:"type:decimal(12,4)"`
	AdjClose      *float64  `gorm:"type:decimal(12,4)"`
	Volume        *int64    `gorm:"type:bigint"`
	Turnover      *float64  `gorm:"type:decimal(20,4)"`
	Amplitude     *float64  `gorm:"type:decimal(10,4)"`
	ChangePercent *float64  `gorm:"type:decimal(10,4)"`
	ChangeAmount  *float64  `gorm:"type:decimal(10,4)"`
	TurnoverRate  *float64  `gorm:"type:decimal(10,4)"`
	PETTM         *float64  `gorm:"column:pe_ttm;type:decimal(10,4)"`
	PB            *float64  `gorm:"column:pb;type:decimal(10,4)"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (DailyBar) TableName() string { return "stock_daily_data" }
func (DailyBar) KeyColumns() []string { return []string{"symbol", "trade_date"} }
func (r DailyBar) NaturalKey() string { return Key(r.Symbol, DateKey(r.TradeDate)) }

// FundFlow is the per-symbol daily money flow split by order size.
type FundFlow struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	Symbol           string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_flow_symbol_date,priority:1"`
	TradeDate        time.Time `gorm:"type:date;not null;uniqueIndex:uk_flow_symbol_date,priority:2"`
	MainNet          *float64
	RetailNet        *float64
	LargeOrderRatio  *float64
	MediumOrderRatio *float64
	SmallOrderRatio  *float64
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (FundFlow) TableName() string { return "stock_money_flow" }
func (FundFlow) KeyColumns() []string { return []string{"symbol", "trade_date"} }
func (r FundFlow) NaturalKey() string { return Key(r.Symbol, DateKey(r.TradeDate)) }

// MoneyFlowRank is one row of a money-flow ranking snapshot.
type MoneyFlowRank struct {
	ID            uint      `gorm:"primaryKey"`
	TimeSpan      int       `gorm:"column:time_span;not null;uniqueIndex:uk_rank_symbol_date_span,priority:3"`
	SerialNumber  *int64    `gorm:"column:serial_number"`
	Symbol        string    `gorm:"column:symbol;size:10;not null;uniqueIndex:uk_rank_symbol_date_span,priority:1"`
	Name          string    `gorm:"column:name;size:50"`
	LatestPrice   *float64  `gorm:"column:latest_price"`
	ChangePercent *float64  `gorm:"column:change_percent"`
	TurnoverRate  *float64  `gorm:"column:turnover_rate"`
	InflowAmount  *float64  `gorm:"column:inflow_amount"`
	OutflowAmount *float64  `gorm:"column:outflow_amount"`
	NetAmount     *float64  `gorm:"column:net_amount"`
	Turnover      *float64  `gorm:"column:turnover"`
	TradeDate     time.Time `gorm:"column:trade_date;type:date;not null;uniqueIndex:uk_rank_symbol_date_span,priority:2"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MoneyFlowRank) TableName() string { return "stock_money_flow_all" }
func (MoneyFlowRank) KeyColumns() []string {
	return []string{"symbol", "trade_date", "time_span"}
}
func (r MoneyFlowRank) NaturalKey() string {
	return Key(r.Symbol, DateKey(r.TradeDate), SpanKey(r.TimeSpan))
}

// FinancialReport is one reporting period of a company's abstract.
type FinancialReport struct {
	ID                uint      `gorm:"primaryKey"`
	Symbol            string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_fin_symbol_date_type,priority:1"`
	ReportDate        time.Time `gorm:"type:date;not null;uniqueIndex:uk_fin_symbol_date_type,priority:2"`
	ReportType        string    `gorm:"type:varchar(4);not null;uniqueIndex:uk_fin_symbol_date_type,priority:3"`
	EPS               *float64  `gorm:"column:eps"`
	EPSDiluted        *float64  `gorm:"column:eps_diluted"`
	TotalRevenue      *float64
	OperatingProfit   *float64
	NetProfit         *float64
	TotalAssets       *float64
	TotalLiabilities  *float64
	Equity            *float64
	ROE               *float64 `gorm:"column:roe"`
	GrossMargin       *float64
	OperatingCashFlow *float64
	InvestingCashFlow *float64
	FinancingCashFlow *float64
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (FinancialReport) TableName() string { return "stock_financial_data" }
func (FinancialReport) KeyColumns() []string { return []string{"symbol", "report_date", "report_type"} }
func (r FinancialReport) NaturalKey() string {
	return Key(r.Symbol, DateKey(r.ReportDate), r.ReportType)
}

// BasicInfo is the reference row for a listed company. It is refreshed in
// place on every sync.
type BasicInfo struct {
	ID                uint       `gorm:"primaryKey;autoIncrement"`
	Symbol            string     `gorm:"type:varchar(10);not null;uniqueIndex:uk_basic_symbol"`
	Name              string     `gorm:"type:varchar(50);not null"`
	FullName          string     `gorm:"type:varchar(100)"`
	Industry          string     `gorm:"type:varchar(50)"`
	Area              string     `gorm:"type:varchar(50)"`
	Market            string     `gorm:"type:varchar(20)"`
	ListingDate       *time.Time `gorm:"type:date"`
	OutstandingShares *float64   `gorm:"type:decimal(20,4)"`
	TotalShares       *float64   `gorm:"type:decimal(20,4)"`
	IsHs              bool
	Status            string    `gorm:"type:varchar(20)"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (BasicInfo) TableName() string { return "stock_basic_info" }
func (BasicInfo) KeyColumns() []string { return []string{"symbol"} }
func (r BasicInfo) NaturalKey() string { return r.Symbol }
