// Package dataset defines one ingest job per persisted entity: which targets
// it walks, how it fetches them and how provider columns map onto records.
package dataset

import (
	"context"
	"time"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/frame"
	"github.com/newthinker/stocksync/internal/model"
)

// Entity names used in logs, metrics and the CLI.
const (
	EntityBasic     = "basic"
	EntityDaily     = "daily"
	EntityFundFlow  = "fundflow"
	EntityMoneyFlow = "moneyflow"
	EntityFinancial = "financial"
)

// SymbolLister lists the symbols to sync. *store.Store satisfies it.
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
}

// dateKey builds the natural key of a (symbol, date) row.
func dateKey(symbol string, row frame.Row, column string) (string, error) {
	d, err := core.ParseDay(row[column])
	if err != nil {
		return "", err
	}
	return model.Key(symbol, model.DateKey(d)), nil
}

// rowDates parses column for every row. Unparseable cells map to the zero
// time.
func rowDates(f *frame.Frame, column string) []time.Time {
	out := make([]time.Time, f.Len())
	for i, s := range f.Column(column) {
		if d, err := core.ParseDay(s); err == nil {
			out[i] = d
		}
	}
	return out
}
