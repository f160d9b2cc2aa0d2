package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/newthinker/stocksync/internal/core"
	"github.com/newthinker/stocksync/internal/model"
)

const upsertBatchSize = 200

// Scope narrows the key enumeration of one target.
type Scope func(tx *gorm.DB, target string) *gorm.DB

// BySymbol scopes keys to one symbol.
func BySymbol(tx *gorm.DB, target string) *gorm.DB {
	return tx.Where("symbol = ?", target)
}

// Table is the sink for one record type.
type Table[T model.Record] struct {
	db    *gorm.DB
	scope Scope

	once       sync.Once
	updateCols []string
	parseErr   error
}

// NewTable binds T to the store. A nil scope enumerates the whole table.
func NewTable[T model.Record](s *Store, scope Scope) *Table[T] {
	return &Table[T]{db: s.db, scope: scope}
}

// ExistingKeys returns the natural keys already persisted for target.
func (t *Table[T]) ExistingKeys(ctx context.Context, target string) (map[string]struct{}, error) {
	var zero T
	var rows []T
	q := t.db.WithContext(ctx).Model(&zero).Select(zero.KeyColumns())
	if t.scope != nil {
		q = t.scope(q, target)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("%s keys: %w", zero.TableName(), err))
	}

	keys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		keys[r.NaturalKey()] = struct{}{}
	}
	return keys, nil
}

// Upsert inserts records, updating every non-key column and updated_at
// when the natural key already exists. The whole call commits or rolls
// back as one transaction.
func (t *Table[T]) Upsert(ctx context.Context, records []T) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	cols, err := t.columns()
	if err != nil {
		return 0, err
	}

	var zero T
	conflict := clause.OnConflict{DoUpdates: clause.AssignmentColumns(cols)}
	for _, c := range zero.KeyColumns() {
		conflict.Columns = append(conflict.Columns, clause.Column{Name: c})
	}

	err = t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(conflict).CreateInBatches(&records, upsertBatchSize).Error
	})
	if err != nil {
		return 0, translate(zero.TableName(), err)
	}
	return len(records), nil
}

// columns lists the columns an upsert overwrites.
func (t *Table[T]) columns() ([]string, error) {
	t.once.Do(func() {
		var zero T
		sch, err := schema.Parse(&zero, &sync.Map{}, t.db.NamingStrategy)
		if err != nil {
			t.parseErr = core.WrapError(core.ErrStoreFailed, fmt.Errorf("parse %s: %w", zero.TableName(), err))
			return
		}
		keys := zero.KeyColumns()
		for _, f := range sch.Fields {
			if f.DBName == "" || f.PrimaryKey || f.DBName == "created_at" || slices.Contains(keys, f.DBName) {
				continue
			}
			t.updateCols = append(t.updateCols, f.DBName)
		}
	})
	return t.updateCols, t.parseErr
}

func translate(table string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return core.WrapError(core.ErrConstraintViolation, fmt.Errorf("%s: %w", table, err))
	}
	return core.WrapError(core.ErrStoreFailed, fmt.Errorf("%s upsert: %w", table, err))
}
