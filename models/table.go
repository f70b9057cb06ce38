package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmdatafocus/shop_inventory/tabular"
	"github.com/mmdatafocus/shop_inventory/utils"
)

// table binds one sheet to the versioned reader.
// cached reads go through the cache; fresh reads always hit the store.
type table struct {
	schema TableSchema
	reader *tabular.CachedReader
}

func newTable(name string, reader *tabular.CachedReader) table {
	for _, s := range Schemas {
		if s.Name == name {
			return table{schema: s, reader: reader}
		}
	}
	return table{schema: TableSchema{Name: name}, reader: reader}
}

func (t table) name() string {
	return t.schema.Name
}

func (t table) cached(ctx context.Context, token int64) ([]tabular.Record, error) {
	values, err := t.reader.Values(ctx, t.schema.Name, token)
	if err != nil {
		return nil, err
	}
	_, records := tabular.Records(values)
	return records, nil
}

// fresh returns the raw values too, since several ids derive from the row count.
func (t table) fresh(ctx context.Context) ([][]interface{}, []string, []tabular.Record, error) {
	values, err := t.reader.Store().Values(ctx, t.schema.Name)
	if err != nil {
		return nil, nil, nil, err
	}
	headers, records := tabular.Records(values)
	return values, headers, records, nil
}

// append writes fields in the sheet's own header order, or the expected order when it has none.
func (t table) append(ctx context.Context, headers []string, fields map[string]interface{}) error {
	if len(headers) == 0 {
		headers = t.schema.Columns
	}
	return t.reader.Store().AppendRow(ctx, t.schema.Name, tabular.RowValues(headers, fields))
}

func (t table) updateCell(ctx context.Context, row, col int, value interface{}) error {
	return t.reader.Store().UpdateCell(ctx, t.schema.Name, row, col, value)
}

// numeric cells are written as numbers so the sheet can sum them
func cellNumber(d decimal.Decimal) interface{} {
	return d.InexactFloat64()
}

func cellTime(t time.Time) interface{} {
	return utils.FormatTimestamp(t)
}

// creation stamps keep sub-second precision so a re-read is never earlier than the write
func cellPreciseTime(t time.Time) interface{} {
	return utils.FormatPreciseTimestamp(t)
}
