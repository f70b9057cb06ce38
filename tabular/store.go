package tabular

import (
	"context"
	"fmt"
	"strings"
)

// Store is a spreadsheet-like backing store.
// Row numbers are 1-based and the header occupies row 1; columns are 1-based too.
// Nothing here is transactional: concurrent writers see each other eventually.
type Store interface {
	Sheets(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, sheet string) error
	DeleteSheet(ctx context.Context, sheet string) error
	// Values returns every row of sheet, header first. Rows may be shorter than the header.
	Values(ctx context.Context, sheet string) ([][]interface{}, error)
	AppendRow(ctx context.Context, sheet string, row []interface{}) error
	UpdateCell(ctx context.Context, sheet string, row, col int, value interface{}) error
}

// Record is one data row keyed by header name.
type Record struct {
	Row    int
	Fields map[string]interface{}
}

func (r Record) Get(column string) interface{} {
	return r.Fields[column]
}

// Records splits raw values into the header and its data records.
// Rows whose cells are all empty are skipped, but row numbers still count them.
func Records(values [][]interface{}) ([]string, []Record) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = strings.TrimSpace(cellText(h))
	}
	records := make([]Record, 0, len(values)-1)
	for i, raw := range values[1:] {
		if isBlankRow(raw) {
			continue
		}
		fields := make(map[string]interface{}, len(headers))
		for c, h := range headers {
			if h == "" {
				continue
			}
			if c < len(raw) {
				fields[h] = raw[c]
			} else {
				fields[h] = ""
			}
		}
		records = append(records, Record{Row: i + 2, Fields: fields})
	}
	return headers, records
}

// RowValues lays fields out in header order; unknown headers get "".
func RowValues(headers []string, fields map[string]interface{}) []interface{} {
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		if v, ok := fields[h]; ok && v != nil {
			row[i] = v
		} else {
			row[i] = ""
		}
	}
	return row
}

// ColumnIndex returns the 1-based column of name, or 0 when absent.
func ColumnIndex(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i + 1
		}
	}
	return 0
}

// HeaderOf returns the header row of values.
func HeaderOf(values [][]interface{}) []string {
	headers, _ := Records(values[:min(1, len(values))])
	return headers
}

func isBlankRow(row []interface{}) bool {
	for _, v := range row {
		if strings.TrimSpace(cellText(v)) != "" {
			return false
		}
	}
	return true
}

func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
