package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is how timestamps are written to the store.
const TimestampLayout = "2006-01-02 15:04:05"

// PreciseTimestampLayout keeps nanoseconds; TimestampLayout still parses it.
const PreciseTimestampLayout = "2006-01-02 15:04:05.000000000"

var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// spreadsheet serial dates count days from 1899-12-30
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// CellString renders a raw cell value as a trimmed string; nil becomes "".
func CellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case decimal.Decimal:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// CellDecimal coerces a raw cell to a decimal, returning def when the cell is empty or unparsable.
// A lone comma is read as the decimal separator ("10,5").
func CellDecimal(v interface{}, def decimal.Decimal) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return def
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return def
		}
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case decimal.Decimal:
		return t
	}
	s := CellString(v)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := ParseDecimal(s)
	if err != nil {
		return def
	}
	return d
}

func CellInt(v interface{}, def int) int {
	d := CellDecimal(v, decimal.NewFromInt(int64(def)))
	return int(d.IntPart())
}

func CellBool(v interface{}, def bool) bool {
	switch t := v.(type) {
	case nil:
		return def
	case bool:
		return t
	case float64:
		return t != 0
	}
	switch strings.ToLower(CellString(v)) {
	case "true", "1", "yes", "y", "sim", "s":
		return true
	case "false", "0", "no", "n", "nao", "não":
		return false
	}
	return def
}

// ParseTimestamp accepts the layouts the store may hold, including serial date numbers.
func ParseTimestamp(v interface{}) (time.Time, bool) {
	if f, ok := v.(float64); ok {
		if f <= 0 {
			return time.Time{}, false
		}
		d := time.Duration(f * float64(24*time.Hour))
		t := serialEpoch.Add(d)
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local), true
	}
	s := CellString(v)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func FormatPreciseTimestamp(t time.Time) string {
	return t.Format(PreciseTimestampLayout)
}

// DateOnly truncates t to its calendar date in t's location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
