package adapters

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/HatiCode/tempalign/pkg/align"
)

// ToRawTable converts a DataFrame into the columnar form resolved by the
// alignment engine. The "ts" cells become the "timestamp" column in Unix
// seconds; every other key becomes a numeric column with NaN for nil or
// absent cells. Column order is timestamp, value, then the rest by name.
func ToRawTable(df *DataFrame, name, role string) (align.RawTable, error) {
	raw := align.RawTable{Name: name, Role: role}
	if df == nil {
		return raw, nil
	}

	keys := map[string]bool{}
	for _, r := range df.Rows {
		for k := range r {
			if k != "ts" {
				keys[k] = true
			}
		}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		if k != "value" {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	if keys["value"] {
		names = append([]string{"value"}, names...)
	}

	ts := make([]float64, len(df.Rows))
	cols := make([][]float64, len(names))
	for i := range cols {
		cols[i] = make([]float64, len(df.Rows))
	}

	for i, r := range df.Rows {
		t, err := rowTime(r["ts"])
		if err != nil {
			return align.RawTable{}, fmt.Errorf("stream %s row %d: %w", name, i, err)
		}
		ts[i] = t
		for c, col := range names {
			v, err := rowValue(r[col])
			if err != nil {
				return align.RawTable{}, fmt.Errorf("stream %s row %d column %s: %w", name, i, col, err)
			}
			cols[c][i] = v
		}
	}

	raw.Columns = make([]align.RawColumn, 0, len(names)+1)
	raw.Columns = append(raw.Columns, align.RawColumn{Name: align.DefaultTimestampColumn, Values: ts})
	for c, col := range names {
		raw.Columns = append(raw.Columns, align.RawColumn{Name: col, Values: cols[c]})
	}
	return raw, nil
}

func rowTime(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return 0, err
		}
		return unixSeconds(parsed), nil
	case time.Time:
		return unixSeconds(t), nil
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	default:
		return 0, fmt.Errorf("unsupported timestamp %T", v)
	}
}

func rowValue(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unsupported value %T", v)
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
