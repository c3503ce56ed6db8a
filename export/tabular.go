package export

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// tabulate flattens an object (one row) or a list (one row per item) into
// a header and rows of raw cell values. Object keys are sorted within each
// row; the header is the union of keys in first-seen order. Non-object list
// items land in a "value" column.
func tabulate(data any) ([]string, [][]any, error) {
	var items []any
	switch v := data.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	case []map[string]any:
		for _, m := range v {
			items = append(items, m)
		}
	default:
		return nil, nil, fmt.Errorf("%w: %T", ErrUnsupportedData, data)
	}

	var header []string
	index := map[string]int{}
	addCol := func(k string) {
		if _, ok := index[k]; !ok {
			index[k] = len(header)
			header = append(header, k)
		}
	}
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				addCol(k)
			}
		} else {
			addCol("value")
		}
	}

	rows := make([][]any, 0, len(items))
	for _, it := range items {
		row := make([]any, len(header))
		if m, ok := it.(map[string]any); ok {
			for k, v := range m {
				row[index[k]] = v
			}
		} else {
			row[index["value"]] = it
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// cellText renders a cell value for CSV and HTML. Nested values are JSON.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
