package export

import (
	"encoding/csv"
	"fmt"
	"slices"
	"strings"
)

// JSONStructure describes the top level of an object.
type JSONStructure struct {
	TotalKeys        int               `json:"total_keys"`
	NestedStructures int               `json:"nested_structures"`
	DataTypes        map[string]string `json:"data_types"`
}

// JSONValidation is the outcome of ValidateJSON. Issues are advisory:
// Valid is false when there is at least one.
type JSONValidation struct {
	Valid         bool           `json:"valid"`
	Error         string         `json:"error,omitempty"`
	Issues        []string       `json:"issues"`
	StructureInfo *JSONStructure `json:"structure_info,omitempty"`
}

// ValidateJSON checks that data is a non-empty object with at least one
// nested value and no list mixing item types.
func ValidateJSON(data any) JSONValidation {
	obj, ok := data.(map[string]any)
	if !ok {
		return JSONValidation{Error: "Data is not a dictionary", Issues: []string{}}
	}
	issues := []string{}
	if len(obj) == 0 {
		issues = append(issues, "Data is empty")
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	info := &JSONStructure{TotalKeys: len(obj), DataTypes: make(map[string]string, len(obj))}
	for _, k := range keys {
		switch obj[k].(type) {
		case map[string]any, []any:
			info.NestedStructures++
		}
		info.DataTypes[k] = typeName(obj[k])
	}
	if info.NestedStructures == 0 {
		issues = append(issues, "No nested structures found - data might be too flat")
	}
	for _, k := range keys {
		list, ok := obj[k].([]any)
		if !ok || len(list) < 2 {
			continue
		}
		first := typeName(list[0])
		for _, it := range list[1:] {
			if typeName(it) != first {
				issues = append(issues, fmt.Sprintf("Mixed data types in list '%s'", k))
				break
			}
		}
	}
	return JSONValidation{Valid: len(issues) == 0, Issues: issues, StructureInfo: info}
}

func typeName(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		if t == float64(int64(t)) {
			return "integer"
		}
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// CSVStructure describes a CSV text.
type CSVStructure struct {
	Headers      []string `json:"headers"`
	TotalRows    int      `json:"total_rows"`
	TotalColumns int      `json:"total_columns"`
}

// CSVValidation is the outcome of ValidateCSV.
type CSVValidation struct {
	Valid         bool          `json:"valid"`
	Error         string        `json:"error,omitempty"`
	Issues        []string      `json:"issues"`
	StructureInfo *CSVStructure `json:"structure_info,omitempty"`
}

// ValidateCSV requires a header and at least one data row and reports rows
// whose column count differs from the header. Quoted fields may contain
// commas.
func ValidateCSV(text string) CSVValidation {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return CSVValidation{Error: err.Error(), Issues: []string{}}
	}
	if len(records) < 2 {
		return CSVValidation{Error: "CSV must have at least headers and one data row", Issues: []string{}}
	}
	header := records[0]
	issues := []string{}
	for i, row := range records[1:] {
		if len(row) != len(header) {
			issues = append(issues, fmt.Sprintf("Row %d has %d columns, expected %d", i+1, len(row), len(header)))
		}
	}
	return CSVValidation{
		Valid:  len(issues) == 0,
		Issues: issues,
		StructureInfo: &CSVStructure{
			Headers:      header,
			TotalRows:    len(records) - 1,
			TotalColumns: len(header),
		},
	}
}
