package structurer

import (
	"encoding/json"
	"strings"
)

// ParseResponse turns a model reply into structured data. For json the
// outermost {...} span is decoded (the whole reply when there is none); a
// decode failure yields {"raw_response", "parse_error"} instead of an error.
// Every other format is returned as trimmed text.
func ParseResponse(resp, format string) any {
	if format != FormatJSON {
		return strings.TrimSpace(resp)
	}
	candidate := resp
	if start, end := strings.Index(resp, "{"), strings.LastIndex(resp, "}"); start >= 0 && end > start {
		candidate = resp[start : end+1]
	}
	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return map[string]any{"raw_response": resp, "parse_error": err.Error()}
	}
	return v
}
