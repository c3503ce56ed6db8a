package export

import (
	"encoding/csv"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// tablePolicy keeps only table markup and the class on <table>.
var tablePolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-z-]+$`)).OnElements("table")
	return p
}()

// RenderTable renders structured output as an HTML table: CSV text, an
// object (one row) or a list of objects. Cell text comes from the model, so
// it is escaped and the markup is passed through a sanitising policy.
func RenderTable(data any) (template.HTML, error) {
	var header []string
	var rows [][]string

	if s, ok := data.(string); ok {
		r := csv.NewReader(strings.NewReader(strings.TrimSpace(s)))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		records, err := r.ReadAll()
		if err != nil {
			return "", fmt.Errorf("export: table from csv: %w", err)
		}
		if len(records) == 0 {
			return "", fmt.Errorf("%w: empty csv", ErrUnsupportedData)
		}
		header, rows = records[0], records[1:]
	} else {
		h, raw, err := tabulate(data)
		if err != nil {
			return "", err
		}
		header = h
		for _, row := range raw {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = cellText(v)
			}
			rows = append(rows, cells)
		}
	}

	var b strings.Builder
	b.WriteString(`<table class="data-table"><thead><tr>`)
	for _, h := range header {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return template.HTML(tablePolicy.Sanitize(b.String())), nil
}
