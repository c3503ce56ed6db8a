package docpipe

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xuri/excelize/v2"
)

// extractCSV reads a comma separated file whose first record is the header.
func extractCSV(path string, doc *Document) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	doc.Method = "csv"
	return fillTable(doc, rows)
}

// extractXLSX reads the active worksheet of a workbook.
func extractXLSX(path string, doc *Document) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	doc.Method = "excelize"
	doc.Metadata["sheet"] = sheet
	doc.Metadata["sheets"] = sheets
	return fillTable(doc, rows)
}

// fillTable turns raw records into the document's table, text rendition
// and shape metadata. Short rows are padded to the header width.
func fillTable(doc *Document, records [][]string) error {
	for len(records) > 0 && blankRow(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		return fmt.Errorf("spreadsheet has no header row")
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			header[i] = "Unnamed: " + strconv.Itoa(i)
		}
	}
	width := len(header)
	for _, rec := range records[1:] {
		width = max(width, len(rec))
	}
	for i := len(header); i < width; i++ {
		header = append(header, "Unnamed: "+strconv.Itoa(i))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, width)
		copy(row, rec)
		rows = append(rows, row)
	}
	doc.Table = &Table{Columns: header, Rows: rows}
	doc.RawText = renderTable(doc.Table)
	doc.LineCount = len(rows) + 1

	types := make(map[string]string, width)
	for i, col := range header {
		types[col] = columnType(rows, i)
	}
	doc.Metadata["rows"] = len(rows)
	doc.Metadata["columns"] = width
	doc.Metadata["column_names"] = header
	doc.Metadata["data_types"] = types
	return nil
}

func blankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// renderTable lays the table out in right aligned columns.
func renderTable(t *Table) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	line := func(cells []string) {
		for _, c := range cells {
			fmt.Fprint(w, strings.ReplaceAll(strings.ReplaceAll(c, "\t", " "), "\n", " "), "\t")
		}
		fmt.Fprintln(w)
	}
	line(t.Columns)
	for _, r := range t.Rows {
		line(r)
	}
	w.Flush()
	return sb.String()
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "01/02/2006", "02/01/2006"}

// columnType infers int64, float64, bool, datetime or object from the
// non-empty cells of column i.
func columnType(rows [][]string, i int) string {
	kind := ""
	for _, r := range rows {
		v := strings.TrimSpace(r[i])
		if v == "" {
			continue
		}
		k := cellType(v)
		switch {
		case kind == "":
			kind = k
		case kind == k:
		case (kind == "int64" && k == "float64") || (kind == "float64" && k == "int64"):
			kind = "float64"
		default:
			return "object"
		}
	}
	if kind == "" {
		return "object"
	}
	return kind
}

func cellType(v string) string {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return "int64"
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return "float64"
	}
	switch strings.ToLower(v) {
	case "true", "false":
		return "bool"
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return "datetime"
		}
	}
	return "object"
}
