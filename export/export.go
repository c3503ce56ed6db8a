// Package export writes pipeline results to JSON, CSV, Excel and text
// files, validates structured output, and formats it for display.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/hazyhaar/structura/horosafe"
	"github.com/hazyhaar/structura/structurer"
)

// Export labels returned by ExportResults.
const (
	LabelJSON           = "json"
	LabelCSV            = "csv"
	LabelExcel          = "excel"
	LabelEntities       = "entities"
	LabelClassification = "classification"
	LabelSummary        = "summary"
	LabelComplete       = "complete"
)

// ExportJSON writes data as indented JSON without HTML escaping.
func ExportJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// ExportCSV writes data as CSV. A string is written as is; an object becomes
// one row and a list of objects one row per item.
func ExportCSV(w io.Writer, data any) error {
	if s, ok := data.(string); ok {
		_, err := io.WriteString(w, s)
		return err
	}
	header, rows, err := tabulate(data)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = cellText(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportExcel writes an object or a list of objects as a single sheet
// workbook with a bold, frozen header row.
func ExportExcel(w io.Writer, data any) error {
	header, rows, err := tabulate(data)
	if err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("export: excel header: %w", err)
	}
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			switch v.(type) {
			case nil, string, float64, bool:
				cells[j] = v
			default:
				cells[j] = cellText(v)
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("export: excel row %d: %w", i+1, err)
		}
	}

	if len(header) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		last, _ := excelize.CoordinatesToCellName(len(header), 1)
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// ExportResults writes the artifacts of a pipeline result into dir and
// returns label -> path for every file written:
//
//	<base>_structured.json|csv|xlsx  formats "json", "csv", "excel" (or "xlsx")
//	<base>_entities.json             when entities are present
//	<base>_classification.json       when a classification is present
//	<base>_summary.txt               format "summary" and a non-empty summary
//	<base>_complete_results.json     always
//
// A failing artifact does not stop the others; the failures are joined in
// the returned error.
func ExportResults(res *structurer.Result, dir, base string, formats []string) (map[string]string, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil result", ErrUnsupportedData)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create %s: %w", dir, err)
	}
	base = horosafe.SafeFilename(base)
	want := func(f string) bool { return slices.Contains(formats, f) }

	out := map[string]string{}
	var errs []error
	write := func(label, name string, fn func(io.Writer) error) {
		path := filepath.Join(dir, base+name)
		if err := writeFile(path, fn); err != nil {
			slog.Error("export failed", "label", label, "path", path, "error", err)
			errs = append(errs, fmt.Errorf("export %s: %w", label, err))
			return
		}
		out[label] = path
	}

	if present(res.StructuredData) {
		data := res.StructuredData
		if want(LabelJSON) {
			write(LabelJSON, "_structured.json", func(w io.Writer) error { return ExportJSON(w, data) })
		}
		if want(LabelCSV) {
			write(LabelCSV, "_structured.csv", func(w io.Writer) error { return ExportCSV(w, data) })
		}
		if want(LabelExcel) || want("xlsx") {
			write(LabelExcel, "_structured.xlsx", func(w io.Writer) error { return ExportExcel(w, data) })
		}
	}
	if res.Entities != nil {
		write(LabelEntities, "_entities.json", func(w io.Writer) error { return ExportJSON(w, res.Entities) })
	}
	if res.Classification != nil {
		write(LabelClassification, "_classification.json", func(w io.Writer) error { return ExportJSON(w, res.Classification) })
	}
	if want(LabelSummary) && res.Summary != "" {
		write(LabelSummary, "_summary.txt", func(w io.Writer) error {
			_, err := io.WriteString(w, res.Summary)
			return err
		})
	}
	write(LabelComplete, "_complete_results.json", func(w io.Writer) error { return ExportJSON(w, res) })

	return out, errors.Join(errs...)
}

// FileName returns the file name ExportResults uses for label.
func FileName(base, label string) (string, bool) {
	suffix, ok := map[string]string{
		LabelJSON:           "_structured.json",
		LabelCSV:            "_structured.csv",
		LabelExcel:          "_structured.xlsx",
		LabelEntities:       "_entities.json",
		LabelClassification: "_classification.json",
		LabelSummary:        "_summary.txt",
		LabelComplete:       "_complete_results.json",
	}[label]
	if !ok {
		return "", false
	}
	return horosafe.SafeFilename(base) + suffix, true
}

// writeFile renders into memory, writes a temp file next to path and
// renames it over path. Readers holding the previous file keep a complete
// copy, and a failed export leaves nothing behind.
func writeFile(path string, fn func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	return true
}
