// Package docpipe validates uploaded files and extracts their text and
// metadata.
//
// Supported formats, grouped by kind:
//   - pdf: .pdf (pdfcpu content streams, document info, quality scoring)
//   - image: .png .jpg .jpeg .tiff .tif .bmp (OCR via tesseract)
//   - text: .txt .md
//   - spreadsheet: .csv .xlsx (excelize)
//   - document: .html .htm .docx .odt
//
// Legacy binary .xls workbooks are refused with ErrUnsupported.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	doc, err := pipe.Extract(ctx, "/path/to/invoice.pdf")
//	fmt.Println(doc.Kind, doc.Pages, len(doc.RawText))
package docpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

var extensions = map[string]Format{
	".pdf":      FormatPDF,
	".png":      FormatPNG,
	".jpg":      FormatJPEG,
	".jpeg":     FormatJPEG,
	".tif":      FormatTIFF,
	".tiff":     FormatTIFF,
	".bmp":      FormatBMP,
	".txt":      FormatTXT,
	".text":     FormatTXT,
	".md":       FormatMD,
	".markdown": FormatMD,
	".csv":      FormatCSV,
	".xlsx":     FormatXLSX,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".docx":     FormatDocx,
	".odt":      FormatODT,
}

// Pipeline is the document extraction engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{cfg: cfg, logger: cfg.Logger}
}

// MaxFileSize returns the configured upload ceiling.
func (p *Pipeline) MaxFileSize() int64 { return p.cfg.MaxFileSize }

// Detect returns the document format based on file extension.
func Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	if ext == ".xls" {
		return "", fmt.Errorf("%w: %q (legacy Excel, save as .xlsx)", ErrUnsupported, ext)
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

// KindOf returns the extractor family of a format.
func KindOf(f Format) Kind {
	switch f {
	case FormatPDF:
		return KindPDF
	case FormatPNG, FormatJPEG, FormatTIFF, FormatBMP:
		return KindImage
	case FormatCSV, FormatXLSX:
		return KindSpreadsheet
	case FormatHTML, FormatDocx, FormatODT:
		return KindDocument
	default:
		return KindText
	}
}

// SupportedFormats lists accepted extensions per kind.
func SupportedFormats() map[Kind][]string {
	out := map[Kind][]string{}
	for _, ext := range sortedExtensions() {
		k := KindOf(extensions[ext])
		out[k] = append(out[k], ext)
	}
	return out
}

func sortedExtensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// check stats path and resolves its format.
func (p *Pipeline) check(path string) (os.FileInfo, Format, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s is a directory", ErrUnsupported, filepath.Base(path))
	}
	if info.Size() > p.cfg.MaxFileSize {
		return info, "", fmt.Errorf("%w: file size (%d bytes) exceeds maximum allowed size (%d bytes)",
			ErrFileTooLarge, info.Size(), p.cfg.MaxFileSize)
	}
	if info.Size() == 0 {
		return info, "", ErrEmptyFile
	}
	format, err := Detect(path)
	if err != nil {
		return info, "", err
	}
	return info, format, nil
}

// Validate reports whether path exists, fits the size limit and has a
// supported extension.
func (p *Pipeline) Validate(path string) Validation {
	info, format, err := p.check(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Validation{Error: "File does not exist"}
		}
		return Validation{Error: err.Error()}
	}
	return Validation{
		Valid: true,
		Size:  info.Size(),
		Kind:  KindOf(format),
		Ext:   strings.ToLower(filepath.Ext(path)),
	}
}

// Extract validates path and runs the extractor for its format.
func (p *Pipeline) Extract(ctx context.Context, path string) (*Document, error) {
	info, format, err := p.check(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := &Document{
		Path:     path,
		Name:     filepath.Base(path),
		Format:   format,
		Kind:     KindOf(format),
		Size:     info.Size(),
		Metadata: map[string]any{},
	}
	start := time.Now()
	p.logger.Debug("extracting document", "name", doc.Name, "format", format)

	switch format {
	case FormatPDF:
		err = extractPDF(path, doc)
	case FormatPNG, FormatJPEG, FormatTIFF, FormatBMP:
		err = p.extractImage(ctx, path, doc)
	case FormatTXT:
		err = extractText(path, doc)
	case FormatMD:
		err = extractMarkdown(path, doc)
	case FormatCSV:
		err = extractCSV(path, doc)
	case FormatXLSX:
		err = extractXLSX(path, doc)
	case FormatHTML:
		err = extractHTMLFile(path, doc)
	case FormatDocx:
		err = extractOffice(path, docxDialect, doc)
	case FormatODT:
		err = extractOffice(path, odtDialect, doc)
	default:
		err = fmt.Errorf("%w: no extractor for %s", ErrUnsupported, format)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s (%s): %w", doc.Name, format, err)
	}

	finish(doc)
	p.logger.Info("document extracted",
		"name", doc.Name, "format", format, "method", doc.Method,
		"chars", len(doc.RawText), "duration_ms", time.Since(start).Milliseconds())
	return doc, nil
}

// finish fills RawText and Title from sections when the extractor left
// them empty.
func finish(doc *Document) {
	if doc.RawText == "" && len(doc.Sections) > 0 {
		var sb strings.Builder
		for i, s := range doc.Sections {
			if i > 0 {
				sb.WriteByte('\n')
			}
			if s.Title != "" && s.Title != s.Text {
				sb.WriteString(s.Title)
				sb.WriteByte('\n')
			}
			sb.WriteString(s.Text)
		}
		doc.RawText = sb.String()
	}
	if doc.Title == "" {
		doc.Title = firstLine(doc.RawText)
	}
}
