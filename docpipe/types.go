package docpipe

// Format identifies a file type by extension.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
	FormatDocx Format = "docx"
	FormatODT  Format = "odt"
)

// Kind groups formats that share an extractor.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindImage       Kind = "image"
	KindText        Kind = "text"
	KindSpreadsheet Kind = "spreadsheet"
	KindDocument    Kind = "document"
)

// Section is a structural unit of a document.
type Section struct {
	Title    string            `json:"title,omitempty"`
	Level    int               `json:"level"` // heading level 1-6, 0 for body
	Text     string            `json:"text"`
	Type     string            `json:"type"` // heading, paragraph, page, table, list
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Table is tabular content read from a spreadsheet.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Document is the result of extracting a file.
type Document struct {
	Path          string             `json:"path"`
	Name          string             `json:"name"`
	Format        Format             `json:"format"`
	Kind          Kind               `json:"kind"`
	Size          int64              `json:"size"`
	Title         string             `json:"title,omitempty"`
	Sections      []Section          `json:"sections,omitempty"`
	RawText       string             `json:"raw_text"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
	Pages         int                `json:"pages,omitempty"`
	Method        string             `json:"method"`
	OCRConfidence float64            `json:"ocr_confidence,omitempty"`
	LineCount     int                `json:"line_count,omitempty"`
	Table         *Table             `json:"table,omitempty"`
	Quality       *ExtractionQuality `json:"quality,omitempty"`
}

// Validation is the outcome of Validate. Error is set when Valid is false.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Size  int64  `json:"file_size,omitempty"`
	Kind  Kind   `json:"file_type,omitempty"`
	Ext   string `json:"extension,omitempty"`
}
