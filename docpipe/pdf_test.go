package docpipe

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestExtractPDF_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.pdf")
	if err := os.WriteFile(path, buildTextPDF("Hello World from page one"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := New(Config{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Method != "pdfcpu" || doc.Pages != 1 || doc.Kind != KindPDF {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Quality == nil || doc.Quality.PageCount != 1 {
		t.Fatalf("quality = %+v", doc.Quality)
	}
	if !strings.Contains(doc.RawText, "Hello World") {
		t.Errorf("RawText = %q", doc.RawText)
	}
	for _, k := range []string{"title", "author", "subject", "creator", "producer", "creation_date", "modification_date"} {
		if _, ok := doc.Metadata[k]; !ok {
			t.Errorf("metadata key %s missing", k)
		}
	}
}

func TestExtractPDF_InfoDictionary(t *testing.T) {
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(Invoice 42) Tj\nET"
	data := assemblePDFTrailer([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		streamObject("", stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		"<< /Title (Quarterly Invoice) /Author (Ada) /CreationDate (D:20240115103000Z) >>",
	}, "/Info 6 0 R ")
	path := filepath.Join(t.TempDir(), "info.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := New(Config{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	created, _ := doc.Metadata["creation_date"].(string)
	if !strings.Contains(created, "20240115") {
		t.Errorf("creation_date = %q", created)
	}
	if doc.Title != "Quarterly Invoice" || doc.Metadata["author"] != "Ada" {
		t.Errorf("title = %q, author = %v", doc.Title, doc.Metadata["author"])
	}
}

func TestExtractPDF_ImageOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.pdf")
	if err := os.WriteFile(path, buildImageOnlyPDF(), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := &Document{Metadata: map[string]any{}}
	if err := extractPDF(path, doc); err != nil {
		if !strings.Contains(err.Error(), "pdfcpu") {
			t.Fatalf("unexpected error: %v", err)
		}
		return
	}
	if strings.TrimSpace(doc.RawText) != "" {
		t.Errorf("RawText = %q", doc.RawText)
	}
	if !doc.Quality.HasImageStreams || !doc.Quality.NeedsOCR() {
		t.Errorf("quality = %+v", doc.Quality)
	}
}

func TestShowText(t *testing.T) {
	tests := []struct {
		name, stream, want string
	}{
		{"tj", "BT /F1 12 Tf 72 720 Td (Hello) Tj ET", "Hello"},
		{"same line", "BT (Hello) Tj 10 0 Td (World) Tj ET", "Hello World"},
		{"new line", "BT (Total) Tj 0 -14 Td (12.00) Tj ET", "Total\n12.00"},
		{"TJ kerning", "BT [(Inv) 20 (oice) -300 (42)] TJ ET", "Invoice 42"},
		{"quote operator", "BT (one) Tj (two) ' ET", "one\ntwo"},
		{"escapes", `BT (a\(b\)\\c\101) Tj ET`, `a(b)\cA`},
		{"nested parens", "BT (f(x)) Tj ET", "f(x)"},
		{"hex", "BT <48656C6C6F> Tj ET", "Hello"},
		{"utf16", "BT <FEFF00E9> Tj ET", "é"},
		{"two blocks", "BT (a) Tj ET BT (b) Tj ET", "a\nb"},
		{"inline image", "BI /W 1 /H 1 ID \x00\x01) EI BT (ok) Tj ET", "ok"},
	}
	for _, tt := range tests {
		if got := showText([]byte(tt.stream)); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestQualityMetrics(t *testing.T) {
	if r := computePrintableRatio("plain readable sentence"); r != 1 {
		t.Errorf("printable = %v", r)
	}
	if r := computePrintableRatio("ab\x01\x02�"); r >= 0.85 {
		t.Errorf("garbage printable = %v", r)
	}
	if r := computePrintableRatio(""); r != 1 {
		t.Errorf("empty printable = %v", r)
	}
	if r := computeWordlikeRatio("a b c d e f g h"); r != 0 {
		t.Errorf("wordlike = %v", r)
	}
	if r := computeWordlikeRatio("normal words in a sentence"); r != 0.8 {
		t.Errorf("wordlike = %v", r)
	}
	if n := countVisualRefs("see figure 3 and Table 2"); n < 2 {
		t.Errorf("visual refs = %d", n)
	}

	q := &ExtractionQuality{CharsPerPage: 30, HasImageStreams: true, PrintableRatio: 0.99}
	if !q.NeedsOCR() {
		t.Error("sparse text over images should need OCR")
	}
	q = &ExtractionQuality{CharsPerPage: 900, PrintableRatio: 0.99, VisualRefCount: 1, HasImageStreams: true}
	if q.NeedsOCR() || !q.HasVisualGap() {
		t.Errorf("quality = %+v", q)
	}
}

// buildTextPDF writes a one page PDF with correct xref offsets.
func buildTextPDF(text string) []byte {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + r.Replace(text) + ") Tj\nET"
	return assemblePDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		streamObject("", stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	})
}

func buildImageOnlyPDF() []byte {
	return assemblePDF([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /XObject << /Im1 4 0 R >> >> /Contents 5 0 R >>",
		streamObject("/Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode", "\xff\xd8\xff\xe0"),
		streamObject("", "q 100 0 0 100 72 692 cm /Im1 Do Q"),
	})
}

func streamObject(dict, data string) string {
	return "<< " + dict + " /Length " + strconv.Itoa(len(data)) + " >>\nstream\n" + data + "\nendstream"
}

func assemblePDF(objects []string) []byte {
	return assemblePDFTrailer(objects, "")
}

// assemblePDFTrailer appends extra entries such as /Info to the trailer.
func assemblePDFTrailer(objects []string, extra string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		b.WriteString(strconv.Itoa(i+1) + " 0 obj\n" + obj + "\nendobj\n")
	}
	xref := b.Len()
	b.WriteString("xref\n0 " + strconv.Itoa(len(objects)+1) + "\n0000000000 65535 f \n")
	for _, off := range offsets {
		s := strconv.Itoa(off)
		b.WriteString(strings.Repeat("0", 10-len(s)) + s + " 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size " + strconv.Itoa(len(objects)+1) + " /Root 1 0 R " + extra + ">>\nstartxref\n" + strconv.Itoa(xref) + "\n%%EOF\n")
	return []byte(b.String())
}
