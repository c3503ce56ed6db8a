package docpipe

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// extractPDF reads page text from content streams and the document info
// dictionary. A PDF without a text layer is not an error: it comes back
// with empty text and Quality.NeedsOCR set.
func extractPDF(path string, doc *Document) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return fmt.Errorf("pdfcpu read: %w", err)
	}

	doc.Method = "pdfcpu"
	doc.Pages = ctx.PageCount
	for k, v := range pdfInfo(ctx) {
		doc.Metadata[k] = v
	}

	var all strings.Builder
	for page := 1; page <= ctx.PageCount; page++ {
		text := pageText(ctx, page)
		if text == "" {
			continue
		}
		doc.Sections = append(doc.Sections, Section{
			Text:     text,
			Type:     "page",
			Metadata: map[string]string{"page": strconv.Itoa(page)},
		})
		all.WriteString(text)
		all.WriteByte('\n')
	}
	doc.RawText = all.String()

	if t, _ := doc.Metadata["title"].(string); t != "" {
		doc.Title = t
	}
	doc.Quality = measure(doc.RawText, ctx.PageCount, hasImages(ctx))
	return nil
}

// pdfInfo returns the info dictionary under the keys the API reports.
// Configuration also carries a CreationDate, so fields are read through
// the embedded XRefTable explicitly.
func pdfInfo(ctx *model.Context) map[string]string {
	x := ctx.XRefTable
	return map[string]string{
		"title":             x.Title,
		"author":            x.Author,
		"subject":           x.Subject,
		"creator":           x.Creator,
		"producer":          x.Producer,
		"creation_date":     x.CreationDate,
		"modification_date": x.ModDate,
	}
}

func measure(text string, pages int, images bool) *ExtractionQuality {
	q := &ExtractionQuality{
		PageCount:       pages,
		PrintableRatio:  computePrintableRatio(text),
		WordlikeRatio:   computeWordlikeRatio(text),
		HasImageStreams: images,
		VisualRefCount:  countVisualRefs(text),
	}
	if pages > 0 {
		q.CharsPerPage = float64(len([]rune(strings.TrimSpace(text)))) / float64(pages)
	}
	return q
}

func pageText(ctx *model.Context, page int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, page)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return showText(data)
}

// hasImages reports whether any page draws an image XObject.
func hasImages(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for page := 1; page <= ctx.PageCount; page++ {
			if len(pdfcpu.ImageObjNrs(ctx, page)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if st, found := sd.Find("Subtype"); found {
			if name, ok := st.(types.Name); ok && name == "Image" {
				return true
			}
		}
	}
	return false
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokString
	tokNumber
	tokArrayOpen
	tokArrayClose
	tokOperator
	tokOther
)

// streamLexer splits a content stream into the tokens text extraction
// cares about. Names and dictionaries come back as tokOther.
type streamLexer struct {
	data []byte
	pos  int
}

func isDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func (l *streamLexer) next() (tokKind, string) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			return tokString, l.literal()
		case c == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				l.pos += 2
				return tokOther, "<<"
			}
			return tokString, l.hex()
		case c == '>':
			l.pos++
			if l.pos < len(l.data) && l.data[l.pos] == '>' {
				l.pos++
			}
			return tokOther, ">>"
		case c == '[':
			l.pos++
			return tokArrayOpen, "["
		case c == ']':
			l.pos++
			return tokArrayClose, "]"
		case c == '/':
			l.pos++
			return tokOther, "/" + l.word()
		case c == '{' || c == '}' || c == ')':
			l.pos++
		default:
			w := l.word()
			if _, err := strconv.ParseFloat(w, 64); err == nil {
				return tokNumber, w
			}
			return tokOperator, w
		}
	}
	return tokEOF, ""
}

func (l *streamLexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literal reads a (string) with nesting and escapes.
func (l *streamLexer) literal() string {
	l.pos++
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return decodePDFBytes(out)
			}
		case '\\':
			if l.pos >= len(l.data) {
				continue
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\r', '\n':
				continue
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					c = byte(v)
				} else {
					c = e
				}
			}
		}
		out = append(out, c)
	}
	return decodePDFBytes(out)
}

func (l *streamLexer) hex() string {
	l.pos++
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if c := l.data[l.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return ""
		}
		out = append(out, byte(v))
	}
	return decodePDFBytes(out)
}

// decodePDFBytes handles UTF-16BE strings with a byte order mark and
// treats everything else as Latin-1.
func decodePDFBytes(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, len(b)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}

// showText runs the text-showing operators of a content stream and returns
// the text with line breaks where the stream moves to a new line.
func showText(data []byte) string {
	l := &streamLexer{data: data}
	var sb strings.Builder
	var pending []string
	var nums []float64
	inArray := false

	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
	}

	for {
		kind, val := l.next()
		switch kind {
		case tokEOF:
			return cleanPDFText(sb.String())
		case tokString:
			pending = append(pending, val)
		case tokNumber:
			n, _ := strconv.ParseFloat(val, 64)
			if inArray && n < -200 {
				pending = append(pending, " ")
			}
			nums = append(nums, n)
		case tokArrayOpen:
			inArray = true
		case tokArrayClose:
			inArray = false
		case tokOperator:
			switch val {
			case "Tj", "TJ":
				sb.WriteString(strings.Join(pending, ""))
			case "'", `"`:
				newline()
				sb.WriteString(strings.Join(pending, ""))
			case "Td", "TD":
				if len(nums) >= 2 && nums[len(nums)-1] != 0 {
					newline()
				} else if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
			case "T*", "Tm", "ET":
				newline()
			case "ID":
				l.skipInlineImage()
			}
			pending, nums = pending[:0], nums[:0]
		}
	}
}

// skipInlineImage jumps past binary inline image data up to EI.
func (l *streamLexer) skipInlineImage() {
	for l.pos+2 < len(l.data) {
		if isSpace(l.data[l.pos]) && l.data[l.pos+1] == 'E' && l.data[l.pos+2] == 'I' &&
			(l.pos+3 == len(l.data) || isSpace(l.data[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

// cleanPDFText collapses runs of spaces, drops unprintable runes and blank
// lines, and keeps line structure.
func cleanPDFText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return ' '
			}
			if !unicode.IsPrint(r) {
				return -1
			}
			return r
		}, line)
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
