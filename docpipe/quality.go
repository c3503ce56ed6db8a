package docpipe

import (
	"regexp"
	"strings"
	"unicode"
)

// ExtractionQuality describes how much usable text a PDF yielded.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
	VisualRefCount  int     `json:"visual_ref_count"`
}

// NeedsOCR is true for scanned documents: almost no text over images, or
// text that is mostly unprintable.
func (q *ExtractionQuality) NeedsOCR() bool {
	return (q.CharsPerPage < 50 && q.HasImageStreams) || q.PrintableRatio < 0.85
}

// HasVisualGap is true when the text points at figures or tables that only
// exist as images.
func (q *ExtractionQuality) HasVisualGap() bool {
	return q.VisualRefCount > 0 && q.HasImageStreams
}

// computePrintableRatio counts printable runes over all runes. Private use
// code points, U+FFFD and control characters other than whitespace count
// against the ratio. Empty text scores 1.
func computePrintableRatio(text string) float64 {
	var total, good int
	for _, r := range text {
		total++
		switch {
		case r >= 0xE000 && r <= 0xF8FF, r == unicode.ReplacementChar:
		case r == '\n' || r == '\r' || r == '\t':
			good++
		case r >= 0x20 && unicode.IsPrint(r):
			good++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(good) / float64(total)
}

// computeWordlikeRatio is the share of whitespace separated tokens that are
// between 2 and 15 runes long.
func computeWordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	n := 0
	for _, f := range fields {
		if l := len([]rune(f)); l >= 2 && l <= 15 {
			n++
		}
	}
	return float64(n) / float64(len(fields))
}

var visualRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(see|refer\s+to|cf\.?|voir)\s+(the\s+|la\s+)?(figure|fig\.?|table|tableau|chart|graph|diagram|image|illustration)\s*\d`),
	regexp.MustCompile(`(?i)\b(figure|fig\.|table|chart)\s+\d+`),
}

func countVisualRefs(text string) int {
	n := 0
	for _, re := range visualRefPatterns {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}
