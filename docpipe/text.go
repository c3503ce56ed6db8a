package docpipe

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// extractText reads a plain text file whole.
func extractText(path string, doc *Document) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("file is not valid UTF-8")
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	doc.RawText = text
	doc.LineCount = len(strings.Split(text, "\n"))
	doc.Method = "text"
	doc.Metadata["file_size"] = doc.Size
	doc.Metadata["encoding"] = "utf-8"
	if body := normalizeWhitespace(text); body != "" {
		doc.Sections = []Section{{Text: body, Type: "paragraph"}}
	}
	return nil
}

// extractMarkdown splits a Markdown file on ATX headings.
func extractMarkdown(path string, doc *Document) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)
	doc.RawText = text
	doc.LineCount = len(strings.Split(text, "\n"))
	doc.Method = "markdown"
	doc.Metadata["encoding"] = "utf-8"

	var para strings.Builder
	flush := func() {
		if t := strings.TrimSpace(para.String()); t != "" {
			doc.Sections = append(doc.Sections, Section{Text: t, Type: "paragraph"})
		}
		para.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if level := headingLevel(trimmed); level > 0 {
			flush()
			heading := strings.TrimSpace(strings.Trim(trimmed, "#"))
			if heading == "" {
				continue
			}
			if doc.Title == "" {
				doc.Title = heading
			}
			doc.Sections = append(doc.Sections, Section{Title: heading, Level: level, Text: heading, Type: "heading"})
			continue
		}
		if trimmed == "" {
			flush()
			continue
		}
		if para.Len() > 0 {
			para.WriteByte(' ')
		}
		para.WriteString(trimmed)
	}
	flush()
	doc.Metadata["sections"] = len(doc.Sections)
	return nil
}

// headingLevel returns the ATX level of line, 0 when it is not a heading.
func headingLevel(line string) int {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || (n < len(line) && line[n] != ' ') {
		return 0
	}
	return n
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		cut := 200
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
