package docpipe

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// officeDialect describes where a zipped XML word processor format keeps
// its body and how it marks paragraphs and headings.
type officeDialect struct {
	method string
	member string
	// paragraph reports whether an element opens a paragraph and, for
	// formats that mark headings on the element itself, its level.
	paragraph func(xml.StartElement) (bool, int)
	// style reads a heading level from a style reference inside the
	// paragraph; nil when the format has none.
	style func(xml.StartElement) (int, bool)
}

var docxDialect = officeDialect{
	method: "docx",
	member: "word/document.xml",
	paragraph: func(e xml.StartElement) (bool, int) {
		return e.Name.Local == "p", 0
	},
	style: func(e xml.StartElement) (int, bool) {
		if e.Name.Local != "pStyle" {
			return 0, false
		}
		return docxHeadingLevel(attr(e, "val")), true
	},
}

var odtDialect = officeDialect{
	method: "odt",
	member: "content.xml",
	paragraph: func(e xml.StartElement) (bool, int) {
		switch e.Name.Local {
		case "p":
			return true, 0
		case "h":
			level, err := strconv.Atoi(attr(e, "outline-level"))
			if err != nil || level < 1 {
				level = 1
			}
			return true, min(level, 6)
		}
		return false, 0
	},
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// extractOffice streams the body XML and emits one section per non-empty
// paragraph or heading.
func extractOffice(path string, d officeDialect, doc *Document) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	rc, err := zr.Open(d.member)
	if err != nil {
		return fmt.Errorf("%s not found in archive", d.member)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var buf strings.Builder
	depth, level := 0, 0
	paragraphs := 0

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if ok, l := d.paragraph(t); ok {
				if depth == 0 {
					buf.Reset()
					level = l
				}
				depth++
				continue
			}
			if depth == 0 {
				continue
			}
			if d.style != nil {
				if l, ok := d.style(t); ok {
					level = l
				}
			}
			switch t.Name.Local {
			case "tab":
				buf.WriteByte('\t')
			case "br", "line-break", "cr":
				buf.WriteByte('\n')
			case "s":
				buf.WriteByte(' ')
			}
		case xml.CharData:
			if depth > 0 {
				buf.Write(t)
			}
		case xml.EndElement:
			if ok, _ := d.paragraph(xml.StartElement{Name: t.Name}); !ok || depth == 0 {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			text := strings.TrimSpace(buf.String())
			if text == "" {
				continue
			}
			paragraphs++
			if level > 0 {
				if doc.Title == "" {
					doc.Title = text
				}
				doc.Sections = append(doc.Sections, Section{Title: text, Level: level, Text: text, Type: "heading"})
			} else {
				doc.Sections = append(doc.Sections, Section{Text: text, Type: "paragraph"})
			}
		}
	}
	doc.Method = d.method
	doc.Metadata["paragraphs"] = paragraphs
	return nil
}

// docxHeadingLevel maps paragraph style ids such as "Heading2", "Title" or
// localised "Titre1" to a heading level.
func docxHeadingLevel(style string) int {
	s := strings.ToLower(style)
	switch s {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
			return int(rest[0] - '0')
		}
	}
	return 0
}
