package export

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hazyhaar/structura/structurer"
)

const (
	maxEntitiesShown = 10
	maxTopicsShown   = 5
)

// FormatJSON renders data as a readable, indented outline. Values deeper
// than maxDepth are cut to 100 characters and lists longer than five items
// are abbreviated. Object keys are sorted.
func FormatJSON(data any, maxDepth int) string {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return formatValue(data, 0, maxDepth)
}

func formatValue(v any, depth, maxDepth int) string {
	if depth >= maxDepth {
		return truncate(cellText(v), 100)
	}
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		var b strings.Builder
		b.WriteString("{\n")
		for i, k := range keys {
			b.WriteString(strings.Repeat("  ", depth+1))
			fmt.Fprintf(&b, "%q: %s", k, formatValue(t[k], depth+1, maxDepth))
			if i < len(keys)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat("  ", depth) + "}")
		return b.String()
	case []any:
		if len(t) > 5 {
			head := make([]string, 3)
			for i := range head {
				head[i] = truncate(cellText(t[i]), 20)
			}
			return fmt.Sprintf("[%d items: %s...]", len(t), strings.Join(head, ", "))
		}
		parts := make([]string, len(t))
		for i, it := range t {
			parts[i] = formatValue(it, depth+1, maxDepth)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return cellText(v)
	}
}

// truncate cuts s to n runes, adding "..." when something was dropped.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// FormatEntities lists each non-empty entity type with up to ten values.
func FormatEntities(e *structurer.Entities) string {
	if e == nil {
		return ""
	}
	if e.ParseError != "" {
		return "Entities could not be parsed: " + e.ParseError
	}
	var b strings.Builder
	b.WriteString("Extracted Entities:\n\n")
	for _, group := range []struct {
		title  string
		values []string
	}{
		{"Persons", e.Persons},
		{"Organizations", e.Organizations},
		{"Locations", e.Locations},
		{"Dates", e.Dates},
		{"Numbers", e.Numbers},
		{"Emails", e.Emails},
		{"Phones", e.Phones},
	} {
		if len(group.values) == 0 {
			continue
		}
		b.WriteString(group.title + ":\n")
		writeBullets(&b, group.values, maxEntitiesShown)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatClassification lists the classification fields with up to five key
// topics.
func FormatClassification(c *structurer.Classification) string {
	if c == nil {
		return ""
	}
	if c.ParseError != "" {
		return "Classification could not be parsed: " + c.ParseError
	}
	var b strings.Builder
	b.WriteString("Document Classification:\n\n")
	fmt.Fprintf(&b, "Document Type: %s\n", c.DocumentType)
	fmt.Fprintf(&b, "Confidence: %s\n", strconv.FormatFloat(c.Confidence, 'f', -1, 64))
	b.WriteString("Key Topics:\n")
	writeBullets(&b, c.KeyTopics, maxTopicsShown)
	fmt.Fprintf(&b, "Language: %s\n", c.Language)
	fmt.Fprintf(&b, "Sentiment: %s\n", c.Sentiment)
	fmt.Fprintf(&b, "Processing Time: %.2f\n", c.ProcessingTime)
	return b.String()
}

func writeBullets(b *strings.Builder, values []string, limit int) {
	for _, v := range values[:min(len(values), limit)] {
		fmt.Fprintf(b, "  • %s\n", v)
	}
	if len(values) > limit {
		fmt.Fprintf(b, "  ... and %d more\n", len(values)-limit)
	}
}
