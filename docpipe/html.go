package docpipe

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenStyle = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden|font-size\s*:\s*0[^.1-9]|opacity\s*:\s*0(\s|;|$)`)

// hidden reports whether an element is invisible to a reader: boilerplate
// containers, scripts, or inline styles that hide content.
func hidden(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Iframe:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if a.Val == "true" {
				return true
			}
		case "style":
			if hiddenStyle.MatchString(a.Val) {
				return true
			}
		}
	}
	return false
}

// extractHTMLFile narrows the page to its main content, collects visible
// blocks as sections and converts the content to Markdown, which becomes
// the raw text sent for structuring.
func extractHTMLFile(path string, doc *Document) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}
	pruneHidden(root)

	doc.Method = "html"
	doc.Title = pageTitle(root)
	content := mainContent(root)
	pruneChrome(content)
	walkBlocks(content, &doc.Sections)
	if len(doc.Sections) == 0 {
		if text := visibleText(content); text != "" {
			doc.Sections = []Section{{Text: text, Type: "paragraph"}}
		}
	}

	md, err := htmltomarkdown.ConvertNode(content)
	if err == nil {
		doc.RawText = strings.TrimSpace(string(md))
		doc.Method = "html-to-markdown"
	}
	doc.Metadata["sections"] = len(doc.Sections)
	doc.Metadata["main_content"] = content != root
	return nil
}

// pruneHidden removes hidden subtrees so neither sections nor Markdown see
// them.
func pruneHidden(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if hidden(c) {
			n.RemoveChild(c)
		} else {
			pruneHidden(c)
		}
		c = next
	}
}

func pageTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return visibleText(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := pageTitle(c); t != "" {
			return t
		}
	}
	return ""
}

var blockTypes = map[atom.Atom]string{
	atom.P:          "paragraph",
	atom.Blockquote: "paragraph",
	atom.Pre:        "paragraph",
	atom.Table:      "table",
	atom.Ul:         "list",
	atom.Ol:         "list",
	atom.Dl:         "list",
}

// walkBlocks appends headings and block elements in document order. Page
// chrome (nav, header, footer, aside) is skipped.
func walkBlocks(n *html.Node, out *[]Section) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Nav, atom.Header, atom.Footer, atom.Aside, atom.Head:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			if text := visibleText(n); text != "" {
				*out = append(*out, Section{Title: text, Level: int(n.Data[1] - '0'), Text: text, Type: "heading"})
			}
			return
		}
		if typ, ok := blockTypes[n.DataAtom]; ok {
			if text := visibleText(n); text != "" {
				*out = append(*out, Section{Text: text, Type: typ})
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkBlocks(c, out)
	}
}

func visibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return normalizeWhitespace(strings.Join(parts, " "))
}
