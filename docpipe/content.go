package docpipe

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minLandmarkText is the visible text a <main> or <article> needs before
// it replaces the whole body as the structuring input.
const minLandmarkText = 200

var chromeRoles = map[string]bool{"navigation": true, "banner": true, "contentinfo": true, "complementary": true, "search": true}

var chromeHints = []string{"navbar", "menu", "breadcrumb", "cookie", "sidebar", "footer", "social", "share"}

// chrome reports whether n is page furniture rather than content: landmark
// tags and roles for navigation, banners and footers, class or id hints,
// and link lists where most of the text is anchors.
func chrome(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Nav, atom.Header, atom.Footer, atom.Aside, atom.Form:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "role":
			if chromeRoles[strings.ToLower(a.Val)] {
				return true
			}
		case "class", "id":
			v := strings.ToLower(a.Val)
			for _, h := range chromeHints {
				if strings.Contains(v, h) {
					return true
				}
			}
		}
	}
	if n.DataAtom == atom.Ul || n.DataAtom == atom.Ol || n.DataAtom == atom.Div {
		text := utf8.RuneCountInString(visibleText(n))
		return text > 0 && text < 400 && linkDensity(n, text) > 0.7
	}
	return false
}

// mainContent returns the subtree worth structuring: the first <main>, or
// the only <article>, when it carries enough text; otherwise root itself.
func mainContent(root *html.Node) *html.Node {
	for _, tag := range []atom.Atom{atom.Main, atom.Article} {
		nodes := findAll(root, tag)
		if len(nodes) == 0 || (tag == atom.Article && len(nodes) > 1) {
			continue
		}
		if utf8.RuneCountInString(visibleText(nodes[0])) >= minLandmarkText {
			return nodes[0]
		}
	}
	return root
}

// pruneChrome removes page furniture below n.
func pruneChrome(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if chrome(c) {
			n.RemoveChild(c)
		} else {
			pruneChrome(c)
		}
		c = next
	}
}

func linkDensity(n *html.Node, textLen int) float64 {
	if textLen == 0 {
		return 0
	}
	var links int
	for _, a := range findAll(n, atom.A) {
		links += utf8.RuneCountInString(visibleText(a))
	}
	return float64(links) / float64(textLen)
}

func findAll(root *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}
