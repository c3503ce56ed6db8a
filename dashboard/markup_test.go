package dashboard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/structura/docpipe"
	"github.com/hazyhaar/structura/store"
	"github.com/hazyhaar/structura/structurer"
	"github.com/hazyhaar/structura/theme"
)

// compound is one step of a selector: tag, classes and [attr=value] pairs.
type compound struct {
	tag     string
	classes []string
	attrs   map[string]string
	child   bool // joined to the previous step with '>'
}

// parseSelector handles the subset the theme emits: descendant and child
// combinators, tags, classes, attribute equality and pseudo-classes (ignored).
func parseSelector(sel string) []compound {
	sel = strings.ReplaceAll(sel, ">", " > ")
	var out []compound
	child := false
	for _, part := range strings.Fields(sel) {
		if part == ">" {
			child = true
			continue
		}
		c := compound{attrs: map[string]string{}, child: child}
		child = false
		if i := strings.Index(part, ":"); i >= 0 {
			part = part[:i]
		}
		for part != "" {
			switch part[0] {
			case '.':
				end := strings.IndexAny(part[1:], ".[")
				if end < 0 {
					end = len(part) - 1
				}
				c.classes = append(c.classes, part[1:end+1])
				part = part[end+1:]
			case '[':
				end := strings.IndexByte(part, ']')
				k, v, _ := strings.Cut(part[1:end], "=")
				c.attrs[k] = strings.Trim(v, `"'`)
				part = part[end+1:]
			default:
				end := strings.IndexAny(part, ".[")
				if end < 0 {
					end = len(part)
				}
				c.tag = part[:end]
				part = part[end:]
			}
		}
		out = append(out, c)
	}
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (c compound) matches(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	class, _ := attr(n, "class")
	have := strings.Fields(class)
	for _, want := range c.classes {
		found := false
		for _, h := range have {
			found = found || h == want
		}
		if !found {
			return false
		}
	}
	for k, v := range c.attrs {
		got, ok := attr(n, k)
		if !ok || (v != "" && got != v) {
			return false
		}
	}
	return true
}

// matchAt reports whether steps[:i+1] match with n as the subject of steps[i].
func matchAt(steps []compound, i int, n *html.Node) bool {
	if !steps[i].matches(n) {
		return false
	}
	if i == 0 {
		return true
	}
	if steps[i].child {
		return matchAt(steps, i-1, n.Parent)
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if matchAt(steps, i-1, p) {
			return true
		}
	}
	return false
}

func selectorMatches(doc *html.Node, sel string) bool {
	steps := parseSelector(sel)
	var found bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found {
			return
		}
		if matchAt(steps, len(steps)-1, n) {
			found = true
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func TestSelectorMatches(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<div class="progress x"><span class="bar"></span></div>
<nav class="tabs"><p><a class="tab" aria-selected="true"></a></p></nav>`))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		sel  string
		want bool
	}{
		{".progress > .bar", true},
		{".progress.x", true},
		{".tabs .tab[aria-selected=true]", true},
		{".tabs > .tab", false},
		{".tabs .tab[aria-selected=false]", false},
		{"span.bar:hover", true},
		{".sidebar p", false},
	}
	for _, tt := range tests {
		if got := selectorMatches(doc, tt.sel); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.sel, got, tt.want)
		}
	}
}

// renderedPages returns the dashboard pages in the states that together show
// every region: the index with an error, a queued document and a finished
// document with a failed step.
func renderedPages(t *testing.T) []*html.Node {
	t.Helper()
	f := setup(t)
	id := f.upload(t, "letter.txt", "Dear Charles, the engine works.")

	var bodies []string
	for _, path := range []string{"/?error=boom", "/documents/" + id} {
		rec := f.get(path)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, rec.Code)
		}
		bodies = append(bodies, rec.Body.String())
	}

	res := &structurer.Result{
		Success:        true,
		OriginalData:   &docpipe.Document{Name: "letter.txt", RawText: "Dear Charles", Method: "text", LineCount: 1},
		StructuredData: map[string]any{"letter": map[string]any{"author": "Ada"}},
		Entities:       &structurer.Entities{Persons: []string{"Ada"}},
		Summary:        "Ada writes.",
		StepErrors:     map[string]string{structurer.StepClassification: "model overloaded"},
	}
	doc := &store.Document{ID: "doc-1", Name: "letter.txt", Kind: "text", Status: store.StatusDone,
		Formats: []string{"json", "summary"}, CreatedAt: time.Now()}
	req := httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil)
	v := documentView{layoutView: f.srv.layout(req, doc.Name), Doc: doc, Result: res}
	v.fill(res)
	rec := httptest.NewRecorder()
	f.srv.render(rec, req, f.srv.pages.document, v)
	if rec.Code != http.StatusOK {
		t.Fatalf("render = %d %s", rec.Code, rec.Body)
	}
	bodies = append(bodies, rec.Body.String())

	var out []*html.Node
	for _, b := range bodies {
		n, err := html.Parse(strings.NewReader(b))
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, n)
	}
	return out
}

func TestThemeSelectorsMatchMarkup(t *testing.T) {
	pages := renderedPages(t)
	sheet, err := theme.Builtin()[0].Sheet()
	if err != nil {
		t.Fatal(err)
	}

	var selectors []string
	for _, r := range theme.Regions() {
		selectors = append(selectors, r.Selectors...)
	}
	for _, rule := range sheet.Rules {
		selectors = append(selectors, rule.Selectors...)
	}
	for _, sel := range selectors {
		matched := false
		for _, p := range pages {
			if selectorMatches(p, sel) {
				matched = true
				break
			}
		}
		if !matched {
			t.Errorf("selector %q matches nothing in the rendered pages", sel)
		}
	}
}
