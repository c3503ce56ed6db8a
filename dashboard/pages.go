package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/structura/docpipe"
	"github.com/hazyhaar/structura/export"
	"github.com/hazyhaar/structura/shield"
	"github.com/hazyhaar/structura/store"
	"github.com/hazyhaar/structura/structurer"
)

type pages struct {
	index    *template.Template
	document *template.Template
}

var funcs = template.FuncMap{
	"bytes": func(n int64) string {
		if n < 0 {
			n = 0
		}
		return humanize.Bytes(uint64(n))
	},
	"ago":   humanize.Time,
	"comma": func(n int) string { return humanize.Comma(int64(n)) },
	"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"kb":    func(n int64) string { return fmt.Sprintf("%.1f KB", float64(n)/1024) },
	"upper": strings.ToUpper,
}

func parsePages() (*pages, error) {
	parse := func(page string) (*template.Template, error) {
		return template.New("layout.html").Funcs(funcs).ParseFS(assets, "templates/layout.html", "templates/"+page)
	}
	index, err := parse("index.html")
	if err != nil {
		return nil, fmt.Errorf("dashboard: parse index: %w", err)
	}
	document, err := parse("document.html")
	if err != nil {
		return nil, fmt.Errorf("dashboard: parse document: %w", err)
	}
	return &pages{index: index, document: document}, nil
}

// themeOption is one entry of the sidebar theme picker.
type themeOption struct {
	ID       string
	Name     string
	Preview  template.CSS
	Selected bool
}

// layoutView carries what every page needs.
type layoutView struct {
	Title        string
	Theme        string
	ThemeName    string
	Themes       []themeOption
	Formats      []string
	Selected     []string
	Accept       string
	MaxFileSize  int64
	Error        string
	Back         string
	RefreshAfter int
}

// Theme tokens are validated when registered, so Preview is safe as CSS.
func (s *Server) layout(r *http.Request, title string) layoutView {
	current := s.themeOf(r)
	v := layoutView{
		Title:       title,
		Theme:       current,
		Formats:     OutputFormats,
		Selected:    DefaultFormats,
		Accept:      accept(),
		MaxFileSize: s.cfg.Extract.MaxFileSize(),
	}
	for _, t := range s.cfg.Themes.List() {
		if t.ID == current {
			v.ThemeName = t.Name
		}
		v.Themes = append(v.Themes, themeOption{
			ID: t.ID, Name: t.Name, Preview: template.CSS(t.Preview()), Selected: t.ID == current,
		})
	}
	return v
}

// themeOf picks ?theme= (when known), then the cookie, then the default.
func (s *Server) themeOf(r *http.Request) string {
	if id := r.URL.Query().Get("theme"); id != "" {
		if _, err := s.cfg.Themes.Get(id); err == nil {
			return id
		}
	}
	if c, err := r.Cookie(ThemeCookie); err == nil {
		if _, err := s.cfg.Themes.Get(c.Value); err == nil {
			return c.Value
		}
	}
	return s.cfg.DefaultTheme
}

// rememberTheme stores a valid ?theme= choice in the cookie.
func (s *Server) rememberTheme(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("theme")
	if id == "" {
		return
	}
	if _, err := s.cfg.Themes.Get(id); err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name: ThemeCookie, Value: id, Path: "/",
		MaxAge: 365 * 24 * 3600, HttpOnly: true, SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) uptime() time.Duration { return time.Since(s.started) }

type indexView struct {
	layoutView
	Documents []*store.Document
	Stats     []metric
	Inputs    map[docpipe.Kind][]string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.rememberTheme(w, r)
	v := indexView{layoutView: s.layout(r, "Data Structuring Platform"), Inputs: docpipe.SupportedFormats()}
	v.Error = r.URL.Query().Get("error")

	docs, err := s.cfg.Store.List(ctx, 50)
	if err != nil {
		shield.GetLogger(ctx).Error("list documents failed", "error", err)
		v.Error = "Could not load documents."
	}
	v.Documents = docs
	counts, _ := s.cfg.Store.Counts(ctx)
	queue, _ := s.cfg.Worker.Len(ctx)
	v.Stats = []metric{
		{"Queued", humanize.Comma(int64(queue))},
		{"Processing", humanize.Comma(int64(counts[store.StatusProcessing]))},
		{"Done", humanize.Comma(int64(counts[store.StatusDone]))},
		{"Failed", humanize.Comma(int64(counts[store.StatusFailed]))},
	}
	s.render(w, r, s.pages.index, v)
}

func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	doc, _, err := s.accept(r)
	if err != nil {
		http.Redirect(w, r, "/?error="+template.URLQueryEscaper(err.Error()), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/documents/"+doc.ID, http.StatusSeeOther)
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if _, err := s.remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Redirect(w, r, "/?error="+template.URLQueryEscaper(err.Error()), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// metric is one tile of a metrics row.
type metric struct {
	Label string
	Value string
}

type documentView struct {
	layoutView
	Doc    *store.Document
	Result *structurer.Result

	Overview []metric

	Table      template.HTML
	Structured string
	Outline    string
	JSONCheck  *export.JSONValidation
	CSVCheck   *export.CSVValidation

	EntitiesText   string
	EntityMetrics  []metric
	ClassifyText   string
	ClassifyMetric []metric
	SummaryWords   int
	StepErrors     []metric

	Exports []string
}

func (s *Server) handleDocumentPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := s.cfg.Store.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		shield.GetLogger(ctx).Error("load document failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.rememberTheme(w, r)
	v := documentView{layoutView: s.layout(r, doc.Name), Doc: doc}
	v.Back = "/"
	v.Selected = doc.Formats

	switch doc.Status {
	case store.StatusQueued, store.StatusProcessing:
		v.RefreshAfter = 3
	case store.StatusDone:
		var res structurer.Result
		if err := doc.DecodeResult(&res); err != nil {
			shield.GetLogger(ctx).Error("decode result failed", "document_id", doc.ID, "error", err)
			v.Error = "The stored result could not be read."
			break
		}
		v.Result = &res
		v.fill(&res)
	}
	s.render(w, r, s.pages.document, v)
}

// fill derives the display pieces of a finished result.
func (v *documentView) fill(res *structurer.Result) {
	if d := res.OriginalData; d != nil {
		items := d.Pages
		if items == 0 {
			items = d.LineCount
		}
		v.Overview = []metric{
			{"Pages / Items", humanize.Comma(int64(items))},
			{"Text Length", humanize.Comma(int64(len([]rune(d.RawText))))},
			{"File Size", fmt.Sprintf("%.1f KB", float64(d.Size)/1024)},
			{"Method", d.Method},
		}
	}

	if data := res.StructuredData; data != nil {
		if raw, err := json.MarshalIndent(data, "", "  "); err == nil {
			v.Structured = string(raw)
		}
		if text, ok := data.(string); ok {
			v.Structured = text
			if looksTabular(text) {
				c := export.ValidateCSV(text)
				v.CSVCheck = &c
			}
		} else {
			v.Outline = export.FormatJSON(data, 3)
			c := export.ValidateJSON(data)
			v.JSONCheck = &c
		}
		if table, err := export.RenderTable(data); err == nil {
			v.Table = table
		}
	}

	if e := res.Entities; e != nil {
		v.EntitiesText = export.FormatEntities(e)
		if e.ParseError == "" {
			v.EntityMetrics = []metric{
				{"People", humanize.Comma(int64(len(e.Persons)))},
				{"Organizations", humanize.Comma(int64(len(e.Organizations)))},
				{"Locations", humanize.Comma(int64(len(e.Locations)))},
				{"Dates", humanize.Comma(int64(len(e.Dates)))},
			}
		}
	}
	if c := res.Classification; c != nil {
		v.ClassifyText = export.FormatClassification(c)
		if c.ParseError == "" {
			kind := c.DocumentType
			if kind == "" {
				kind = "Unknown"
			}
			v.ClassifyMetric = []metric{
				{"Document Type", kind},
				{"Confidence", fmt.Sprintf("%.1f%%", c.Confidence*100)},
			}
		}
	}
	v.SummaryWords = len(strings.Fields(res.Summary))

	for step, msg := range res.StepErrors {
		v.StepErrors = append(v.StepErrors, metric{step, msg})
	}
	slices.SortFunc(v.StepErrors, func(a, b metric) int { return strings.Compare(a.Label, b.Label) })

	v.Exports = exportLabels(res, v.Doc.Formats)
}

// exportLabels lists the artifacts ExportResults will produce for res.
func exportLabels(res *structurer.Result, formats []string) []string {
	want := func(f string) bool { return slices.Contains(formats, f) }
	var out []string
	if res.StructuredData != nil {
		for _, l := range []string{export.LabelJSON, export.LabelCSV, export.LabelExcel} {
			if want(l) {
				out = append(out, l)
			}
		}
	}
	if res.Entities != nil {
		out = append(out, export.LabelEntities)
	}
	if res.Classification != nil {
		out = append(out, export.LabelClassification)
	}
	if want(export.LabelSummary) && res.Summary != "" {
		out = append(out, export.LabelSummary)
	}
	return append(out, export.LabelComplete)
}

func looksTabular(s string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.Contains(first, ",")
}

func accept() string {
	var exts []string
	for _, list := range docpipe.SupportedFormats() {
		exts = append(exts, list...)
	}
	slices.Sort(exts)
	return strings.Join(exts, ",")
}

// render executes into a buffer so a template error does not leave a half
// written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		shield.GetLogger(r.Context()).Error("render failed", "template", t.Name(), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
