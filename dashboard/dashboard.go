// Package dashboard serves the structura web UI and JSON API: upload a
// document, follow its processing, read the structured result under the
// selected theme and download the exported artifacts.
//
//	srv, err := dashboard.New(dashboard.Config{Store: st, Worker: w, ...})
//	http.ListenAndServe(":8090", srv.Handler())
package dashboard

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/structura/connectivity"
	"github.com/hazyhaar/structura/docpipe"
	"github.com/hazyhaar/structura/idgen"
	"github.com/hazyhaar/structura/observability"
	"github.com/hazyhaar/structura/shield"
	"github.com/hazyhaar/structura/store"
	"github.com/hazyhaar/structura/structurer"
	"github.com/hazyhaar/structura/theme"
	"github.com/hazyhaar/structura/worker"
)

//go:embed static templates
var assets embed.FS

// ThemeCookie remembers the theme picked in the sidebar.
const ThemeCookie = "structura_theme"

// Config wires the dashboard to the rest of the service. Store, Worker,
// Extract and Themes are required.
type Config struct {
	Store      *store.Store
	Worker     *worker.Worker
	Extract    *docpipe.Pipeline
	Structurer *structurer.Structurer
	Themes     *theme.Registry
	Monitor    *observability.Monitor
	Events     *observability.EventLogger
	Breaker    *connectivity.CircuitBreaker
	MCP        *mcp.Server // nil disables /mcp

	UploadDir    string
	ExportDir    string
	DefaultTheme string // default theme.DefaultID

	Auth             *shield.BasicAuth // nil disables auth
	UploadsPerMinute int               // per IP, 0 disables the limit
	Logger           *slog.Logger
}

func (c *Config) defaults() error {
	if c.Store == nil || c.Worker == nil || c.Extract == nil || c.Themes == nil {
		return errors.New("dashboard: store, worker, extract and themes are required")
	}
	if c.UploadDir == "" {
		c.UploadDir = "data/uploads"
	}
	if c.ExportDir == "" {
		c.ExportDir = "data/exports"
	}
	if c.DefaultTheme == "" {
		c.DefaultTheme = theme.DefaultID
	}
	if _, err := c.Themes.Get(c.DefaultTheme); err != nil {
		return err
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Server holds the handlers.
type Server struct {
	cfg     Config
	pages   *pages
	spoolID idgen.Generator
	started time.Time
}

// New validates cfg and parses the embedded templates.
func New(cfg Config) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, pages: p, spoolID: idgen.NanoID(12), started: time.Now()}, nil
}

// Handler returns the routed handler behind the shield stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	opts := shield.Options{
		MaxBody: s.cfg.Extract.MaxFileSize() + 1<<20,
		Auth:    s.cfg.Auth,
		Logger:  s.cfg.Logger,
	}
	if s.cfg.UploadsPerMinute > 0 {
		opts.RateLimit = shield.NewRateLimiter(
			shield.Limit{Method: http.MethodPost, PathPrefix: "/api/documents", Max: s.cfg.UploadsPerMinute, Window: time.Minute},
			shield.Limit{Method: http.MethodPost, PathPrefix: "/upload", Max: s.cfg.UploadsPerMinute, Window: time.Minute},
		)
	}
	for _, mw := range shield.Stack(opts) {
		r.Use(mw)
	}

	static, _ := fs.Sub(assets, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	r.Get("/", s.handleIndex)
	r.Get("/theme.css", s.handleThemeCSS)
	r.Post("/upload", s.handleUploadForm)
	r.Get("/documents/{id}", s.handleDocumentPage)
	r.Post("/documents/{id}/delete", s.handleDeleteForm)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/themes", s.handleListThemes)
		r.Get("/themes/{id}", s.handleGetTheme)
		r.Get("/formats", s.handleFormats)
		r.Get("/stats", s.handleStats)
		r.Get("/documents", s.handleListDocuments)
		r.Post("/documents", s.handleUpload)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Get("/documents/{id}/export/{label}", s.handleExport)
	})

	if s.cfg.MCP != nil {
		srv := s.cfg.MCP
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}
	return r
}
