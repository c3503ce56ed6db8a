package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/structura/config"
	"github.com/hazyhaar/structura/connectivity"
	"github.com/hazyhaar/structura/dbopen"
	"github.com/hazyhaar/structura/docpipe"
	"github.com/hazyhaar/structura/observability"
	"github.com/hazyhaar/structura/store"
	"github.com/hazyhaar/structura/structurer"
	"github.com/hazyhaar/structura/theme"
	"github.com/hazyhaar/structura/vtq"
	"github.com/hazyhaar/structura/worker"
)

// app is the wired service graph shared by serve and the CLI commands.
type app struct {
	db       *sql.DB
	metrics  *observability.MetricsManager
	monitor  *observability.Monitor
	events   *observability.EventLogger
	store    *store.Store
	themes   *theme.Registry
	extract  *docpipe.Pipeline
	router   *connectivity.Router
	routed   *structurer.RoutedCompleter
	s        *structurer.Structurer
	pipeline *structurer.Pipeline
	worker   *worker.Worker
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := dbopen.Open(cfg.Database(),
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(store.Schema),
		dbopen.WithSchema(vtq.Schema),
		dbopen.WithSchema(observability.Schema),
		dbopen.WithSchema(connectivity.Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{db: db, store: store.New(db), events: observability.NewEventLogger(db)}
	a.metrics = observability.NewMetricsManager(db, 100, 10*time.Second)
	a.monitor = observability.NewMonitor(
		observability.WithMetrics(a.metrics),
		observability.WithMonitorLogger(logger),
	)

	a.themes, err = loadThemes(cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	ocr := docpipe.NewTesseract()
	ocr.Binary, ocr.Lang = cfg.OCR.Binary, cfg.OCR.Lang
	a.extract = docpipe.New(docpipe.Config{
		MaxFileSize: cfg.MaxFileBytes(),
		Root:        cfg.UploadDir(),
		OCR:         ocr,
		Logger:      logger,
	})

	a.router = connectivity.New(connectivity.WithLogger(logger))
	a.router.RegisterTransport(string(connectivity.StrategyHTTP), connectivity.HTTPFactory())
	a.extract.RegisterConnectivity(a.router)

	provider := structurer.NewOpenAIProvider(structurer.ProviderConfig{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     cfg.AI.Timeout,
		Logger:      logger,
	})
	structurer.RegisterCompleter(a.router, provider)

	retries := cfg.AI.MaxRetries
	if retries == 0 {
		retries = -1
	}
	a.routed = structurer.NewRoutedCompleter(a.router, structurer.RouteOptions{
		Timeout:    cfg.AI.Timeout,
		MaxRetries: retries,
		Backoff:    cfg.AI.RetryBackoff,
		Metrics:    a.metrics,
		Logger:     logger,
	})
	a.s = structurer.New(a.routed, structurer.Options{
		Model:   provider.Model(),
		Cache:   a.store.Cache(),
		Monitor: a.monitor,
		Logger:  logger,
	})
	a.pipeline = structurer.NewPipeline(a.s)
	a.worker = worker.New(db, a.store, a.extract, a.pipeline, worker.Options{
		Concurrency: cfg.Worker.Concurrency,
		Events:      a.events,
		Logger:      logger,
	})
	return a, nil
}

// mcpServer exposes the extraction and AI tools.
func (a *app) mcpServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "structura", Version: version}, nil)
	a.extract.RegisterMCP(srv)
	a.s.RegisterMCP(srv)
	return srv
}

func (a *app) close() {
	if a.router != nil {
		a.router.Close()
	}
	if a.metrics != nil {
		a.metrics.Close()
	}
	a.db.Close()
}

// loadThemes returns the builtin registry plus cfg.ThemesDir, and checks
// that the configured default theme exists.
func loadThemes(cfg *config.Config) (*theme.Registry, error) {
	reg := theme.NewRegistry()
	if cfg.ThemesDir != "" {
		if _, err := reg.LoadDir(cfg.ThemesDir); err != nil {
			return nil, fmt.Errorf("load themes: %w", err)
		}
	}
	if _, err := reg.Get(cfg.Theme); err != nil {
		return nil, fmt.Errorf("default theme: %w", err)
	}
	return reg, nil
}
