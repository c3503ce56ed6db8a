package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/structura/dashboard"
	"github.com/hazyhaar/structura/shield"
)

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard, JSON API, MCP endpoint and background worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				cfg.Listen = listen
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func serve(ctx context.Context) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.AI.APIKey == "" {
		logger.Warn("OPENROUTER_API_KEY is not set; documents will fail at the AI step")
	}
	auth := shield.ParseAuthHash(cfg.AuthHash)
	if auth == nil {
		logger.Warn("dashboard basic auth disabled (set STRUCTURA_AUTH_HASH)")
	}

	dash, err := dashboard.New(dashboard.Config{
		Store:            a.store,
		Worker:           a.worker,
		Extract:          a.extract,
		Structurer:       a.s,
		Themes:           a.themes,
		Monitor:          a.monitor,
		Events:           a.events,
		Breaker:          a.routed.Breaker(),
		MCP:              a.mcpServer(),
		UploadDir:        cfg.UploadDir(),
		ExportDir:        cfg.ExportDir(),
		DefaultTheme:     cfg.Theme,
		Auth:             auth,
		UploadsPerMinute: cfg.UploadsPerMinute,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	go a.worker.Run(ctx)
	go a.monitor.RunSampler(ctx, 30*time.Second)
	go a.router.Watch(ctx, a.db, 15*time.Second)
	go pruneCache(ctx, a, 7*24*time.Hour)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           dash.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("structura listening", "addr", cfg.Listen, "model", a.s.Model(), "db", cfg.Database())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// pruneCache drops AI cache rows older than maxAge once an hour.
func pruneCache(ctx context.Context, a *app, maxAge time.Duration) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.store.Cache().Prune(ctx, maxAge)
			if err != nil {
				logger.Warn("cache prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("cache pruned", "rows", n)
			}
		}
	}
}
