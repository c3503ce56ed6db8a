// Command structura converts unstructured documents into structured data.
//
//	structura serve                       dashboard, JSON API, MCP and worker
//	structura extract invoice.pdf         print the extracted document
//	structura process notes.txt --format csv
//	structura export report.pdf --out out --formats json,excel,summary
//	structura themes | structura css --theme dark_blue
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/structura/config"
)

var version = "dev"

var (
	flagConfig string
	flagEnv    []string

	// cfg and logger are set by PersistentPreRunE.
	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "structura",
		Short: "Transform unstructured documents into structured data",
		Long: `structura extracts text from PDFs, images, spreadsheets and office
documents, asks an OpenAI compatible model to structure it as JSON, CSV or a
table, extracts entities, classifies and summarises, and exports the result.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(flagConfig, flagEnv...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = c
			logger = cfg.NewLogger(cmd.ErrOrStderr())
			slog.SetDefault(logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	root.PersistentFlags().StringSliceVar(&flagEnv, "env-file", nil, "dotenv files to load (default .env)")

	root.AddCommand(
		newServeCmd(),
		newExtractCmd(),
		newProcessCmd(),
		newExportCmd(),
		newThemesCmd(),
		newCSSCmd(),
		newRouteCmd(),
		newHashPasswordCmd(),
	)
	return root
}
