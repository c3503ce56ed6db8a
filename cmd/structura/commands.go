package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/structura/connectivity"
	"github.com/hazyhaar/structura/dbopen"
	"github.com/hazyhaar/structura/docpipe"
	"github.com/hazyhaar/structura/export"
	"github.com/hazyhaar/structura/horosafe"
	"github.com/hazyhaar/structura/shield"
	"github.com/hazyhaar/structura/structurer"
	"github.com/hazyhaar/structura/theme"
)

func newExtractCmd() *cobra.Command {
	var textOnly bool
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract text and metadata from a file and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ocr := docpipe.NewTesseract()
			ocr.Binary, ocr.Lang = cfg.OCR.Binary, cfg.OCR.Lang
			pipe := docpipe.New(docpipe.Config{MaxFileSize: cfg.MaxFileBytes(), OCR: ocr, Logger: logger})
			doc, err := pipe.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if textOnly {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), doc.RawText)
				return err
			}
			return export.ExportJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().BoolVar(&textOnly, "text", false, "print only the extracted text")
	return cmd
}

func newProcessCmd() *cobra.Command {
	var format, prompt string
	var all bool
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Structure a file with the AI model and print the result",
		Long: `process extracts the file and asks the model to structure its text as json,
csv or table. With --all the full pipeline runs (entities, classification
and summary as well) and the complete result is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains([]string{structurer.FormatJSON, structurer.FormatCSV, structurer.FormatTable}, format) {
				return fmt.Errorf("--format must be json, csv or table, got %q", format)
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			doc, err := a.extract.Extract(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if all {
				res := a.pipeline.Process(ctx, doc, []string{format}, prompt)
				if !res.Success {
					return fmt.Errorf("processing failed: %s", res.Error)
				}
				return export.ExportJSON(out, res)
			}
			res, err := a.s.StructureData(ctx, doc.RawText, format, prompt)
			if err != nil {
				return err
			}
			return printStructured(out, res.StructuredData)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", structurer.FormatJSON, "output format: json, csv or table")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "custom instructions replacing the default prompt")
	cmd.Flags().BoolVar(&all, "all", false, "run the full pipeline and print every result")
	return cmd
}

func printStructured(w io.Writer, data any) error {
	if s, ok := data.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	return export.ExportJSON(w, data)
}

func newExportCmd() *cobra.Command {
	var out, prompt string
	var formats []string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Run the full pipeline on a file and write the export artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			doc, err := a.extract.Extract(ctx, args[0])
			if err != nil {
				return err
			}
			res := a.pipeline.Process(ctx, doc, formats, prompt)
			if !res.Success {
				return fmt.Errorf("processing failed: %s", res.Error)
			}
			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			files, exportErr := export.ExportResults(res, out, base, formats)

			labels := make([]string, 0, len(files))
			for l := range files {
				labels = append(labels, l)
			}
			slices.Sort(labels)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tFILE")
			for _, l := range labels {
				fmt.Fprintf(tw, "%s\t%s\n", l, files[l])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for step, msg := range res.StepErrors {
				logger.Warn("pipeline step failed", "step", step, "error", msg)
			}
			return exportErr
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory")
	cmd.Flags().StringSliceVar(&formats, "formats", []string{"json", "summary"}, "json, csv, excel, table, summary")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "custom instructions replacing the default prompt")
	return cmd
}

func newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the available colour themes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadThemes(cfg)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTONE\tDEFAULT")
			for _, t := range reg.List() {
				tone := "light"
				if theme.IsDark(t.Tokens.Merge(theme.Fallbacks())[theme.MainBg]) {
					tone = "dark"
				}
				def := ""
				if t.ID == cfg.Theme {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, tone, def)
			}
			return tw.Flush()
		},
	}
}

func newCSSCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "css",
		Short: "Print the resolved stylesheet of a theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadThemes(cfg)
			if err != nil {
				return err
			}
			if id == "" {
				id = cfg.Theme
			}
			css, err := reg.Stylesheet(id)
			if err != nil {
				return err
			}
			logger.Debug("stylesheet resolved", "theme", id, "size", humanize.Bytes(uint64(len(css.CSS))), "etag", css.ETag)
			_, err = io.WriteString(cmd.OutOrStdout(), css.CSS)
			return err
		},
	}
	cmd.Flags().StringVarP(&id, "theme", "t", "", "theme id (default from config)")
	return cmd
}

func newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route <service> <local|http|noop> [endpoint]",
		Short: "Point a service such as ai_complete at a local, remote or noop handler",
		Long: `route writes the routes table the running server watches. For example
"structura route ai_complete http https://llm.internal/complete" sends AI
calls to a remote completion service, "structura route ai_complete local"
returns them to the configured provider.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, strategy := args[0], connectivity.Strategy(args[1])
			if err := horosafe.ValidateIdentifier(service); err != nil {
				return err
			}
			endpoint := ""
			if len(args) == 3 {
				endpoint = args[2]
			}
			switch strategy {
			case connectivity.StrategyLocal, connectivity.StrategyNoop:
			case connectivity.StrategyHTTP:
				if endpoint == "" {
					return errors.New("http routes need an endpoint")
				}
			default:
				return fmt.Errorf("unknown strategy %q", strategy)
			}
			db, err := dbopen.Open(cfg.Database(), dbopen.WithMkdirAll(), dbopen.WithSchema(connectivity.Schema))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := connectivity.SetRoute(cmd.Context(), db, service, strategy, endpoint, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s %s\n", service, strategy, endpoint)
			return nil
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <user> <password>",
		Short: "Print a STRUCTURA_AUTH_HASH value for dashboard basic auth",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.Contains(args[0], ":") {
				return errors.New("user must not contain ':'")
			}
			hash, err := shield.HashPassword(args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", args[0], hash)
			return err
		},
	}
}
