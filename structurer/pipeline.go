package structurer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/structura/docpipe"
)

// Pipeline step names used in Result.StepErrors.
const (
	StepStructure      = "structure"
	StepEntities       = "entities"
	StepClassification = "classification"
	StepSummary        = "summary"
)

// ProcessingMetadata describes one pipeline run.
type ProcessingMetadata struct {
	OutputFormat        []string   `json:"output_format"`
	ModelUsed           string     `json:"model_used"`
	TextLength          int        `json:"text_length"`
	TotalProcessingTime float64    `json:"total_processing_time"`
	AIProcessingTime    float64    `json:"ai_processing_time"`
	CacheStats          CacheStats `json:"cache_stats"`
}

// Result is the full outcome of Process. Success follows the structuring
// step; entity, classification and summary failures are listed in
// StepErrors.
type Result struct {
	Success        bool                `json:"success"`
	Error          string              `json:"error,omitempty"`
	OriginalData   *docpipe.Document   `json:"original_data,omitempty"`
	StructuredData any                 `json:"structured_data,omitempty"`
	Entities       *Entities           `json:"entities,omitempty"`
	Classification *Classification     `json:"classification,omitempty"`
	Summary        string              `json:"summary,omitempty"`
	StepErrors     map[string]string   `json:"step_errors,omitempty"`
	Metadata       *ProcessingMetadata `json:"processing_metadata,omitempty"`

	// Err is the failure behind Error, kept for errors.Is checks.
	Err error `json:"-"`
}

// Pipeline runs every AI step over an extracted document.
type Pipeline struct {
	s      *Structurer
	logger *slog.Logger
}

// NewPipeline returns a pipeline over s.
func NewPipeline(s *Structurer) *Pipeline {
	return &Pipeline{s: s, logger: s.opts.Logger}
}

// Structurer returns the underlying structurer.
func (p *Pipeline) Structurer() *Structurer { return p.s }

// structuringFormat maps a requested output format onto the format the model
// is asked for. Excel and summary exports are built from JSON.
func structuringFormat(formats []string) string {
	if len(formats) > 0 {
		switch f := formats[0]; f {
		case FormatJSON, FormatCSV, FormatTable:
			return f
		}
	}
	return FormatJSON
}

// Process structures doc.RawText in the first of formats (json when empty or
// not a model format),
// then extracts entities, classifies and summarises concurrently. A failed
// structuring step fails the result and skips the others.
func (p *Pipeline) Process(ctx context.Context, doc *docpipe.Document, formats []string, custom string) *Result {
	text := ""
	if doc != nil {
		text = doc.RawText
	}
	if strings.TrimSpace(text) == "" {
		return &Result{Success: false, Error: ErrNoText.Error(), Err: ErrNoText, OriginalData: doc}
	}
	if len(formats) == 0 {
		formats = []string{FormatJSON}
	}

	span := p.s.opts.Monitor.Start("process_document")
	start := time.Now()
	res := &Result{OriginalData: doc, StepErrors: map[string]string{}}

	structured, err := p.s.StructureData(ctx, text, structuringFormat(formats), custom)
	if err != nil {
		span.End(err)
		p.logger.ErrorContext(ctx, "processing pipeline failed", "document", docName(doc), "error", err)
		res.Error, res.Err = err.Error(), err
		res.StepErrors[StepStructure] = err.Error()
		res.Metadata = p.metadata(ctx, formats, text, start, 0)
		return res
	}
	res.Success = true
	res.StructuredData = structured.StructuredData

	var mu sync.Mutex
	fail := func(step string, err error) {
		mu.Lock()
		res.StepErrors[step] = err.Error()
		mu.Unlock()
		p.logger.WarnContext(ctx, "pipeline step failed", "step", step, "document", docName(doc), "error", err)
	}

	var g errgroup.Group
	g.SetLimit(3)
	g.Go(func() error {
		e, err := p.s.ExtractEntities(ctx, text)
		if err != nil {
			fail(StepEntities, err)
			return nil
		}
		res.Entities = e
		return nil
	})
	g.Go(func() error {
		c, err := p.s.ClassifyDocument(ctx, text)
		if err != nil {
			fail(StepClassification, err)
			return nil
		}
		res.Classification = c
		return nil
	})
	g.Go(func() error {
		sum, err := p.s.Summarize(ctx, text, DefaultSummaryWords)
		if err != nil {
			fail(StepSummary, err)
			return nil
		}
		res.Summary = sum
		return nil
	})
	_ = g.Wait()

	if len(res.StepErrors) == 0 {
		res.StepErrors = nil
	}
	res.Metadata = p.metadata(ctx, formats, text, start, structured.ProcessingTime)
	span.End(nil)
	return res
}

func (p *Pipeline) metadata(ctx context.Context, formats []string, text string, start time.Time, ai float64) *ProcessingMetadata {
	stats, err := p.s.CacheStats(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "cache stats unavailable", "error", err)
	}
	return &ProcessingMetadata{
		OutputFormat:        formats,
		ModelUsed:           p.s.opts.Model,
		TextLength:          utf8.RuneCountInString(text),
		TotalProcessingTime: time.Since(start).Seconds(),
		AIProcessingTime:    ai,
		CacheStats:          stats,
	}
}

func docName(doc *docpipe.Document) string {
	if doc == nil {
		return ""
	}
	return doc.Name
}
