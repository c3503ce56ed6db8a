// Package structurer turns extracted document text into structured data
// with a chat-completions model: structuring to JSON, CSV or table text,
// named entities, document classification and summaries. Results are
// cached by input hash.
package structurer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hazyhaar/structura/observability"
)

// DefaultSummaryWords bounds Summarize when maxWords is not positive.
const DefaultSummaryWords = 200

// Options configures a Structurer.
type Options struct {
	Model   string // reported as model_used, default DefaultModel
	Cache   Cache  // default NewMemoryCache()
	Monitor *observability.Monitor
	Logger  *slog.Logger
}

func (o *Options) defaults() {
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Cache == nil {
		o.Cache = NewMemoryCache()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Structurer runs AI operations over text.
type Structurer struct {
	c    Completer
	opts Options
}

// New returns a Structurer calling c.
func New(c Completer, opts Options) *Structurer {
	opts.defaults()
	return &Structurer{c: c, opts: opts}
}

// Model returns the model name reported in results.
func (s *Structurer) Model() string { return s.opts.Model }

// StructureResult is the outcome of StructureData.
type StructureResult struct {
	Success            bool    `json:"success"`
	StructuredData     any     `json:"structured_data"`
	OutputFormat       string  `json:"output_format"`
	ModelUsed          string  `json:"model_used"`
	OriginalTextLength int     `json:"original_text_length"`
	ProcessingTime     float64 `json:"processing_time"`
	Cached             bool    `json:"cached"`
}

// Entities are the named entities found in a text.
type Entities struct {
	Persons        []string `json:"persons"`
	Organizations  []string `json:"organizations"`
	Locations      []string `json:"locations"`
	Dates          []string `json:"dates"`
	Numbers        []string `json:"numbers"`
	Emails         []string `json:"emails"`
	Phones         []string `json:"phones"`
	ProcessingTime float64  `json:"processing_time"`
	RawResponse    string   `json:"raw_response,omitempty"`
	ParseError     string   `json:"parse_error,omitempty"`
}

// Count is the total number of entities.
func (e *Entities) Count() int {
	return len(e.Persons) + len(e.Organizations) + len(e.Locations) +
		len(e.Dates) + len(e.Numbers) + len(e.Emails) + len(e.Phones)
}

// Classification describes what kind of document a text is.
type Classification struct {
	DocumentType   string   `json:"document_type"`
	Confidence     float64  `json:"confidence"`
	KeyTopics      []string `json:"key_topics"`
	Language       string   `json:"language"`
	Sentiment      string   `json:"sentiment"`
	ProcessingTime float64  `json:"processing_time"`
	RawResponse    string   `json:"raw_response,omitempty"`
	ParseError     string   `json:"parse_error,omitempty"`
}

// StructureData converts text to format ("json", "csv" or "table") with the
// default instructions, or custom ones when given.
func (s *Structurer) StructureData(ctx context.Context, text, format, custom string) (*StructureResult, error) {
	if format == "" {
		format = FormatJSON
	}
	key := CacheKey("structure", text, format, custom)
	var cached StructureResult
	if s.cached(ctx, key, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	span := s.opts.Monitor.Start("structure_data")
	start := time.Now()
	resp, err := s.complete(ctx, Prompt(text, format, custom))
	span.End(err)
	if err != nil {
		return nil, fmt.Errorf("structure data: %w", err)
	}
	res := &StructureResult{
		Success:            true,
		StructuredData:     ParseResponse(resp, format),
		OutputFormat:       format,
		ModelUsed:          s.opts.Model,
		OriginalTextLength: utf8.RuneCountInString(text),
		ProcessingTime:     time.Since(start).Seconds(),
	}
	s.store(ctx, key, res)
	return res, nil
}

// ExtractEntities lists persons, organizations, locations, dates, numbers,
// emails and phones found in text.
func (s *Structurer) ExtractEntities(ctx context.Context, text string) (*Entities, error) {
	key := CacheKey("entities", text)
	var cached Entities
	if s.cached(ctx, key, &cached) {
		return &cached, nil
	}

	span := s.opts.Monitor.Start("extract_entities")
	start := time.Now()
	resp, err := s.complete(ctx, entitiesPrompt(text))
	span.End(err)
	if err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}
	obj := asObject(ParseResponse(resp, FormatJSON))
	e := &Entities{
		Persons:        stringList(obj["persons"]),
		Organizations:  stringList(obj["organizations"]),
		Locations:      stringList(obj["locations"]),
		Dates:          stringList(obj["dates"]),
		Numbers:        stringList(obj["numbers"]),
		Emails:         stringList(obj["emails"]),
		Phones:         stringList(obj["phones"]),
		ProcessingTime: time.Since(start).Seconds(),
	}
	e.RawResponse, e.ParseError = parseFailure(obj)
	s.store(ctx, key, e)
	return e, nil
}

// ClassifyDocument guesses the document type, topics, language and
// sentiment of text.
func (s *Structurer) ClassifyDocument(ctx context.Context, text string) (*Classification, error) {
	key := CacheKey("classification", text)
	var cached Classification
	if s.cached(ctx, key, &cached) {
		return &cached, nil
	}

	span := s.opts.Monitor.Start("classify_document")
	start := time.Now()
	resp, err := s.complete(ctx, classifyPrompt(text))
	span.End(err)
	if err != nil {
		return nil, fmt.Errorf("classify document: %w", err)
	}
	obj := asObject(ParseResponse(resp, FormatJSON))
	c := &Classification{
		DocumentType:   scalarString(obj["document_type"]),
		Confidence:     confidence(obj["confidence"]),
		KeyTopics:      stringList(obj["key_topics"]),
		Language:       scalarString(obj["language"]),
		Sentiment:      scalarString(obj["sentiment"]),
		ProcessingTime: time.Since(start).Seconds(),
	}
	c.RawResponse, c.ParseError = parseFailure(obj)
	s.store(ctx, key, c)
	return c, nil
}

// Summarize returns a summary of at most maxWords words (200 when not
// positive).
func (s *Structurer) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	if maxWords <= 0 {
		maxWords = DefaultSummaryWords
	}
	key := CacheKey("summary", text, strconv.Itoa(maxWords))
	var cached string
	if s.cached(ctx, key, &cached) {
		return cached, nil
	}

	span := s.opts.Monitor.Start("create_summary")
	resp, err := s.complete(ctx, summaryPrompt(text, maxWords))
	span.End(err)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary := strings.TrimSpace(resp)
	s.store(ctx, key, summary)
	return summary, nil
}

// ClearCache drops every cached result.
func (s *Structurer) ClearCache(ctx context.Context) error {
	if err := s.opts.Cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.opts.Logger.InfoContext(ctx, "cache cleared")
	return nil
}

// CacheStats reports cache size and keys.
func (s *Structurer) CacheStats(ctx context.Context) (CacheStats, error) {
	return s.opts.Cache.Stats(ctx)
}

func (s *Structurer) complete(ctx context.Context, prompt string) (string, error) {
	return s.c.Complete(ctx, SystemMessage, prompt)
}

// cached decodes the entry for key into dst. Cache failures count as misses.
func (s *Structurer) cached(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.opts.Cache.Get(ctx, key)
	if err != nil {
		s.opts.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	if !ok || err != nil || json.Unmarshal(raw, dst) != nil {
		s.opts.Monitor.CacheMiss()
		return false
	}
	s.opts.Monitor.CacheHit()
	s.opts.Logger.DebugContext(ctx, "using cached result", "key", key)
	return true
}

func (s *Structurer) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err == nil {
		err = s.opts.Cache.Put(ctx, key, raw)
	}
	if err != nil {
		s.opts.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func parseFailure(obj map[string]any) (raw, parseErr string) {
	if pe, ok := obj["parse_error"].(string); ok {
		raw, _ = obj["raw_response"].(string)
		return raw, pe
	}
	return "", ""
}

// stringList accepts a JSON array of scalars (or a single scalar) and
// returns its non-empty items as strings.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return []string{}
		}
		items = []any{v}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := scalarString(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// confidence reads a number or a numeric string, clamped to [0, 1].
// Percentages above 1 are scaled down.
func confidence(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	return min(max(f, 0), 1)
}
