package structurer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hazyhaar/structura/observability"
)

// scripted answers by prompt shape and counts calls.
type scripted struct {
	mu    sync.Mutex
	calls map[string]int
	err   map[string]error
	reply map[string]string
}

func newScripted() *scripted {
	return &scripted{
		calls: map[string]int{},
		err:   map[string]error{},
		reply: map[string]string{
			"structure":      `Here you go: {"invoice": {"number": "F-1", "total": 42}} done`,
			"entities":       `{"persons": ["Ada Lovelace", 7], "organizations": "ACME", "emails": ["ada@example.com"]}`,
			"classification": `{"document_type": "invoice", "confidence": "0.9", "key_topics": ["billing"], "language": "en", "sentiment": "neutral"}`,
			"summary":        "  An invoice from ACME.  ",
		},
	}
}

func kindOf(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "Extract named entities"):
		return "entities"
	case strings.HasPrefix(prompt, "Classify the following"):
		return "classification"
	case strings.HasPrefix(prompt, "Create a concise summary"):
		return "summary"
	default:
		return "structure"
	}
}

func (s *scripted) Complete(_ context.Context, system, user string) (string, error) {
	if system != SystemMessage {
		return "", errors.New("unexpected system message")
	}
	k := kindOf(user)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[k]++
	if err := s.err[k]; err != nil {
		return "", err
	}
	return s.reply[k], nil
}

func (s *scripted) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

func TestStructureData_ParsesAndCaches(t *testing.T) {
	c := newScripted()
	mon := observability.NewMonitor()
	s := New(c, Options{Model: "m1", Monitor: mon})
	ctx := context.Background()

	res, err := s.StructureData(ctx, "Invoice F-1 total 42 €", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Cached || res.OutputFormat != FormatJSON || res.ModelUsed != "m1" {
		t.Errorf("result = %+v", res)
	}
	if res.OriginalTextLength != 22 {
		t.Errorf("original_text_length = %d, want 22 runes", res.OriginalTextLength)
	}
	obj, ok := res.StructuredData.(map[string]any)
	if !ok || obj["invoice"] == nil {
		t.Fatalf("structured = %#v", res.StructuredData)
	}

	again, err := s.StructureData(ctx, "Invoice F-1 total 42 €", FormatJSON, "")
	if err != nil {
		t.Fatal(err)
	}
	if !again.Cached {
		t.Error("second call should be cached")
	}
	if c.count("structure") != 1 {
		t.Errorf("model calls = %d, want 1", c.count("structure"))
	}
	if st := mon.CacheStats(); st.Hits != 1 || st.Misses != 1 {
		t.Errorf("cache stats = %+v", st)
	}

	// A different custom prompt is a different key.
	if _, err := s.StructureData(ctx, "Invoice F-1 total 42 €", FormatJSON, "only totals"); err != nil {
		t.Fatal(err)
	}
	if c.count("structure") != 2 {
		t.Errorf("model calls = %d, want 2", c.count("structure"))
	}
}

func TestStructureData_CSVIsText(t *testing.T) {
	c := newScripted()
	c.reply["structure"] = "\nname,age\nada,36\n"
	res, err := New(c, Options{}).StructureData(context.Background(), "ada is 36", FormatCSV, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.StructuredData != "name,age\nada,36" {
		t.Errorf("structured = %q", res.StructuredData)
	}
}

func TestStructureData_Error(t *testing.T) {
	c := newScripted()
	c.err["structure"] = ErrNoAPIKey
	s := New(c, Options{})
	if _, err := s.StructureData(context.Background(), "x", FormatJSON, ""); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("got %v", err)
	}
	st, _ := s.CacheStats(context.Background())
	if st.Size != 0 {
		t.Errorf("failed call was cached: %+v", st)
	}
}

func TestExtractEntities(t *testing.T) {
	e, err := New(newScripted(), Options{}).ExtractEntities(context.Background(), "Ada at ACME")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Persons) != 2 || e.Persons[1] != "7" {
		t.Errorf("persons = %v", e.Persons)
	}
	if len(e.Organizations) != 1 || e.Organizations[0] != "ACME" {
		t.Errorf("organizations = %v", e.Organizations)
	}
	if e.Locations == nil || len(e.Locations) != 0 {
		t.Errorf("locations = %#v, want empty non-nil", e.Locations)
	}
	if e.Count() != 4 {
		t.Errorf("count = %d", e.Count())
	}
}

func TestExtractEntities_ParseError(t *testing.T) {
	c := newScripted()
	c.reply["entities"] = "no entities here"
	e, err := New(c, Options{}).ExtractEntities(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if e.ParseError == "" || e.RawResponse != "no entities here" {
		t.Errorf("entities = %+v", e)
	}
}

func TestClassifyDocument(t *testing.T) {
	cl, err := New(newScripted(), Options{}).ClassifyDocument(context.Background(), "invoice")
	if err != nil {
		t.Fatal(err)
	}
	if cl.DocumentType != "invoice" || cl.Confidence != 0.9 || cl.Language != "en" || cl.Sentiment != "neutral" {
		t.Errorf("classification = %+v", cl)
	}
	if len(cl.KeyTopics) != 1 || cl.KeyTopics[0] != "billing" {
		t.Errorf("topics = %v", cl.KeyTopics)
	}
}

func TestConfidence(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{0.75, 0.75},
		{"0.5", 0.5},
		{"85%", 0.85},
		{float64(90), 0.9},
		{"high", 0},
		{-1.0, 0},
		{nil, 0},
	}
	for _, c := range cases {
		if got := confidence(c.in); got != c.want {
			t.Errorf("confidence(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	c := newScripted()
	var gotPrompt string
	s := New(completerFunc(func(ctx context.Context, system, user string) (string, error) {
		gotPrompt = user
		return c.Complete(ctx, system, user)
	}), Options{})

	sum, err := s.Summarize(context.Background(), "long text", 0)
	if err != nil {
		t.Fatal(err)
	}
	if sum != "An invoice from ACME." {
		t.Errorf("summary = %q", sum)
	}
	if !strings.Contains(gotPrompt, "in 200 words or less") {
		t.Errorf("prompt = %q", gotPrompt)
	}
	if _, err := s.Summarize(context.Background(), "long text", 200); err != nil {
		t.Fatal(err)
	}
	if c.count("summary") != 1 {
		t.Errorf("summary calls = %d, want 1 (cached)", c.count("summary"))
	}
}

func TestClearCache(t *testing.T) {
	c := newScripted()
	s := New(c, Options{})
	ctx := context.Background()
	_, _ = s.ExtractEntities(ctx, "a")
	_, _ = s.ClassifyDocument(ctx, "a")

	st, _ := s.CacheStats(ctx)
	if st.Size != 2 || !strings.HasPrefix(st.Keys[0], "entities:") || !strings.HasPrefix(st.Keys[1], "classification:") {
		t.Fatalf("stats = %+v", st)
	}
	if err := s.ClearCache(ctx); err != nil {
		t.Fatal(err)
	}
	if st, _ := s.CacheStats(ctx); st.Size != 0 {
		t.Errorf("stats after clear = %+v", st)
	}
	_, _ = s.ExtractEntities(ctx, "a")
	if c.count("entities") != 2 {
		t.Errorf("entities calls = %d, want 2", c.count("entities"))
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("structure", "ab", "c")
	b := CacheKey("structure", "a", "bc")
	if a == b {
		t.Error("part boundaries must change the key")
	}
	if a != CacheKey("structure", "ab", "c") {
		t.Error("key not deterministic")
	}
	if !strings.HasPrefix(a, "structure:") || len(a) != len("structure:")+64 {
		t.Errorf("key = %q", a)
	}
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name, resp, format string
		check              func(any) bool
	}{
		{"embedded object", "Sure! {\"a\": 1} hope it helps", FormatJSON, func(v any) bool {
			m, ok := v.(map[string]any)
			return ok && m["a"] == float64(1)
		}},
		{"bare array", `[1, 2]`, FormatJSON, func(v any) bool {
			a, ok := v.([]any)
			return ok && len(a) == 2
		}},
		{"invalid json", "{not json}", FormatJSON, func(v any) bool {
			m, ok := v.(map[string]any)
			return ok && m["raw_response"] == "{not json}" && m["parse_error"] != ""
		}},
		{"csv trimmed", "  a,b\n1,2 \n", FormatCSV, func(v any) bool { return v == "a,b\n1,2" }},
		{"table trimmed", "\n| a |\n", FormatTable, func(v any) bool { return v == "| a |" }},
		{"unknown trimmed", " x ", "yaml", func(v any) bool { return v == "x" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ParseResponse(c.resp, c.format); !c.check(got) {
				t.Errorf("ParseResponse = %#v", got)
			}
		})
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt("some text", FormatCSV, "")
	if !strings.HasPrefix(p, DefaultPrompt(FormatCSV)) {
		t.Error("default csv instructions missing")
	}
	if !strings.Contains(p, "Raw Text to Structure:\nsome text") || !strings.Contains(p, "in CSV format") {
		t.Errorf("prompt = %q", p)
	}
	if custom := Prompt("t", FormatJSON, "Only dates."); !strings.HasPrefix(custom, "Only dates.") {
		t.Errorf("custom prompt = %q", custom)
	}
	if DefaultPrompt("xml") != DefaultPrompt(FormatJSON) {
		t.Error("unknown format should fall back to json")
	}
}
