package structurer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hazyhaar/structura/docpipe"
)

func TestPipeline_Process(t *testing.T) {
	c := newScripted()
	p := NewPipeline(New(c, Options{Model: "m"}))
	doc := &docpipe.Document{Name: "inv.txt", RawText: "Invoice F-1 from ACME"}

	res := p.Process(context.Background(), doc, []string{FormatJSON, FormatCSV}, "")
	if !res.Success || res.Error != "" || res.StepErrors != nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Entities == nil || res.Classification == nil || res.Summary == "" {
		t.Fatalf("missing steps: %+v", res)
	}
	if res.OriginalData != doc {
		t.Error("original data not kept")
	}
	md := res.Metadata
	if md.ModelUsed != "m" || md.TextLength != 21 || len(md.OutputFormat) != 2 || md.CacheStats.Size != 4 {
		t.Errorf("metadata = %+v", md)
	}
	if _, err := json.Marshal(res); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}

func TestPipeline_EmptyText(t *testing.T) {
	c := newScripted()
	res := NewPipeline(New(c, Options{})).Process(context.Background(), &docpipe.Document{RawText: "  \n"}, nil, "")
	if res.Success || res.Error != ErrNoText.Error() {
		t.Fatalf("result = %+v", res)
	}
	if c.count("structure") != 0 {
		t.Error("model called for empty text")
	}
}

func TestPipeline_StepFailureRecorded(t *testing.T) {
	c := newScripted()
	c.err["classification"] = errors.New("model overloaded")
	res := NewPipeline(New(c, Options{})).Process(context.Background(), &docpipe.Document{RawText: "text"}, nil, "")
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.Classification != nil || res.StepErrors[StepClassification] == "" {
		t.Errorf("classification = %+v, errors = %v", res.Classification, res.StepErrors)
	}
	if res.Entities == nil || res.Summary == "" {
		t.Error("other steps should still run")
	}
}

func TestPipeline_StructureFailure(t *testing.T) {
	c := newScripted()
	c.err["structure"] = ErrNoAPIKey
	res := NewPipeline(New(c, Options{})).Process(context.Background(), &docpipe.Document{RawText: "text"}, []string{FormatTable}, "")
	if res.Success || res.StepErrors[StepStructure] == "" || res.Metadata == nil {
		t.Fatalf("result = %+v", res)
	}
	if c.count("entities")+c.count("classification")+c.count("summary") != 0 {
		t.Error("later steps ran after structuring failed")
	}
}

func TestPipeline_ExportFormatsStructureAsJSON(t *testing.T) {
	c := newScripted()
	p := NewPipeline(New(c, Options{}))
	res := p.Process(context.Background(), &docpipe.Document{RawText: "Invoice F-1"}, []string{"excel", "summary"}, "")
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	obj, ok := res.StructuredData.(map[string]any)
	if !ok {
		t.Fatalf("structured data = %T %v, want object", res.StructuredData, res.StructuredData)
	}
	if _, ok := obj["invoice"]; !ok {
		t.Errorf("structured data = %v", obj)
	}
	if got := res.Metadata.OutputFormat; len(got) != 2 || got[0] != "excel" {
		t.Errorf("output formats = %v", got)
	}
}

func TestStructuringFormat(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, FormatJSON},
		{[]string{FormatCSV, "excel"}, FormatCSV},
		{[]string{FormatTable}, FormatTable},
		{[]string{"excel", FormatCSV}, FormatJSON},
		{[]string{"summary"}, FormatJSON},
	}
	for _, tt := range tests {
		if got := structuringFormat(tt.in); got != tt.want {
			t.Errorf("structuringFormat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
