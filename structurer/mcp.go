package structurer

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/structura/kit"
)

type structureReq struct {
	Text   string `json:"text"`
	Format string `json:"format"`
	Prompt string `json:"prompt"`
}

type textReq struct {
	Text     string `json:"text"`
	MaxWords int    `json:"max_words"`
}

// RegisterMCP registers the AI tools on an MCP server.
func (s *Structurer) RegisterMCP(srv *mcp.Server) {
	textProp := map[string]any{"type": "string", "description": "Unstructured text"}

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "structurer_structure",
		Description: "Convert unstructured text to JSON, CSV or table output.",
		InputSchema: kit.InputSchema(map[string]any{
			"text":   textProp,
			"format": map[string]any{"type": "string", "enum": []string{FormatJSON, FormatCSV, FormatTable}},
			"prompt": map[string]any{"type": "string", "description": "Custom instructions replacing the default ones"},
		}, []string{"text"}),
	}, func(ctx context.Context, req any) (any, error) {
		r := req.(*structureReq)
		if r.Text == "" {
			return nil, ErrNoText
		}
		return s.StructureData(ctx, r.Text, r.Format, r.Prompt)
	}, kit.DecodeJSON[structureReq]())

	textSchema := kit.InputSchema(map[string]any{"text": textProp}, []string{"text"})

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "structurer_entities",
		Description: "Extract persons, organizations, locations, dates, numbers, emails and phones.",
		InputSchema: textSchema,
	}, func(ctx context.Context, req any) (any, error) {
		r := req.(*textReq)
		if r.Text == "" {
			return nil, ErrNoText
		}
		return s.ExtractEntities(ctx, r.Text)
	}, kit.DecodeJSON[textReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "structurer_classify",
		Description: "Classify a document: type, confidence, key topics, language and sentiment.",
		InputSchema: textSchema,
	}, func(ctx context.Context, req any) (any, error) {
		r := req.(*textReq)
		if r.Text == "" {
			return nil, ErrNoText
		}
		return s.ClassifyDocument(ctx, r.Text)
	}, kit.DecodeJSON[textReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "structurer_summarize",
		Description: "Summarise text in at most max_words words (default 200).",
		InputSchema: kit.InputSchema(map[string]any{
			"text":      textProp,
			"max_words": map[string]any{"type": "integer", "minimum": 1},
		}, []string{"text"}),
	}, func(ctx context.Context, req any) (any, error) {
		r := req.(*textReq)
		if r.Text == "" {
			return nil, ErrNoText
		}
		summary, err := s.Summarize(ctx, r.Text, r.MaxWords)
		if err != nil {
			return nil, err
		}
		return map[string]string{"summary": summary}, nil
	}, kit.DecodeJSON[textReq]())
}
