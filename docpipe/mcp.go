package docpipe

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/structura/kit"
)

// RegisterMCP registers docpipe tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	pathSchema := kit.InputSchema(map[string]any{
		"path": map[string]any{"type": "string", "description": "File path, relative to the upload directory"},
	}, []string{"path"})

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docpipe_extract",
		Description: "Extract text and metadata from a PDF, image, text, spreadsheet, HTML, DOCX or ODT file.",
		InputSchema: pathSchema,
	}, func(ctx context.Context, req any) (any, error) {
		path, err := p.resolve(req.(*pathReq).Path)
		if err != nil {
			return nil, err
		}
		return p.Extract(ctx, path)
	}, kit.DecodeJSON[pathReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docpipe_validate",
		Description: "Check that a file exists, fits the size limit and has a supported type.",
		InputSchema: pathSchema,
	}, func(_ context.Context, req any) (any, error) {
		path, err := p.resolve(req.(*pathReq).Path)
		if err != nil {
			return nil, err
		}
		return p.Validate(path), nil
	}, kit.DecodeJSON[pathReq]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docpipe_formats",
		Description: "List supported file extensions grouped by kind.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, func(context.Context, any) (any, error) {
		return map[string]any{"formats": SupportedFormats()}, nil
	}, kit.DecodeJSON[struct{}]())
}
