package kit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// DecodeFunc turns MCP tool arguments into the Endpoint request.
type DecodeFunc func(*mcp.CallToolRequest) (any, error)

// InputSchema builds a JSON-schema object for a tool's arguments.
func InputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// DecodeJSON returns a DecodeFunc that unmarshals the arguments into a fresh T.
func DecodeJSON[T any]() DecodeFunc {
	return func(req *mcp.CallToolRequest) (any, error) {
		var v T
		if len(req.Params.Arguments) == 0 {
			return &v, nil
		}
		if err := json.Unmarshal(req.Params.Arguments, &v); err != nil {
			return nil, err
		}
		return &v, nil
	}
}

// RegisterMCPTool exposes an Endpoint as an MCP tool. Decode and endpoint
// errors are reported as tool errors, not protocol errors, so the client
// model sees the message. The response is JSON-encoded as text content.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode DecodeFunc) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTransport(ctx, "mcp")
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := endpoint(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}
