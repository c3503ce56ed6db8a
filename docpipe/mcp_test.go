package docpipe

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "docpipe-test", Version: "0.1.0"}

func mcpSession(t *testing.T, cfg Config) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	New(cfg).RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(testMCPImpl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		return "", errors.New(toolText(result))
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, nil
}

// toolText joins the text content of a tool result.
func toolText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func TestMCP_Formats(t *testing.T) {
	text, err := callTool(t, mcpSession(t, Config{}), "docpipe_formats", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Formats map[Kind][]string `json:"formats"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Formats[KindPDF]) != 1 || len(resp.Formats[KindDocument]) != 4 {
		t.Errorf("formats = %v", resp.Formats)
	}
}

func TestMCP_ExtractAndValidate(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "readme.md"), []byte("# Title\n\nBody text."), 0o644)
	session := mcpSession(t, Config{Root: dir})

	text, err := callTool(t, session, "docpipe_extract", map[string]any{"path": "readme.md"})
	if err != nil {
		t.Fatal(err)
	}
	var doc Document
	json.Unmarshal([]byte(text), &doc)
	if doc.Format != FormatMD || doc.Title != "Title" || len(doc.Sections) != 2 {
		t.Errorf("doc = %+v", doc)
	}

	text, err = callTool(t, session, "docpipe_validate", map[string]any{"path": "readme.md"})
	if err != nil {
		t.Fatal(err)
	}
	var v Validation
	json.Unmarshal([]byte(text), &v)
	if !v.Valid || v.Kind != KindText {
		t.Errorf("validation = %+v", v)
	}
}

func TestMCP_ExtractErrorIsToolError(t *testing.T) {
	session := mcpSession(t, Config{Root: t.TempDir()})
	_, err := callTool(t, session, "docpipe_extract", map[string]any{"path": "missing.pdf"})
	if err == nil || !strings.Contains(err.Error(), "missing.pdf") {
		t.Fatalf("err = %v, want tool error naming the file", err)
	}
}
