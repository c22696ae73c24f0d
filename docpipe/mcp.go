package docpipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers docpipe tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerExtractTool(srv)
	p.registerDetectTool(srv)
	p.registerCleanTool(srv)
	p.registerFormatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// addTool wires a typed handler into the SDK: decode arguments, run, and
// marshal the response as a single text content block. Tool failures go
// through SetError so the session survives them.
func addTool[Req any](srv *mcp.Server, tool *mcp.Tool, run func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := run(ctx, &r)
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

// --- extract ---

type extractReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_extract",
		Description: "Extract structured content from a document file (xlsx, xls, docx, doc, odt, pdf, md, txt, html).",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to extract"},
		}, []string{"path"}),
	}
	addTool(srv, tool, func(ctx context.Context, r *extractReq) (any, error) {
		return p.Extract(ctx, r.Path)
	})
}

// --- detect ---

type detectReq struct {
	Path string `json:"path"`
}

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_detect",
		Description: "Detect the format of a document file from its structure (magic bytes, archive parts) and extension.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to detect"},
		}, []string{"path"}),
	}
	addTool(srv, tool, func(_ context.Context, r *detectReq) (any, error) {
		format, err := p.Detect(r.Path)
		if err != nil {
			return nil, err
		}
		return map[string]any{"format": string(format)}, nil
	})
}

// --- clean ---

type cleanReq struct {
	Text       string `json:"text"`
	Aggressive bool   `json:"aggressive"`
}

func (p *Pipeline) registerCleanTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_clean",
		Description: "Run the text quality filter on raw text: strip control bytes, drop garbage lines, score usability.",
		InputSchema: inputSchema(map[string]any{
			"text":       map[string]any{"type": "string", "description": "Raw text to clean"},
			"aggressive": map[string]any{"type": "boolean", "description": "Also drop mostly-symbolic and mostly-numeric lines"},
		}, []string{"text"}),
	}
	addTool(srv, tool, func(_ context.Context, r *cleanReq) (any, error) {
		return CleanText(r.Text, r.Aggressive), nil
	})
}

// --- formats ---

type formatsReq struct{}

func (p *Pipeline) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_formats",
		Description: "List all supported document formats.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	addTool(srv, tool, func(_ context.Context, _ *formatsReq) (any, error) {
		return map[string]any{"formats": SupportedFormats()}, nil
	})
}
