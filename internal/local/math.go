package local

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// BinaryInput is the input for two-operand math tools.
type BinaryInput struct {
	A float64 `json:"a" jsonschema:"First operand"`
	B float64 `json:"b" jsonschema:"Second operand"`
}

func newMathServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "math",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "add",
		Description: "Add two numbers and return the sum.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in BinaryInput) (*mcp.CallToolResult, any, error) {
		return numberResult(in.A + in.B), nil, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "multiply",
		Description: "Multiply two numbers and return the product.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in BinaryInput) (*mcp.CallToolResult, any, error) {
		return numberResult(in.A * in.B), nil, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "divide",
		Description: "Divide the first number by the second.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in BinaryInput) (*mcp.CallToolResult, any, error) {
		if in.B == 0 {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "division by zero"}},
				IsError: true,
			}, nil, nil
		}
		return numberResult(in.A / in.B), nil, nil
	})

	return srv
}

func numberResult(v float64) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatNumber(v)}},
	}
}

// formatNumber renders integers without a trailing ".0" so the model sees
// "4" rather than "4.000000".
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
