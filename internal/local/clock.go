package local

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CurrentTimeInput is the input for the current_time tool.
type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"IANA timezone name, defaults to UTC"`
}

func newClockServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "clock",
		Version: serverVersion,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "current_time",
		Description: "Get the current date and time, optionally in a specific timezone.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in CurrentTimeInput) (*mcp.CallToolResult, any, error) {
		loc := time.UTC
		if in.Timezone != "" {
			var err error
			loc, err = time.LoadLocation(in.Timezone)
			if err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("unknown timezone %q", in.Timezone)}},
					IsError: true,
				}, nil, nil
			}
		}

		now := time.Now().In(loc)
		payload, err := json.Marshal(map[string]any{
			"iso":      now.Format(time.RFC3339),
			"unix":     now.Unix(),
			"timezone": loc.String(),
			"weekday":  now.Weekday().String(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("encoding time: %w", err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		}, nil, nil
	})

	return srv
}
