// Package tools builds the gateway's own catalog tools. These run
// in-process and are merged with provider tools by the broker.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/dosiblog/gateway/internal/broker"
	"github.com/dosiblog/gateway/internal/knowledge"
	"github.com/dosiblog/gateway/internal/log"
)

// RetrievalToolName is the catalog name of the knowledge retrieval tool.
const RetrievalToolName = "retrieve_dosiblog_context"

// NoContext is the reply when the search matches nothing.
const NoContext = "No relevant context found."

const unavailableMessage = "The knowledge base is not available right now."

// Searcher is the slice of the knowledge store the retrieval tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Result, error)
}

// retrieveInput is the tool's argument shape; the schema is inferred
// from it.
type retrieveInput struct {
	Query string `json:"query" jsonschema:"the question to look up in the project knowledge base"`
}

// NewRetrieval builds the retrieve_dosiblog_context tool. A nil searcher
// produces a tool that reports the knowledge base as unavailable instead
// of failing the request, so the gateway still answers without a
// database.
func NewRetrieval(searcher Searcher, logger log.Logger) broker.Tool {
	schema, err := jsonschema.For[retrieveInput](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: retrieval schema: %v", err))
	}

	return broker.Tool{
		Name:        RetrievalToolName,
		Description: "Retrieve context about the DosiBlog project and its author from the knowledge base.",
		InputSchema: schema,
		Origin:      broker.OriginLocal,
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return "", fmt.Errorf("query is required")
			}
			if searcher == nil {
				return unavailableMessage, nil
			}

			results, err := searcher.Search(ctx, query, knowledge.DefaultTopK)
			if err != nil {
				logger.Warn("knowledge search failed", "error", err)
				return unavailableMessage, nil
			}
			if len(results) == 0 {
				return NoContext, nil
			}

			contents := make([]string, len(results))
			for i, r := range results {
				contents[i] = r.Content
			}
			return strings.Join(contents, "\n"), nil
		},
	}
}
