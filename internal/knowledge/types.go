// Package knowledge stores project documents with vector embeddings in
// PostgreSQL + pgvector and serves top-k similarity search for the
// retrieval tool.
package knowledge

import "time"

// VectorDimension is the embedding width stored in the documents table.
// gemini-embedding-001 supports truncation to 768 via OutputDimensionality;
// the pgvector column is declared with the same width.
const VectorDimension int32 = 768

// DefaultTopK is the number of passages returned when the caller does not
// say otherwise.
const DefaultTopK = 3

// Document is one stored passage.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Result is a search hit with its cosine similarity to the query.
type Result struct {
	Document
	Similarity float64 `json:"similarity"`
}
