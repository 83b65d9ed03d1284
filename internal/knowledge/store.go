package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/dosiblog/gateway/internal/log"
)

// querier is the common interface satisfied by both *pgxpool.Pool and
// pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// searchTimeout bounds embedding plus vector search per query.
const searchTimeout = 10 * time.Second

// Store manages documents in PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db       querier
	embedder Embedder
	logger   log.Logger
}

// NewStore creates a Store.
func NewStore(db querier, embedder Embedder, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &Store{db: db, embedder: embedder, logger: logger.With("component", "knowledge")}, nil
}

// Add embeds and upserts a document. A zero ID gets a generated UUID.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	values, err := s.embedder.Embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document: %w", err)
	}

	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`,
		doc.ID, doc.Content, pgvector.NewVector(values), metadata)
	if err != nil {
		return fmt.Errorf("upsert document %q: %w", doc.ID, err)
	}

	s.logger.Debug("document stored", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search returns the topK most similar documents by cosine distance.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	values, err := s.embedder.Embed(searchCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.db.Query(searchCtx, `
		SELECT id, content, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(values), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var metadata []byte
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				s.logger.Warn("unparseable document metadata", "id", r.ID, "error", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	return results, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Seed inserts the built-in project passages when the table is empty, so a
// fresh database answers retrieval queries out of the box.
func (s *Store) Seed(ctx context.Context) error {
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for i, content := range seedPassages {
		doc := Document{
			ID:       fmt.Sprintf("seed-%03d", i),
			Content:  content,
			Metadata: map[string]string{"source": "seed"},
		}
		if err := s.Add(ctx, doc); err != nil {
			return fmt.Errorf("seeding passage %d: %w", i, err)
		}
	}
	s.logger.Info("seeded knowledge base", "passages", len(seedPassages))
	return nil
}

// seedPassages is the built-in project context.
var seedPassages = []string{
	"DosiBlog is a web development project created by Abdullah Al Sazib.",
	"DosiBlog uses Node.js, Express, and MongoDB for backend development.",
	"The DosiBlog project was started in September 2025.",
	"DosiBlog features include user authentication, blog post creation, and commenting system.",
	"Abdullah Al Sazib is a full-stack developer specializing in MERN stack.",
	"The project uses RESTful API architecture for communication between frontend and backend.",
}
