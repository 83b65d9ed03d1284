package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dosiblog/gateway/internal/log"
)

const testSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    content    TEXT NOT NULL,
    embedding  vector(768) NOT NULL,
    metadata   JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// setupTestDB starts a throwaway pgvector container and applies the
// documents schema. Tests are skipped when Docker is not available.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("gateway_test"),
		postgres.WithUsername("gateway_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pool.Ping(ctx))

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	return pool
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	pool := setupTestDB(t)
	store, err := NewStore(pool, wordHashEmbedder{}, log.NewNop())
	require.NoError(t, err)
	return store
}

func TestStore_AddAndSearch_Integration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	docs := []Document{
		{ID: "stack", Content: "DosiBlog uses Node.js, Express, and MongoDB for backend development."},
		{ID: "author", Content: "Abdullah Al Sazib is a full-stack developer specializing in MERN stack."},
		{ID: "pasta", Content: "To make pasta, boil water and cook for ten minutes."},
	}
	for _, doc := range docs {
		require.NoError(t, store.Add(ctx, doc))
	}

	results, err := store.Search(ctx, "DosiBlog uses Node.js, Express, and MongoDB for backend development.", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "stack", results[0].ID, "exact content should rank first")
	assert.InDelta(t, 1.0, results[0].Similarity, 0.01)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestStore_Add_GeneratesID_Integration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Add(ctx, Document{Content: "anonymous passage"}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_Upsert_Integration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Add(ctx, Document{ID: "doc", Content: "first version"}))
	require.NoError(t, store.Add(ctx, Document{ID: "doc", Content: "second version"}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "same ID must not create a second row")

	results, err := store.Search(ctx, "second version", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second version", results[0].Content)
}

func TestStore_Search_Metadata_Integration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Add(ctx, Document{
		ID:       "meta",
		Content:  "passage with metadata",
		Metadata: map[string]string{"source": "test", "topic": "project"},
	}))

	results, err := store.Search(ctx, "passage with metadata", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "test", results[0].Metadata["source"])
	assert.Equal(t, "project", results[0].Metadata["topic"])
	assert.False(t, results[0].CreatedAt.IsZero())
}

func TestStore_Search_DefaultTopK_Integration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Seed(ctx))

	results, err := store.Search(ctx, "Who created DosiBlog?", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestStore_Seed_Idempotent_Integration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Seed(ctx))
	require.NoError(t, store.Seed(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(seedPassages)), count)
}
