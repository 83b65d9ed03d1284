package knowledge

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dosiblog/gateway/internal/log"
)

// fakeQuerier satisfies querier for constructor tests.
type fakeQuerier struct{}

func (fakeQuerier) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

// wordHashEmbedder is a deterministic bag-of-words embedder for tests.
// Identical texts map to identical vectors, overlapping texts to nearby
// ones, so similarity ordering is predictable without a real model.
type wordHashEmbedder struct{}

func (wordHashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, VectorDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,?!")))
		v[h.Sum32()%uint32(VectorDimension)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}

func TestNewStore_Validation(t *testing.T) {
	logger := log.NewNop()

	if _, err := NewStore(nil, wordHashEmbedder{}, logger); err == nil {
		t.Error("NewStore(nil db) expected error")
	}
	if _, err := NewStore(fakeQuerier{}, nil, logger); err == nil {
		t.Error("NewStore(nil embedder) expected error")
	}
	if _, err := NewStore(fakeQuerier{}, wordHashEmbedder{}, logger); err != nil {
		t.Errorf("NewStore() unexpected error: %v", err)
	}
}

func TestWordHashEmbedder_Deterministic(t *testing.T) {
	e := wordHashEmbedder{}

	a, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed() unexpected error: %v", err)
	}
	b, _ := e.Embed(context.Background(), "hello world")

	if len(a) != int(VectorDimension) {
		t.Fatalf("vector length = %d, want %d", len(a), VectorDimension)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}
