package search

import (
	"context"

	"github.com/meridian-data/datamart/internal/domain"
)

// ContentIndex is the vector index contract for semantic search.
type ContentIndex interface {
	Search(ctx context.Context, vector []float32, topK int, contentType domain.ContentType) ([]domain.ContentItem, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
