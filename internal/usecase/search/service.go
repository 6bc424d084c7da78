// Package search implements the semantic search service: one relevance-ranked
// pass over the whole content corpus, results tagged by content type. The chat
// orchestrator runs it first on every turn and branches its typed follow-up
// queries on the content types found here.
package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/metrics"
)

// Defaults applied when the caller leaves SearchQuery fields zero.
const (
	DefaultLimit     = 10
	MaxLimit         = 50
	DefaultThreshold = 0.35
)

// Service handles semantic content search.
type Service struct {
	index     ContentIndex
	embed     Embedder
	limit     int
	threshold float64
	logger    *zap.Logger
}

// New creates a search service.
func New(index ContentIndex, embed Embedder, logger *zap.Logger) *Service {
	return &Service{
		index:     index,
		embed:     embed,
		limit:     DefaultLimit,
		threshold: DefaultThreshold,
		logger:    logger,
	}
}

// WithDefaults overrides the fallback limit and score threshold applied when
// a query leaves those fields zero.
func (s *Service) WithDefaults(limit int, threshold float64) *Service {
	if limit > 0 {
		s.limit = limit
	}
	if threshold > 0 {
		s.threshold = threshold
	}
	return s
}

// Search embeds the query text and runs KNN over the content index, dropping
// results below the threshold. Results stay heterogeneous: the caller
// receives every content type that matched in a single ranked list.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResponse, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return domain.SearchResponse{}, fmt.Errorf("%w: empty search text", domain.ErrInvalidQuery)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.limit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	threshold := q.Threshold
	if threshold <= 0 {
		threshold = s.threshold
	}

	embResult, err := s.embed.Embed(ctx, text)
	if err != nil {
		metrics.SemanticSearchTotal.WithLabelValues("error").Inc()
		return domain.SearchResponse{}, fmt.Errorf("vectorize query: %w", err)
	}

	items, err := s.index.Search(ctx, embResult.Embedding, limit, "")
	if err != nil {
		metrics.SemanticSearchTotal.WithLabelValues("error").Inc()
		return domain.SearchResponse{}, fmt.Errorf("search content index: %w", err)
	}

	filtered := items[:0]
	for _, item := range items {
		if item.Score >= threshold {
			filtered = append(filtered, item)
		}
	}
	items = filtered

	metrics.SemanticSearchTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("semantic search",
		zap.String("query", text),
		zap.Int("limit", limit),
		zap.Float64("threshold", threshold),
		zap.Int("results", len(items)),
	)

	return domain.SearchResponse{
		Results:    items,
		TotalFound: len(items),
		Message:    fmt.Sprintf("Found %d matching items", len(items)),
	}, nil
}
