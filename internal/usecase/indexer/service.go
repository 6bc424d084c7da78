// Package indexer rebuilds the semantic content index from the relational
// catalog: every record is rendered to a text document, embedded, and stored
// with its content type tag.
package indexer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/repository/contentindex"
	"github.com/meridian-data/datamart/internal/repository/people"
)

// Stats reports one rebuild run.
type Stats struct {
	Indexed     int `json:"indexed"`
	TotalTokens int `json:"total_tokens"`
}

// Service rebuilds the content index.
type Service struct {
	dataSources DataSourceReader
	people      PeopleReader
	assets      AssetReader
	embedder    domain.BatchEmbedder
	index       ContentIndex
	logger      *zap.Logger
}

// New creates an indexer service.
func New(ds DataSourceReader, ppl PeopleReader, assets AssetReader, embedder domain.BatchEmbedder, index ContentIndex, logger *zap.Logger) *Service {
	return &Service{
		dataSources: ds,
		people:      ppl,
		assets:      assets,
		embedder:    embedder,
		index:       index,
		logger:      logger,
	}
}

// Rebuild drops the current index contents and re-indexes the full catalog.
// The index schema is created first so a rebuild on an empty store works.
func (s *Service) Rebuild(ctx context.Context) (Stats, error) {
	items, err := s.collect(ctx)
	if err != nil {
		return Stats{}, err
	}

	if err := s.index.EnsureIndex(ctx); err != nil {
		return Stats{}, fmt.Errorf("ensure content index: %w", err)
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.ContentText
	}

	batch, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return Stats{}, fmt.Errorf("embed catalog: %w", err)
	}
	if len(batch.Embeddings) != len(items) {
		return Stats{}, fmt.Errorf("embedding count mismatch: %d items, %d vectors", len(items), len(batch.Embeddings))
	}

	entries := make([]contentindex.Entry, len(items))
	for i, item := range items {
		entries[i] = contentindex.Entry{Item: item, Vector: batch.Embeddings[i]}
	}

	if err := s.index.Purge(ctx); err != nil {
		return Stats{}, fmt.Errorf("purge content index: %w", err)
	}
	if err := s.index.Upsert(ctx, entries); err != nil {
		return Stats{}, fmt.Errorf("upsert content index: %w", err)
	}

	s.logger.Info("content index rebuilt",
		zap.Int("items", len(entries)),
		zap.Int("total_tokens", batch.TotalTokens),
	)

	return Stats{Indexed: len(entries), TotalTokens: batch.TotalTokens}, nil
}

func (s *Service) collect(ctx context.Context) ([]domain.ContentItem, error) {
	var items []domain.ContentItem

	dataSources, err := s.dataSources.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list data sources: %w", err)
	}
	for _, r := range dataSources {
		items = append(items, dataSourceItem(r))
	}

	persons, err := s.people.Query(ctx, people.Params{})
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	for _, r := range persons {
		items = append(items, personItem(r))
	}

	tools, err := s.assets.Tools(ctx, "", "", 0)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	for _, r := range tools {
		items = append(items, toolItem(r))
	}

	policies, err := s.assets.Policies(ctx, "", "", 0)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	for _, r := range policies {
		items = append(items, policyItem(r))
	}

	collections, err := s.assets.Collections(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	for _, r := range collections {
		items = append(items, collectionItem(r))
	}

	return items, nil
}

func dataSourceItem(r domain.DataSourceRecord) domain.ContentItem {
	text := joinText(r.Title, r.Description, r.Type, r.Category, r.Domain, r.Sector,
		strings.Join(r.Tags, " "))
	return domain.ContentItem{
		ContentID:   r.ID,
		ContentType: domain.ContentTypeDataSources,
		ContentText: text,
		Metadata: map[string]string{
			"title":       r.Title,
			"type":        r.Type,
			"category":    r.Category,
			"data_owner":  r.DataOwner,
			"trust_score": fmt.Sprintf("%d", r.TrustScore),
			"status":      string(r.Status),
		},
	}
}

func personItem(r domain.PersonRecord) domain.ContentItem {
	text := joinText(r.Name, r.Title, r.Department, strings.Join(r.ExpertiseAreas, " "), r.Bio)
	return domain.ContentItem{
		ContentID:   r.ID,
		ContentType: domain.ContentTypePeople,
		ContentText: text,
		Metadata: map[string]string{
			"name":       r.Name,
			"title":      r.Title,
			"department": r.Department,
		},
	}
}

func toolItem(r domain.ToolRecord) domain.ContentItem {
	text := joinText(r.Name, r.Description, r.Category, strings.Join(r.Tags, " "))
	return domain.ContentItem{
		ContentID:   r.ID,
		ContentType: domain.ContentTypeTools,
		ContentText: text,
		Metadata: map[string]string{
			"name":        r.Name,
			"category":    r.Category,
			"owner_team":  r.OwnerTeam,
			"trust_score": fmt.Sprintf("%d", r.TrustScore),
		},
	}
}

func policyItem(r domain.PolicyRecord) domain.ContentItem {
	text := joinText(r.Name, r.Description, r.Category)
	return domain.ContentItem{
		ContentID:   r.ID,
		ContentType: domain.ContentTypePolicies,
		ContentText: text,
		Metadata: map[string]string{
			"name":       r.Name,
			"category":   r.Category,
			"owner_team": r.OwnerTeam,
		},
	}
}

func collectionItem(r domain.CollectionRecord) domain.ContentItem {
	text := joinText(r.Name, r.Description, r.Curator)
	return domain.ContentItem{
		ContentID:   r.ID,
		ContentType: domain.ContentTypeCollections,
		ContentText: text,
		Metadata: map[string]string{
			"name":    r.Name,
			"curator": r.Curator,
		},
	}
}

// joinText concatenates non-empty fragments with single spaces.
func joinText(fragments ...string) string {
	parts := fragments[:0]
	for _, f := range fragments {
		if strings.TrimSpace(f) != "" {
			parts = append(parts, strings.TrimSpace(f))
		}
	}
	return strings.Join(parts, " ")
}
