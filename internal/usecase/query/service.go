// Package query implements the typed record query adapters consumed by the
// HTTP API and the chat orchestrator.
package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/fuzzy"
	"github.com/meridian-data/datamart/internal/metrics"
	"github.com/meridian-data/datamart/internal/repository/datasource"
	"github.com/meridian-data/datamart/internal/repository/people"
)

// FuzzyPolicy pins the suggestion fallback behavior. The legacy call sites
// disagreed (0.4/top-3 vs 0.5/top-1); the unified default is the looser one.
type FuzzyPolicy struct {
	Threshold float64
	TopN      int
}

// DefaultFuzzyPolicy is the documented default for the fallback.
func DefaultFuzzyPolicy() FuzzyPolicy {
	return FuzzyPolicy{Threshold: fuzzy.DefaultThreshold, TopN: fuzzy.DefaultTopN}
}

// DataSourceResult carries exact matches or, when there are none and a search
// term was supplied, ranked fuzzy suggestions. Never both.
type DataSourceResult struct {
	Data        []domain.DataSourceRecord `json:"data"`
	Suggestions []domain.Suggestion       `json:"suggestions,omitempty"`
}

// Service wraps the repositories with adapter-level policy: sentinel
// stripping happens in the repos, the fuzzy fallback decision lives here.
type Service struct {
	dataSources DataSourceRepository
	people      PeopleRepository
	assets      AssetRepository
	policy      FuzzyPolicy
	logger      *zap.Logger
}

// New creates the query service.
func New(ds DataSourceRepository, ppl PeopleRepository, assets AssetRepository, logger *zap.Logger) *Service {
	return &Service{
		dataSources: ds,
		people:      ppl,
		assets:      assets,
		policy:      DefaultFuzzyPolicy(),
		logger:      logger,
	}
}

// WithFuzzyPolicy overrides the fallback threshold and truncation count.
func (s *Service) WithFuzzyPolicy(p FuzzyPolicy) *Service {
	if p.Threshold > 0 {
		s.policy.Threshold = p.Threshold
	}
	if p.TopN > 0 {
		s.policy.TopN = p.TopN
	}
	return s
}

// DataSources runs the exact query and, when it misses with a search term
// present, falls back to edit-distance suggestions over the full record set.
// Filter-only misses (no search term) never trigger the fallback.
func (s *Service) DataSources(ctx context.Context, p datasource.Params) (DataSourceResult, error) {
	data, err := s.dataSources.Query(ctx, p)
	if err != nil {
		return DataSourceResult{}, fmt.Errorf("query data sources: %w", err)
	}

	if len(data) > 0 || p.Search == "" {
		return DataSourceResult{Data: data}, nil
	}

	all, err := s.dataSources.ListAll(ctx)
	if err != nil {
		return DataSourceResult{}, fmt.Errorf("list data sources for fuzzy fallback: %w", err)
	}

	suggestions := fuzzy.Rank(p.Search, all, s.policy.Threshold, s.policy.TopN)
	metrics.FuzzyFallbackTotal.WithLabelValues(outcomeLabel(len(suggestions))).Inc()
	s.logger.Debug("fuzzy fallback",
		zap.String("search", p.Search),
		zap.Int("candidates", len(all)),
		zap.Int("suggestions", len(suggestions)),
	)

	return DataSourceResult{Data: []domain.DataSourceRecord{}, Suggestions: suggestions}, nil
}

// People returns person records matching the filters, most experienced first.
func (s *Service) People(ctx context.Context, p people.Params) ([]domain.PersonRecord, error) {
	records, err := s.people.Query(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	return records, nil
}

// PersonByName resolves a person by name-contains match (owner fan-out).
func (s *Service) PersonByName(ctx context.Context, name string) ([]domain.PersonRecord, error) {
	records, err := s.people.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find person %q: %w", name, err)
	}
	return records, nil
}

// Tools returns tool records matching the search, highest trust first.
func (s *Service) Tools(ctx context.Context, search, category string, limit int) ([]domain.ToolRecord, error) {
	records, err := s.assets.Tools(ctx, search, category, limit)
	if err != nil {
		return nil, fmt.Errorf("query tools: %w", err)
	}
	return records, nil
}

// Policies returns policy records matching the search, newest first.
func (s *Service) Policies(ctx context.Context, search, category string, limit int) ([]domain.PolicyRecord, error) {
	records, err := s.assets.Policies(ctx, search, category, limit)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	return records, nil
}

// Collections returns curated collections matching the search.
func (s *Service) Collections(ctx context.Context, search string, limit int) ([]domain.CollectionRecord, error) {
	records, err := s.assets.Collections(ctx, search, limit)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	return records, nil
}

// Teams returns team records matching the search.
func (s *Service) Teams(ctx context.Context, search string, limit int) ([]domain.TeamRecord, error) {
	records, err := s.assets.Teams(ctx, search, limit)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	return records, nil
}

func outcomeLabel(n int) string {
	if n > 0 {
		return "hit"
	}
	return "empty"
}
