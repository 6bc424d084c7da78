package indexer

import (
	"context"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/repository/contentindex"
	"github.com/meridian-data/datamart/internal/repository/people"
)

// DataSourceReader lists every data source record for indexing.
type DataSourceReader interface {
	ListAll(ctx context.Context) ([]domain.DataSourceRecord, error)
}

// PeopleReader lists people records for indexing.
type PeopleReader interface {
	Query(ctx context.Context, p people.Params) ([]domain.PersonRecord, error)
}

// AssetReader lists tools, policies and collections for indexing.
type AssetReader interface {
	Tools(ctx context.Context, search, category string, limit int) ([]domain.ToolRecord, error)
	Policies(ctx context.Context, search, category string, limit int) ([]domain.PolicyRecord, error)
	Collections(ctx context.Context, search string, limit int) ([]domain.CollectionRecord, error)
}

// ContentIndex is the vector index write side.
type ContentIndex interface {
	EnsureIndex(ctx context.Context) error
	Purge(ctx context.Context) error
	Upsert(ctx context.Context, entries []contentindex.Entry) error
	Count(ctx context.Context) (int, error)
}
