package query

import (
	"context"

	"github.com/meridian-data/datamart/internal/domain"
	"github.com/meridian-data/datamart/internal/repository/datasource"
	"github.com/meridian-data/datamart/internal/repository/people"
)

// DataSourceRepository is the storage contract for data source queries.
type DataSourceRepository interface {
	Query(ctx context.Context, p datasource.Params) ([]domain.DataSourceRecord, error)
	ListAll(ctx context.Context) ([]domain.DataSourceRecord, error)
}

// PeopleRepository is the storage contract for people queries.
type PeopleRepository interface {
	Query(ctx context.Context, p people.Params) ([]domain.PersonRecord, error)
	FindByName(ctx context.Context, name string) ([]domain.PersonRecord, error)
}

// AssetRepository is the storage contract for tool/policy/collection/team queries.
type AssetRepository interface {
	Tools(ctx context.Context, search, category string, limit int) ([]domain.ToolRecord, error)
	Policies(ctx context.Context, search, category string, limit int) ([]domain.PolicyRecord, error)
	Collections(ctx context.Context, search string, limit int) ([]domain.CollectionRecord, error)
	Teams(ctx context.Context, search string, limit int) ([]domain.TeamRecord, error)
}
