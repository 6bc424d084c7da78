// Command datamart-seed loads fixture catalog records and optionally rebuilds
// the semantic content index. Intended for local development and demos.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/meridian-data/datamart/internal/catalog"
	"github.com/meridian-data/datamart/internal/config"
	dbRedis "github.com/meridian-data/datamart/internal/db/redis"
	"github.com/meridian-data/datamart/internal/domain"
	logpkg "github.com/meridian-data/datamart/internal/logger"
	"github.com/meridian-data/datamart/internal/metrics"
	assetrepo "github.com/meridian-data/datamart/internal/repository/asset"
	"github.com/meridian-data/datamart/internal/repository/contentindex"
	datasourcerepo "github.com/meridian-data/datamart/internal/repository/datasource"
	peoplerepo "github.com/meridian-data/datamart/internal/repository/people"
	openaiTransport "github.com/meridian-data/datamart/internal/transport/openai"
	embeddinguc "github.com/meridian-data/datamart/internal/usecase/embedding"
	indexeruc "github.com/meridian-data/datamart/internal/usecase/indexer"
)

func main() {
	reindex := flag.Bool("reindex", false, "rebuild the semantic content index after seeding")
	flag.Parse()

	// .env is optional; real env vars win either way
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	store, err := catalog.Open(catalog.Config{Driver: cfg.Catalog.Driver, DSN: cfg.Catalog.DSN})
	if err != nil {
		logger.Fatal("Failed to open catalog store", zap.Error(err))
	}
	defer store.Close()

	if err := store.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to bootstrap catalog schema", zap.Error(err))
	}

	dsRepo := datasourcerepo.New(store)
	pplRepo := peoplerepo.New(store)
	astRepo := assetrepo.New(store)

	for _, rec := range fixtureDataSources() {
		if err := dsRepo.Upsert(ctx, rec); err != nil {
			logger.Fatal("Failed to seed data source", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	for _, rec := range fixturePeople() {
		if err := pplRepo.Upsert(ctx, rec); err != nil {
			logger.Fatal("Failed to seed person", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	for _, rec := range fixtureTeams() {
		if err := astRepo.UpsertTeam(ctx, rec); err != nil {
			logger.Fatal("Failed to seed team", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	for _, rec := range fixtureTools() {
		if err := astRepo.UpsertTool(ctx, rec); err != nil {
			logger.Fatal("Failed to seed tool", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	for _, rec := range fixturePolicies() {
		if err := astRepo.UpsertPolicy(ctx, rec); err != nil {
			logger.Fatal("Failed to seed policy", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	for _, rec := range fixtureCollections() {
		if err := astRepo.UpsertCollection(ctx, rec); err != nil {
			logger.Fatal("Failed to seed collection", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	logger.Info("Catalog seeded")

	if !*reindex {
		return
	}

	metrics.Register()

	vectorStore, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Vector.Addrs,
		Password: cfg.Vector.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer vectorStore.Close()

	if err := vectorStore.WaitForReady(ctx, time.Duration(cfg.Vector.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}

	var vecCfg config.VectorizerConfig
	var provName string
	for _, vc := range cfg.Embedding.Vectorizers {
		vecCfg = vc
		provName = vc.Provider
		break
	}
	provCfg := cfg.Embedding.Providers[provName]
	if provCfg.APIKey == "" {
		logger.Fatal("Reindex requires an embedding provider api key")
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	})
	embedder := embeddinguc.NewInstrumentedEmbedder(base, provName, vecCfg.Model, logger)

	vectorDim := vecCfg.Dimensions
	if vectorDim == 0 {
		vectorDim = domain.DefaultVectorConfig().Dimensions
	}
	contentRepo := contentindex.New(vectorStore, vectorDim).
		WithHNSW(cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct)

	indexerSvc := indexeruc.New(dsRepo, pplRepo, astRepo, embedder, contentRepo, logger)
	stats, err := indexerSvc.Rebuild(ctx)
	if err != nil {
		logger.Fatal("Reindex failed", zap.Error(err))
	}
	logger.Info("Content index rebuilt",
		zap.Int("indexed", stats.Indexed),
		zap.Int("total_tokens", stats.TotalTokens),
	)
}

func fixtureDataSources() []domain.DataSourceRecord {
	now := time.Now().UTC()
	return []domain.DataSourceRecord{
		{
			ID:            "ds-player-telemetry",
			Title:         "Player Telemetry",
			Description:   "Raw gameplay event stream: sessions, matches, purchases, and client performance samples.",
			Type:          "Dataset",
			Category:      "Gameplay Analytics",
			Domain:        "Starfall Arena",
			Sector:        "Shooter",
			DataOwner:     "Dana Reyes",
			Steward:       "Alex Kim",
			TrustScore:    92,
			Status:        domain.StatusReady,
			AccessLevel:   "Internal",
			SLAPercentage: 99.5,
			Platform:      "BigQuery",
			Tags:          []string{"telemetry", "events", "realtime"},
			TechStack:     []string{"Kafka", "BigQuery", "dbt"},
			CreatedAt:     now.AddDate(-1, 0, 0),
			UpdatedAt:     now,
		},
		{
			ID:            "ds-matchmaking-model",
			Title:         "Matchmaking Skill Model",
			Description:   "Trained skill-rating model powering ranked matchmaking, refreshed nightly.",
			Type:          "ML Model",
			Category:      "Matchmaking",
			Domain:        "Starfall Arena",
			Sector:        "Shooter",
			DataOwner:     "Priya Nair",
			Steward:       "Dana Reyes",
			TrustScore:    85,
			Status:        domain.StatusReady,
			AccessLevel:   "Restricted",
			SLAPercentage: 99.0,
			Platform:      "Vertex AI",
			Tags:          []string{"ml", "ranking"},
			TechStack:     []string{"Python", "Vertex AI"},
			CreatedAt:     now.AddDate(0, -8, 0),
			UpdatedAt:     now,
		},
		{
			ID:            "ds-revenue-api",
			Title:         "Revenue Reporting API",
			Description:   "Aggregated in-game purchase revenue by title, region, and storefront.",
			Type:          "API",
			Category:      "Monetization",
			Domain:        "Portfolio",
			Sector:        "Cross-genre",
			DataOwner:     "Marcus Webb",
			Steward:       "Priya Nair",
			TrustScore:    78,
			Status:        domain.StatusIssues,
			AccessLevel:   "Confidential",
			SLAPercentage: 98.0,
			Platform:      "Cloud Run",
			Tags:          []string{"revenue", "finance"},
			TechStack:     []string{"Go", "PostgreSQL"},
			CreatedAt:     now.AddDate(0, -14, 0),
			UpdatedAt:     now.AddDate(0, 0, -3),
		},
	}
}

func fixturePeople() []domain.PersonRecord {
	return []domain.PersonRecord{
		{
			ID:              "p-dana-reyes",
			Name:            "Dana Reyes",
			Title:           "Principal Data Engineer",
			Department:      "Game Analytics",
			ExpertiseAreas:  []string{"telemetry pipelines", "streaming", "data modeling"},
			Bio:             "Built the portfolio-wide telemetry ingestion platform.",
			Email:           "dana.reyes@example.com",
			SlackHandle:     "@dreyes",
			YearsExperience: 11,
		},
		{
			ID:              "p-alex-kim",
			Name:            "Alex Kim",
			Title:           "Data Steward",
			Department:      "Data Governance",
			ExpertiseAreas:  []string{"data quality", "cataloging"},
			Bio:             "Owns stewardship for gameplay datasets.",
			Email:           "alex.kim@example.com",
			SlackHandle:     "@akim",
			YearsExperience: 6,
		},
		{
			ID:              "p-priya-nair",
			Name:            "Priya Nair",
			Title:           "Staff ML Engineer",
			Department:      "Matchmaking",
			ExpertiseAreas:  []string{"ranking models", "experimentation"},
			Bio:             "Leads the skill-rating model used across ranked queues.",
			Email:           "priya.nair@example.com",
			SlackHandle:     "@pnair",
			YearsExperience: 9,
		},
		{
			ID:              "p-marcus-webb",
			Name:            "Marcus Webb",
			Title:           "Analytics Manager",
			Department:      "Monetization",
			ExpertiseAreas:  []string{"revenue analytics", "forecasting"},
			Bio:             "Runs monetization reporting for all live titles.",
			Email:           "marcus.webb@example.com",
			YearsExperience: 12,
		},
	}
}

func fixtureTeams() []domain.TeamRecord {
	return []domain.TeamRecord{
		{
			ID:          "t-game-analytics",
			Name:        "Game Analytics",
			Department:  "Data",
			Description: "Owns gameplay telemetry ingestion and core analytics datasets.",
			LeadName:    "Dana Reyes",
			Headcount:   14,
		},
		{
			ID:          "t-data-governance",
			Name:        "Data Governance",
			Department:  "Data",
			Description: "Stewardship, access policy, and catalog quality.",
			LeadName:    "Alex Kim",
			Headcount:   6,
		},
	}
}

func fixtureTools() []domain.ToolRecord {
	return []domain.ToolRecord{
		{
			ID:          "tool-event-inspector",
			Name:        "Event Inspector",
			Description: "Browser for raw telemetry events with schema validation.",
			Category:    "Debugging",
			OwnerTeam:   "Game Analytics",
			DocsURL:     "https://wiki.example.com/event-inspector",
			TrustScore:  88,
			Tags:        []string{"telemetry", "debugging"},
		},
		{
			ID:          "tool-metric-studio",
			Name:        "Metric Studio",
			Description: "Self-serve dashboard builder over curated analytics marts.",
			Category:    "Visualization",
			OwnerTeam:   "Game Analytics",
			DocsURL:     "https://wiki.example.com/metric-studio",
			TrustScore:  91,
			Tags:        []string{"dashboards"},
		},
	}
}

func fixturePolicies() []domain.PolicyRecord {
	now := time.Now().UTC()
	return []domain.PolicyRecord{
		{
			ID:            "pol-pii-handling",
			Name:          "Player PII Handling",
			Description:   "Rules for storing and accessing personally identifiable player data.",
			Category:      "Privacy",
			OwnerTeam:     "Data Governance",
			EffectiveDate: now.AddDate(-2, 0, 0),
			ReviewCycle:   "annual",
		},
		{
			ID:            "pol-revenue-access",
			Name:          "Revenue Data Access",
			Description:   "Approval workflow for confidential monetization datasets.",
			Category:      "Access Control",
			OwnerTeam:     "Data Governance",
			EffectiveDate: now.AddDate(-1, -3, 0),
			ReviewCycle:   "semiannual",
		},
	}
}

func fixtureCollections() []domain.CollectionRecord {
	now := time.Now().UTC()
	return []domain.CollectionRecord{
		{
			ID:          "col-launch-readiness",
			Name:        "Launch Readiness Pack",
			Description: "Everything needed to stand up analytics for a new title launch.",
			Curator:     "Dana Reyes",
			ItemCount:   9,
			UpdatedAt:   now,
		},
		{
			ID:          "col-monetization-core",
			Name:        "Monetization Core",
			Description: "Curated revenue and purchase-funnel sources for finance reviews.",
			Curator:     "Marcus Webb",
			ItemCount:   5,
			UpdatedAt:   now.AddDate(0, 0, -7),
		},
	}
}
