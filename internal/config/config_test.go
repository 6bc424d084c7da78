package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:   HTTPConfig{Port: 8080},
		Vector: VectorConfig{Addrs: []string{"localhost:6379"}},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingVectorAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Vector.Addrs = nil
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing vector addrs")
	}
}

func TestValidate_InvalidCatalogDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.Driver = "oracle"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unsupported catalog driver")
	}

	expected := `catalog.driver must be "sqlite" or "postgres", got "oracle"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidCatalogDrivers(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres"} {
		t.Run("driver="+driver, func(t *testing.T) {
			cfg := validConfig()
			cfg.Catalog.Driver = driver

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid driver %q: %v", driver, err)
			}
		})
	}
}

func TestValidate_FuzzyThresholdAboveOne(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()
	cfg.Fuzzy.Threshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for fuzzy threshold above 1")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 120 {
		t.Errorf("expected WriteTimeoutSec=120, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Catalog.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %q", cfg.Catalog.Driver)
	}
	if cfg.Vector.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Vector.ReadinessTimeout)
	}
	if cfg.Index.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Index.HNSWM)
	}
	if cfg.Index.HNSWEFConstruct != 400 {
		t.Errorf("expected HNSWEFConstruct=400, got %d", cfg.Index.HNSWEFConstruct)
	}
	if cfg.Completion.Model != "gpt-4o-mini" {
		t.Errorf("expected Model=gpt-4o-mini, got %q", cfg.Completion.Model)
	}
	if cfg.Completion.MaxToolRounds != 5 {
		t.Errorf("expected MaxToolRounds=5, got %d", cfg.Completion.MaxToolRounds)
	}
	if cfg.Search.Limit != 10 {
		t.Errorf("expected Search.Limit=10, got %d", cfg.Search.Limit)
	}
	if cfg.Search.Threshold != 0.35 {
		t.Errorf("expected Search.Threshold=0.35, got %g", cfg.Search.Threshold)
	}
	if cfg.Fuzzy.Threshold != 0.4 {
		t.Errorf("expected Fuzzy.Threshold=0.4, got %g", cfg.Fuzzy.Threshold)
	}
	if cfg.Fuzzy.TopN != 3 {
		t.Errorf("expected Fuzzy.TopN=3, got %d", cfg.Fuzzy.TopN)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:       HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Catalog:    CatalogConfig{Driver: "postgres", DSN: "postgres://localhost/datamart"},
		Vector:     VectorConfig{ReadinessTimeout: 15},
		Index:      IndexConfig{HNSWM: 16, HNSWEFConstruct: 200},
		Completion: CompletionConfig{Model: "gpt-4o", MaxToolRounds: 3},
		Search:     SearchConfig{Limit: 25, Threshold: 0.5},
		Fuzzy:      FuzzyConfig{Threshold: 0.6, TopN: 5},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Catalog.Driver != "postgres" {
		t.Errorf("expected Driver=postgres, got %q", cfg.Catalog.Driver)
	}
	if cfg.Completion.MaxToolRounds != 3 {
		t.Errorf("expected MaxToolRounds=3, got %d", cfg.Completion.MaxToolRounds)
	}
	if cfg.Search.Threshold != 0.5 {
		t.Errorf("expected Search.Threshold=0.5, got %g", cfg.Search.Threshold)
	}
	if cfg.Fuzzy.TopN != 5 {
		t.Errorf("expected Fuzzy.TopN=5, got %d", cfg.Fuzzy.TopN)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DM_TEST_KEY", "sk-abc")

	in := []byte("api_key: ${DM_TEST_KEY}\nbase_url: ${DM_TEST_URL:-https://api.openai.com/v1}\n")
	out := string(expandEnvVars(in))

	if out != "api_key: sk-abc\nbase_url: https://api.openai.com/v1\n" {
		t.Errorf("unexpected expansion: %q", out)
	}
}
