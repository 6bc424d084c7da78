package domain

import "time"

// DataSourceStatus enumerates the lifecycle states of a catalog data source.
type DataSourceStatus string

const (
	StatusReady      DataSourceStatus = "ready"
	StatusIssues     DataSourceStatus = "issues"
	StatusPending    DataSourceStatus = "pending"
	StatusDeprecated DataSourceStatus = "deprecated"
)

// Filter sentinels sent by the UI dropdowns. They mean "no filter", not a value.
const (
	AllTypes      = "All Types"
	AllCategories = "All Categories"
	AllStatus     = "All Status"
)

// DataSourceRecord is a catalog entry for a dataset, API, or ML model.
type DataSourceRecord struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Type          string           `json:"type"`
	Category      string           `json:"category"`
	Domain        string           `json:"domain"` // coverage area, e.g. game title or market
	Sector        string           `json:"sector"` // secondary domain, e.g. genre or asset class
	DataOwner     string           `json:"data_owner"`
	Steward       string           `json:"steward"`
	TrustScore    int              `json:"trust_score"` // 0..100
	Status        DataSourceStatus `json:"status"`
	AccessLevel   string           `json:"access_level"`
	SLAPercentage float64          `json:"sla_percentage"`
	Platform      string           `json:"platform"`
	Tags          []string         `json:"tags,omitempty"`
	TechStack     []string         `json:"tech_stack,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// MatchField identifies which record field produced a fuzzy match.
type MatchField string

const (
	MatchTitle    MatchField = "title"
	MatchDomain   MatchField = "game"
	MatchCategory MatchField = "category"
	MatchSector   MatchField = "genre"
)

// Suggestion is a fuzzy-matched data source returned when an exact query
// comes back empty. Never persisted.
type Suggestion struct {
	DataSourceRecord
	Similarity float64    `json:"similarity"`
	MatchType  MatchField `json:"matchType"`
}

// PersonRecord is a catalog entry for a person (owner, steward, expert).
type PersonRecord struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Title           string   `json:"title"`
	Department      string   `json:"department"`
	ExpertiseAreas  []string `json:"expertise_areas,omitempty"`
	Bio             string   `json:"bio"`
	Email           string   `json:"email"`
	SlackHandle     string   `json:"slack_handle,omitempty"`
	YearsExperience int      `json:"years_experience"`
}

// TeamRecord groups people under a department or squad.
type TeamRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Department  string `json:"department"`
	Description string `json:"description"`
	LeadName    string `json:"lead_name"`
	Headcount   int    `json:"headcount"`
}

// ToolRecord is a catalog entry for an internal tool or platform.
type ToolRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	OwnerTeam   string   `json:"owner_team"`
	DocsURL     string   `json:"docs_url,omitempty"`
	TrustScore  int      `json:"trust_score"`
	Tags        []string `json:"tags,omitempty"`
}

// PolicyRecord is a governance or access policy document.
type PolicyRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	OwnerTeam     string    `json:"owner_team"`
	EffectiveDate time.Time `json:"effective_date"`
	ReviewCycle   string    `json:"review_cycle,omitempty"`
}

// CollectionRecord is a curated bundle of catalog entries.
type CollectionRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Curator     string    `json:"curator"`
	ItemCount   int       `json:"item_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}
