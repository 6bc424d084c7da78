package chat

import "strings"

// Tool names exposed to the completion service.
const (
	toolSemanticSearch   = "semantic_search"
	toolQueryDataSources = "query_data_sources"
	toolQueryPeople      = "query_people"
)

// toolManifest is the schema the completion service sees. The ordering rule
// (semantic_search first) is stated here as a hint and enforced in code in
// the orchestrator.
func toolManifest() []ToolDefinition {
	return []ToolDefinition{
		{
			Name: toolSemanticSearch,
			Description: "Search the entire catalog semantically across data sources, people, " +
				"tools, policies and collections. Always call this first to discover which " +
				"content types are relevant before any typed query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Natural language search query",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name: toolQueryDataSources,
			Description: "Query data source records with optional filters. Use after " +
				"semantic_search reported data_sources results.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"search": map[string]any{
						"type":        "string",
						"description": "Substring search across title, description, domain and category",
					},
					"type": map[string]any{
						"type":        "string",
						"description": "Data source type filter",
					},
					"category": map[string]any{
						"type":        "string",
						"description": "Category filter",
					},
					"status": map[string]any{
						"type":        "string",
						"description": "Status filter: ready, issues, pending or deprecated",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of records",
					},
				},
			},
		},
		{
			Name: toolQueryPeople,
			Description: "Query people records with optional filters. Use after semantic_search " +
				"reported people results, or when the user asks about a person.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"search": map[string]any{
						"type":        "string",
						"description": "Substring search across name, title, bio and expertise",
					},
					"department": map[string]any{
						"type":        "string",
						"description": "Department filter",
					},
					"expertise": map[string]any{
						"type":        "string",
						"description": "Expertise area filter",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of records",
					},
				},
			},
		},
	}
}

type semanticSearchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type dataSourceArgs struct {
	Search   string `json:"search"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Status   string `json:"status"`
	Limit    int    `json:"limit"`
}

type peopleArgs struct {
	Search     string `json:"search"`
	Department string `json:"department"`
	Expertise  string `json:"expertise"`
	Limit      int    `json:"limit"`
}

// personIndicators redirect a query_data_sources call to the people adapter.
// The completion service occasionally misroutes person questions into the
// data source tool; this guardrail keeps behavior sane until the model stops
// doing that.
var personIndicators = []string{
	"who is",
	"person",
	"analyst",
	"expert",
	"manager",
	"director",
}

func looksLikePersonQuery(search string) bool {
	s := strings.ToLower(search)
	for _, term := range personIndicators {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
