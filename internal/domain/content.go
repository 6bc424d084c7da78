package domain

// ContentType tags a semantic search result with the kind of entity it
// describes. The chat orchestrator branches follow-up queries on it.
type ContentType string

const (
	ContentTypeDataSources ContentType = "data_sources"
	ContentTypePeople      ContentType = "people"
	ContentTypeTools       ContentType = "tools"
	ContentTypePolicies    ContentType = "policies"
	ContentTypeCollections ContentType = "collections"
)

// KnownContentTypes lists every indexable content type.
var KnownContentTypes = []ContentType{
	ContentTypeDataSources, ContentTypePeople, ContentTypeTools, ContentTypePolicies, ContentTypeCollections,
}

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	for _, known := range KnownContentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SearchQuery is a request-scoped semantic search input.
type SearchQuery struct {
	Text      string  `json:"text"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"` // minimum relevance score in [0,1]
}

// ContentItem is a single semantic search hit.
type ContentItem struct {
	ContentID   string            `json:"content_id"`
	ContentType ContentType       `json:"content_type"`
	ContentText string            `json:"content_text"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Score       float64           `json:"score"`
}

// SearchResponse is the semantic search service result envelope.
type SearchResponse struct {
	Results    []ContentItem `json:"results"`
	TotalFound int           `json:"total_found"`
	Message    string        `json:"message,omitempty"`
}
