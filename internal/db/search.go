package db

// KNNQuery is the input for vector similarity search. TagFilters are ANDed
// exact-match pre-filters on TAG fields (e.g. content_type).
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
	TagFilters   map[string]string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
