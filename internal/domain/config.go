package domain

// KeyPrefix namespaces every key this service writes to the vector store.
const KeyPrefix = "datamart:"

// ContentIndexName is the FT index over the heterogeneous content corpus.
const ContentIndexName = KeyPrefix + "content:idx"

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      string
	Algorithm           string
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig returns the default configuration for the content index.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:               "text-embedding-3-small",
		Dimensions:          1024,
		DistanceMetric:      "cosine",
		Algorithm:           "hnsw",
		DocumentInstruction: "Represent this catalog entry for semantic search",
		QueryInstruction:    "Represent this query for retrieving catalog entries",
	}
}
