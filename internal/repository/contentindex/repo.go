// Package contentindex stores the heterogeneous content corpus behind
// semantic search: one hash per catalog entity, tagged by content type, with
// an embedding vector indexed for KNN.
package contentindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/meridian-data/datamart/internal/db"
	"github.com/meridian-data/datamart/internal/domain"
)

const keyPrefix = domain.KeyPrefix + "content:"

// store is the consumer interface for content index operations.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Entry is a content item plus its embedding, ready for indexing.
type Entry struct {
	Item   domain.ContentItem
	Vector []float32
}

// Repo implements the vector side of semantic search.
type Repo struct {
	store     store
	vectorDim int
	hnswM     int
	hnswEF    int
}

// New creates a content index repository.
func New(s store, vectorDim int) *Repo {
	return &Repo{store: s, vectorDim: vectorDim}
}

// WithHNSW overrides HNSW build parameters.
func (r *Repo) WithHNSW(m, efConstruct int) *Repo {
	r.hnswM = m
	r.hnswEF = efConstruct
	return r
}

// EnsureIndex creates the content FT index if it does not exist.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, domain.ContentIndexName)
	if err != nil {
		return fmt.Errorf("check content index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     domain.ContentIndexName,
		Prefixes: []string{keyPrefix},
		Fields: []db.IndexField{
			{Name: "content_type", Type: db.IndexFieldTag},
			{Name: "content_id", Type: db.IndexFieldTag},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.vectorDim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.hnswM,
				VectorEFConstruct: r.hnswEF,
			},
		},
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create content index: %w", err)
	}
	return nil
}

// Upsert writes entries to the index in one pipelined round-trip.
func (r *Repo) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) != r.vectorDim {
			return fmt.Errorf("entry %s: vector dim %d, index expects %d",
				e.Item.ContentID, len(e.Vector), r.vectorDim)
		}
		fields := map[string]string{
			"content_id":   e.Item.ContentID,
			"content_type": string(e.Item.ContentType),
			"content_text": e.Item.ContentText,
			"vector":       encodeVector(e.Vector),
		}
		if len(e.Item.Metadata) > 0 {
			meta, err := json.Marshal(e.Item.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", e.Item.ContentID, err)
			}
			fields["metadata"] = string(meta)
		}
		items = append(items, db.HashSetItem{
			Key:    entryKey(e.Item.ContentType, e.Item.ContentID),
			Fields: fields,
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert content entries: %w", err)
	}
	return nil
}

// Search runs KNN over the corpus. contentType narrows the search to one
// type; empty means all types in one pass.
func (r *Repo) Search(
	ctx context.Context, vector []float32, topK int, contentType domain.ContentType,
) ([]domain.ContentItem, error) {
	q := &db.KNNQuery{
		IndexName:    domain.ContentIndexName,
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{"content_id", "content_type", "content_text", "metadata", "__vector_score"},
	}
	if contentType != "" {
		q.TagFilters = map[string]string{"content_type": string(contentType)}
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search content index: %w", err)
	}

	items := make([]domain.ContentItem, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		item := domain.ContentItem{
			ContentID:   entry.Fields["content_id"],
			ContentType: domain.ContentType(entry.Fields["content_type"]),
			ContentText: entry.Fields["content_text"],
			Score:       entry.Score,
		}
		if raw := entry.Fields["metadata"]; raw != "" {
			// Corrupt metadata is dropped, not fatal; the item still ranks.
			_ = json.Unmarshal([]byte(raw), &item.Metadata)
		}
		items = append(items, item)
	}
	return items, nil
}

// Count returns the number of indexed content items.
func (r *Repo) Count(ctx context.Context) (int, error) {
	return r.store.SearchCount(ctx, domain.ContentIndexName, "*")
}

// Purge deletes every indexed content hash (full reindex).
func (r *Repo) Purge(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan content keys: %w", err)
	}
	for _, key := range keys {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("purge %s: %w", key, err)
		}
	}
	return nil
}

func entryKey(ct domain.ContentType, id string) string {
	return keyPrefix + string(ct) + ":" + id
}

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
