package redis

import (
	"context"
	"strconv"

	"github.com/meridian-data/datamart/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	args := buildCreateArgs(def)
	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// DropIndex removes an FT index by name. The indexed hashes stay.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return db.ErrIndexNotFound
		}
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	return nil
}

// IndexExists probes index existence via FT.INFO; "unknown index name" means absent.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

func buildCreateArgs(idx *db.IndexDefinition) []string {
	args := []string{idx.Name, "ON", "HASH"}

	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}

	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		f := &idx.Fields[i]
		args = append(args, f.Name)

		switch f.Type {
		case db.IndexFieldNumeric:
			args = append(args, "NUMERIC")
		case db.IndexFieldTag:
			args = append(args, "TAG")
			if f.TagSeparator != "" {
				args = append(args, "SEPARATOR", f.TagSeparator)
			}
		case db.IndexFieldVector:
			algo := f.VectorAlgo
			if algo == "" {
				algo = db.VectorHNSW
			}
			distance := f.VectorDistance
			if distance == "" {
				distance = db.DistanceCosine
			}

			vecArgs := []string{
				"TYPE", "FLOAT32",
				"DIM", strconv.Itoa(f.VectorDim),
				"DISTANCE_METRIC", string(distance),
			}
			if algo == db.VectorHNSW {
				if f.VectorM > 0 {
					vecArgs = append(vecArgs, "M", strconv.Itoa(f.VectorM))
				}
				if f.VectorEFConstruct > 0 {
					vecArgs = append(vecArgs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
				}
			}

			args = append(args, "VECTOR", string(algo), strconv.Itoa(len(vecArgs)))
			args = append(args, vecArgs...)
		}
	}

	return args
}
