package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"schemakit/internal/schemas"
)

// ColumnCacheRepository keeps the driver-agnostic projection of a table's
// column descriptors in redis. Driver-specific extras are not cached.
type ColumnCacheRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewColumnCacheRepository(rdb *redis.Client, ttl time.Duration) *ColumnCacheRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ColumnCacheRepository{rdb: rdb, ttl: ttl}
}

func columnsKey(schema, table string) string {
	return "columns:" + schema + "." + table
}

func (r *ColumnCacheRepository) Get(ctx context.Context, schema, table string) ([]schemas.Definition, bool, error) {
	data, err := r.rdb.Get(ctx, columnsKey(schema, table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached columns: %w", err)
	}

	cached, err := schemas.DecodeColumnDefinitions(data)
	if err != nil {
		return nil, false, err
	}

	defs := make([]schemas.Definition, len(cached))
	for i, c := range cached {
		defs[i] = c
	}
	return defs, true, nil
}

func (r *ColumnCacheRepository) Set(ctx context.Context, schema, table string, defs []schemas.Definition) error {
	projected := make([]schemas.ColumnDefinition, len(defs))
	for i, d := range defs {
		projected[i] = schemas.Project(d)
	}

	data, err := json.Marshal(projected)
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}
	return r.rdb.Set(ctx, columnsKey(schema, table), data, r.ttl).Err()
}

func (r *ColumnCacheRepository) Invalidate(ctx context.Context, schema, table string) error {
	return r.rdb.Del(ctx, columnsKey(schema, table)).Err()
}
