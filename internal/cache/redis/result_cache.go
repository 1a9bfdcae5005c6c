package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oraclebet/oraclebet/internal/domain"
	"github.com/oraclebet/oraclebet/internal/marketaddr"
)

// ResultCache implements domain.ResultCache using Redis string values.
// Entries are keyed by "result:{hash(dataType, question)}" and expire after
// the data type's TTL, so repeated questions within the freshness window are
// answered without spending an oracle query.
type ResultCache struct {
	rdb *redis.Client
}

// NewResultCache creates a ResultCache backed by the given Client.
func NewResultCache(c *Client) *ResultCache {
	return &ResultCache{rdb: c.Underlying()}
}

func resultKey(dt domain.DataType, question string) string {
	return "result:" + marketaddr.ResultKey(dt, question)
}

// Set stores a result under the question's hash with the data type's TTL.
func (rc *ResultCache) Set(ctx context.Context, dt domain.DataType, question string, res domain.CachedResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal result: %w", err)
	}
	if err := rc.rdb.Set(ctx, resultKey(dt, question), data, dt.ResultTTL()).Err(); err != nil {
		return fmt.Errorf("redis: set result: %w", err)
	}
	return nil
}

// Get retrieves a cached result. It returns domain.ErrNotFound when the key
// does not exist or has expired.
func (rc *ResultCache) Get(ctx context.Context, dt domain.DataType, question string) (domain.CachedResult, error) {
	data, err := rc.rdb.Get(ctx, resultKey(dt, question)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.CachedResult{}, domain.ErrNotFound
		}
		return domain.CachedResult{}, fmt.Errorf("redis: get result: %w", err)
	}

	var res domain.CachedResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.CachedResult{}, fmt.Errorf("redis: unmarshal result: %w", err)
	}
	return res, nil
}

// Invalidate removes a cached result. Missing keys are not an error.
func (rc *ResultCache) Invalidate(ctx context.Context, dt domain.DataType, question string) error {
	if err := rc.rdb.Del(ctx, resultKey(dt, question)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate result: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultCache = (*ResultCache)(nil)
