package search

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// Cache stores cascade results for near-duplicate submissions.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.SimilarTicket, bool, error)
	Set(ctx context.Context, key string, results []domain.SimilarTicket, ttl time.Duration) error
}

// cacheKey fingerprints the normalized, lower-cased query text and topN.
func cacheKey(q Query) string {
	text := strings.ToLower(strings.Join(strings.Fields(NormalizeText(q.Text())), " "))
	sum := blake2b.Sum256([]byte(text + "\x00" + strconv.Itoa(q.TopN)))
	return "similar:" + hex.EncodeToString(sum[:])
}

// RedisCache keeps results as JSON strings.
type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]domain.SimilarTicket, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var results []domain.SimilarTicket
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, err
	}
	return results, len(results) > 0, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, results []domain.SimilarTicket, ttl time.Duration) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, raw, ttl).Err()
}
