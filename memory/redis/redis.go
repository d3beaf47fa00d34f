// Package redis provides a memory.Backend persisting chunks in Redis.
//
// Each chunk is a hash at <prefix>:<collection>:<id> holding the content and
// JSON encoded metadata. The ids of a collection are kept in insertion order
// in the list <prefix>:<collection>:ids. Search loads the collection and
// ranks it with memory.Rank.
package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hupe1980/promptmesh/core"
	"github.com/hupe1980/promptmesh/memory"
	"github.com/redis/go-redis/v9"
)

// Client is the subset of *redis.Client used by Backend.
type Client interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	LRem(ctx context.Context, key string, count int64, value any) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Client = (*redis.Client)(nil)

// Options configures a Redis connection.
type Options struct {
	// Redis server address.
	Address string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// TLS config.
	TLSConfig *tls.Config
	// Prefix namespaces all keys.
	Prefix string
	// MaxScan bounds how many of the newest chunks Search considers.
	MaxScan int64
}

// DefaultOptions returns options for a local Redis.
func DefaultOptions() Options {
	return Options{
		Address: "localhost:6379",
		Prefix:  "promptmesh:memory",
		MaxScan: 1000,
	}
}

// Backend is a memory.Backend on Redis hashes and lists.
type Backend struct {
	client Client
	opts   Options
}

var _ memory.Backend = (*Backend)(nil)

// New connects to Redis using opts.
func New(optFns ...func(o *Options)) *Backend {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	client := redis.NewClient(&redis.Options{
		TLSConfig: opts.TLSConfig,
		Addr:      opts.Address,
		Password:  opts.Password,
		DB:        opts.DB,
	})

	return &Backend{client: client, opts: opts}
}

// NewFromClient wraps an existing client.
func NewFromClient(client Client, optFns ...func(o *Options)) *Backend {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Backend{client: client, opts: opts}
}

// Close closes the underlying client when it supports closing.
func (b *Backend) Close() error {
	if c, ok := b.client.(interface{ Close() error }); ok {
		return c.Close()
	}

	return nil
}

func (b *Backend) idsKey(collection string) string {
	return fmt.Sprintf("%s:%s:ids", b.opts.Prefix, collection)
}

func (b *Backend) chunkKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:%s", b.opts.Prefix, collection, id)
}

// Store implements memory.Backend.
func (b *Backend) Store(ctx context.Context, collection, content string, metadata map[string]any) (string, error) {
	md, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	id := uuid.NewString()
	if err := b.client.HSet(ctx, b.chunkKey(collection, id), "content", content, "metadata", string(md)).Err(); err != nil {
		return "", fmt.Errorf("redis hset: %w", err)
	}

	if err := b.client.RPush(ctx, b.idsKey(collection), id).Err(); err != nil {
		return "", fmt.Errorf("redis rpush: %w", err)
	}

	return id, nil
}

// Search implements memory.Backend.
func (b *Backend) Search(ctx context.Context, collection, query string, limit int) ([]core.SearchResult, error) {
	start := int64(0)
	if b.opts.MaxScan > 0 {
		start = -b.opts.MaxScan
	}

	ids, err := b.client.LRange(ctx, b.idsKey(collection), start, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []core.SearchResult{}, nil
		}
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	candidates := make([]core.SearchResult, 0, len(ids))
	for _, id := range ids {
		fields, err := b.client.HGetAll(ctx, b.chunkKey(collection, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis hgetall: %w", err)
		}
		if len(fields) == 0 {
			continue // expired or deleted concurrently
		}

		var md map[string]any
		if raw := fields["metadata"]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &md); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", id, err)
			}
		}

		candidates = append(candidates, core.SearchResult{ID: id, Content: fields["content"], Metadata: md})
	}

	return memory.Rank(query, candidates, limit), nil
}

// Delete implements memory.Backend.
func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	removed, err := b.client.LRem(ctx, b.idsKey(collection), 1, id).Result()
	if err != nil {
		return fmt.Errorf("redis lrem: %w", err)
	}

	if removed == 0 {
		return fmt.Errorf("%w: %s", memory.ErrNotFound, id)
	}

	return b.client.Del(ctx, b.chunkKey(collection, id)).Err()
}
