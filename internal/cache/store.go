package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss 没有可用的管道参数缓存
var ErrCacheMiss = errors.New("catalog cache miss")

// CatalogBackend 参数缓存的存储后端
type CatalogBackend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, blob []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// RedisCatalogBackend 用 Redis 字符串保存参数快照，过期交给 Redis
type RedisCatalogBackend struct {
	client *redis.Client
}

func NewRedisCatalogBackend(client *redis.Client) *RedisCatalogBackend {
	return &RedisCatalogBackend{client: client}
}

func (r *RedisCatalogBackend) Read(ctx context.Context, key string) ([]byte, error) {
	blob, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return blob, err
}

func (r *RedisCatalogBackend) Write(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, blob, ttl).Err()
}

func (r *RedisCatalogBackend) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
