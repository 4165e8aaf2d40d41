package redis

import (
	"context"
	"fmt"
	"time"

	"wisefido-rfid/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// Client go-redis 客户端
type Client = redis.Client

// NewRedisClient 创建客户端；连接在第一次命令时建立
func NewRedisClient(cfg *config.RedisConfig) *Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 4,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	return redis.NewClient(opts)
}

// Ping 在超时内确认 Redis 可达
func Ping(ctx context.Context, client *Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s unreachable: %w", client.Options().Addr, err)
	}
	return nil
}

// Close 关闭客户端（允许 nil）
func Close(client *Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
