package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"wisefido-rfid/internal/policy"

	"go.uber.org/zap"
)

const catalogKeyPrefix = "rfid:catalog:"

// CatalogKey 每个后台地址单独一份参数缓存
func CatalogKey(scope string) string {
	return catalogKeyPrefix + scope
}

// ScopeFor 由后台地址得到缓存作用域，如 "host/admin"
func ScopeFor(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(baseURL, "/")
	}
	return u.Host + strings.TrimRight(u.Path, "/")
}

// catalogEntry 缓存中保存的参数快照
type catalogEntry struct {
	FetchedAt  time.Time         `json:"fetched_at"`
	Categories []policy.Category `json:"categories"`
}

// CatalogCache 管道参数列表缓存
//
// 登录后拉取成功写入；后台不可达时用于回填下拉选项。
// 空列表不缓存，读到损坏的快照会删除并按未命中处理。
type CatalogCache struct {
	backend CatalogBackend
	key     string
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewCatalogCache 创建参数缓存，scope 见 ScopeFor
func NewCatalogCache(backend CatalogBackend, scope string, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	return &CatalogCache{
		backend: backend,
		key:     CatalogKey(scope),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Store 写入参数列表
func (c *CatalogCache) Store(ctx context.Context, categories []policy.Category) error {
	if len(categories) == 0 {
		if err := c.backend.Remove(ctx, c.key); err != nil {
			return fmt.Errorf("failed to drop catalog cache: %w", err)
		}
		return nil
	}

	blob, err := json.Marshal(catalogEntry{FetchedAt: c.now(), Categories: categories})
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}
	if err := c.backend.Write(ctx, c.key, blob, c.ttl); err != nil {
		return fmt.Errorf("failed to write catalog cache: %w", err)
	}

	c.logger.Debug("Cached pipeline categories",
		zap.String("key", c.key),
		zap.Int("count", len(categories)),
	)
	return nil
}

// Load 读取参数列表，未命中返回 ErrCacheMiss
func (c *CatalogCache) Load(ctx context.Context) ([]policy.Category, error) {
	blob, err := c.backend.Read(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("Failed to read catalog cache", zap.Error(err))
		}
		return nil, err
	}

	var entry catalogEntry
	if err := json.Unmarshal(blob, &entry); err != nil || len(entry.Categories) == 0 {
		c.logger.Warn("Dropping unusable catalog cache", zap.String("key", c.key), zap.Error(err))
		if rerr := c.backend.Remove(ctx, c.key); rerr != nil {
			c.logger.Warn("Failed to drop catalog cache", zap.Error(rerr))
		}
		return nil, ErrCacheMiss
	}

	c.logger.Debug("Loaded cached pipeline categories",
		zap.Int("count", len(entry.Categories)),
		zap.Duration("age", c.now().Sub(entry.FetchedAt)),
	)
	return entry.Categories, nil
}
