package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-rfid/internal/cache"
	"wisefido-rfid/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testScope = "pipeline.example.com/admin"

// memBackend 内存后端，按写入时的 ttl 过期
type memBackend struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	expires map[string]time.Time
	removed []string
	err     error
}

func newMemBackend() *memBackend {
	return &memBackend{blobs: make(map[string][]byte), expires: make(map[string]time.Time)}
}

func (m *memBackend) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	blob, ok := m.blobs[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	if exp, ok := m.expires[key]; ok && time.Now().After(exp) {
		delete(m.blobs, key)
		return nil, cache.ErrCacheMiss
	}
	return blob, nil
}

func (m *memBackend) Write(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.blobs[key] = blob
	delete(m.expires, key)
	if ttl > 0 {
		m.expires[key] = time.Now().Add(ttl)
	}
	return nil
}

func (m *memBackend) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.blobs, key)
	m.removed = append(m.removed, key)
	return nil
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, "smart-pipeline-parent-admin.kmyszkj.com/admin",
		cache.ScopeFor("https://smart-pipeline-parent-admin.kmyszkj.com/admin/"))
	assert.Equal(t, "localhost:8080", cache.ScopeFor("http://localhost:8080"))
	assert.Equal(t, "rfid:catalog:localhost:8080", cache.CatalogKey(cache.ScopeFor("http://localhost:8080")))
}

func TestCatalogCache_RoundTrip(t *testing.T) {
	backend := newMemBackend()
	c := cache.NewCatalogCache(backend, testScope, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := c.Load(ctx)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	want := []policy.Category{
		{ID: "1", MaterialName: "PE", DiameterSize: 110},
		{ID: "2", MaterialName: "PVC", DiameterSize: 63.5},
	}
	require.NoError(t, c.Store(ctx, want))

	raw, err := backend.Read(ctx, cache.CatalogKey(testScope))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fetched_at"`)
	assert.Contains(t, string(raw), "PVC")

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCatalogCache_ScopesAreIsolated(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	prod := cache.NewCatalogCache(backend, "prod.example.com/admin", time.Minute, zap.NewNop())
	test := cache.NewCatalogCache(backend, "test.example.com/admin", time.Minute, zap.NewNop())

	require.NoError(t, prod.Store(ctx, []policy.Category{{ID: "1", MaterialName: "PE"}}))

	_, err := test.Load(ctx)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCatalogCache_Expiry(t *testing.T) {
	backend := newMemBackend()
	c := cache.NewCatalogCache(backend, testScope, 20*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, []policy.Category{{ID: "1"}}))
	time.Sleep(40 * time.Millisecond)

	_, err := c.Load(ctx)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCatalogCache_EmptyListDropsEntry(t *testing.T) {
	backend := newMemBackend()
	c := cache.NewCatalogCache(backend, testScope, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Store(ctx, []policy.Category{{ID: "1", MaterialName: "PE"}}))
	require.NoError(t, c.Store(ctx, nil))

	_, err := c.Load(ctx)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, []string{cache.CatalogKey(testScope)}, backend.removed)
}

func TestCatalogCache_BackendErrors(t *testing.T) {
	backend := newMemBackend()
	backend.err = errors.New("connection refused")
	c := cache.NewCatalogCache(backend, testScope, time.Minute, zap.NewNop())

	err := c.Store(context.Background(), []policy.Category{{ID: "1"}})
	assert.ErrorContains(t, err, "connection refused")

	_, err = c.Load(context.Background())
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCatalogCache_CorruptEntryIsDropped(t *testing.T) {
	backend := newMemBackend()
	key := cache.CatalogKey(testScope)
	require.NoError(t, backend.Write(context.Background(), key, []byte("{not json"), 0))

	c := cache.NewCatalogCache(backend, testScope, time.Minute, zap.NewNop())
	_, err := c.Load(context.Background())
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, []string{key}, backend.removed)

	_, err = backend.Read(context.Background(), key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
