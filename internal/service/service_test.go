package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"wisefido-rfid/internal/app"
	"wisefido-rfid/internal/config"
	"wisefido-rfid/internal/reader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopView struct{}

func (nopView) Notify(app.Notification) {}

// startedView 收到第一条通知时说明 Run 已经开始
type startedView struct {
	once    sync.Once
	started chan struct{}
}

func (v *startedView) Notify(app.Notification) {
	v.once.Do(func() { close(v.started) })
}

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("READER_AUTO_CONNECT", "false")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("MQTT_ENABLED", "false")
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("AMAP_KEY", "")
	t.Setenv("EXPORT_DIR", t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestDescriptorFrom(t *testing.T) {
	cfg := offlineConfig(t)
	assert.Equal(t, reader.USB(), descriptorFrom(cfg))

	cfg.Reader.Transport = "serial"
	cfg.Reader.Port = "COM3"
	cfg.Reader.BaudRate = 9600
	assert.Equal(t, reader.Serial("COM3", 9600), descriptorFrom(cfg))
}

func TestOfflineServiceStartStop(t *testing.T) {
	cfg := offlineConfig(t)

	svc, err := NewInventoryService(cfg, zap.NewNop(), nopView{})
	require.NoError(t, err)
	assert.Nil(t, svc.db)
	assert.Nil(t, svc.redisClient)
	assert.Nil(t, svc.mqttClient)
	assert.False(t, svc.publisher.Enabled())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	assert.True(t, svc.Submit(app.SetMode{Mode: "registration"}))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.NoError(t, svc.Stop(context.Background()))
	assert.False(t, svc.Submit(app.ListRecords{}))
}

func TestStopWaitsForStartAfterCancel(t *testing.T) {
	cfg := offlineConfig(t)
	view := &startedView{started: make(chan struct{})}
	svc, err := NewInventoryService(cfg, zap.NewNop(), view)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	select {
	case <-view.started:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not start")
	}
	require.True(t, svc.Submit(app.ListRecords{}))

	// 不等 Start 返回直接 Stop
	cancel()
	require.NoError(t, svc.Stop(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
	assert.False(t, svc.Submit(app.ListRecords{}))
}
