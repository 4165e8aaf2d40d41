package service

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-rfid/internal/app"
	"wisefido-rfid/internal/cache"
	"wisefido-rfid/internal/client"
	"wisefido-rfid/internal/common/database"
	mqttcommon "wisefido-rfid/internal/common/mqtt"
	rediscommon "wisefido-rfid/internal/common/redis"
	"wisefido-rfid/internal/config"
	"wisefido-rfid/internal/excel"
	"wisefido-rfid/internal/policy"
	"wisefido-rfid/internal/publisher"
	"wisefido-rfid/internal/reader"
	"wisefido-rfid/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const sightingBufferSize = 4096

// InventoryService RFID 盘点服务：装配读写器、后台客户端和可选的 Redis/MQTT/PostgreSQL
type InventoryService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	readerSession *reader.Session
	publisher     *publisher.Publisher
	app           *app.App
}

// NewInventoryService 创建盘点服务
func NewInventoryService(cfg *config.Config, logger *zap.Logger, view app.View) (*InventoryService, error) {
	s := &InventoryService{config: cfg, logger: logger}

	opts := reader.DefaultSerialOptions()
	opts.TIDWords = cfg.Reader.TIDWords
	s.readerSession = reader.NewSession(reader.NewSerialOpener(opts, logger), cfg.Reader.ScanInterval, logger)

	backend := client.NewBackendClient(cfg.API.BaseURL, cfg.API.Timeout, client.NewSession(), logger)
	deps := app.Deps{
		Reader:   s.readerSession,
		Backend:  backend,
		Exporter: excel.NewExporter(cfg.Export.Dir, logger),
		View:     view,
	}

	// 未配置高德 Key 时不提供地址解析
	if cfg.Geocode.Key != "" {
		deps.Geocoder = client.NewGeocodeClient(cfg.Geocode.URL, cfg.Geocode.Key, cfg.API.Timeout, logger)
	} else {
		logger.Warn("AMAP_KEY not set, address lookup disabled")
	}

	var sinks []publisher.Sink

	if cfg.RedisEnabled {
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(context.Background(), s.redisClient); err != nil {
			s.closeInfra()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Catalog = cache.NewCatalogCache(cache.NewRedisCatalogBackend(s.redisClient), cache.ScopeFor(cfg.API.BaseURL), cfg.CatalogCacheTTL, logger)
		sinks = append(sinks, publisher.NewRedisStreamSink(s.redisClient, cfg.Stream.Name, cfg.Stream.MaxLen))
	}

	if cfg.MQTTEnabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.closeInfra()
			return nil, fmt.Errorf("failed to connect to mqtt: %w", err)
		}
		s.mqttClient = mqttClient
		sinks = append(sinks, publisher.NewMQTTSink(mqttClient, cfg.MQTTTopic))
	}

	s.publisher = publisher.New(sinks, sightingBufferSize, logger)
	if s.publisher.Enabled() {
		deps.Publisher = s.publisher
	}

	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(context.Background(), &cfg.Database)
		if err != nil {
			s.closeInfra()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db

		batchRepo := repository.NewBatchRepository(db, logger)
		if err := batchRepo.EnsureSchema(context.Background()); err != nil {
			s.closeInfra()
			return nil, fmt.Errorf("failed to prepare upload history tables: %w", err)
		}
		deps.Batches = batchRepo
	}

	s.app = app.New(app.Options{
		DrainInterval: cfg.UI.DrainInterval,
		QueueSize:     cfg.UI.QueueSize,
		InitialMode:   policy.ModeInbound,
		AutoConnect:   cfg.Reader.AutoConnect,
		Descriptor:    descriptorFrom(cfg),
		Username:      cfg.API.Username,
		Password:      cfg.API.Password,
	}, deps, logger)

	return s, nil
}

// Submit 投递界面命令
func (s *InventoryService) Submit(msg app.Message) bool {
	return s.app.Submit(msg)
}

// Start 启动服务，阻塞直到 ctx 取消
func (s *InventoryService) Start(ctx context.Context) error {
	s.logger.Info("Starting RFID inventory service",
		zap.String("session_id", s.app.SessionID()),
		zap.String("reader", descriptorFrom(s.config).String()),
		zap.Bool("redis_enabled", s.config.RedisEnabled),
		zap.Bool("mqtt_enabled", s.config.MQTTEnabled),
		zap.Bool("db_enabled", s.config.DBEnabled),
	)

	// 剩余事件在 Stop 时排空，不随 ctx 取消
	if s.publisher.Enabled() {
		s.publisher.Start(context.Background())
	}
	return s.app.Run(ctx)
}

// Stop 停止服务：先断开读写器，再排空事件队列，最后关闭外部连接
func (s *InventoryService) Stop(ctx context.Context) error {
	s.app.Close()
	if s.publisher.Enabled() {
		s.publisher.Stop()
	}
	s.closeInfra()
	return nil
}

func (s *InventoryService) closeInfra() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}

func descriptorFrom(cfg *config.Config) reader.Descriptor {
	if cfg.Reader.Transport == string(reader.TransportSerial) {
		return reader.Serial(cfg.Reader.Port, cfg.Reader.BaudRate)
	}
	return reader.USB()
}
