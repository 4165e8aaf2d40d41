package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "wisefido-rfid/internal/common/config"
)

// Config wisefido-rfid（RFID 盘点工具）配置
type Config struct {
	API struct {
		BaseURL  string
		Timeout  time.Duration
		Username string // 可选：启动时自动登录
		Password string
	}

	Geocode struct {
		Key string
		URL string
	}

	Reader struct {
		Transport    string // "usb" 或 "serial"
		Port         string // 串口名，如 COM3、/dev/ttyUSB0
		BaudRate     int
		ScanInterval time.Duration // 两次盘点之间的间隔，限制占空比
		TIDWords     int           // TID 读取长度（字）
		AutoConnect  bool
	}

	UI struct {
		DrainInterval time.Duration // 主上下文处理消息队列的周期
		QueueSize     int
	}

	Export struct {
		Dir string
	}

	RedisEnabled bool
	Redis        commoncfg.RedisConfig
	Stream       struct {
		Name   string
		MaxLen int64
	}
	CatalogCacheTTL time.Duration

	MQTTEnabled bool
	MQTT        commoncfg.MQTTConfig
	MQTTTopic   string

	DBEnabled bool
	Database  commoncfg.DatabaseConfig

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.API.BaseURL = strings.TrimRight(getEnv("RFID_API_BASE_URL", "https://smart-pipeline-parent-admin.kmyszkj.com/admin"), "/")
	cfg.API.Timeout = parseDuration(getEnv("RFID_API_TIMEOUT", "10s"), 10*time.Second)
	cfg.API.Username = getEnv("RFID_API_USERNAME", "")
	cfg.API.Password = getEnv("RFID_API_PASSWORD", "")

	cfg.Geocode.Key = getEnv("AMAP_KEY", "")
	cfg.Geocode.URL = getEnv("AMAP_GEOCODE_URL", "https://restapi.amap.com/v3/geocode/geo")

	cfg.Reader.Transport = strings.ToLower(getEnv("READER_TRANSPORT", "usb"))
	cfg.Reader.Port = getEnv("READER_PORT", "")
	cfg.Reader.BaudRate = parseInt(getEnv("READER_BAUD", "115200"), 115200)
	cfg.Reader.ScanInterval = parseDuration(getEnv("READER_SCAN_INTERVAL", "200ms"), 200*time.Millisecond)
	cfg.Reader.TIDWords = parseInt(getEnv("READER_TID_WORDS", "6"), 6)
	cfg.Reader.AutoConnect = getEnv("READER_AUTO_CONNECT", "true") == "true"

	cfg.UI.DrainInterval = parseDuration(getEnv("UI_DRAIN_INTERVAL", "100ms"), 100*time.Millisecond)
	cfg.UI.QueueSize = parseInt(getEnv("UI_QUEUE_SIZE", "1024"), 1024)

	cfg.Export.Dir = getEnv("EXPORT_DIR", ".")

	// Redis（可选：扫描事件流 + 管道参数缓存）
	cfg.RedisEnabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")
	cfg.Stream.Name = getEnv("RFID_SIGHTING_STREAM", "rfid:sighting:stream")
	cfg.Stream.MaxLen = int64(parseInt(getEnv("RFID_SIGHTING_STREAM_MAXLEN", "100000"), 100000))
	cfg.CatalogCacheTTL = parseDuration(getEnv("CATALOG_CACHE_TTL", "10m"), 10*time.Minute)

	// MQTT（可选：向下游广播扫描事件）
	cfg.MQTTEnabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-rfid"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTTTopic = getEnv("MQTT_TOPIC", "rfid/sightings")

	// PostgreSQL（可选：上传批次历史）
	cfg.DBEnabled = getEnv("DB_ENABLED", "false") == "true"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "wisefido_rfid"
	cfg.Database.SSLMode = "disable"
	cfg.Database.LoadFromEnv("DB")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "console")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Reader.Transport {
	case "usb":
	case "serial":
		if c.Reader.Port == "" && c.Reader.AutoConnect {
			return fmt.Errorf("READER_PORT is required when READER_TRANSPORT=serial and auto connect is on")
		}
	default:
		return fmt.Errorf("unsupported READER_TRANSPORT: %s", c.Reader.Transport)
	}
	if c.Reader.BaudRate <= 0 {
		return fmt.Errorf("invalid READER_BAUD: %d", c.Reader.BaudRate)
	}
	if c.UI.QueueSize <= 0 {
		return fmt.Errorf("invalid UI_QUEUE_SIZE: %d", c.UI.QueueSize)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
