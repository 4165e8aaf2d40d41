package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig PostgreSQL（上传历史）
type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	MaxConns       int
	MaxIdle        int
	ConnectTimeout time.Duration
}

// RedisConfig Redis（事件流 + 管道参数缓存）
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// MQTTConfig MQTT（扫描事件广播）
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	ConnectTimeout time.Duration
}

// GetDSN lib/pq 连接串
func (c *DatabaseConfig) GetDSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
	if secs := int(c.ConnectTimeout / time.Second); secs > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", secs)
	}
	return dsn
}

// LoadFromEnv 读取 <prefix>_HOST、_PORT、_USER、_PASSWORD、_NAME、_SSLMODE、_MAX_CONNS、_MAX_IDLE、_CONNECT_TIMEOUT
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	env := envReader(prefix)
	env.setString("HOST", &c.Host)
	env.setInt("PORT", &c.Port)
	env.setString("USER", &c.User)
	env.setString("PASSWORD", &c.Password)
	env.setString("NAME", &c.Database)
	env.setString("SSLMODE", &c.SSLMode)
	env.setInt("MAX_CONNS", &c.MaxConns)
	env.setInt("MAX_IDLE", &c.MaxIdle)
	env.setDuration("CONNECT_TIMEOUT", &c.ConnectTimeout)
}

// LoadFromEnv 读取 <prefix>_ADDR、_PASSWORD、_DB、_DIAL_TIMEOUT
func (c *RedisConfig) LoadFromEnv(prefix string) {
	env := envReader(prefix)
	env.setString("ADDR", &c.Addr)
	env.setString("PASSWORD", &c.Password)
	env.setInt("DB", &c.DB)
	env.setDuration("DIAL_TIMEOUT", &c.DialTimeout)
}

// LoadFromEnv 读取 <prefix>_BROKER、_CLIENT_ID、_USERNAME、_PASSWORD、_QOS、_CONNECT_TIMEOUT
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	env := envReader(prefix)
	env.setString("BROKER", &c.Broker)
	env.setString("CLIENT_ID", &c.ClientID)
	env.setString("USERNAME", &c.Username)
	env.setString("PASSWORD", &c.Password)
	qos := int(c.QoS)
	env.setInt("QOS", &qos)
	if qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
	env.setDuration("CONNECT_TIMEOUT", &c.ConnectTimeout)
}

// envReader 只覆盖已设置且可解析的变量，其余保持默认值
type envReader string

func (p envReader) lookup(name string) (string, bool) {
	v := os.Getenv(string(p) + "_" + name)
	return v, v != ""
}

func (p envReader) setString(name string, dst *string) {
	if v, ok := p.lookup(name); ok {
		*dst = v
	}
}

func (p envReader) setInt(name string, dst *int) {
	if v, ok := p.lookup(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (p envReader) setDuration(name string, dst *time.Duration) {
	if v, ok := p.lookup(name); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}
