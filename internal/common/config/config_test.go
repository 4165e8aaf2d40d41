package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfigLoadFromEnv(t *testing.T) {
	t.Setenv("TDB_HOST", "db.local")
	t.Setenv("TDB_PORT", "6543")
	t.Setenv("TDB_NAME", "rfid")
	t.Setenv("TDB_MAX_CONNS", "not-a-number")
	t.Setenv("TDB_CONNECT_TIMEOUT", "5s")

	cfg := DatabaseConfig{Host: "localhost", Port: 5432, User: "postgres", SSLMode: "disable", MaxConns: 4}
	cfg.LoadFromEnv("TDB")

	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "rfid", cfg.Database)
	assert.Equal(t, 4, cfg.MaxConns, "unparsable value keeps default")
	assert.Equal(t, "host=db.local port=6543 user=postgres password= dbname=rfid sslmode=disable connect_timeout=5", cfg.GetDSN())
}

func TestMQTTConfigQoS(t *testing.T) {
	cfg := MQTTConfig{QoS: 1}

	t.Setenv("TMQ_QOS", "7")
	cfg.LoadFromEnv("TMQ")
	assert.Equal(t, byte(1), cfg.QoS)

	t.Setenv("TMQ_QOS", "0")
	cfg.LoadFromEnv("TMQ")
	assert.Equal(t, byte(0), cfg.QoS)
}

func TestRedisConfigLoadFromEnv(t *testing.T) {
	t.Setenv("TRD_ADDR", "redis:6379")
	t.Setenv("TRD_DB", "3")
	t.Setenv("TRD_DIAL_TIMEOUT", "250ms")

	var cfg RedisConfig
	cfg.LoadFromEnv("TRD")
	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, 250*time.Millisecond, cfg.DialTimeout)
}
