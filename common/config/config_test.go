package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "STORAGE_DRIVER", "KAFKA_BROKERS", "HOLD_MAX_TTL_SECONDS", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.StorageDriver)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.HoldMaxTTL)
	assert.Equal(t, time.Minute, cfg.MapCacheBucket)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", " b1:9092, ,b2:9092 ")
	t.Setenv("HOLD_MAX_TTL_SECONDS", "900")
	t.Setenv("KAFKA_CONSUME_SEAT_STATUS", "true")
	t.Setenv("RESERVE_RATE_LIMIT", "12.5")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Minute, cfg.HoldMaxTTL)
	assert.True(t, cfg.Kafka.ConsumeSeatFeeds)
	assert.Equal(t, 12.5, cfg.ReserveRatePerSec)
	assert.Equal(t, 3306, cfg.Database.Port)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 3307, Name: "seatmap", User: "app", Password: "pw"}
	assert.Equal(t, "app:pw@tcp(db:3307)/seatmap?parseTime=true&loc=UTC&charset=utf8mb4&clientFoundRows=true", d.DSN())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SEATMAP_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("SEATMAP_TEST_VALUE", "")
	os.Unsetenv("SEATMAP_TEST_VALUE")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("SEATMAP_TEST_VALUE"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
