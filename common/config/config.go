package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the seat map service, read from the
// environment after an optional .env file has been loaded.
type Config struct {
	Port          string
	StorageDriver string // "mysql" or "memory"

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	JWTSecret string

	HoldMaxTTL         time.Duration
	HoldSweepInterval  time.Duration
	ReserveRatePerSec  float64
	ReserveBurst       int
	MapCacheBucket     time.Duration
	MapCacheTTL        time.Duration
	ShutdownTimeout    time.Duration
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	Host         string
	Port         int
	Name         string
	User         string
	Password     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN builds the go-sql-driver DSN. Times are stored and read as UTC, and
// RowsAffected counts matched rows rather than changed ones.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC&charset=utf8mb4&clientFoundRows=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// RedisConfig holds the effective-map cache connection. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds broker settings. With no brokers the producer runs in mock mode.
type KafkaConfig struct {
	Brokers          []string
	GroupID          string
	AuditTopic       string
	NotifyTopic      string
	SeatStatusTopic  string
	ConsumeSeatFeeds bool
}

// LoadEnvFile loads variables from the given files (default .env) if present.
// Variables already in the environment win.
func LoadEnvFile(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads the configuration from the environment
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "mysql")),
		Database: DatabaseConfig{
			Host:         getEnv("DB_SERVER", "127.0.0.1"),
			Port:         getEnvInt("DB_PORT", 3306),
			Name:         getEnv("DB_NAME", "seatmap"),
			User:         getEnv("DB_USER", "root"),
			Password:     getEnv("DB_PASSWORD", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvSeconds("DB_CONN_MAX_LIFETIME_SECONDS", 300),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:          splitCSV(getEnv("KAFKA_BROKERS", "")),
			GroupID:          getEnv("KAFKA_GROUP_ID", "seatmap-services"),
			AuditTopic:       getEnv("KAFKA_AUDIT_TOPIC", "seatmap-audit"),
			NotifyTopic:      getEnv("KAFKA_NOTIFY_TOPIC", "override-notifications"),
			SeatStatusTopic:  getEnv("KAFKA_SEAT_STATUS_TOPIC", "seat-status-updates"),
			ConsumeSeatFeeds: getEnvBool("KAFKA_CONSUME_SEAT_STATUS", false),
		},
		JWTSecret:          getEnv("JWT_SECRET", ""),
		HoldMaxTTL:         getEnvSeconds("HOLD_MAX_TTL_SECONDS", 3600),
		HoldSweepInterval:  getEnvSeconds("HOLD_SWEEP_INTERVAL_SECONDS", 30),
		ReserveRatePerSec:  getEnvFloat("RESERVE_RATE_LIMIT", 20),
		ReserveBurst:       getEnvInt("RESERVE_RATE_BURST", 40),
		MapCacheBucket:     getEnvSeconds("EFFECTIVE_MAP_CACHE_BUCKET_SECONDS", 60),
		MapCacheTTL:        getEnvSeconds("EFFECTIVE_MAP_CACHE_TTL_SECONDS", 300),
		ShutdownTimeout:    getEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", 10),
		ServerReadTimeout:  getEnvSeconds("SERVER_READ_TIMEOUT_SECONDS", 15),
		ServerWriteTimeout: getEnvSeconds("SERVER_WRITE_TIMEOUT_SECONDS", 15),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}

func splitCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
