package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Cache drivers
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds process configuration read from the environment
type Config struct {
	HTTPPort string

	StoreDriver string
	MongoURI    string
	MongoDB     string
	SQLitePath  string

	CacheDriver string
	RedisAddr   string
	SessionTTL  time.Duration
	MaxSessions int

	SurveyConfigPath string
	SurveyID         string
	DeploymentID     string

	AdminUsername string
	AdminPassword string `json:"-"` // Never serialize
	JWTSecret     string `json:"-"`

	MaxRoutingHops int
	StrictReplay   bool

	LogLevel           slog.Level
	CORSAllowedOrigins []string
}

// Load reads the configuration with defaults for local development
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          getEnv("MONGO_DB", "chatsurvey"),
		SQLitePath:       getEnv("SQLITE_PATH", "chatsurvey.db"),
		CacheDriver:      strings.ToLower(getEnv("CACHE_DRIVER", CacheMemory)),
		RedisAddr:        redisAddr(getEnv("REDIS_ADDR", "localhost:6379")),
		SurveyConfigPath: getEnv("SURVEY_CONFIG_PATH", ""),
		SurveyID:         getEnv("SURVEY_ID", ""),
		DeploymentID:     getEnv("DEPLOYMENT_ID", ""),
		AdminUsername:    getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:    getEnv("ADMIN_PASSWORD", "admin"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-in-production"),
	}

	var err error
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxSessions, err = getEnvInt("MAX_SESSIONS", 4096); err != nil {
		return nil, err
	}
	if cfg.MaxRoutingHops, err = getEnvInt("MAX_ROUTING_HOPS", 32); err != nil {
		return nil, err
	}
	if cfg.StrictReplay, err = getEnvBool("STRICT_REPLAY", false); err != nil {
		return nil, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	switch cfg.StoreDriver {
	case StoreMongo, StoreSQLite:
	default:
		return nil, fmt.Errorf("STORE_DRIVER: unsupported driver %q", cfg.StoreDriver)
	}
	switch cfg.CacheDriver {
	case CacheMemory, CacheRedis:
	default:
		return nil, fmt.Errorf("CACHE_DRIVER: unsupported driver %q", cfg.CacheDriver)
	}
	if cfg.MaxRoutingHops < 1 {
		return nil, fmt.Errorf("MAX_ROUTING_HOPS must be positive, got %d", cfg.MaxRoutingHops)
	}
	return cfg, nil
}

// redisAddr strips a redis:// scheme, go-redis wants host:port
func redisAddr(addr string) string {
	return strings.TrimPrefix(addr, "redis://")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
