package app

import (
	"time"

	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/utils"
)

// Config holds §6's configuration keys, loaded from environment variables
// (optionally pre-seeded from a CONFIG_FILE YAML document — see
// utils.LoadConfigFile; env vars always win).
type Config struct {
	StoreDriver         string
	StoreConnection     string
	JWTSigningKey       string
	AdminSigningKey     string
	AuthTokenLifetime   time.Duration
	HeartbeatLiveWindow time.Duration
	LockExpiryWindow    time.Duration
	SweeperInterval     time.Duration
	JobUpdateRetries    int

	Port          string
	CorsOrigins   string
	RedisAddr     string
	RedisChannel  string
	OtelEnabled   bool
	OtelServiceID string
}

func LoadConfig(log *logger.Logger) Config {
	if err := utils.LoadConfigFile(log); err != nil {
		log.Warn("continuing without config file", "error", err)
	}

	return Config{
		StoreDriver:         utils.GetEnv("STORE_DRIVER", "postgres", log),
		StoreConnection:     utils.GetEnv("STORE_DSN", "", log),
		JWTSigningKey:       utils.GetEnv("JWT_SIGNING_KEY", "", log),
		AdminSigningKey:     utils.GetEnv("ADMIN_TOKEN_SIGNING_SECRET", "", log),
		AuthTokenLifetime:   utils.GetEnvAsDuration("AUTH_TOKEN_LIFETIME", 24*time.Hour, log),
		HeartbeatLiveWindow: utils.GetEnvAsDuration("HEARTBEAT_LIVE_WINDOW", 120*time.Second, log),
		LockExpiryWindow:    utils.GetEnvAsDuration("LOCK_EXPIRY_WINDOW", 3600*time.Second, log),
		SweeperInterval:     utils.GetEnvAsDuration("SWEEPER_INTERVAL", 30*time.Second, log),
		JobUpdateRetries:    utils.GetEnvAsInt("JOB_UPDATE_RETRIES", 3, log),

		Port:          utils.GetEnv("PORT", "8080", log),
		CorsOrigins:   utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log),
		RedisAddr:     utils.GetEnv("REDIS_ADDR", "", log),
		RedisChannel:  utils.GetEnv("REDIS_CHANNEL", "batchcoord:events", log),
		OtelEnabled:   utils.GetEnv("OTEL_ENABLED", "", log) != "",
		OtelServiceID: utils.GetEnv("OTEL_SERVICE_NAME", "batchcoord", log),
	}
}
