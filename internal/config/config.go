package config

import (
	"os"
	"strconv"
	"time"

	"rps_arena/internal/game"
	"rps_arena/internal/logger"
	"rps_arena/internal/matchmaking"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	AppPort       string
	DatabaseURL   string
	JWTSecret     string
	AllowedOrigin string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool

	// EconomyBackend selects the escrow ledger: postgres or memory.
	EconomyBackend string
	// SeedBalance is credited to every player the memory backend has not seen.
	SeedBalance int64

	MinBet     int64
	MaxBet     int64
	DefaultBet int64

	RoomCodeTTL      time.Duration
	RoundTimeout     time.Duration
	DisconnectGrace  time.Duration
	ArchiveRetention time.Duration

	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:        envString("APP_PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigin:  os.Getenv("ALLOWED_ORIGIN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        int(envInt("REDIS_DB", 0)),
		LogLevel:       envString("LOG_LEVEL", "info"),
		LogJSON:        os.Getenv("LOG_JSON") == "true",
		EconomyBackend: envString("ECONOMY_BACKEND", BackendPostgres),
		SeedBalance:    envInt("SEED_BALANCE", 1000),

		MinBet:     envInt("MIN_BET", 10),
		MaxBet:     envInt("MAX_BET", 100000),
		DefaultBet: envInt("DEFAULT_BET", 50),

		RoomCodeTTL:      envSeconds("ROOM_CODE_TTL_SECONDS", 300),
		RoundTimeout:     envSeconds("ROUND_TIMEOUT_SECONDS", 60),
		DisconnectGrace:  envSeconds("DISCONNECT_GRACE_SECONDS", 15),
		ArchiveRetention: envSeconds("ARCHIVE_RETENTION_SECONDS", 600),

		APIRateLimit:  int(envInt("API_RATE_LIMIT", 60)),
		APIRateWindow: envSeconds("API_RATE_WINDOW_SECONDS", 60),
	}

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}
	switch cfg.EconomyBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			logger.Fatal("DATABASE_URL is not set")
		}
	case BackendMemory:
	default:
		logger.Fatal("unknown ECONOMY_BACKEND", "value", cfg.EconomyBackend)
	}
	if cfg.MinBet > cfg.MaxBet || cfg.DefaultBet < cfg.MinBet || cfg.DefaultBet > cfg.MaxBet {
		logger.Fatal("bet limits are inconsistent", "min", cfg.MinBet, "max", cfg.MaxBet, "default", cfg.DefaultBet)
	}

	return cfg
}

// Engine returns the round engine settings.
func (c *Config) Engine() game.Config {
	return game.Config{
		RoundTimeout:     c.RoundTimeout,
		DisconnectGrace:  c.DisconnectGrace,
		ArchiveRetention: c.ArchiveRetention,
	}
}

// Matchmaking returns the coordinator settings.
func (c *Config) Matchmaking() matchmaking.Config {
	return matchmaking.Config{
		MinBet:     c.MinBet,
		MaxBet:     c.MaxBet,
		DefaultBet: c.DefaultBet,
		RoomTTL:    c.RoomCodeTTL,
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt ignores values that do not parse or are negative.
func envInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
		logger.Warn("ignoring invalid env value", "key", key, "value", v)
	}
	return def
}

func envSeconds(key string, def int64) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}
