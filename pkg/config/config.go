package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	gormlogger "gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            string        `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName          string        `env:"DB_NAME" envDefault:"taskhub"`
	SSLMode         string        `env:"DB_SSL_MODE" envDefault:"disable"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	LogLevel        string        `env:"DB_LOG_LEVEL" envDefault:"warn"`
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GormLogLevel maps the configured level onto gorm's logger levels.
func (c *DBConfig) GormLogLevel() gormlogger.LogLevel {
	switch c.LogLevel {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port     string `env:"SERVER_PORT" envDefault:"8080"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	SeedDemo bool   `env:"SEED_DEMO" envDefault:"false"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string `env:"JWT_SIGNING_KEY" envDefault:"taskhubsecretkey"`
	ExpirationHours int    `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// RateLimitConfig holds the per-IP login throttle settings.
type RateLimitConfig struct {
	LoginRPS   float64 `env:"LOGIN_RATE_LIMIT_RPS" envDefault:"5"`
	LoginBurst int     `env:"LOGIN_RATE_LIMIT_BURST" envDefault:"10"`
}

// Config holds all configuration
type Config struct {
	DB        DBConfig
	Server    ServerConfig
	JWT       JWTConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

// Load reads configuration from a .env file (when present) and the
// environment.
func Load() (*Config, error) {
	// .env file is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
