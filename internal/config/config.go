package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Realtime RealtimeConfig
	Catalog  CatalogConfig
	Log      LogConfig
	// Location anchors custom date ranges; dashboards pick local calendar days.
	Location *time.Location
}

type ServerConfig struct {
	Port           string
	FetchTimeout   time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
}

type RealtimeConfig struct {
	Channel          string
	SubscribeTimeout time.Duration
	ReconnectBase    time.Duration
	MaxRetries       int
}

type CatalogConfig struct {
	TTL time.Duration
}

type LogConfig struct {
	Level       string
	Environment string
}

var bindings = map[string]string{
	"server.port":                "SERVER_PORT",
	"server.fetch_timeout":       "FETCH_TIMEOUT",
	"websocket.allowed_origins":  "WEBSOCKET_ALLOWED_ORIGINS",
	"database.url":               "DATABASE_URL",
	"jwt.secret":                 "JWT_SECRET",
	"realtime.channel":           "REALTIME_CHANNEL",
	"realtime.subscribe_timeout": "REALTIME_SUBSCRIBE_TIMEOUT",
	"realtime.reconnect_base":    "REALTIME_RECONNECT_BASE",
	"realtime.max_retries":       "REALTIME_MAX_RETRIES",
	"catalog.ttl":                "CATALOG_TTL",
	"log.level":                  "LOG_LEVEL",
	"log.environment":            "ENVIRONMENT",
	"timezone":                   "TIMEZONE",
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(viper.New())
}

// FromViper applies defaults and env bindings to v and decodes the result.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.fetch_timeout", "10s")
	v.SetDefault("websocket.allowed_origins", "")
	v.SetDefault("database.url", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("realtime.channel", "conversations_changes")
	v.SetDefault("realtime.subscribe_timeout", "10s")
	v.SetDefault("realtime.reconnect_base", "2s")
	v.SetDefault("realtime.max_retries", 3)
	v.SetDefault("catalog.ttl", "5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.environment", "local")
	v.SetDefault("timezone", "Local")

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			FetchTimeout:   v.GetDuration("server.fetch_timeout"),
			AllowedOrigins: splitList(v.GetString("websocket.allowed_origins")),
		},
		Database: DatabaseConfig{URL: v.GetString("database.url")},
		Auth:     AuthConfig{JWTSecret: v.GetString("jwt.secret")},
		Realtime: RealtimeConfig{
			Channel:          v.GetString("realtime.channel"),
			SubscribeTimeout: v.GetDuration("realtime.subscribe_timeout"),
			ReconnectBase:    v.GetDuration("realtime.reconnect_base"),
			MaxRetries:       v.GetInt("realtime.max_retries"),
		},
		Catalog: CatalogConfig{TTL: v.GetDuration("catalog.ttl")},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Environment: v.GetString("log.environment"),
		},
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Realtime.MaxRetries < 0 {
		return fmt.Errorf("REALTIME_MAX_RETRIES must not be negative")
	}
	if c.Realtime.ReconnectBase <= 0 {
		return fmt.Errorf("REALTIME_RECONNECT_BASE must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
