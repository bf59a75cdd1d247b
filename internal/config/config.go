package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server" envPrefix:"SERVER_"`
	Redis       RedisConfig       `yaml:"redis" envPrefix:"REDIS_"`
	Postgres    PostgresConfig    `yaml:"postgres" envPrefix:"POSTGRES_"`
	SQLite      SQLiteConfig      `yaml:"sqlite" envPrefix:"SQLITE_"`
	Snapshots   SnapshotsConfig   `yaml:"snapshots" envPrefix:"SNAPSHOTS_"`
	Levels      LevelsConfig      `yaml:"levels" envPrefix:"LEVELS_"`
	Game        GameConfig        `yaml:"game" envPrefix:"GAME_"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard" envPrefix:"LEADERBOARD_"`
	Log         LogConfig         `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port           string   `yaml:"port" env:"PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	TickInterval   string   `yaml:"tick_interval" env:"TICK_INTERVAL"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	TTL      string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// SnapshotsConfig selects where session snapshots live: memory, redis or file.
type SnapshotsConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	Dir     string `yaml:"dir" env:"DIR"`
	TTL     string `yaml:"ttl" env:"TTL"`
}

type LevelsConfig struct {
	TTL string `yaml:"ttl" env:"TTL"`
}

type GameConfig struct {
	DurationMinutes   int    `yaml:"duration_minutes" env:"DURATION_MINUTES"`
	AdminPasswordHash string `yaml:"admin_password_hash" env:"ADMIN_PASSWORD_HASH"`
	AdminPassword     string `yaml:"admin_password" env:"ADMIN_PASSWORD"`
}

// LeaderboardConfig selects the leaderboard backend (memory, postgres or sqlite) and the
// time zone that defines "today".
type LeaderboardConfig struct {
	Backend  string `yaml:"backend" env:"BACKEND"`
	TimeZone string `yaml:"time_zone" env:"TIME_ZONE"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Load reads YAML config from path, then applies environment overrides. A missing file
// is not an error so the service can be configured from the environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target. Unset variables keep the
// current value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Location resolves the leaderboard time zone; empty means the server's local zone.
func (c LeaderboardConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("leaderboard time zone: %w", err)
	}
	return loc, nil
}
