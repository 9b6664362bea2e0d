// Package config loads server settings from a YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config holds every server setting
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Game    GameConfig    `yaml:"game"`
	Rooms   []RoomConfig  `yaml:"rooms"`
	Log     LogConfig     `yaml:"log"`
	Limits  LimitsConfig  `yaml:"limits"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins restricts websocket origins; empty allows any
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type        string `yaml:"type"`
	RedisURL    string `yaml:"redis_url"`
	PostgresDSN string `yaml:"postgres_dsn"`
	ChatHistory int    `yaml:"chat_history"`
}

// AuthConfig holds session and socket ticket settings
type AuthConfig struct {
	SessionDuration time.Duration `yaml:"session_duration"`
	TicketSecret    string        `yaml:"ticket_secret"`
	TicketTTL       time.Duration `yaml:"ticket_ttl"`
}

// GameConfig holds table runtime settings
type GameConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	StartDelay   time.Duration `yaml:"start_delay"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	RatedDefault bool          `yaml:"rated_default"`
}

// RoomConfig describes one static room
type RoomConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	MaxTables int    `yaml:"max_tables"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// LimitsConfig holds rate limits
type LimitsConfig struct {
	SocketEventsPerSecond float64 `yaml:"socket_events_per_second"`
	SocketBurst           int     `yaml:"socket_burst"`
	HTTPRequestsPerSecond float64 `yaml:"http_requests_per_second"`
	HTTPBurst             int     `yaml:"http_burst"`
}

// Default returns the settings used when nothing is configured
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type:        StorageMemory,
			ChatHistory: 200,
		},
		Auth: AuthConfig{
			SessionDuration: 24 * time.Hour,
			TicketTTL:       time.Minute,
		},
		Game: GameConfig{
			TickInterval: 500 * time.Millisecond,
			PingTimeout:  2 * time.Second,
			RatedDefault: true,
		},
		Rooms: []RoomConfig{{ID: "lobby", Name: "Lobby", MaxTables: 50}},
		Log:   LogConfig{Level: "info"},
		Limits: LimitsConfig{
			SocketEventsPerSecond: 20,
			SocketBurst:           40,
			HTTPRequestsPerSecond: 10,
			HTTPBurst:             30,
		},
	}
}

// LoadConfig loads the configuration from a YAML file, falling back to the
// environment alone when the file cannot be read
func LoadConfig(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT value: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("TICKET_SECRET"); v != "" {
		c.Auth.TicketSecret = v
	}
	if v := os.Getenv("SESSION_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_DURATION value: %w", err)
		}
		c.Auth.SessionDuration = d
	}
	if v := os.Getenv("TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TICK_INTERVAL value: %w", err)
		}
		c.Game.TickInterval = d
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate reports the first setting that cannot work
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("storage.redis_url (REDIS_URL) required when storage type is redis")
		}
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn (DATABASE_URL) required when storage type is postgres")
		}
	default:
		return fmt.Errorf("invalid storage type %q: must be memory, redis or postgres", c.Storage.Type)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if len(c.Rooms) == 0 {
		return errors.New("at least one room is required")
	}
	seen := make(map[string]bool, len(c.Rooms))
	for _, r := range c.Rooms {
		if r.ID == "" {
			return errors.New("room id is required")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate room id %q", r.ID)
		}
		seen[r.ID] = true
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses the configured log level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}
