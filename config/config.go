package config

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Ntfy       NtfyConfig       `yaml:"ntfy"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Ingest     IngestConfig     `yaml:"ingest"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size  int `yaml:"size"`
	Queue int `yaml:"queue"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Browser push is disabled when either key is empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// NtfyConfig configures the ntfy-style HTTP push endpoint.
type NtfyConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	Topic          string        `yaml:"topic"`
	Token          string        `yaml:"token"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port              int      `yaml:"port"`
	RateLimitPerSec   float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst    int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds   int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	ControlJWTSecret  string   `yaml:"control_jwt_secret"`
	ShutdownTimeoutMS int      `yaml:"shutdown_timeout_ms"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
	SeedRooms              bool   `yaml:"seed_rooms"`
}

// ClassifierConfig selects how a reading's status is derived.
type ClassifierConfig struct {
	StatusRule string `yaml:"status_rule"`
}

// IngestConfig controls how readings for unknown rooms are handled.
type IngestConfig struct {
	UnknownRoomPolicy string `yaml:"unknown_room_policy"`
}

// MQTTConfig configures the optional MQTT reading subscriber.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// LogConfig sets the minimum log level (debug, info, warn, error).
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration suitable for local development: sqlite, seeded rooms,
// no external notification channels.
func Default() *Config {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "monitoring.db", SeedRooms: true},
	}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds < 0 {
		cfg.Server.CacheTTLSeconds = 0
	}
	if cfg.Server.ShutdownTimeoutMS <= 0 {
		cfg.Server.ShutdownTimeoutMS = 5000
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Ntfy.URL == "" {
		cfg.Ntfy.URL = "https://ntfy.sh"
	}
	if cfg.Ntfy.Topic == "" {
		cfg.Ntfy.Topic = "alert"
	}
	if cfg.Ntfy.TimeoutSeconds <= 0 {
		cfg.Ntfy.TimeoutSeconds = 10
	}
	cfg.Ntfy.Timeout = time.Duration(cfg.Ntfy.TimeoutSeconds) * time.Second

	if cfg.WorkerPool.Size <= 0 {
		slog.Warn("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.Queue <= 0 {
		cfg.WorkerPool.Queue = 64
	}

	if cfg.Classifier.StatusRule == "" {
		cfg.Classifier.StatusRule = "strict"
	}
	if cfg.Ingest.UnknownRoomPolicy == "" {
		cfg.Ingest.UnknownRoomPolicy = "drop"
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "home-sensor-backend"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "home/rooms/+/readings"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
