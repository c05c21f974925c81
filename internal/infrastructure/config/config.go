package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/posebridge/internal/slot"
)

// Config is the root configuration structure for posebridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Logging   LoggingConfig   `yaml:"logging"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Consumer  ConsumerConfig  `yaml:"consumer"`
	Slots     SlotsConfig     `yaml:"slots"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// SiteConfig identifies this bridge instance.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// TrackingConfig describes how the tracking service is reached and launched.
type TrackingConfig struct {
	// TopicPrefix is the root of the tracking-service MQTT topics.
	TopicPrefix string `yaml:"topic_prefix"`

	// QueueSize bounds the event dispatcher queue.
	QueueSize int `yaml:"queue_size"`

	// Launch configures starting the service when it is not running.
	Launch LaunchConfig `yaml:"launch"`
}

// LaunchConfig configures the tracking-service process.
type LaunchConfig struct {
	// Binary is the service executable. Empty disables launching.
	Binary     string   `yaml:"binary"`
	Args       []string `yaml:"args"`
	Env        []string `yaml:"env"`
	WorkingDir string   `yaml:"working_dir"`

	// RestartOnFailure restarts the service if it exits unexpectedly.
	RestartOnFailure bool `yaml:"restart_on_failure"`

	// RestartDelaySeconds is the wait before a restart.
	RestartDelaySeconds int `yaml:"restart_delay_seconds"`

	// MaxRestartAttempts limits restarts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`

	// StopTimeoutSeconds is how long to wait after SIGTERM before SIGKILL.
	StopTimeoutSeconds int `yaml:"stop_timeout_seconds"`
}

// ConsumerConfig describes the shared slot buffer.
type ConsumerConfig struct {
	Path  string `yaml:"path"`
	Slots int    `yaml:"slots"`
	Lock  bool   `yaml:"lock"`
}

// SlotsConfig holds the slot layout used by auto-connect and by connect
// requests that carry no definitions.
type SlotsConfig struct {
	Overflow    string            `yaml:"overflow"`
	AutoConnect bool              `yaml:"auto_connect"`
	Definitions []slot.Definition `yaml:"definitions"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`

	// SampleEvery writes slot values every N publishes. 0 disables it.
	SampleEvery int `yaml:"sample_every"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path           string `yaml:"path"`
	WALMode        bool   `yaml:"wal_mode"`
	BusyTimeout    int    `yaml:"busy_timeout"`
	JournalEnabled bool   `yaml:"journal_enabled"`

	// JournalRetentionDays is how long transitions are kept. 0 keeps them forever.
	JournalRetentionDays int `yaml:"journal_retention_days"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APIAuthConfig protects the connect and disconnect endpoints with HS256
// bearer tokens. An empty secret leaves them open.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the lifetime of tokens issued with --issue-token, in minutes.
	TokenTTL int `yaml:"token_ttl"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: POSEBRIDGE_SECTION_KEY
// For example: POSEBRIDGE_MQTT_HOST, POSEBRIDGE_CONSUMER_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "posebridge-01",
			Name: "posebridge",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "posebridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Tracking: TrackingConfig{
			TopicPrefix: "psmove",
			QueueSize:   256,
			Launch: LaunchConfig{
				RestartDelaySeconds: 5,
				MaxRestartAttempts:  10,
				StopTimeoutSeconds:  10,
			},
		},
		Consumer: ConsumerConfig{
			Path:  "/dev/shm/posebridge-slots",
			Slots: 4,
			Lock:  true,
		},
		Slots: SlotsConfig{
			Overflow: "truncate",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     1000,
			FlushInterval: 1,
			SampleEvery:   30,
		},
		Database: DatabaseConfig{
			Path:                 "./data/posebridge.db",
			WALMode:              true,
			BusyTimeout:          5,
			JournalEnabled:       true,
			JournalRetentionDays: 30,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8095,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Auth: APIAuthConfig{
				TokenTTL: 60 * 24,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: POSEBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Site
	if v := os.Getenv("POSEBRIDGE_SITE_ID"); v != "" {
		cfg.Site.ID = v
	}

	// Logging
	if v := os.Getenv("POSEBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// MQTT
	if v := os.Getenv("POSEBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("POSEBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("POSEBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Tracking
	if v := os.Getenv("POSEBRIDGE_TRACKING_BINARY"); v != "" {
		cfg.Tracking.Launch.Binary = v
	}

	// Consumer
	if v := os.Getenv("POSEBRIDGE_CONSUMER_PATH"); v != "" {
		cfg.Consumer.Path = v
	}

	// Database
	if v := os.Getenv("POSEBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("POSEBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("POSEBRIDGE_API_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}

	// InfluxDB
	if v := os.Getenv("POSEBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Tracking.TopicPrefix == "" {
		errs = append(errs, "tracking.topic_prefix is required")
	}
	if c.Tracking.QueueSize < 1 {
		errs = append(errs, "tracking.queue_size must be at least 1")
	}

	if c.Consumer.Path == "" {
		errs = append(errs, "consumer.path is required")
	}
	if c.Consumer.Slots < 1 {
		errs = append(errs, "consumer.slots must be at least 1")
	}

	if _, err := slot.ParseOverflowPolicy(c.Slots.Overflow); err != nil {
		errs = append(errs, "slots.overflow must be \"truncate\" or \"reject\"")
	}
	for i, def := range c.Slots.Definitions {
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("slots.definitions[%d]: %v", i, err))
		}
	}

	if c.InfluxDB.SampleEvery < 0 {
		errs = append(errs, "influxdb.sample_every must not be negative")
	}

	if c.Database.JournalEnabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}
	if c.Database.JournalRetentionDays < 0 {
		errs = append(errs, "database.journal_retention_days must not be negative")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	const minJWTSecretLength = 32
	if c.API.Auth.JWTSecret != "" && len(c.API.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, "api.auth.jwt_secret must be at least 32 characters")
	}
	if c.API.Auth.TokenTTL < 0 {
		errs = append(errs, "api.auth.token_ttl must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// OverflowPolicy returns the parsed slots.overflow policy.
// It assumes Validate has passed and falls back to truncation otherwise.
func (c *Config) OverflowPolicy() slot.OverflowPolicy {
	p, err := slot.ParseOverflowPolicy(c.Slots.Overflow)
	if err != nil {
		return slot.OverflowTruncate
	}
	return p
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetRestartDelay returns the tracking-service restart delay as a Duration.
func (c *Config) GetRestartDelay() time.Duration {
	return time.Duration(c.Tracking.Launch.RestartDelaySeconds) * time.Second
}

// GetJournalRetention returns the journal retention as a Duration. Zero
// means entries are never pruned.
func (c *Config) GetJournalRetention() time.Duration {
	return time.Duration(c.Database.JournalRetentionDays) * 24 * time.Hour
}

// GetTokenTTL returns the lifetime of issued API tokens as a Duration.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.API.Auth.TokenTTL) * time.Minute
}

// GetStopTimeout returns the tracking-service stop timeout as a Duration.
func (c *Config) GetStopTimeout() time.Duration {
	return time.Duration(c.Tracking.Launch.StopTimeoutSeconds) * time.Second
}
