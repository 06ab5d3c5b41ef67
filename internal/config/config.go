// Package config loads runtime settings from a YAML file and SYNHEART_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/synheart/synheart-guard/internal/encoding"
	"github.com/synheart/synheart-guard/internal/ingest"
	"github.com/synheart/synheart-guard/internal/models"
	"github.com/synheart/synheart-guard/internal/regulation"
	"github.com/synheart/synheart-guard/internal/warning"
)

// EnvPrefix prefixes every environment override, e.g.
// SYNHEART_INGEST_WINDOW_SIZE.
const EnvPrefix = "SYNHEART"

// Config holds all application configuration
type Config struct {
	Logging    LoggingConfig      `mapstructure:"logging"`
	Device     DeviceConfig       `mapstructure:"device"`
	Ingest     IngestConfig       `mapstructure:"ingest"`
	Sync       SyncConfig         `mapstructure:"sync"`
	Network    NetworkConfig      `mapstructure:"network"`
	Regulation RegulationConfig   `mapstructure:"regulation"`
	Warning    warning.Thresholds `mapstructure:"warning"`
	Storage    StorageConfig      `mapstructure:"storage"`
	Sink       SinkConfig         `mapstructure:"sink"`
	Notify     NotifyConfig       `mapstructure:"notify"`
	API        APIConfig          `mapstructure:"api"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// DeviceConfig selects the wearable transport and the device to pair.
type DeviceConfig struct {
	ID               string        `mapstructure:"id"`
	Name             string        `mapstructure:"name"`
	Transport        string        `mapstructure:"transport"` // simulator, websocket, mqtt, udp
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	VerifyOnRestore  bool          `mapstructure:"verify_on_restore"`
	Scenario         string        `mapstructure:"scenario"`
	Seed             int64         `mapstructure:"seed"`
	Interval         time.Duration `mapstructure:"interval"`
	WebSocketURL     string        `mapstructure:"websocket_url"`
	UDPAddr          string        `mapstructure:"udp_addr"`
	MQTT             MQTTConfig    `mapstructure:"mqtt"`
}

// MQTTConfig holds broker settings for the MQTT transport
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	SampleTopic string `mapstructure:"sample_topic"`
	StatusTopic string `mapstructure:"status_topic"`
}

// IngestConfig holds sample window and validation settings
type IngestConfig struct {
	WindowSize int    `mapstructure:"window_size"`
	Validation string `mapstructure:"validation"`
}

// SyncConfig holds offline sync settings
type SyncConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// NetworkConfig holds connectivity detection settings
type NetworkConfig struct {
	Initial       string        `mapstructure:"initial"`
	ProbeURL      string        `mapstructure:"probe_url"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// RegulationConfig selects the scorer
type RegulationConfig struct {
	Scorer       string  `mapstructure:"scorer"` // stress, weighted, wasm
	Baseline     int     `mapstructure:"baseline"`
	WasmPath     string  `mapstructure:"wasm_path"`
	StressWeight float64 `mapstructure:"stress_weight"`
	HRVWeight    float64 `mapstructure:"hrv_weight"`
	HRWeight     float64 `mapstructure:"hr_weight"`
}

// StorageConfig selects local durable storage
type StorageConfig struct {
	Backend string      `mapstructure:"backend"` // file, redis, memory
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SinkConfig selects the remote store
type SinkConfig struct {
	Backend  string         `mapstructure:"backend"` // postgres, http, memory
	Postgres PostgresConfig `mapstructure:"postgres"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	Source   string `mapstructure:"source"`
	Migrate  bool   `mapstructure:"migrate"`
}

// HTTPConfig holds settings for the HTTP sink
type HTTPConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Format  string        `mapstructure:"format"`
	Token   string        `mapstructure:"token"`
}

// NotifyConfig holds notification fan-out settings
type NotifyConfig struct {
	BufferSize   int      `mapstructure:"buffer_size"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// APIConfig holds the local control API settings
type APIConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// Load reads configuration from path (or the default search paths when
// empty), then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("synheart-guard")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.synheart")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("device.id", "")
	v.SetDefault("device.name", "")
	v.SetDefault("device.transport", "simulator")
	v.SetDefault("device.handshake_timeout", 10*time.Second)
	v.SetDefault("device.verify_on_restore", false)
	v.SetDefault("device.scenario", "stress_spike")
	v.SetDefault("device.seed", 1)
	v.SetDefault("device.interval", 0)
	v.SetDefault("device.websocket_url", "")
	v.SetDefault("device.udp_addr", "0.0.0.0:9000")
	v.SetDefault("device.mqtt.broker", "")
	v.SetDefault("device.mqtt.client_id", "synheart-guard")
	v.SetDefault("device.mqtt.username", "")
	v.SetDefault("device.mqtt.password", "")
	v.SetDefault("device.mqtt.sample_topic", "")
	v.SetDefault("device.mqtt.status_topic", "")

	v.SetDefault("ingest.window_size", ingest.DefaultWindowSize)
	v.SetDefault("ingest.validation", string(ingest.PolicyClip))

	v.SetDefault("sync.timeout", 30*time.Second)
	v.SetDefault("sync.retry_interval", 30*time.Second)

	v.SetDefault("network.initial", "online")
	v.SetDefault("network.probe_url", "")
	v.SetDefault("network.probe_interval", 15*time.Second)

	d := regulation.DefaultWeightedScorer()
	v.SetDefault("regulation.scorer", "stress")
	v.SetDefault("regulation.baseline", regulation.DefaultBaseline)
	v.SetDefault("regulation.wasm_path", "")
	v.SetDefault("regulation.stress_weight", d.StressWeight)
	v.SetDefault("regulation.hrv_weight", d.HRVWeight)
	v.SetDefault("regulation.hr_weight", d.HRWeight)

	t := warning.DefaultThresholds()
	v.SetDefault("warning.notice", t.Notice)
	v.SetDefault("warning.watch", t.Watch)
	v.SetDefault("warning.alert", t.Alert)
	v.SetDefault("warning.recovery", t.Recovery)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", ".synheart")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "synheart:")

	v.SetDefault("sink.backend", "memory")
	v.SetDefault("sink.postgres.dsn", "")
	v.SetDefault("sink.postgres.max_conns", 10)
	v.SetDefault("sink.postgres.source", "synheart-guard")
	v.SetDefault("sink.postgres.migrate", true)
	v.SetDefault("sink.http.base_url", "")
	v.SetDefault("sink.http.timeout", 15*time.Second)
	v.SetDefault("sink.http.format", string(encoding.FormatJSON))
	v.SetDefault("sink.http.token", "")

	v.SetDefault("notify.buffer_size", 256)
	v.SetDefault("notify.kafka_brokers", []string{})
	v.SetDefault("notify.kafka_topic", "synheart.notifications")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", "127.0.0.1:8787")
}

// bindEnvVars binds conventional variable names alongside SYNHEART_*
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("sink.postgres.dsn", "SYNHEART_SINK_POSTGRES_DSN", "DATABASE_URL")
	v.BindEnv("storage.redis.addr", "SYNHEART_STORAGE_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("logging.level", "SYNHEART_LOGGING_LEVEL", "LOG_LEVEL")
	v.BindEnv("logging.format", "SYNHEART_LOGGING_FORMAT", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Device.Transport {
	case "simulator":
	case "websocket":
		if c.Device.WebSocketURL == "" {
			return fmt.Errorf("device.websocket_url is required for the websocket transport")
		}
	case "mqtt":
		if c.Device.MQTT.Broker == "" {
			return fmt.Errorf("device.mqtt.broker is required for the mqtt transport")
		}
	case "udp":
		if c.Device.UDPAddr == "" {
			return fmt.Errorf("device.udp_addr is required for the udp transport")
		}
	default:
		return fmt.Errorf("unknown device.transport %q", c.Device.Transport)
	}
	if c.Device.HandshakeTimeout <= 0 {
		return fmt.Errorf("device.handshake_timeout must be positive")
	}

	if c.Ingest.WindowSize <= 0 {
		return fmt.Errorf("ingest.window_size must be positive")
	}
	if _, err := ingest.ParsePolicy(c.Ingest.Validation); err != nil {
		return fmt.Errorf("ingest.validation: %w", err)
	}

	if c.Sync.RetryInterval < 0 {
		return fmt.Errorf("sync.retry_interval must not be negative")
	}
	if _, err := models.ParseNetworkState(c.Network.Initial); err != nil {
		return fmt.Errorf("network.initial: %w", err)
	}

	switch c.Regulation.Scorer {
	case "stress":
	case "weighted":
		if err := c.Weights().Validate(); err != nil {
			return fmt.Errorf("regulation weights: %w", err)
		}
	case "wasm":
		if c.Regulation.WasmPath == "" {
			return fmt.Errorf("regulation.wasm_path is required for the wasm scorer")
		}
	default:
		return fmt.Errorf("unknown regulation.scorer %q", c.Regulation.Scorer)
	}
	if c.Regulation.Baseline < regulation.MinScore || c.Regulation.Baseline > regulation.MaxScore {
		return fmt.Errorf("regulation.baseline must be between %d and %d", regulation.MinScore, regulation.MaxScore)
	}

	if err := c.Warning.Validate(); err != nil {
		return fmt.Errorf("warning thresholds: %w", err)
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the file backend")
		}
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Sink.Backend {
	case "postgres":
		if c.Sink.Postgres.DSN == "" {
			return fmt.Errorf("sink.postgres.dsn is required for the postgres sink")
		}
	case "http":
		if c.Sink.HTTP.BaseURL == "" {
			return fmt.Errorf("sink.http.base_url is required for the http sink")
		}
		if _, err := encoding.ParseFormat(c.Sink.HTTP.Format); err != nil {
			return fmt.Errorf("sink.http.format: %w", err)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown sink.backend %q", c.Sink.Backend)
	}

	if c.Notify.BufferSize <= 0 {
		return fmt.Errorf("notify.buffer_size must be positive")
	}
	return nil
}

// Weights returns the weighted scorer described by the config.
func (c *Config) Weights() regulation.WeightedScorer {
	return regulation.WeightedScorer{
		StressWeight: c.Regulation.StressWeight,
		HRVWeight:    c.Regulation.HRVWeight,
		HRWeight:     c.Regulation.HRWeight,
	}
}

// Policy returns the parsed validation policy.
func (c *Config) Policy() ingest.Policy {
	p, _ := ingest.ParsePolicy(c.Ingest.Validation)
	return p
}

// InitialNetwork returns the parsed initial network state.
func (c *Config) InitialNetwork() models.NetworkState {
	s, _ := models.ParseNetworkState(c.Network.Initial)
	return s
}

// DeviceInfo returns the device to pair, if one is configured.
func (c *Config) DeviceInfo() (models.DeviceInfo, bool) {
	if c.Device.ID == "" {
		return models.DeviceInfo{}, false
	}
	name := c.Device.Name
	if name == "" {
		name = c.Device.ID
	}
	return models.DeviceInfo{
		ID:   c.Device.ID,
		Name: name,
		Metadata: map[string]any{
			"transport": c.Device.Transport,
		},
	}, true
}
