package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Agent       AgentConfig       `yaml:"agent"`
	Database    DatabaseConfig    `yaml:"database"`
	Persistence PersistenceConfig `yaml:"persistence"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
	Access      AccessConfig      `yaml:"access"`
}

// DeviceConfig describes the managed device and the objects it exposes.
type DeviceConfig struct {
	// EndpointName identifies the agent to the management server and in
	// the agent's own MQTT topics.
	EndpointName string `yaml:"endpoint_name"`

	Output        OutputConfig `yaml:"output"`
	Temperature   SensorConfig `yaml:"temperature"`
	Accelerometer SensorConfig `yaml:"accelerometer"`
}

// OutputConfig contains digital output instance settings.
type OutputConfig struct {
	ApplicationType string `yaml:"application_type"`
}

// SensorConfig contains sensor instance settings.
type SensorConfig struct {
	Units    string  `yaml:"units"`
	MinRange float64 `yaml:"min_range"`
	MaxRange float64 `yaml:"max_range"`
}

// AgentConfig contains event loop settings.
type AgentConfig struct {
	// PollIntervalMS is the period of the poll-and-persist task.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// LoopTimeoutMS bounds each wait of the event loop.
	LoopTimeoutMS int `yaml:"loop_timeout_ms"`

	// Stdin enables the operator command channel on standard input.
	Stdin bool `yaml:"stdin"`

	// MirrorNotifications publishes resource change notifications to MQTT.
	MirrorNotifications bool `yaml:"mirror_notifications"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// PersistenceConfig contains snapshot persistence settings.
type PersistenceConfig struct {
	Enabled bool `yaml:"enabled"`

	// Compress stores snapshots zstd-compressed.
	Compress bool `yaml:"compress"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// PublishStatus enables the retained online/offline status topic and
	// its Last Will. Brokers with restrictive ACLs (such as TTN) reject it.
	PublishStatus bool `yaml:"publish_status"`
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

	// CredentialsFile is a JSON file (comments allowed) with "username"
	// and "password" keys. Its values replace Username and Password.
	CredentialsFile string `yaml:"credentials_file"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// TelemetryConfig contains The Things Network bridge settings.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`

	// ApplicationID is the TTN application id including tenant, e.g.
	// "end-device-test-1@ttn".
	ApplicationID string `yaml:"application_id"`
	DeviceID      string `yaml:"device_id"`

	// SubscribeTopic is the subscription filter; uplinks are still matched
	// against the device's exact uplink topic.
	SubscribeTopic string `yaml:"subscribe_topic"`

	FPort    int    `yaml:"f_port"`
	Priority string `yaml:"priority"`
	QoS      int    `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
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
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`

	// ServerSSID is the access control subject of API requests.
	ServerSSID uint16 `yaml:"server_ssid"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AccessConfig contains access control entries applied at startup when no
// persisted entries exist.
type AccessConfig struct {
	Entries []AccessEntry `yaml:"entries"`
}

// AccessEntry grants a server rights on one object instance.
type AccessEntry struct {
	Object   uint16 `yaml:"object"`
	Instance uint16 `yaml:"instance"`
	SSID     uint16 `yaml:"ssid"`

	// Mask is a letter set from "rwedc" or a decimal bitmask.
	Mask string `yaml:"mask"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. MQTT credentials file, if configured
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_AGENT_SECTION_KEY
// For example: GRAYLOGIC_AGENT_DATABASE_PATH, GRAYLOGIC_AGENT_MQTT_HOST
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

	return finish(cfg)
}

// LoadDefaults returns the default configuration with environment overrides
// applied. It is used when no configuration file is given.
func LoadDefaults() (*Config, error) {
	return finish(defaultConfig())
}

func finish(cfg *Config) (*Config, error) {
	// The credentials file may itself be named by the environment.
	if v := os.Getenv("GRAYLOGIC_AGENT_MQTT_CREDENTIALS_FILE"); v != "" {
		cfg.MQTT.Auth.CredentialsFile = v
	}
	if cfg.MQTT.Auth.CredentialsFile != "" {
		creds, err := LoadCredentials(cfg.MQTT.Auth.CredentialsFile)
		if err != nil {
			return nil, err
		}
		cfg.MQTT.Auth.Username = creds.Username
		cfg.MQTT.Auth.Password = creds.Password
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
		Device: DeviceConfig{
			EndpointName: "graylogic-agent",
			Output: OutputConfig{
				ApplicationType: "LED Control",
			},
			Temperature: SensorConfig{
				Units:    "Celcius",
				MinRange: -200,
				MaxRange: 200,
			},
			Accelerometer: SensorConfig{
				Units:    "m/s2",
				MinRange: -100,
				MaxRange: 100,
			},
		},
		Agent: AgentConfig{
			PollIntervalMS:      2000,
			LoopTimeoutMS:       100,
			Stdin:               true,
			MirrorNotifications: false,
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-agent.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Persistence: PersistenceConfig{
			Enabled:  true,
			Compress: false,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "eu1.cloud.thethings.network",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			PublishStatus: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:        true,
			ApplicationID:  "end-device-test-1@ttn",
			DeviceID:       "eui-0080e115000ad365",
			SubscribeTopic: "#",
			FPort:          2,
			Priority:       "NORMAL",
			QoS:            0,
			Retain:         true,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			ServerSSID: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_AGENT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("GRAYLOGIC_AGENT_ENDPOINT_NAME"); v != "" {
		cfg.Device.EndpointName = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_AGENT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_AGENT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_AGENT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_AGENT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_AGENT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_AGENT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_AGENT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_AGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.EndpointName == "" {
		errs = append(errs, "device.endpoint_name is required")
	}
	if c.Device.Temperature.MinRange > c.Device.Temperature.MaxRange {
		errs = append(errs, "device.temperature.min_range must not exceed max_range")
	}
	if c.Device.Accelerometer.MinRange > c.Device.Accelerometer.MaxRange {
		errs = append(errs, "device.accelerometer.min_range must not exceed max_range")
	}

	// Agent validation
	if c.Agent.PollIntervalMS <= 0 {
		errs = append(errs, "agent.poll_interval_ms must be positive")
	}
	if c.Agent.LoopTimeoutMS < 0 {
		errs = append(errs, "agent.loop_timeout_ms must not be negative")
	}

	// Database validation
	if c.Persistence.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when persistence is enabled")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Telemetry.Enabled || c.Agent.MirrorNotifications {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
	}

	// Telemetry validation
	if c.Telemetry.Enabled {
		if c.Telemetry.ApplicationID == "" || c.Telemetry.DeviceID == "" {
			errs = append(errs, "telemetry.application_id and telemetry.device_id are required")
		}
		if c.Telemetry.QoS < 0 || c.Telemetry.QoS > 2 {
			errs = append(errs, "telemetry.qos must be 0, 1, or 2")
		}
		if c.Telemetry.FPort < 1 || c.Telemetry.FPort > 223 {
			errs = append(errs, "telemetry.f_port must be between 1 and 223")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when enabled")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Access validation
	for i, e := range c.Access.Entries {
		if e.Instance == 65535 {
			errs = append(errs, fmt.Sprintf("access.entries[%d].instance 65535 is reserved", i))
		}
		if e.Mask == "" {
			errs = append(errs, fmt.Sprintf("access.entries[%d].mask is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the poll-and-persist period as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Agent.PollIntervalMS) * time.Millisecond
}

// LoopTimeout returns the event loop wait bound as a Duration.
func (c *Config) LoopTimeout() time.Duration {
	return time.Duration(c.Agent.LoopTimeoutMS) * time.Millisecond
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
