package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  endpoint_name: "porch-node"
  output:
    application_type: "Relay"
agent:
  poll_interval_ms: 500
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1884
telemetry:
  application_id: "app@ttn"
  device_id: "dev-1"
access:
  entries:
    - object: 3201
      instance: 0
      ssid: 2
      mask: "rw"
`
	cfg, err := Load(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.EndpointName != "porch-node" {
		t.Errorf("Device.EndpointName = %q, want %q", cfg.Device.EndpointName, "porch-node")
	}
	if cfg.Device.Output.ApplicationType != "Relay" {
		t.Errorf("Device.Output.ApplicationType = %q, want %q", cfg.Device.Output.ApplicationType, "Relay")
	}
	if got := cfg.PollInterval().Milliseconds(); got != 500 {
		t.Errorf("PollInterval() = %dms, want 500ms", got)
	}
	if cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker.Port = %d, want 1884", cfg.MQTT.Broker.Port)
	}
	if cfg.Telemetry.ApplicationID != "app@ttn" || cfg.Telemetry.DeviceID != "dev-1" {
		t.Errorf("Telemetry ids = %q %q", cfg.Telemetry.ApplicationID, cfg.Telemetry.DeviceID)
	}
	if len(cfg.Access.Entries) != 1 || cfg.Access.Entries[0].Mask != "rw" {
		t.Errorf("Access.Entries = %+v", cfg.Access.Entries)
	}

	// Untouched sections keep their defaults.
	if cfg.Device.Temperature.Units != "Celcius" {
		t.Errorf("Device.Temperature.Units = %q, want default", cfg.Device.Temperature.Units)
	}
	if cfg.Telemetry.FPort != 2 || cfg.Telemetry.Priority != "NORMAL" {
		t.Errorf("Telemetry downlink defaults = %d %q", cfg.Telemetry.FPort, cfg.Telemetry.Priority)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  endpoint_name: ""
agent:
  poll_interval_ms: 0
`
	_, err := Load(writeFile(t, "config.yaml", content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every failure is reported, not just the first.
	for _, want := range []string{"device.endpoint_name", "agent.poll_interval_ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_CredentialsFile(t *testing.T) {
	creds := writeFile(t, "ttn.jsonc", `{
  // application id with tenant
  "username": "end-device-test-1@ttn",
  "password": "NNSXS.SECRET",
}`)
	content := "mqtt:\n  auth:\n    username: ignored\n    credentials_file: \"" + creds + "\"\n"

	cfg, err := Load(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Auth.Username != "end-device-test-1@ttn" {
		t.Errorf("MQTT.Auth.Username = %q", cfg.MQTT.Auth.Username)
	}
	if cfg.MQTT.Auth.Password != "NNSXS.SECRET" {
		t.Errorf("MQTT.Auth.Password = %q", cfg.MQTT.Auth.Password)
	}

	// Environment still wins over the credentials file.
	t.Setenv("GRAYLOGIC_AGENT_MQTT_PASSWORD", "from-env")
	cfg, err = Load(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Auth.Password != "from-env" {
		t.Errorf("MQTT.Auth.Password = %q, want from-env", cfg.MQTT.Auth.Password)
	}
}

func TestLoadCredentials_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "username: x"},
		{"missing username", `{"password": "p"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCredentials(writeFile(t, "creds.json", tt.content)); err == nil {
				t.Error("LoadCredentials() expected error, got nil")
			}
		})
	}

	if _, err := LoadCredentials("/nonexistent/creds.json"); err == nil {
		t.Error("LoadCredentials() expected error for missing file, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing endpoint name", func(c *Config) { c.Device.EndpointName = "" }, true},
		{"inverted temperature range", func(c *Config) { c.Device.Temperature.MinRange = 300 }, true},
		{"zero poll interval", func(c *Config) { c.Agent.PollIntervalMS = 0 }, true},
		{"negative loop timeout", func(c *Config) { c.Agent.LoopTimeoutMS = -1 }, true},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"database path unused without persistence", func(c *Config) {
			c.Database.Path = ""
			c.Persistence.Enabled = false
		}, false},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"missing broker host", func(c *Config) { c.MQTT.Broker.Host = "" }, true},
		{"broker unused when offline", func(c *Config) {
			c.MQTT.Broker.Host = ""
			c.Telemetry.Enabled = false
		}, false},
		{"invalid broker port", func(c *Config) { c.MQTT.Broker.Port = 70000 }, true},
		{"missing device id", func(c *Config) { c.Telemetry.DeviceID = "" }, true},
		{"invalid f_port", func(c *Config) { c.Telemetry.FPort = 0 }, true},
		{"influxdb incomplete", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"api port invalid", func(c *Config) {
			c.API.Enabled = true
			c.API.Port = 0
		}, true},
		{"reserved instance in access entry", func(c *Config) {
			c.Access.Entries = []AccessEntry{{Object: 3201, Instance: 65535, SSID: 1, Mask: "r"}}
		}, true},
		{"empty access mask", func(c *Config) {
			c.Access.Entries = []AccessEntry{{Object: 3201, SSID: 1}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Agent: AgentConfig{PollIntervalMS: 2000, LoopTimeoutMS: 100},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.PollInterval().Seconds(); got != 2 {
		t.Errorf("PollInterval() = %v, want 2", got)
	}
	if got := cfg.LoopTimeout().Milliseconds(); got != 100 {
		t.Errorf("LoopTimeout() = %v, want 100", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_AGENT_ENDPOINT_NAME", "env-node")
	t.Setenv("GRAYLOGIC_AGENT_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_AGENT_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_AGENT_MQTT_PORT", "8883")
	t.Setenv("GRAYLOGIC_AGENT_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_AGENT_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_AGENT_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_AGENT_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYLOGIC_AGENT_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Device.EndpointName != "env-node" {
		t.Errorf("Device.EndpointName = %q, want %q", cfg.Device.EndpointName, "env-node")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYLOGIC_AGENT_MQTT_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.EndpointName == "" {
		t.Error("defaultConfig should have non-empty Device.EndpointName")
	}
	if cfg.MQTT.Broker.Host != "eu1.cloud.thethings.network" {
		t.Errorf("defaultConfig MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Telemetry.SubscribeTopic != "#" {
		t.Errorf("defaultConfig Telemetry.SubscribeTopic = %q, want #", cfg.Telemetry.SubscribeTopic)
	}
	if !cfg.Telemetry.Retain {
		t.Error("defaultConfig Telemetry.Retain should be true")
	}
	if cfg.Device.Accelerometer.MinRange != -100 || cfg.Device.Accelerometer.MaxRange != 100 {
		t.Errorf("defaultConfig accelerometer range = %v..%v", cfg.Device.Accelerometer.MinRange, cfg.Device.Accelerometer.MaxRange)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("defaultConfig Logging.Output = %q, want stderr", cfg.Logging.Output)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GRAYLOGIC_AGENT_ENDPOINT_NAME", "defaults-node")

	cfg, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults() error = %v", err)
	}
	if cfg.Device.EndpointName != "defaults-node" {
		t.Errorf("Device.EndpointName = %q, want defaults-node", cfg.Device.EndpointName)
	}
}
