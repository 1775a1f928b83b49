package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// writeConfig writes an offline config: no MQTT, no InfluxDB, no API.
func writeConfig(t *testing.T, dbPath string, stdin bool) string {
	t.Helper()

	stdinValue := "false"
	if stdin {
		stdinValue = "true"
	}
	configContent := `
device:
  endpoint_name: "test-agent"

agent:
  poll_interval_ms: 20
  loop_timeout_ms: 10
  stdin: ` + stdinValue + `

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

persistence:
  enabled: true
  compress: true

telemetry:
  enabled: false

influxdb:
  enabled: false

api:
  enabled: false

logging:
  level: error
  format: text
  output: discard
`
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// TestParseFlags verifies command-line parsing.
func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{"none", nil, options{}, false},
		{"long", []string{"--config", "a.yaml", "--endpoint-name", "dev1", "--no-stdin"}, options{configPath: "a.yaml", endpointName: "dev1", noStdin: true}, false},
		{"short", []string{"-c", "b.yaml", "-e", "dev2"}, options{configPath: "b.yaml", endpointName: "dev2"}, false},
		{"version", []string{"--version"}, options{showVersion: true}, false},
		{"unknown flag", []string{"--bogus"}, options{}, true},
		{"positional", []string{"extra"}, options{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestParseFlags_Help verifies --help surfaces pflag.ErrHelp.
func TestParseFlags_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseFlags([]string{"--help"}, &stderr)
	if !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("parseFlags(--help) error = %v, want ErrHelp", err)
	}
	if !strings.Contains(stderr.String(), "--endpoint-name") {
		t.Errorf("usage does not list flags: %q", stderr.String())
	}
}

// TestRun_Version verifies --version prints and exits.
func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, strings.NewReader(""), &stdout); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "graylogic-agent dev") {
		t.Errorf("version output = %q", stdout.String())
	}
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, []string{"--config", "/nonexistent/path/config.yaml"}, strings.NewReader(""), &bytes.Buffer{})
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies validation rejects persistence
// without a database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	configPath := writeConfig(t, "", false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, []string{"--config", configPath}, strings.NewReader(""), &bytes.Buffer{})
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_OfflineStartupAndShutdown runs the agent without a broker until
// the context expires.
func TestRun_OfflineStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "agent.db")
	configPath := writeConfig(t, dbPath, false)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, []string{"--config", configPath}, strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

// TestRun_StopsAtEndOfInput verifies closing stdin stops the agent.
func TestRun_StopsAtEndOfInput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "agent.db")
	configPath := writeConfig(t, dbPath, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stdout bytes.Buffer
	err := run(ctx, []string{"--config", configPath}, strings.NewReader("list\n"), &stdout)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Error("run() returned only after the timeout")
	}
}

// TestRun_NoStdinFlag verifies --no-stdin keeps the agent running past the
// end of input.
func TestRun_NoStdinFlag(t *testing.T) {
	configPath := writeConfig(t, filepath.Join(t.TempDir(), "agent.db"), true)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx, []string{"--config", configPath, "--no-stdin"}, strings.NewReader(""), &bytes.Buffer{}); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if ctx.Err() == nil {
		t.Error("run() stopped before the context expired")
	}
}

// TestGetConfigPath verifies flag, environment and default precedence.
func TestGetConfigPath(t *testing.T) {
	t.Setenv("GRAYLOGIC_AGENT_CONFIG", "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("GRAYLOGIC_AGENT_CONFIG", "/custom/path/config.yaml")
	if got := getConfigPath(""); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
	if got := getConfigPath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("getConfigPath(flag) = %q, want flag.yaml", got)
	}
}

// TestHealthCheck_NoDependencies verifies an empty check set passes.
func TestHealthCheck_NoDependencies(t *testing.T) {
	if err := healthCheck(context.Background(), nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
}
