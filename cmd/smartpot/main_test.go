package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testConfig renders a config file that passes validation. The broker port
// points at a closed port so startup fails fast without external services.
func testConfig(dbPath string) string {
	return `
database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "smartpot-test"
    tls: false
  qos: 1
  session:
    persistent: true
  reconnect:
    initial_delay: 1
    max_delay: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 8080
  timeouts:
    read: 30
    write: 240
    idle: 60

security:
  jwt:
    secret: "test-secret-for-development-only-32ch"
    access_token_ttl: 15

pairing:
  credential_topic: "users/add"
  publish_timeout: 5

transfer:
  reset_timeout: 180
`
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("SMARTPOT_CONFIG")
	defer os.Setenv("SMARTPOT_CONFIG", originalEnv)

	os.Setenv("SMARTPOT_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_UnreachableBroker verifies startup fails when the broker is down.
func TestRun_UnreachableBroker(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	if err := os.WriteFile(configPath, []byte(testConfig(dbPath)), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("SMARTPOT_CONFIG")
	defer os.Setenv("SMARTPOT_CONFIG", originalEnv)
	os.Setenv("SMARTPOT_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
}

// TestGetConfigPath_Default verifies the default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("SMARTPOT_CONFIG")
	defer os.Setenv("SMARTPOT_CONFIG", originalEnv)

	os.Unsetenv("SMARTPOT_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies the environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("SMARTPOT_CONFIG")
	defer os.Setenv("SMARTPOT_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("SMARTPOT_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}
