package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeProfile(t, "config.yaml", `
base_url: http://localhost:8080/
bucket: b1
token: t1
timeout: 5s
log_level: debug
telemetry:
  otlp_endpoint: collector:4317
  enable_tracing: true
snapshot:
  bucket: backups
  prefix: kvdb
`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", p.BaseURL)
	assert.Equal(t, "b1", p.Bucket)
	assert.Equal(t, "t1", p.Token)
	assert.Equal(t, "debug", p.LogLevel)
	assert.Equal(t, "collector:4317", p.Telemetry.OTLPEndpoint)
	assert.True(t, p.Telemetry.EnableTracing)
	assert.Equal(t, "backups", p.Snapshot.Bucket)
	assert.Equal(t, "kvdb/", p.Snapshot.Prefix)
	assert.Equal(t, "us-east-1", p.Snapshot.Region)

	timeout, err := p.RequestTimeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
}

func TestLoad_TOML(t *testing.T) {
	path := writeProfile(t, "config.toml", `
base_url = "https://kvdb.example"
bucket = "b2"
timeout = "12"

[telemetry]
enable_metrics = true
`)

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://kvdb.example", p.BaseURL)
	assert.Equal(t, "b2", p.Bucket)
	assert.True(t, p.Telemetry.EnableMetrics)
	assert.Equal(t, "localhost:4317", p.Telemetry.OTLPEndpoint)

	timeout, err := p.RequestTimeout()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, timeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeProfile(t, "config.yml", "bucket: from-file\ntoken: file-token\n")
	t.Setenv("KVDB_BUCKET", "from-env")
	t.Setenv("KVDB_TIMEOUT", "2s")

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", p.Bucket)
	assert.Equal(t, "file-token", p.Token)
	assert.Equal(t, "2s", p.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown extension", "config.ini", "bucket=b1"},
		{"bad yaml", "config.yaml", "bucket: [unterminated"},
		{"bad toml", "config.toml", "bucket = "},
		{"bad timeout", "config.yaml", "timeout: soon"},
		{"bad base url", "config.yaml", "base_url: kvdb.io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeProfile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_NoProfileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://kvdb.io", p.BaseURL)
	assert.Equal(t, "30s", p.Timeout)
}

func TestProfile_SDKConfig(t *testing.T) {
	p := DefaultProfile()
	p.BaseURL = "http://127.0.0.1:9999"
	p.Timeout = "3s"

	cfg := p.SDKConfig()
	assert.Equal(t, "http://127.0.0.1:9999", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestProfile_TelemetryConfig(t *testing.T) {
	p := DefaultProfile()
	p.LogLevel = "error"
	p.Telemetry.EnableTracing = true

	cfg := p.TelemetryConfig()
	assert.Equal(t, "kvdb", cfg.ServiceName)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.True(t, cfg.EnableTracing)
	assert.False(t, cfg.EnableMetrics)
}
