// Package config loads the CLI profile: a YAML or TOML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/birbparty/kvdb/internal/telemetry"
	"github.com/birbparty/kvdb/sdk"
	"gopkg.in/yaml.v3"
)

// Profile is what the CLI needs to reach a bucket.
type Profile struct {
	BaseURL   string          `yaml:"base_url" toml:"base_url"`
	Bucket    string          `yaml:"bucket" toml:"bucket"`
	Token     string          `yaml:"token" toml:"token"`
	Timeout   string          `yaml:"timeout" toml:"timeout"`
	LogLevel  string          `yaml:"log_level" toml:"log_level"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Snapshot  SnapshotConfig  `yaml:"snapshot" toml:"snapshot"`
}

// TelemetryConfig controls OTLP export from the CLI.
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	EnableTracing bool   `yaml:"enable_tracing" toml:"enable_tracing"`
	EnableMetrics bool   `yaml:"enable_metrics" toml:"enable_metrics"`
}

// SnapshotConfig locates the object storage used by export and import.
type SnapshotConfig struct {
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	Region    string `yaml:"region" toml:"region"`
	Bucket    string `yaml:"bucket" toml:"bucket"`
	Prefix    string `yaml:"prefix" toml:"prefix"`
	AccessKey string `yaml:"access_key" toml:"access_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
}

// DefaultProfile returns a profile pointing at the hosted service.
func DefaultProfile() *Profile {
	return &Profile{
		BaseURL:  "https://kvdb.io",
		Timeout:  "30s",
		LogLevel: "warn",
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
		},
		Snapshot: SnapshotConfig{
			Region: "us-east-1",
			Prefix: "kvdb/",
		},
	}
}

// DefaultPaths lists the profile locations tried when no path is given.
func DefaultPaths() []string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(dir, "kvdb", "config.yaml"),
		filepath.Join(dir, "kvdb", "config.yml"),
		filepath.Join(dir, "kvdb", "config.toml"),
	}
}

// Load reads the profile at path, or the first existing default path when
// path is empty, then applies environment overrides. A missing default
// profile is not an error; a missing explicit one is.
func Load(path string) (*Profile, error) {
	p := DefaultProfile()

	if path == "" {
		for _, candidate := range DefaultPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if err := p.decodeFile(path); err != nil {
			return nil, err
		}
	}

	p.ApplyEnv()
	p.ApplyDefaults()
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, p); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), p); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported profile format %q", ext)
	}
	return nil
}

// ApplyEnv overrides profile values from KVDB_* variables.
func (p *Profile) ApplyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"KVDB_BASE_URL", &p.BaseURL},
		{"KVDB_BUCKET", &p.Bucket},
		{"KVDB_TOKEN", &p.Token},
		{"KVDB_TIMEOUT", &p.Timeout},
		{"LOG_LEVEL", &p.LogLevel},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", &p.Telemetry.OTLPEndpoint},
		{"KVDB_SNAPSHOT_ENDPOINT", &p.Snapshot.Endpoint},
		{"KVDB_SNAPSHOT_BUCKET", &p.Snapshot.Bucket},
		{"KVDB_SNAPSHOT_ACCESS_KEY", &p.Snapshot.AccessKey},
		{"KVDB_SNAPSHOT_SECRET_KEY", &p.Snapshot.SecretKey},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// ApplyDefaults fills values a partial profile left empty.
func (p *Profile) ApplyDefaults() {
	d := DefaultProfile()
	if p.BaseURL == "" {
		p.BaseURL = d.BaseURL
	}
	if p.Timeout == "" {
		p.Timeout = d.Timeout
	}
	if p.LogLevel == "" {
		p.LogLevel = d.LogLevel
	}
	if p.Telemetry.OTLPEndpoint == "" {
		p.Telemetry.OTLPEndpoint = d.Telemetry.OTLPEndpoint
	}
	if p.Snapshot.Region == "" {
		p.Snapshot.Region = d.Snapshot.Region
	}
}

// Normalize trims trailing slashes from the base URL and makes the
// snapshot prefix end in one.
func (p *Profile) Normalize() {
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	if p.Snapshot.Prefix != "" && !strings.HasSuffix(p.Snapshot.Prefix, "/") {
		p.Snapshot.Prefix += "/"
	}
}

// Validate checks the profile is usable.
func (p *Profile) Validate() error {
	if _, err := p.RequestTimeout(); err != nil {
		return err
	}
	if !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
		return errors.New("base_url must start with http:// or https://")
	}
	return nil
}

// RequestTimeout parses Timeout as a duration or a whole number of seconds.
func (p *Profile) RequestTimeout() (time.Duration, error) {
	if d, err := time.ParseDuration(p.Timeout); err == nil {
		return d, nil
	}
	if secs, err := strconv.Atoi(p.Timeout); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid timeout %q", p.Timeout)
}

// SDKConfig builds the bucket configuration for this profile.
func (p *Profile) SDKConfig() *sdk.Config {
	timeout, err := p.RequestTimeout()
	if err != nil {
		timeout = 30 * time.Second
	}
	return sdk.DefaultConfig().
		WithBaseURL(p.BaseURL).
		WithTimeout(timeout)
}

// TelemetryConfig maps the profile onto the telemetry settings.
func (p *Profile) TelemetryConfig() *telemetry.Config {
	cfg := telemetry.NewConfigFromEnv("kvdb")
	cfg.LogLevel = p.LogLevel
	cfg.LogFormat = "text"
	cfg.OTLPEndpoint = p.Telemetry.OTLPEndpoint
	cfg.EnableTracing = cfg.EnableTracing || p.Telemetry.EnableTracing
	cfg.EnableMetrics = cfg.EnableMetrics || p.Telemetry.EnableMetrics
	return cfg
}
