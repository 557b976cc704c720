package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML carries values like "6h" or "10s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents configuration data for the monitoring service.
type Config struct {
	CheckInterval Duration `yaml:"check_interval"`
	ProbeTimeout  Duration `yaml:"probe_timeout"`
	TickDeadline  Duration `yaml:"tick_deadline"`
	AlertCooldown Duration `yaml:"alert_cooldown"`

	TargetEndpointURL   string   `yaml:"target_endpoint_url"`
	ArtifactPaths       []string `yaml:"artifact_paths"`
	DependencyAddress   string   `yaml:"dependency_address"`
	DependencyWarnAfter Duration `yaml:"dependency_warn_after"`

	WebhookURL    string `yaml:"webhook_url"`
	DataDirectory string `yaml:"data_directory"`
	DatabaseDSN   string `yaml:"database_dsn"`
	ListenAddr    string `yaml:"listen_addr"`
}

// DefaultConfig returns sensible defaults in case no configuration file is
// provided.
func DefaultConfig() Config {
	return Config{
		CheckInterval:       Duration(6 * time.Hour),
		ProbeTimeout:        Duration(10 * time.Second),
		TickDeadline:        Duration(30 * time.Second),
		AlertCooldown:       Duration(time.Hour),
		DependencyWarnAfter: Duration(time.Second),
		DataDirectory:       filepath.Join(".dist", "data"),
		ListenAddr:          ":8080",
	}
}

// Load reads configuration from a yaml file. A missing file falls back to
// defaults; validation errors are fatal for the caller.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.validate()
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.validate()
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = DefaultConfig().DataDirectory
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ProbeCount reports how many probes the configuration enables.
func (c Config) ProbeCount() int {
	count := 0
	if c.TargetEndpointURL != "" {
		count++
	}
	if len(c.ArtifactPaths) > 0 {
		count++
	}
	if c.DependencyAddress != "" {
		count++
	}
	return count
}

func (c Config) validate() error {
	if c.CheckInterval <= 0 {
		return errors.New("check_interval must be positive")
	}
	if c.ProbeTimeout <= 0 {
		return errors.New("probe_timeout must be positive")
	}
	if c.TickDeadline <= 0 {
		return errors.New("tick_deadline must be positive")
	}
	if c.AlertCooldown <= 0 {
		return errors.New("alert_cooldown must be positive")
	}
	if c.ProbeCount() == 0 {
		return errors.New("configuration must enable at least one probe")
	}
	if c.TargetEndpointURL != "" {
		if err := checkURL(c.TargetEndpointURL); err != nil {
			return fmt.Errorf("target_endpoint_url: %w", err)
		}
	}
	if c.WebhookURL != "" {
		if err := checkURL(c.WebhookURL); err != nil {
			return fmt.Errorf("webhook_url: %w", err)
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
