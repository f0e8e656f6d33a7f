package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds the full application configuration. It is loaded in three
// layers (struct defaults, optional YAML file, environment variables) and is
// immutable after Load.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	MySQL   MySQLConfig   `koanf:"mysql"`
	ReAI    ReAIConfig    `koanf:"reai"`
	Auth    AuthConfig    `koanf:"auth"`
	Timer   TimerConfig   `koanf:"timer"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// MySQLConfig configures the entry store.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
type MySQLConfig struct {
	DSN string `koanf:"dsn"`
}

// ReAIConfig configures the outbound client for the ReAI platform.
// APISecret is the static shared secret used when a request carries no
// forwarded bearer credential.
type ReAIConfig struct {
	BaseURL     string        `koanf:"base_url"`
	APISecret   string        `koanf:"api_secret"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	Timeout     time.Duration `koanf:"timeout"`
}

// AuthConfig holds the HS256 secret used to read the tenantId claim from
// forwarded tokens in multi-tenant mode.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

// TimerConfig selects the deployment mode of the tracker.
//
// MultiTenant switches entry scoping to (employee, tenant). AutoStopOnStart
// restores the legacy behavior of implicitly stopping an open timer when a
// new one starts; the default is to reject with a conflict so unsynced work
// is never silently closed.
type TimerConfig struct {
	Timezone        string `koanf:"timezone"`
	MultiTenant     bool   `koanf:"multi_tenant"`
	AutoStopOnStart bool   `koanf:"auto_stop_on_start"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Verbose bool `koanf:"verbose"`
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths lists where a config file is searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/reai-timetracker/config.yaml",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		ReAI: ReAIConfig{
			BaseURL:     "",
			DialTimeout: 10 * time.Second,
			Timeout:     30 * time.Second,
		},
		Timer: TimerConfig{Timezone: "UTC"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envToKey maps SERVER_ADDR to server.addr, REAI_BASE_URL to reai.base_url,
// and so on. Variables outside the known sections are dropped.
func envToKey(s string) string {
	s = strings.ToLower(s)
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return ""
	}
	switch section {
	case "server", "mysql", "reai", "auth", "timer", "logging":
		return section + "." + rest
	}
	return ""
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks required fields and mode consistency.
func (c *Config) Validate() error {
	if c.MySQL.DSN == "" {
		return errors.New("config: mysql.dsn (MYSQL_DSN) is required")
	}
	if c.ReAI.BaseURL == "" {
		return errors.New("config: reai.base_url (REAI_BASE_URL) is required")
	}
	if c.ReAI.Timeout <= 0 || c.ReAI.DialTimeout <= 0 {
		return errors.New("config: reai timeouts must be positive")
	}
	if c.Timer.MultiTenant && c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required in multi-tenant mode")
	}
	if _, err := time.LoadLocation(c.Timer.Timezone); err != nil {
		return fmt.Errorf("config: invalid timer.timezone %q: %w", c.Timer.Timezone, err)
	}
	return nil
}

// Location returns the timezone used to derive entry dates. Validate
// guarantees it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timer.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
