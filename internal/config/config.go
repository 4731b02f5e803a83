// Package config resolves daemon settings from defaults, environment
// variables and an optional YAML file, in that order of precedence
// (file over env over defaults; command-line flags are applied on top
// by the CLI).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Defaults; "~" expands to the user's home directory.
const (
	DefaultSocketPath = "~/.verceld/verceld.sock"
	DefaultDBPath     = "~/.verceld/operations.db"
	DefaultLogPath    = "~/.verceld/verceld.log"
	DefaultLogLevel   = "info"
)

// Config holds the daemon settings. The access token is the one
// required value; everything else has a usable default. The token is
// deliberately not readable from the YAML file.
type Config struct {
	Token    string `envconfig:"VERCEL_ACCESS_TOKEN" yaml:"-"`
	Socket   string `envconfig:"VERCELD_SOCKET" yaml:"socket"`
	HTTPAddr string `envconfig:"VERCELD_HTTP_ADDR" yaml:"http_addr"`
	DBPath   string `envconfig:"VERCELD_DB" yaml:"db"`
	LogFile  string `envconfig:"VERCELD_LOG" yaml:"log"`
	LogLevel string `envconfig:"VERCELD_LOG_LEVEL" yaml:"log_level"`
}

// Load resolves the configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	cfg := &Config{
		Socket:   DefaultSocketPath,
		DBPath:   DefaultDBPath,
		LogFile:  DefaultLogPath,
		LogLevel: DefaultLogLevel,
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment configuration: %w", err)
	}

	if configFile != "" {
		if err := cfg.applyFile(configFile); err != nil {
			return nil, err
		}
	}

	cfg.Socket = ExpandPath(cfg.Socket)
	cfg.DBPath = ExpandPath(cfg.DBPath)
	cfg.LogFile = ExpandPath(cfg.LogFile)

	return cfg, nil
}

// applyFile overlays non-empty values from a YAML config file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if file.Socket != "" {
		c.Socket = file.Socket
	}
	if file.HTTPAddr != "" {
		c.HTTPAddr = file.HTTPAddr
	}
	if file.DBPath != "" {
		c.DBPath = file.DBPath
	}
	if file.LogFile != "" {
		c.LogFile = file.LogFile
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}

	return nil
}

// Validate checks the settings a running daemon cannot do without.
// A missing credential is fatal at startup, not per call.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("VERCEL_ACCESS_TOKEN environment variable not set; create a token at https://vercel.com/account/tokens")
	}
	return nil
}

// ExpandPath resolves a leading "~/" to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
