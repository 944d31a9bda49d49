// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host string `json:"host" yaml:"host"`
		Port int    `json:"port" yaml:"port"`
	} `json:"server" yaml:"server"`

	Database struct {
		Path string `json:"path" yaml:"path"` // empty keeps everything in memory
	} `json:"database" yaml:"database"`

	Git struct {
		Binary         string `json:"binary" yaml:"binary"`
		Backend        string `json:"backend" yaml:"backend"` // exec, gogit
		TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
		PatchDir       string `json:"patch_dir" yaml:"patch_dir"`
		LogLimit       int    `json:"log_limit" yaml:"log_limit"`
	} `json:"git" yaml:"git"`

	Session struct {
		CacheSize int `json:"cache_size" yaml:"cache_size"`
	} `json:"session" yaml:"session"`

	Environment string `json:"environment" yaml:"environment"` // development, production
	LogLevel    string `json:"log_level" yaml:"log_level"`     // debug, info, warn, error
}

const (
	BackendExec  = "exec"
	BackendGoGit = "gogit"
)

func Defaults() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8420
	}
	if c.Git.Binary == "" {
		c.Git.Binary = "git"
	}
	if c.Git.Backend == "" {
		c.Git.Backend = BackendExec
	}
	if c.Git.TimeoutSeconds == 0 {
		c.Git.TimeoutSeconds = 60
	}
	if c.Git.LogLimit == 0 {
		c.Git.LogLimit = 50
	}
	if c.Session.CacheSize == 0 {
		c.Session.CacheSize = 128
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Git.Backend {
	case BackendExec, BackendGoGit:
	default:
		return fmt.Errorf("git.backend must be %q or %q, got %q", BackendExec, BackendGoGit, c.Git.Backend)
	}
	if c.Git.TimeoutSeconds < 0 {
		return fmt.Errorf("git.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GitTimeout() time.Duration {
	return time.Duration(c.Git.TimeoutSeconds) * time.Second
}

// Path picks the config file: an explicit flag value, then REPODECK_CONFIG,
// then config/config.<REPODECK_ENV>.json.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if p := os.Getenv("REPODECK_CONFIG"); p != "" {
		return p
	}
	env := os.Getenv("REPODECK_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

// Load reads path as JSON or YAML depending on its extension. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, err
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &config, nil
}
