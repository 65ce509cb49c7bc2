// Package config loads diagrama settings from defaults, an optional YAML file
// and DIAGRAMA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "DIAGRAMA_"

// MinTimeout is the smallest accepted request or decode timeout. A bare
// number in the file is read as nanoseconds, so this catches "30" meant as
// seconds.
const MinTimeout = 100 * time.Millisecond

// Config is the full client configuration, corresponding to config.yml.
type Config struct {
	APIURL         string        `yaml:"api_url" koanf:"api_url"`
	DiagramURL     string        `yaml:"diagram_url" koanf:"diagram_url"`
	ExportDir      string        `yaml:"export_dir" koanf:"export_dir"`
	SessionFile    string        `yaml:"session_file" koanf:"session_file"`
	LogFile        string        `yaml:"log_file" koanf:"log_file"`
	RequestTimeout time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
	DecodeTimeout  time.Duration `yaml:"decode_timeout" koanf:"decode_timeout"`
	VerifyOnStart  bool          `yaml:"verify_on_start" koanf:"verify_on_start"`
}

// fileConfig is the on-disk shape of Config. Durations are written as
// strings such as "30s" so that hand edits keep their unit.
type fileConfig struct {
	APIURL         string `yaml:"api_url"`
	DiagramURL     string `yaml:"diagram_url"`
	ExportDir      string `yaml:"export_dir"`
	SessionFile    string `yaml:"session_file"`
	LogFile        string `yaml:"log_file"`
	RequestTimeout string `yaml:"request_timeout"`
	DecodeTimeout  string `yaml:"decode_timeout"`
	VerifyOnStart  bool   `yaml:"verify_on_start"`
}

// MarshalYAML writes durations in Go duration syntax.
func (c Config) MarshalYAML() (any, error) {
	return fileConfig{
		APIURL:         c.APIURL,
		DiagramURL:     c.DiagramURL,
		ExportDir:      c.ExportDir,
		SessionFile:    c.SessionFile,
		LogFile:        c.LogFile,
		RequestTimeout: c.RequestTimeout.String(),
		DecodeTimeout:  c.DecodeTimeout.String(),
		VerifyOnStart:  c.VerifyOnStart,
	}, nil
}

// Dir returns ~/.diagrama.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".diagrama"), nil
}

// DefaultPath returns ~/.diagrama/config.yml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// Default returns the built-in configuration. Paths are rooted at dir.
func Default(dir string) *Config {
	return &Config{
		APIURL:         "http://localhost:4000/api",
		DiagramURL:     "https://lnvew987t4.execute-api.us-east-1.amazonaws.com/dev/diagrams/with-json",
		ExportDir:      ".",
		SessionFile:    filepath.Join(dir, "session.json"),
		LogFile:        filepath.Join(dir, "diagrama.log"),
		RequestTimeout: 30 * time.Second,
		DecodeTimeout:  10 * time.Second,
	}
}

// Load reads configuration from path (if it exists) over the defaults, then
// overlays environment variables: DIAGRAMA_API_URL -> api_url, etc.
func Load(path string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return load(path, dir)
}

func load(path, dir string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default(dir)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if err := validateURL("api_url", c.APIURL); err != nil {
		return err
	}
	if err := validateURL("diagram_url", c.DiagramURL); err != nil {
		return err
	}
	if c.SessionFile == "" {
		return fmt.Errorf("session_file is required")
	}
	if c.ExportDir == "" {
		return fmt.Errorf("export_dir is required")
	}
	if c.RequestTimeout < MinTimeout {
		return fmt.Errorf("request_timeout must be at least %s (got %s)", MinTimeout, c.RequestTimeout)
	}
	if c.DecodeTimeout < MinTimeout {
		return fmt.Errorf("decode_timeout must be at least %s (got %s)", MinTimeout, c.DecodeTimeout)
	}
	return nil
}

func validateURL(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s %q: scheme must be http or https", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", key, raw)
	}
	return nil
}
