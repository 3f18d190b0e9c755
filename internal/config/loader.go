package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"portald/internal/common/fsutil"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultAddr           = ":8090"
	DefaultDevAPIBaseURL  = "http://localhost:5001/api"
	DefaultProdAPIBaseURL = "https://api.geekskul.com/v1"
	DefaultTimeoutSeconds = 20
	DefaultUpcomingDays   = 7
	DefaultTimezone       = "Asia/Kolkata"
	DefaultSessionFile    = "~/.config/portald/session.json"
	DefaultMaxBodyBytes   = 1 << 20
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PORTAL_"

// Config holds runtime parameters for the portal client.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr                  string   `json:"addr" yaml:"addr" toml:"addr"`
	Env                   string   `json:"env" yaml:"env" toml:"env"`
	APIBaseURL            string   `json:"api_base_url" yaml:"api_base_url" toml:"api_base_url"`
	RequestTimeoutSeconds int      `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`
	SessionFile           string   `json:"session_file" yaml:"session_file" toml:"session_file"`
	UpcomingDays          int      `json:"upcoming_days" yaml:"upcoming_days" toml:"upcoming_days"`
	Timezone              string   `json:"timezone" yaml:"timezone" toml:"timezone"`
	PlayerURLTemplate     string   `json:"player_url_template" yaml:"player_url_template" toml:"player_url_template"`
	LogLevel              string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat             string   `json:"log_format" yaml:"log_format" toml:"log_format"`
	CORSEnabled           bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins           []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes          int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	WarmOnStart           bool     `json:"warm_on_start" yaml:"warm_on_start" toml:"warm_on_start"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Options selects the sources Resolve reads.
type Options struct {
	ConfigFile string // optional; empty skips the file layer
	EnvFile    string // optional .env file; missing files are an error
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Resolve layers file, .env and PORTAL_* environment values, then applies
// defaults. Values already present in the process environment win over the
// .env file.
func Resolve(opts Options) (Config, error) {
	var cfg Config
	if opts.ConfigFile != "" {
		c, err := Load(opts.ConfigFile)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", opts.ConfigFile, err)
		}
		cfg = c
	}
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return cfg, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("ADDR", &cfg.Addr)
	str("ENV", &cfg.Env)
	str("API_BASE_URL", &cfg.APIBaseURL)
	str("SESSION_FILE", &cfg.SessionFile)
	str("TIMEZONE", &cfg.Timezone)
	str("PLAYER_URL_TEMPLATE", &cfg.PlayerURLTemplate)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	num := func(name string, set func(int64)) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		set(n)
		return nil
	}
	if err := num("REQUEST_TIMEOUT_SECONDS", func(n int64) { cfg.RequestTimeoutSeconds = int(n) }); err != nil {
		return err
	}
	if err := num("UPCOMING_DAYS", func(n int64) { cfg.UpcomingDays = int(n) }); err != nil {
		return err
	}
	if err := num("MAX_BODY_BYTES", func(n int64) { cfg.MaxBodyBytes = n }); err != nil {
		return err
	}

	flag := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}
	if err := flag("CORS_ENABLED", &cfg.CORSEnabled); err != nil {
		return err
	}
	if err := flag("WARM_ON_START", &cfg.WarmOnStart); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		cfg.CORSOrigins = SplitCSV(v)
	}
	return nil
}

// ApplyDefaults fills unspecified fields and expands the session path.
func (c *Config) ApplyDefaults() error {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Env == "" {
		c.Env = "development"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultDevAPIBaseURL
		if c.Production() {
			c.APIBaseURL = DefaultProdAPIBaseURL
		}
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.UpcomingDays <= 0 {
		c.UpcomingDays = DefaultUpcomingDays
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.SessionFile == "" {
		c.SessionFile = DefaultSessionFile
	}
	p, err := fsutil.ExpandHome(c.SessionFile)
	if err != nil {
		return fmt.Errorf("session file: %w", err)
	}
	c.SessionFile = p
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return nil
}

// Production reports whether Env names a production deployment.
func (c Config) Production() bool {
	switch strings.ToLower(c.Env) {
	case "production", "prod":
		return true
	}
	return false
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
