package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	// OverrideEnvVar holds a JSON object overriding the URL scheme paths
	// and the timeout, e.g. {"paths":{"replace":"textwell:///replace"},"timeout":3000}.
	OverrideEnvVar = "TEXTWELL_CONFIG"

	DefaultBridgeURL = "https://worldnine.github.io/textwell-mcp/"
)

type Config struct {
	Global   GlobalConfig   `yaml:"global"`
	Textwell TextwellConfig `yaml:"textwell"`
}

type GlobalConfig struct {
	LogLevel     string `yaml:"log_level" env:"TEXTWELL_LOG_LEVEL"`
	LogFormat    string `yaml:"log_format" env:"TEXTWELL_LOG_FORMAT"`
	Transport    string `yaml:"transport" env:"TEXTWELL_TRANSPORT"`
	HTTPAddr     string `yaml:"http_addr" env:"TEXTWELL_HTTP_ADDR"`
	OTelEndpoint string `yaml:"otel_endpoint" env:"TEXTWELL_OTEL_ENDPOINT"`
}

// PathsConfig holds the URL scheme template for every write mode plus the
// action import endpoint.
type PathsConfig struct {
	Replace      string `yaml:"replace" json:"replace"`
	Insert       string `yaml:"insert" json:"insert"`
	Add          string `yaml:"add" json:"add"`
	ImportAction string `yaml:"import_action" json:"importAction"`
}

type TextwellConfig struct {
	Paths       PathsConfig `yaml:"paths"`
	TimeoutMs   int         `yaml:"timeout_ms" env:"TEXTWELL_TIMEOUT_MS"`
	Opener      string      `yaml:"opener" env:"TEXTWELL_OPENER"`
	OpenerArgs  []string    `yaml:"opener_args" env:"TEXTWELL_OPENER_ARGS" envSeparator:","`
	MaxURLBytes int         `yaml:"max_url_bytes" env:"TEXTWELL_MAX_URL_BYTES"`
	BridgeURL   string      `yaml:"bridge_url" env:"TEXTWELL_BRIDGE_URL"`
	AppName     string      `yaml:"app_name" env:"TEXTWELL_APP_NAME"`
	CheckApp    bool        `yaml:"check_app" env:"TEXTWELL_CHECK_APP"`
}

func DefaultConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Transport: TransportStdio,
			HTTPAddr:  "localhost:8081",
		},
		Textwell: TextwellConfig{
			Paths: PathsConfig{
				Replace:      "textwell:///replace",
				Insert:       "textwell:///insert",
				Add:          "textwell:///add",
				ImportAction: "textwell:///importAction",
			},
			TimeoutMs:   5000,
			Opener:      "open",
			OpenerArgs:  []string{},
			MaxURLBytes: 65536,
			BridgeURL:   DefaultBridgeURL,
			AppName:     "Textwell",
			CheckApp:    false,
		},
	}
}

// LoadConfig reads the YAML file at path (or the default location when path
// is empty), then applies environment overrides. Problems that fall back to
// defaults instead of failing are returned as warnings.
func LoadConfig(path string) (*Config, []string, error) {
	return load(path, env.ToMap(os.Environ()))
}

func load(path string, environ map[string]string) (*Config, []string, error) {
	config := DefaultConfig()

	if path == "" {
		configDir, err := os.UserConfigDir()
		if err == nil {
			path = filepath.Join(configDir, "textwell-mcp", "config.yaml")
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Environment: environ}); err != nil {
		return nil, nil, fmt.Errorf("parse env: %w", err)
	}

	var warnings []string
	if raw := environ[OverrideEnvVar]; raw != "" {
		if err := applyJSONOverride(config, raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to parse custom config, using defaults: %v", err))
		}
	}

	return config, warnings, nil
}

type jsonOverride struct {
	Paths   *PathsConfig `json:"paths"`
	Timeout *int         `json:"timeout"`
}

// applyJSONOverride merges the TEXTWELL_CONFIG object field by field. The
// config is left untouched when the JSON is malformed.
func applyJSONOverride(config *Config, raw string) error {
	var o jsonOverride
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return err
	}

	if o.Paths != nil {
		p := &config.Textwell.Paths
		if o.Paths.Replace != "" {
			p.Replace = o.Paths.Replace
		}
		if o.Paths.Insert != "" {
			p.Insert = o.Paths.Insert
		}
		if o.Paths.Add != "" {
			p.Add = o.Paths.Add
		}
		if o.Paths.ImportAction != "" {
			p.ImportAction = o.Paths.ImportAction
		}
	}
	if o.Timeout != nil {
		config.Textwell.TimeoutMs = *o.Timeout
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Global.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unsupported transport %q", c.Global.Transport)
	}

	p := c.Textwell.Paths
	for name, v := range map[string]string{
		"replace":       p.Replace,
		"insert":        p.Insert,
		"add":           p.Add,
		"import_action": p.ImportAction,
	} {
		if v == "" {
			return fmt.Errorf("textwell.paths.%s must not be empty", name)
		}
	}

	if c.Textwell.TimeoutMs <= 0 {
		return fmt.Errorf("textwell.timeout_ms must be positive, got %d", c.Textwell.TimeoutMs)
	}
	if c.Textwell.MaxURLBytes <= 0 {
		return fmt.Errorf("textwell.max_url_bytes must be positive, got %d", c.Textwell.MaxURLBytes)
	}
	if c.Textwell.Opener == "" {
		return fmt.Errorf("textwell.opener must not be empty")
	}
	return nil
}

func (c *Config) ExpandPaths() {
	c.Textwell.Opener = os.ExpandEnv(c.Textwell.Opener)
	for i, a := range c.Textwell.OpenerArgs {
		c.Textwell.OpenerArgs[i] = os.ExpandEnv(a)
	}
}
