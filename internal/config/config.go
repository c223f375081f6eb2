// Package config loads server configuration from an optional YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"contentpipe/internal/extract"
	"contentpipe/internal/llm"
	"contentpipe/internal/pipeline"
	"contentpipe/internal/publish"
)

// Duration is a time.Duration that accepts "30s" style strings from
// both YAML and environment variables.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler for envconfig.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Pipeline  pipeline.Config `yaml:"pipeline"`
	Model     llm.Config      `yaml:"model"`
	WeChat    publish.Config  `yaml:"wechat"`
	Extractor extract.Config  `yaml:"extractor"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string   `yaml:"host" envconfig:"SERVER_HOST"`
	Port            int      `yaml:"port" envconfig:"SERVER_PORT"`
	ReadTimeout     Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout    Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     Duration `yaml:"idle_timeout" envconfig:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" envconfig:"SERVER_SHUTDOWN_TIMEOUT"`
}

// Address returns the listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LOG_LEVEL"`
	Output   string `yaml:"output" envconfig:"LOG_OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"LOG_FILE_PATH"`
}

// envOverrides maps flat environment variables onto the nested
// sections that envconfig cannot reach through the YAML structs.
type envOverrides struct {
	ModelBaseURL string `envconfig:"MODEL_BASE_URL"`
	ModelAPIKey  string `envconfig:"MODEL_API_KEY"`
	ModelName    string `envconfig:"MODEL_NAME"`
	WeChatAppID  string `envconfig:"WECHAT_APP_ID"`
	WeChatSecret string `envconfig:"WECHAT_APP_SECRET"`
	Workers      int    `envconfig:"PIPELINE_WORKERS"`
	QueueSize    int    `envconfig:"PIPELINE_QUEUE_SIZE"`
	ExtractorUA  string `envconfig:"EXTRACTOR_USER_AGENT"`
}

// setDefaults fills the settings left out by both the file and the
// environment. Ordering matters in Load: defaults, then file, then
// environment, so later sources win. The envconfig default tag is
// deliberately not used here because it would overwrite file values
// whenever the variable is unset.
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:            8080,
		ReadTimeout:     Duration(30 * time.Second),
		WriteTimeout:    Duration(120 * time.Second),
		IdleTimeout:     Duration(120 * time.Second),
		ShutdownTimeout: Duration(30 * time.Second),
	}
	c.Logging = LoggingConfig{
		Level:    "info",
		Output:   "stdout",
		FilePath: "logs/contentpipe.log",
	}
}

// Load reads the YAML file at path (skipped when empty or missing)
// and applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Env-only configuration is fine.
		case err != nil:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("process server env: %w", err)
	}
	if err := envconfig.Process("", &cfg.Logging); err != nil {
		return nil, fmt.Errorf("process logging env: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}
	if env.ModelBaseURL != "" {
		cfg.Model.BaseURL = env.ModelBaseURL
	}
	if env.ModelAPIKey != "" {
		cfg.Model.APIKey = env.ModelAPIKey
	}
	if env.ModelName != "" {
		cfg.Model.Model = env.ModelName
	}
	if env.WeChatAppID != "" {
		cfg.WeChat.AppID = env.WeChatAppID
	}
	if env.WeChatSecret != "" {
		cfg.WeChat.AppSecret = env.WeChatSecret
	}
	if env.Workers > 0 {
		cfg.Pipeline.Workers = env.Workers
	}
	if env.QueueSize > 0 {
		cfg.Pipeline.QueueSize = env.QueueSize
	}
	if env.ExtractorUA != "" {
		cfg.Extractor.UserAgent = env.ExtractorUA
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("model.base_url is required")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	return nil
}
