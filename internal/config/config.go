// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Agent() AgentConfig
	Browser() BrowserConfig
	Network() NetworkConfig
	Mirror() MirrorConfig
	Metrics() MetricsConfig
}

// Config is the root configuration object, unmarshaled by viper.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	AgentCfg   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
	MirrorCfg  MirrorConfig  `mapstructure:"mirror" yaml:"mirror"`
	MetricsCfg MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Agent() AgentConfig     { return c.AgentCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }
func (c *Config) Mirror() MirrorConfig   { return c.MirrorCfg }
func (c *Config) Metrics() MetricsConfig { return c.MetricsCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig bounds the step loop and selects the model behind it.
type AgentConfig struct {
	// MaxIterations caps the number of model round-trips in one run.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
	// MaxConsecutiveErrors aborts a run after this many in-protocol errors
	// with no successful tool call in between. Zero disables the cap.
	MaxConsecutiveErrors int            `mapstructure:"max_consecutive_errors" yaml:"max_consecutive_errors"`
	ModelTimeout         time.Duration  `mapstructure:"model_timeout" yaml:"model_timeout"`
	ToolTimeout          time.Duration  `mapstructure:"tool_timeout" yaml:"tool_timeout"`
	LLM                  LLMModelConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOllama    LLMProvider = "ollama"
)

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider `mapstructure:"provider" yaml:"provider"`
	Model       string      `mapstructure:"model" yaml:"model"`
	APIKey      string      `mapstructure:"api_key" yaml:"-"`
	Endpoint    string      `mapstructure:"endpoint" yaml:"endpoint"`
	Temperature float32     `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int         `mapstructure:"max_tokens" yaml:"max_tokens"`
	// MaxRetries bounds the transient-failure retries per model query.
	MaxRetries int  `mapstructure:"max_retries" yaml:"max_retries"`
	ForceJSON  bool `mapstructure:"force_json" yaml:"force_json"`
}

// BrowserConfig holds settings for the headless browser used by fetchPage.
type BrowserConfig struct {
	Headless     bool              `mapstructure:"headless" yaml:"headless"`
	ExecPath     string            `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent    string            `mapstructure:"user_agent" yaml:"user_agent"`
	WaitSelector string            `mapstructure:"wait_selector" yaml:"wait_selector"`
	PostLoadWait time.Duration     `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	Args         []string          `mapstructure:"args" yaml:"args"`
	Headers      map[string]string `mapstructure:"headers" yaml:"headers"`
}

// NetworkConfig tunes the plain HTTP client used for asset downloads.
type NetworkConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Concurrency int           `mapstructure:"concurrency" yaml:"concurrency"`
	// RateLimit is requests per second across the whole batch; 0 means unlimited.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
	UserAgent string  `mapstructure:"user_agent" yaml:"user_agent"`
	// MaxBodyBytes caps a single downloaded asset.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// MirrorConfig holds defaults for the clone workflow.
type MirrorConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "mirror-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Agent --
	v.SetDefault("agent.max_iterations", 40)
	v.SetDefault("agent.max_consecutive_errors", 6)
	v.SetDefault("agent.model_timeout", "2m")
	v.SetDefault("agent.tool_timeout", "3m")
	v.SetDefault("agent.llm.provider", string(ProviderGemini))
	v.SetDefault("agent.llm.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.max_tokens", 8192)
	v.SetDefault("agent.llm.max_retries", 3)
	v.SetDefault("agent.llm.force_json", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.wait_selector", "body")
	v.SetDefault("browser.post_load_wait", "1s")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.concurrency", 4)
	v.SetDefault("network.rate_limit", 8.0)
	v.SetDefault("network.burst", 4)
	v.SetDefault("network.user_agent", "mirror-cli/1.0")
	v.SetDefault("network.max_body_bytes", 50<<20)

	// -- Mirror --
	v.SetDefault("mirror.output_dir", "mirror/site")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "127.0.0.1:9464")
}

// providerKeyEnv lists the conventional credential variables per provider,
// consulted when MIRROR_LLM_API_KEY is unset.
var providerKeyEnv = map[LLMProvider][]string{
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials only ever come from the environment.
	if err := v.BindEnv("agent.llm.api_key", "MIRROR_LLM_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.AgentCfg.LLM.APIKey == "" {
		cfg.AgentCfg.LLM.APIKey = lookupProviderKey(cfg.AgentCfg.LLM.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func lookupProviderKey(p LLMProvider) string {
	for _, name := range providerKeyEnv[p] {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// Validate checks the configuration for required fields and sane values.
// Credentials are not required here; the model client checks for them when
// it is built, so commands that never reach the model still work.
func (c *Config) Validate() error {
	if err := c.AgentCfg.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if c.NetworkCfg.Concurrency <= 0 {
		return fmt.Errorf("network.concurrency must be a positive integer")
	}
	if c.NetworkCfg.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit cannot be negative")
	}
	if c.NetworkCfg.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	if c.MetricsCfg.Enabled && c.MetricsCfg.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics are enabled")
	}
	return nil
}

// Validate checks the AgentConfig settings.
func (a *AgentConfig) Validate() error {
	if a.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be greater than 0")
	}
	if a.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("max_consecutive_errors cannot be negative")
	}
	if a.ModelTimeout <= 0 {
		return fmt.Errorf("model_timeout must be a positive duration")
	}
	if a.ToolTimeout <= 0 {
		return fmt.Errorf("tool_timeout must be a positive duration")
	}
	switch a.LLM.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("unsupported llm.provider %q", a.LLM.Provider)
	}
	if a.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if a.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	return nil
}
