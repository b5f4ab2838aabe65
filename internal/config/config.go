package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the boardroom service.
type Config struct {
	Port       int              `mapstructure:"port"`
	Version    string           `mapstructure:"version"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Completion CompletionConfig `mapstructure:"completion"`
	Gate       GateConfig       `mapstructure:"gate"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Consult    ConsultConfig    `mapstructure:"consult"`
	Client     ClientConfig     `mapstructure:"client"`
}

type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format is "console" or "json"
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

type AuthConfig struct {
	// APIKeys enables bearer/X-API-Key auth on /api/v1 when non-empty
	APIKeys []string `mapstructure:"api_keys"`
}

// CompletionConfig selects and parameterizes the completion service.
type CompletionConfig struct {
	// Provider is one of: openai, azure-openai, ollama, anthropic, mock
	Provider    string        `mapstructure:"provider"`
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
}

// GateConfig sizes the admission gate shared by all consultations.
type GateConfig struct {
	TokensPerMinute     float64 `mapstructure:"tokens_per_minute"`
	MaxParallelRequests int     `mapstructure:"max_parallel_requests"`
}

type RetryConfig struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

type ConsultConfig struct {
	// SecondaryPause is slept between secondary advisor calls
	SecondaryPause time.Duration `mapstructure:"secondary_pause"`
	// PartialOnSynthesisFailure attaches gathered advisor data to the error event
	PartialOnSynthesisFailure bool `mapstructure:"partial_on_synthesis_failure"`
}

// ClientConfig is read by the boardroom CLI when talking to a server.
type ClientConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:    8080,
		Version: "0.1.0",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "boardroom",
		},
		Completion: CompletionConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			Temperature: 0.7,
			MaxTokens:   1000,
			CallTimeout: 60 * time.Second,
		},
		Gate: GateConfig{
			TokensPerMinute:     60000,
			MaxParallelRequests: 3,
		},
		Retry: RetryConfig{
			MaxRetries:    3,
			InitialDelay:  time.Second,
			BackoffFactor: 2,
		},
		Consult: ConsultConfig{
			SecondaryPause:            time.Second,
			PartialOnSynthesisFailure: true,
		},
		Client: ClientConfig{
			URL: "http://localhost:8080",
		},
	}
}

// SetDefaults registers every default with v so that env vars and config
// files can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("port", d.Port)
	v.SetDefault("version", d.Version)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.otlp_endpoint", d.Telemetry.OTLPEndpoint)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)

	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("completion.provider", d.Completion.Provider)
	v.SetDefault("completion.endpoint", "")
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.model", d.Completion.Model)
	v.SetDefault("completion.temperature", d.Completion.Temperature)
	v.SetDefault("completion.max_tokens", d.Completion.MaxTokens)
	v.SetDefault("completion.call_timeout", d.Completion.CallTimeout)

	v.SetDefault("gate.tokens_per_minute", d.Gate.TokensPerMinute)
	v.SetDefault("gate.max_parallel_requests", d.Gate.MaxParallelRequests)

	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.initial_delay", d.Retry.InitialDelay)
	v.SetDefault("retry.backoff_factor", d.Retry.BackoffFactor)

	v.SetDefault("consult.secondary_pause", d.Consult.SecondaryPause)
	v.SetDefault("consult.partial_on_synthesis_failure", d.Consult.PartialOnSynthesisFailure)

	v.SetDefault("client.url", d.Client.URL)
	v.SetDefault("client.api_key", "")
}

// NewViper returns a viper instance wired for BOARDROOM_* env vars and an
// optional config file. An empty cfgFile searches ./boardroom.yaml and
// $HOME/.config/boardroom/boardroom.yaml.
func NewViper(cfgFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("boardroom")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/boardroom")
	}

	v.SetEnvPrefix("BOARDROOM")
	// BOARDROOM_COMPLETION_API_KEY for completion.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from defaults, the optional config file, and
// environment variables, in increasing priority.
func Load(cfgFile string) (*Config, error) {
	return FromViper(NewViper(cfgFile))
}

// FromViper reads the config file registered on v (if any) and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !asNotFound(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Comma-separated keys from the environment arrive as a single element.
	cfg.Auth.APIKeys = splitKeys(cfg.Auth.APIKeys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the gate, retry policy, or server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: port %d out of range", c.Port)
	case c.Gate.TokensPerMinute < 1:
		return fmt.Errorf("config: gate.tokens_per_minute must be at least 1")
	case c.Gate.MaxParallelRequests <= 0:
		return fmt.Errorf("config: gate.max_parallel_requests must be positive")
	case c.Retry.MaxRetries < 0:
		return fmt.Errorf("config: retry.max_retries must not be negative")
	case c.Retry.BackoffFactor < 1:
		return fmt.Errorf("config: retry.backoff_factor must be >= 1")
	case c.Completion.CallTimeout <= 0:
		return fmt.Errorf("config: completion.call_timeout must be positive")
	}
	return nil
}

func asNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	nf, ok := err.(viper.ConfigFileNotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

func splitKeys(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, k := range strings.Split(entry, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}
