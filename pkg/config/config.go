package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/soundprediction/azurellm/pkg/azure"
	"github.com/soundprediction/azurellm/pkg/cache"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Azure connection and credentials
	Azure azure.Settings `mapstructure:"azure"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Chat configuration
	Chat ChatConfig `mapstructure:"chat"`

	// Cache configuration for embeddings
	Cache cache.Config `mapstructure:"cache"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// Retry configuration for chat calls
	Retry RetryConfig `mapstructure:"retry"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// RetryConfig holds retry settings for retryable chat failures
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
	// UsagePath is where token usage records are written. Empty disables tracking.
	UsagePath string `mapstructure:"usage_path"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Namespace   string `mapstructure:"namespace"`
	ServiceName string `mapstructure:"service_name"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Dimensions   int           `mapstructure:"dimensions"`
	BatchSize    int           `mapstructure:"batch_size"`
	GroupTimeout time.Duration `mapstructure:"group_timeout"`
	Deadline     time.Duration `mapstructure:"deadline"`
}

// ChatConfig holds chat completion configuration
type ChatConfig struct {
	// Provider selects the chat backend: azure or openai.
	Provider string `mapstructure:"provider"`
	// OpenAIAPIKey and OpenAIBaseURL are used by the openai provider.
	OpenAIAPIKey  string  `mapstructure:"openai_api_key"`
	OpenAIBaseURL string  `mapstructure:"openai_base_url"`
	OpenAIModel   string  `mapstructure:"openai_model"`
	Temperature   float32 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	// MaxFunctionCallRepairs bounds re-asks for malformed function call
	// arguments. Zero takes the default of 2; negative disables re-asking.
	MaxFunctionCallRepairs int `mapstructure:"max_function_call_repairs"`
}

// LoadDotEnv loads variables from a .env file in the working directory when
// one exists. Variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config, environ())

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("azure.api_version", azure.DefaultAPIVersion)
	viper.SetDefault("azure.scope", azure.DefaultScope)

	viper.SetDefault("embedding.batch_size", 16)
	viper.SetDefault("embedding.group_timeout", "60s")
	viper.SetDefault("embedding.deadline", "5m")

	viper.SetDefault("chat.provider", "azure")
	viper.SetDefault("chat.temperature", 0.7)
	viper.SetDefault("chat.max_function_call_repairs", 2)

	viper.SetDefault("cache.ttl", "168h")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.namespace", "azurellm")
	viper.SetDefault("metrics.service_name", "azurellm")

	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	viper.SetDefault("retry.max_retries", 3)
	viper.SetDefault("retry.initial_delay", "1s")
	viper.SetDefault("retry.max_delay", "30s")

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.azurellm/telemetry", home)
		viper.SetDefault("telemetry.parquet_path", defaultPath)
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// overrideWithEnv overrides config with environment variables. The Azure
// variables are read here once; nothing else in the module looks them up.
func overrideWithEnv(config *Config, env map[string]string) {
	fromEnv := azure.SettingsFromMap(env)
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&config.Azure.Endpoint, fromEnv.Endpoint)
	set(&config.Azure.APIKey, fromEnv.APIKey)
	set(&config.Azure.TenantID, fromEnv.TenantID)
	set(&config.Azure.ClientID, fromEnv.ClientID)
	set(&config.Azure.ClientSecret, fromEnv.ClientSecret)
	set(&config.Azure.Scope, fromEnv.Scope)
	set(&config.Azure.APIVersion, fromEnv.APIVersion)
	set(&config.Azure.EmbeddingDeployment, fromEnv.EmbeddingDeployment)
	set(&config.Azure.ChatDeployment, fromEnv.ChatDeployment)

	set(&config.Chat.OpenAIAPIKey, env["OPENAI_API_KEY"])
	set(&config.Chat.OpenAIBaseURL, env["OPENAI_BASE_URL"])

	// Server settings
	set(&config.Server.Host, env["SERVER_HOST"])
	if port := env["SERVER_PORT"]; port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil && p > 0 {
			config.Server.Port = p
		}
	}

	// Telemetry settings
	set(&config.Telemetry.ParquetPath, env["TELEMETRY_PARQUET_PATH"])

	if url := env["REDIS_URL"]; url != "" {
		config.Cache.RedisURL = url
	}
}

// Validate reports settings that would make the service unusable.
func (c *Config) Validate() error {
	var errs []error

	if _, err := azure.Resolve(c.Azure.WithDefaults()); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	switch c.Chat.Provider {
	case "", "azure":
	case "openai":
		if c.Chat.OpenAIAPIKey == "" {
			errs = append(errs, fmt.Errorf("chat provider openai requires OPENAI_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown chat provider %q", c.Chat.Provider))
	}
	if c.CircuitBreaker.Enabled && (c.CircuitBreaker.ReadyToTripRatio <= 0 || c.CircuitBreaker.ReadyToTripRatio > 1) {
		errs = append(errs, fmt.Errorf("circuit_breaker.ready_to_trip_ratio must be in (0, 1]"))
	}
	if c.Alert.Enabled && (c.Alert.SMTPHost == "" || len(c.Alert.To) == 0) {
		errs = append(errs, fmt.Errorf("alert requires smtp_host and at least one recipient"))
	}

	return errors.Join(errs...)
}
