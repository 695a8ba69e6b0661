package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/supplier-mail-router/")
	v.AddConfigPath("$HOME/.supplier-mail-router")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit config file
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_ROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM provider defaults
	v.SetDefault("llm.provider", "simulated")

	// Simulated provider
	v.SetDefault("simulated.latency", "0s")
	v.SetDefault("simulated.models.small", "gpt-3.5-turbo")
	v.SetDefault("simulated.models.medium", "gpt-3.5-turbo-16k")
	v.SetDefault("simulated.models.large", "gpt-4")

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.models.small", "gpt-3.5-turbo")
	v.SetDefault("openai.models.medium", "gpt-3.5-turbo-16k")
	v.SetDefault("openai.models.large", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.models.small", "gemini-1.5-flash-8b")
	v.SetDefault("gemini.models.medium", "gemini-1.5-flash")
	v.SetDefault("gemini.models.large", "gemini-1.5-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.models.small", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.models.medium", "anthropic.claude-3-sonnet-20240229-v1:0")
	v.SetDefault("bedrock.models.large", "anthropic.claude-3-opus-20240229-v1:0")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Optimizer defaults
	v.SetDefault("optimizer.low_threshold", 0.3)
	v.SetDefault("optimizer.high_threshold", 0.7)
	v.SetDefault("optimizer.hint_weight", 0.7)
	v.SetDefault("optimizer.length_norm", 2000)
	v.SetDefault("optimizer.invoke_timeout", "30s")
	v.SetDefault("optimizer.rate_limit", 0.0)
	v.SetDefault("optimizer.rate_burst", 1)
	v.SetDefault("pricing.small.input", 0.0015)
	v.SetDefault("pricing.small.output", 0.002)
	v.SetDefault("pricing.medium.input", 0.003)
	v.SetDefault("pricing.medium.output", 0.004)
	v.SetDefault("pricing.large.input", 0.03)
	v.SetDefault("pricing.large.output", 0.06)

	// Routing and extraction
	v.SetDefault("routing.confidence_floor", 0.3)
	v.SetDefault("extractor.max_text_size", 65536)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("cache.max_entries", 0)
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/response_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/supplier_mail")

	// Observability
	v.SetDefault("observability.max_events", 0)
	v.SetDefault("observability.log_events", true)

	// Server defaults
	v.SetDefault("server.ingress", []string{"http"})
	v.SetDefault("server.http.listen_address", "0.0.0.0:8000")
	v.SetDefault("server.http.read_timeout", "10s")
	v.SetDefault("server.http.write_timeout", "60s")
	v.SetDefault("server.http.max_body_bytes", 1<<20)
	v.SetDefault("server.smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.smtp.domain", "localhost")
	v.SetDefault("server.smtp.max_message_bytes", 10<<20)
	v.SetDefault("server.smtp.max_recipients", 50)

	// Supplier allow-list, empty accepts every sender
	v.SetDefault("suppliers.allowed_domains", []string{})

	// Sinks
	v.SetDefault("sink.log.enabled", true)
	v.SetDefault("sink.relay.enabled", false)
	v.SetDefault("sink.relay.address", "localhost")
	v.SetDefault("sink.relay.port", 25)
	v.SetDefault("sink.relay.from", "mail-router@localhost")
	v.SetDefault("sink.relay.to", []string{})
	v.SetDefault("sink.relay.headers.intent", "X-Supplier-Intent")
	v.SetDefault("sink.relay.headers.routed_to", "X-Routed-To")
	v.SetDefault("sink.relay.headers.execution_id", "X-Execution-ID")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetStringMapStringSlice gets a map of string slices from the configuration
func (c *Config) GetStringMapStringSlice(key string) map[string][]string {
	return c.v.GetStringMapStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
