package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mikey/supplier-mail-router/internal/core"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// ModelMap names the provider model used for each tier
type ModelMap map[core.ModelTier]string

// SimulatedConfig represents the configuration for the deterministic offline provider
type SimulatedConfig struct {
	Models  ModelMap
	Latency time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	Models      ModelMap
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	Models      ModelMap
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Models      ModelMap
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// PriceConfig is the cost per 1K tokens for one tier
type PriceConfig struct {
	Input  float64
	Output float64
}

// OptimizerConfig represents tier selection and model call settings
type OptimizerConfig struct {
	LowThreshold  float64
	HighThreshold float64
	HintWeight    float64
	LengthNorm    int
	InvokeTimeout time.Duration
	RateLimit     float64
	RateBurst     int
	Pricing       map[core.ModelTier]PriceConfig
}

// RoutingConfig represents the routing table settings
type RoutingConfig struct {
	ConfidenceFloor float64
}

// ExtractorConfig represents the entity extractor settings
type ExtractorConfig struct {
	MaxTextSize int
	// Vocabulary replaces the built-in intent phrases when non-empty
	Vocabulary map[core.Intent][]string
}

// CacheConfig represents the response cache settings
type CacheConfig struct {
	Type        string
	Enabled     bool
	TTL         time.Duration
	MaxEntries  int
	CleanupFreq time.Duration
	SQLitePath  string
	MySQLDSN    string
}

// ObservabilityConfig represents the execution log settings
type ObservabilityConfig struct {
	MaxEvents int
	LogEvents bool
}

// HTTPConfig represents the HTTP API listener
type HTTPConfig struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxBodyBytes  int64
}

// SMTPConfig represents the SMTP ingress listener
type SMTPConfig struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	MaxRecipients   int
}

// ServerConfig represents the enabled ingresses and their listeners
type ServerConfig struct {
	Ingress []string
	HTTP    HTTPConfig
	SMTP    SMTPConfig
}

// RelaySinkConfig represents the downstream SMTP relay for routed mail
type RelaySinkConfig struct {
	Enabled           bool
	Address           string
	Port              int
	From              string
	To                []string
	IntentHeader      string
	RoutedToHeader    string
	ExecutionIDHeader string
}

func (c *Config) models(prefix string) ModelMap {
	m := make(ModelMap, len(core.ModelTiers))
	for _, tier := range core.ModelTiers {
		m[tier] = c.GetString(prefix + ".models." + string(tier))
	}
	return m
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetSimulated returns the simulated provider configuration
func (c *Config) GetSimulated() (SimulatedConfig, error) {
	latency, err := c.GetDuration("simulated.latency")
	if err != nil {
		return SimulatedConfig{}, fmt.Errorf("invalid simulated latency: %w", err)
	}
	return SimulatedConfig{
		Models:  c.models("simulated"),
		Latency: latency,
	}, nil
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		Models:      c.models("bedrock"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		Models:      c.models("gemini"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		Models:      c.models("openai"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetOptimizer returns the cost optimizer configuration
func (c *Config) GetOptimizer() (OptimizerConfig, error) {
	timeout, err := c.GetDuration("optimizer.invoke_timeout")
	if err != nil {
		return OptimizerConfig{}, fmt.Errorf("invalid optimizer invoke timeout: %w", err)
	}

	cfg := OptimizerConfig{
		LowThreshold:  c.GetFloat64("optimizer.low_threshold"),
		HighThreshold: c.GetFloat64("optimizer.high_threshold"),
		HintWeight:    c.GetFloat64("optimizer.hint_weight"),
		LengthNorm:    c.GetInt("optimizer.length_norm"),
		InvokeTimeout: timeout,
		RateLimit:     c.GetFloat64("optimizer.rate_limit"),
		RateBurst:     c.GetInt("optimizer.rate_burst"),
		Pricing:       make(map[core.ModelTier]PriceConfig, len(core.ModelTiers)),
	}
	for _, tier := range core.ModelTiers {
		cfg.Pricing[tier] = PriceConfig{
			Input:  c.GetFloat64("pricing." + string(tier) + ".input"),
			Output: c.GetFloat64("pricing." + string(tier) + ".output"),
		}
	}

	if cfg.LowThreshold > cfg.HighThreshold {
		return OptimizerConfig{}, fmt.Errorf("optimizer low threshold %.2f exceeds high threshold %.2f", cfg.LowThreshold, cfg.HighThreshold)
	}
	if cfg.HintWeight < 0 || cfg.HintWeight > 1 {
		return OptimizerConfig{}, fmt.Errorf("optimizer hint weight %.2f must be within [0,1]", cfg.HintWeight)
	}
	return cfg, nil
}

// GetRouting returns the routing configuration
func (c *Config) GetRouting() RoutingConfig {
	return RoutingConfig{
		ConfidenceFloor: c.GetFloat64("routing.confidence_floor"),
	}
}

// GetExtractor returns the extractor configuration
func (c *Config) GetExtractor() (ExtractorConfig, error) {
	cfg := ExtractorConfig{
		MaxTextSize: c.GetInt("extractor.max_text_size"),
	}

	vocabulary := c.GetStringMapStringSlice("extractor.vocabulary")
	if len(vocabulary) == 0 {
		return cfg, nil
	}
	cfg.Vocabulary = make(map[core.Intent][]string, len(vocabulary))
	for name, phrases := range vocabulary {
		intent := core.Intent(strings.ToLower(name))
		if intent == core.IntentUnknown || !slices.Contains(core.IntentPriority, intent) {
			return ExtractorConfig{}, fmt.Errorf("unsupported intent in extractor vocabulary: %s", name)
		}
		cfg.Vocabulary[intent] = phrases
	}
	return cfg, nil
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid cache ttl: %w", err)
	}
	cleanupFreq, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid cache cleanup frequency: %w", err)
	}
	return CacheConfig{
		Type:        c.GetString("cache.type"),
		Enabled:     c.GetBool("cache.enabled"),
		TTL:         ttl,
		MaxEntries:  c.GetInt("cache.max_entries"),
		CleanupFreq: cleanupFreq,
		SQLitePath:  c.GetString("cache.sqlite_path"),
		MySQLDSN:    c.GetString("cache.mysql_dsn"),
	}, nil
}

// GetObservability returns the execution log configuration
func (c *Config) GetObservability() ObservabilityConfig {
	return ObservabilityConfig{
		MaxEvents: c.GetInt("observability.max_events"),
		LogEvents: c.GetBool("observability.log_events"),
	}
}

// GetServer returns the listener configuration
func (c *Config) GetServer() (ServerConfig, error) {
	readTimeout, err := c.GetDuration("server.http.read_timeout")
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid http read timeout: %w", err)
	}
	writeTimeout, err := c.GetDuration("server.http.write_timeout")
	if err != nil {
		return ServerConfig{}, fmt.Errorf("invalid http write timeout: %w", err)
	}
	return ServerConfig{
		Ingress: c.GetStringSlice("server.ingress"),
		HTTP: HTTPConfig{
			ListenAddress: c.GetString("server.http.listen_address"),
			ReadTimeout:   readTimeout,
			WriteTimeout:  writeTimeout,
			MaxBodyBytes:  int64(c.GetInt("server.http.max_body_bytes")),
		},
		SMTP: SMTPConfig{
			ListenAddress:   c.GetString("server.smtp.listen_address"),
			Domain:          c.GetString("server.smtp.domain"),
			MaxMessageBytes: int64(c.GetInt("server.smtp.max_message_bytes")),
			MaxRecipients:   c.GetInt("server.smtp.max_recipients"),
		},
	}, nil
}

// GetAllowedDomains returns the supplier domains accepted by the SMTP ingress
func (c *Config) GetAllowedDomains() []string {
	return c.GetStringSlice("suppliers.allowed_domains")
}

// GetRelaySink returns the SMTP relay sink configuration
func (c *Config) GetRelaySink() RelaySinkConfig {
	return RelaySinkConfig{
		Enabled:           c.GetBool("sink.relay.enabled"),
		Address:           c.GetString("sink.relay.address"),
		Port:              c.GetInt("sink.relay.port"),
		From:              c.GetString("sink.relay.from"),
		To:                c.GetStringSlice("sink.relay.to"),
		IntentHeader:      c.GetString("sink.relay.headers.intent"),
		RoutedToHeader:    c.GetString("sink.relay.headers.routed_to"),
		ExecutionIDHeader: c.GetString("sink.relay.headers.execution_id"),
	}
}
