package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/supplier-mail-router/internal/core"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "simulated", cfg.GetLLM().Provider)
	assert.InDelta(t, 0.3, cfg.GetRouting().ConfidenceFloor, 1e-9)
	ext, err := cfg.GetExtractor()
	require.NoError(t, err)
	assert.Equal(t, 65536, ext.MaxTextSize)
	assert.Nil(t, ext.Vocabulary)

	opt, err := cfg.GetOptimizer()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, opt.LowThreshold, 1e-9)
	assert.InDelta(t, 0.7, opt.HighThreshold, 1e-9)
	assert.Equal(t, 30*time.Second, opt.InvokeTimeout)
	assert.Equal(t, PriceConfig{Input: 0.03, Output: 0.06}, opt.Pricing[core.TierLarge])

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "memory", cache.Type)
	assert.True(t, cache.Enabled)
	assert.Zero(t, cache.TTL)
	assert.Zero(t, cache.MaxEntries)

	srv, err := cfg.GetServer()
	require.NoError(t, err)
	assert.Equal(t, []string{"http"}, srv.Ingress)
	assert.Equal(t, "0.0.0.0:8000", srv.HTTP.ListenAddress)

	assert.Equal(t, "gpt-4", cfg.GetOpenAI().Models[core.TierLarge])
	assert.Empty(t, cfg.GetAllowedDomains())
	assert.False(t, cfg.GetRelaySink().Enabled)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
openai:
  models:
    small: gpt-4o-mini
routing:
  confidence_floor: 0.45
cache:
  type: sqlite
  ttl: 30m
suppliers:
  allowed_domains: [acme-supply.com, widgets.example]
extractor:
  vocabulary:
    price_change: ["cost revision", "new rate"]
`), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.GetLLM().Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.GetOpenAI().Models[core.TierSmall])
	assert.Equal(t, "gpt-3.5-turbo-16k", cfg.GetOpenAI().Models[core.TierMedium])
	assert.InDelta(t, 0.45, cfg.GetRouting().ConfidenceFloor, 1e-9)
	assert.Equal(t, []string{"acme-supply.com", "widgets.example"}, cfg.GetAllowedDomains())

	ext, err := cfg.GetExtractor()
	require.NoError(t, err)
	assert.Equal(t, map[core.Intent][]string{core.IntentPriceChange: {"cost revision", "new rate"}}, ext.Vocabulary)

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cache.Type)
	assert.Equal(t, 30*time.Minute, cache.TTL)
}

func TestInvalidValues(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	cfg.Set("cache.ttl", "soon")
	_, err := cfg.GetCache()
	assert.Error(t, err)

	cfg.Set("extractor.vocabulary", map[string][]string{"refund_request": {"refund"}})
	_, err = cfg.GetExtractor()
	assert.ErrorContains(t, err, "refund_request")

	cfg.Set("optimizer.low_threshold", 0.9)
	_, err = cfg.GetOptimizer()
	assert.Error(t, err)
}
