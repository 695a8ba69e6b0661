package simulated

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
)

var testModels = config.ModelMap{
	core.TierSmall:  "gpt-3.5-turbo",
	core.TierMedium: "gpt-3.5-turbo-16k",
	core.TierLarge:  "gpt-4",
}

func TestComplete_PerTier(t *testing.T) {
	c := NewSimulatedClient(testModels, 0, zap.NewNop())
	ctx := context.Background()

	small, err := c.Complete(ctx, &core.CompletionRequest{Tier: core.TierSmall, Prompt: "12345678"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response from gpt-3.5-turbo", small.Text)
	assert.Equal(t, "gpt-3.5-turbo", small.Model)
	assert.Equal(t, 2, small.InputTokens)

	medium, err := c.Complete(ctx, &core.CompletionRequest{Tier: core.TierMedium, Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Detailed mock response from gpt-3.5-turbo-16k", medium.Text)

	large, err := c.Complete(ctx, &core.CompletionRequest{Tier: core.TierLarge, Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Comprehensive mock response from gpt-4 with reasoning", large.Text)
}

func TestComplete_Deterministic(t *testing.T) {
	c := NewSimulatedClient(testModels, 0, zap.NewNop())
	req := &core.CompletionRequest{Tier: core.TierMedium, Prompt: "same prompt"}

	first, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComplete_LatencyHonorsContext(t *testing.T) {
	c := NewSimulatedClient(testModels, time.Second, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, &core.CompletionRequest{Tier: core.TierSmall, Prompt: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComplete_UnknownTier(t *testing.T) {
	c := NewSimulatedClient(config.ModelMap{}, 0, zap.NewNop())
	_, err := c.Complete(context.Background(), &core.CompletionRequest{Tier: core.TierSmall, Prompt: "x"})
	assert.Error(t, err)
}
