package optimizer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/adapters/cache"
	"github.com/mikey/supplier-mail-router/internal/core"
)

type fakeLLM struct {
	calls    atomic.Int32
	text     string
	err      error
	delay    time.Duration
	inTok    int
	outTok   int
	lastTier core.ModelTier
}

func (f *fakeLLM) Complete(ctx context.Context, req *core.CompletionRequest) (*core.Completion, error) {
	f.calls.Add(1)
	f.lastTier = req.Tier
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &core.Completion{Text: f.text, Model: "fake-" + string(req.Tier), InputTokens: f.inTok, OutputTokens: f.outTok}, nil
}

type corruptingCache struct {
	core.CacheRepository
	deleted []string
}

func (c *corruptingCache) Get(ctx context.Context, key string) (*core.CachedResponse, error) {
	return nil, core.ErrCacheCorrupt
}

func (c *corruptingCache) Delete(ctx context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *corruptingCache) Put(ctx context.Context, entry *core.CachedResponse) error {
	return nil
}

func newOptimizer(t *testing.T, llm core.LLMClient, settings Settings) (*CostOptimizer, *cache.MemoryCache) {
	t.Helper()
	mem := cache.NewMemoryCache(zap.NewNop(), cache.Options{})
	t.Cleanup(mem.Stop)
	return NewCostOptimizer(llm, mem, settings, zap.NewNop()), mem
}

func TestSelectTier(t *testing.T) {
	o, _ := newOptimizer(t, &fakeLLM{text: "ok"}, DefaultSettings())

	assert.Equal(t, core.TierSmall, o.SelectTier(0))
	assert.Equal(t, core.TierSmall, o.SelectTier(0.2999))
	assert.Equal(t, core.TierMedium, o.SelectTier(0.3))
	assert.Equal(t, core.TierMedium, o.SelectTier(0.6999))
	assert.Equal(t, core.TierLarge, o.SelectTier(0.7))
	assert.Equal(t, core.TierLarge, o.SelectTier(1))
}

func TestComplexity(t *testing.T) {
	o, _ := newOptimizer(t, &fakeLLM{text: "ok"}, DefaultSettings())

	assert.InDelta(t, 0.0, o.Complexity("", 0), 1e-9)
	assert.InDelta(t, 0.7, o.Complexity("", 1), 1e-9)
	assert.InDelta(t, 1.0, o.Complexity(strings.Repeat("x", 5000), 1), 1e-9)
	assert.InDelta(t, 0.7, o.Complexity("", 7), 1e-9, "hint is clamped")
	assert.InDelta(t, 0.15, o.Complexity(strings.Repeat("x", 1000), 0), 1e-9)
}

func TestResolve_MissThenHit(t *testing.T) {
	llm := &fakeLLM{text: "Mock response", inTok: 1000, outTok: 1000}
	o, _ := newOptimizer(t, llm, DefaultSettings())
	ctx := context.Background()

	first, err := o.Resolve(ctx, "PO 12345 has delivery update", 0.1)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, core.TierSmall, first.Tier)
	assert.InDelta(t, 0.0035, first.Cost, 1e-12)
	assert.Equal(t, "Mock response", first.Response)

	// same task after normalization
	second, err := o.Resolve(ctx, "  po 12345   HAS delivery update ", 0.1)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Zero(t, second.Cost)
	assert.Equal(t, first.Response, second.Response)
	assert.EqualValues(t, 1, llm.calls.Load())
}

func TestResolve_TierIsPartOfKey(t *testing.T) {
	llm := &fakeLLM{text: "ok"}
	o, _ := newOptimizer(t, llm, DefaultSettings())
	ctx := context.Background()

	_, err := o.ResolveAt(ctx, "task", core.TierSmall)
	require.NoError(t, err)
	res, err := o.ResolveAt(ctx, "task", core.TierLarge)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, core.TierLarge, llm.lastTier)
	assert.EqualValues(t, 2, llm.calls.Load())
}

func TestResolve_EstimatesTokensWhenUsageMissing(t *testing.T) {
	llm := &fakeLLM{text: strings.Repeat("r", 400)}
	o, _ := newOptimizer(t, llm, DefaultSettings())

	res, err := o.ResolveAt(context.Background(), strings.Repeat("t", 800), core.TierMedium)
	require.NoError(t, err)
	assert.Equal(t, 200, res.InputTokens)
	assert.Equal(t, 100, res.OutputTokens)
	assert.InDelta(t, 0.2*0.003+0.1*0.004, res.Cost, 1e-12)
}

func TestResolve_FailureNotCached(t *testing.T) {
	llm := &fakeLLM{err: errors.New("upstream 500")}
	o, _ := newOptimizer(t, llm, DefaultSettings())
	ctx := context.Background()

	_, err := o.Resolve(ctx, "task", 0.5)
	var invErr *core.ModelInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, core.InvocationProviderError, invErr.Kind)
	assert.Equal(t, core.TierMedium, invErr.Tier)

	llm.err = nil
	llm.text = "recovered"
	res, err := o.Resolve(ctx, "task", 0.5)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "recovered", res.Response)
}

func TestResolve_EmptyResponse(t *testing.T) {
	o, _ := newOptimizer(t, &fakeLLM{text: "   "}, DefaultSettings())

	_, err := o.Resolve(context.Background(), "task", 0)
	var invErr *core.ModelInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, core.InvocationEmptyResponse, invErr.Kind)
}

func TestResolve_Timeout(t *testing.T) {
	settings := DefaultSettings()
	settings.InvokeTimeout = 10 * time.Millisecond
	o, _ := newOptimizer(t, &fakeLLM{text: "late", delay: time.Second}, settings)

	_, err := o.Resolve(context.Background(), "task", 0)
	var invErr *core.ModelInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, core.InvocationTimeout, invErr.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolve_Canceled(t *testing.T) {
	o, _ := newOptimizer(t, &fakeLLM{text: "late", delay: time.Second}, DefaultSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Resolve(ctx, "task", 0)
	var invErr *core.ModelInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, core.InvocationCanceled, invErr.Kind)
}

func TestResolve_RateLimited(t *testing.T) {
	settings := DefaultSettings()
	settings.RateLimit = 0.001
	settings.RateBurst = 1
	settings.InvokeTimeout = 50 * time.Millisecond
	o, _ := newOptimizer(t, &fakeLLM{text: "ok"}, settings)
	ctx := context.Background()

	_, err := o.ResolveAt(ctx, "first", core.TierSmall)
	require.NoError(t, err)

	_, err = o.ResolveAt(ctx, "second", core.TierSmall)
	var invErr *core.ModelInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, core.InvocationRateLimited, invErr.Kind)
}

func TestResolve_CorruptEntryTreatedAsMiss(t *testing.T) {
	llm := &fakeLLM{text: "fresh"}
	corrupt := &corruptingCache{}
	o := NewCostOptimizer(llm, corrupt, DefaultSettings(), zap.NewNop())

	res, err := o.Resolve(context.Background(), "task", 0)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "fresh", res.Response)
	assert.Equal(t, []string{Fingerprint(core.TierSmall, "task")}, corrupt.deleted)
}

func TestResolve_NoCache(t *testing.T) {
	llm := &fakeLLM{text: "ok"}
	o := NewCostOptimizer(llm, nil, DefaultSettings(), zap.NewNop())

	for i := 0; i < 3; i++ {
		res, err := o.Resolve(context.Background(), "task", 0)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.EqualValues(t, 3, llm.calls.Load())
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint(core.TierSmall, "Hello  World"), Fingerprint(core.TierSmall, "hello world"))
	assert.Equal(t, Fingerprint(core.TierSmall, "ＰＯ １２３"), Fingerprint(core.TierSmall, "po 123"))
	assert.NotEqual(t, Fingerprint(core.TierSmall, "hello"), Fingerprint(core.TierMedium, "hello"))
	assert.NotEqual(t, Fingerprint(core.TierSmall, "hello"), Fingerprint(core.TierSmall, "hell o"))
	assert.Len(t, Fingerprint(core.TierLarge, ""), 64)
}
