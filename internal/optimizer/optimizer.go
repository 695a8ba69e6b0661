package optimizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

// Price is the cost per 1K input and output tokens
type Price struct {
	Input  float64
	Output float64
}

// Settings tune tier selection, pricing and model call limits
type Settings struct {
	LowThreshold  float64
	HighThreshold float64
	HintWeight    float64
	LengthNorm    int
	InvokeTimeout time.Duration
	RateLimit     float64
	RateBurst     int
	Pricing       map[core.ModelTier]Price
}

// DefaultPricing returns the per-1K token rates for each tier
func DefaultPricing() map[core.ModelTier]Price {
	return map[core.ModelTier]Price{
		core.TierSmall:  {Input: 0.0015, Output: 0.002},
		core.TierMedium: {Input: 0.003, Output: 0.004},
		core.TierLarge:  {Input: 0.03, Output: 0.06},
	}
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		LowThreshold:  0.3,
		HighThreshold: 0.7,
		HintWeight:    0.7,
		LengthNorm:    2000,
		InvokeTimeout: 30 * time.Second,
		RateBurst:     1,
		Pricing:       DefaultPricing(),
	}
}

// CostOptimizer selects the cheapest adequate model tier and serves repeated
// tasks from the response cache
type CostOptimizer struct {
	llm      core.LLMClient
	cache    core.CacheRepository
	limiter  *rate.Limiter
	settings Settings
	logger   *zap.Logger
}

// NewCostOptimizer creates a new optimizer. cache may be nil to disable caching.
func NewCostOptimizer(llm core.LLMClient, cache core.CacheRepository, settings Settings, logger *zap.Logger) *CostOptimizer {
	if settings.LengthNorm <= 0 {
		settings.LengthNorm = DefaultSettings().LengthNorm
	}
	if settings.Pricing == nil {
		settings.Pricing = DefaultPricing()
	}

	o := &CostOptimizer{
		llm:      llm,
		cache:    cache,
		settings: settings,
		logger:   logger,
	}
	if settings.RateLimit > 0 {
		burst := settings.RateBurst
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(settings.RateLimit), burst)
	}
	return o
}

// Complexity scores a task in [0,1] from the caller hint and the task length
func (o *CostOptimizer) Complexity(task string, hint float64) float64 {
	if math.IsNaN(hint) {
		hint = 0
	}
	hint = math.Max(0, math.Min(1, hint))
	length := math.Min(float64(len(task))/float64(o.settings.LengthNorm), 1)
	w := o.settings.HintWeight
	return w*hint + (1-w)*length
}

// SelectTier maps a complexity score to a model tier
func (o *CostOptimizer) SelectTier(complexity float64) core.ModelTier {
	switch {
	case complexity >= o.settings.HighThreshold:
		return core.TierLarge
	case complexity < o.settings.LowThreshold:
		return core.TierSmall
	default:
		return core.TierMedium
	}
}

// Resolve implements core.CostOptimizer
func (o *CostOptimizer) Resolve(ctx context.Context, task string, complexityHint float64) (*core.Resolution, error) {
	complexity := o.Complexity(task, complexityHint)
	return o.resolve(ctx, task, o.SelectTier(complexity), complexity)
}

// ResolveAt resolves a task at an explicit tier. The optimizer never escalates
// tiers on its own; callers that want a retry at a larger tier use this.
func (o *CostOptimizer) ResolveAt(ctx context.Context, task string, tier core.ModelTier) (*core.Resolution, error) {
	return o.resolve(ctx, task, tier, 0)
}

func (o *CostOptimizer) resolve(ctx context.Context, task string, tier core.ModelTier, complexity float64) (*core.Resolution, error) {
	key := Fingerprint(tier, task)

	if cached := o.lookup(ctx, key, tier); cached != nil {
		o.logger.Debug("Cache hit for task",
			zap.String("tier", string(tier)),
			zap.Int("hit_count", cached.HitCount))
		return &core.Resolution{
			Tier:       tier,
			Complexity: complexity,
			Cached:     true,
			Response:   cached.Value,
		}, nil
	}

	completion, err := o.invoke(ctx, tier, task)
	if err != nil {
		return nil, err
	}

	inputTokens := completion.InputTokens
	if inputTokens <= 0 {
		inputTokens = utils.EstimateTokens(task)
	}
	outputTokens := completion.OutputTokens
	if outputTokens <= 0 {
		outputTokens = utils.EstimateTokens(completion.Text)
	}

	res := &core.Resolution{
		Tier:         tier,
		Complexity:   complexity,
		Cost:         o.Cost(tier, inputTokens, outputTokens),
		Response:     completion.Text,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}

	if o.cache != nil {
		entry := &core.CachedResponse{
			Key:       key,
			Tier:      tier,
			Value:     completion.Text,
			CreatedAt: time.Now(),
		}
		if err := o.cache.Put(ctx, entry); err != nil {
			o.logger.Error("Failed to update cache", zap.Error(err))
		}
	}

	o.logger.Debug("Model invoked",
		zap.String("tier", string(tier)),
		zap.String("model", completion.Model),
		zap.Int("input_tokens", inputTokens),
		zap.Int("output_tokens", outputTokens),
		zap.Float64("cost", res.Cost))

	return res, nil
}

// Cost prices a call at the tier's per-1K token rates
func (o *CostOptimizer) Cost(tier core.ModelTier, inputTokens, outputTokens int) float64 {
	p := o.settings.Pricing[tier]
	cost := float64(inputTokens)/1000*p.Input + float64(outputTokens)/1000*p.Output
	return math.Round(cost*1e8) / 1e8
}

func (o *CostOptimizer) lookup(ctx context.Context, key string, tier core.ModelTier) *core.CachedResponse {
	if o.cache == nil {
		return nil
	}

	entry, err := o.cache.Get(ctx, key)
	switch {
	case err == nil:
		if entry.Tier != tier {
			return nil
		}
		return entry
	case errors.Is(err, core.ErrCacheMiss):
		return nil
	case errors.Is(err, core.ErrCacheCorrupt):
		o.logger.Warn("Discarding corrupt cache entry", zap.String("key", key))
		if err := o.cache.Delete(ctx, key); err != nil {
			o.logger.Error("Failed to delete corrupt cache entry", zap.Error(err))
		}
		return nil
	default:
		o.logger.Warn("Cache read failed, treating as miss", zap.Error(err))
		return nil
	}
}

func (o *CostOptimizer) invoke(ctx context.Context, tier core.ModelTier, task string) (*core.Completion, error) {
	callCtx := ctx
	if o.settings.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.settings.InvokeTimeout)
		defer cancel()
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(callCtx); err != nil {
			kind := core.InvocationRateLimited
			if errors.Is(ctx.Err(), context.Canceled) {
				kind = core.InvocationCanceled
			}
			return nil, &core.ModelInvocationError{Tier: tier, Kind: kind, Err: err}
		}
	}

	completion, err := o.llm.Complete(callCtx, &core.CompletionRequest{Tier: tier, Prompt: task})
	if err != nil {
		kind := core.InvocationProviderError
		switch {
		case errors.Is(ctx.Err(), context.Canceled):
			kind = core.InvocationCanceled
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			kind = core.InvocationTimeout
		}
		return nil, &core.ModelInvocationError{Tier: tier, Kind: kind, Err: err}
	}
	if completion == nil || strings.TrimSpace(completion.Text) == "" {
		return nil, &core.ModelInvocationError{Tier: tier, Kind: core.InvocationEmptyResponse}
	}
	return completion, nil
}

// Fingerprint is the cache key for a task at a tier. Text is NFKC-normalized,
// case-folded and whitespace-collapsed so trivially different copies share a key.
func Fingerprint(tier core.ModelTier, task string) string {
	normalized := cases.Fold().String(norm.NFKC.String(task))
	normalized = strings.Join(strings.Fields(normalized), " ")

	h := sha256.New()
	h.Write([]byte(tier))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}
