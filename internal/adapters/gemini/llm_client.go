package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

// GeminiClient is an implementation of the LLMClient interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	models        map[core.ModelTier]*genai.GenerativeModel
	modelNames    config.ModelMap
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client with one generative model per tier
func NewGeminiClient(
	client *genai.Client,
	modelNames config.ModelMap,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *GeminiClient {
	models := make(map[core.ModelTier]*genai.GenerativeModel, len(modelNames))
	for tier, name := range modelNames {
		if name == "" {
			continue
		}
		model := client.GenerativeModel(name)
		model.SetTemperature(temperature)
		model.SetTopP(topP)
		model.SetMaxOutputTokens(int32(maxTokens))
		model.SystemInstruction = genai.NewUserContent(genai.Text(utils.SystemPrompt))
		models[tier] = model
	}

	return &GeminiClient{
		client:        client,
		models:        models,
		modelNames:    modelNames,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Complete sends the task prompt to the model configured for the tier
func (c *GeminiClient) Complete(ctx context.Context, req *core.CompletionRequest) (*core.Completion, error) {
	model, ok := c.models[req.Tier]
	if !ok {
		return nil, fmt.Errorf("no Gemini model configured for tier %s", req.Tier)
	}

	prompt := c.textProcessor.FormatTaskPrompt(req.Prompt, c.maxBodySize)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	out := &core.Completion{
		Text:  text.String(),
		Model: c.modelNames[req.Tier],
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	c.logger.Debug("Gemini completion",
		zap.String("model", out.Model),
		zap.Int("prompt_tokens", out.InputTokens),
		zap.Int("completion_tokens", out.OutputTokens))

	return out, nil
}
