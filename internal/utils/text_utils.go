package utils

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// TruncationMarker is appended to prompts that were cut to fit a size limit
const TruncationMarker = "\n[... Content truncated due to size limits ...]"

// TextProcessor provides utilities for processing text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// Cleaned is the outcome of Clean along with what had to be changed
type Cleaned struct {
	Text      string
	Truncated bool
	Sanitized bool
}

// Clean truncates text to maxSize bytes on a rune boundary and drops invalid
// UTF-8 sequences. No marker is appended.
func (tp *TextProcessor) Clean(text string, maxSize int) Cleaned {
	var out Cleaned
	if maxSize > 0 && len(text) > maxSize {
		text = cutToRuneBoundary(text, maxSize)
		out.Truncated = true
	}
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
		out.Sanitized = true
	}
	out.Text = text

	if out.Truncated || out.Sanitized {
		tp.logger.Debug("Text cleaned",
			zap.Int("size", len(text)),
			zap.Int("max_size", maxSize),
			zap.Bool("truncated", out.Truncated),
			zap.Bool("sanitized", out.Sanitized))
	}
	return out
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := cutToRuneBoundary(text, maxSize)

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + TruncationMarker
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	sanitized := strings.ToValidUTF8(text, "")

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// ProcessText truncates and sanitizes a prompt in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.TruncateText(text, maxSize))
}

// EstimateTokens approximates a token count at four bytes per token
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

func cutToRuneBoundary(text string, maxSize int) string {
	cut := maxSize
	// never split a multi-byte rune
	for cut > 0 && cut > maxSize-utf8.UTFMax && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
