package extractor

import (
	"math"
	"regexp"
	"strings"

	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

// DefaultMaxTextSize bounds the text scanned per email
const DefaultMaxTextSize = 64 * 1024

var (
	// groups: 1 token glued to the marker, 2 and 3 explicit delimiters, 4 spaced token
	poPattern = regexp.MustCompile(`(?i)\b(?:PO(\d[A-Z0-9-]{2,})|(?:PO\b|P\.O\.?|Purchase\s+Order\b)\s*(#|No\b\.?|Number\b)?\s*:?\s*(#)?\s*([A-Z0-9][A-Z0-9-]{2,}))`)

	datePattern = regexp.MustCompile(`(?i)\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b` +
		`|\b\d{4}-\d{2}-\d{2}\b` +
		`|\b\d{1,2}[/-]\d{1,2}[/-](?:\d{4}|\d{2})\b`)

	quantityPattern = regexp.MustCompile(`(?i)\b(\d[\d,]*)\s*(?:units?|pcs?|pieces|qty)\b|\bqty\.?\s*:?\s*(\d[\d,]*)`)

	partPattern = regexp.MustCompile(`(?i)\bPart\s*(?:#|No\.?|Number)\s*:?\s*#?\s*([A-Z0-9][A-Z0-9-]*)`)

	pricePattern = regexp.MustCompile(`\$\s?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?`)

	whitespace = regexp.MustCompile(`\s+`)
)

// RegexExtractor pulls supply-chain entities out of email text with regular
// expressions and delegates intent scoring to a Classifier
type RegexExtractor struct {
	classifier  Classifier
	text        *utils.TextProcessor
	maxTextSize int
}

// NewRegexExtractor creates a new extractor
func NewRegexExtractor(classifier Classifier, text *utils.TextProcessor, maxTextSize int) *RegexExtractor {
	if maxTextSize <= 0 {
		maxTextSize = DefaultMaxTextSize
	}
	return &RegexExtractor{
		classifier:  classifier,
		text:        text,
		maxTextSize: maxTextSize,
	}
}

// Extract implements core.Extractor
func (e *RegexExtractor) Extract(msg *core.EmailMessage) core.ExtractionResult {
	cleaned := e.text.Clean(msg.Subject+"\n"+msg.Body, e.maxTextSize)
	text := cleaned.Text

	var anomalies []core.ExtractionAnomaly
	if cleaned.Sanitized {
		anomalies = append(anomalies, core.AnomalyInvalidUTF8)
	}
	if cleaned.Truncated {
		anomalies = append(anomalies, core.AnomalyTruncated)
	}
	if strings.TrimSpace(text) == "" {
		anomalies = append(anomalies, core.AnomalyEmptyInput)
	}

	entities := ExtractEntities(text)
	intent, scores := e.classifier.Classify(text)

	return core.ExtractionResult{
		Intent:       intent,
		Entities:     entities,
		Confidence:   Confidence(intent, scores[intent], entities),
		IntentScores: scores,
		Anomalies:    anomalies,
	}
}

// ExtractEntities finds every entity category in text
func ExtractEntities(text string) core.Entities {
	return core.Entities{
		PONumber:    findPONumber(text),
		Dates:       findAll(datePattern, text),
		Quantities:  findQuantities(text),
		PartNumbers: findTokens(partPattern, text),
		Prices:      findPrices(text),
	}
}

// Confidence scores an extraction. Unknown intents never exceed 0.3.
func Confidence(intent core.Intent, score int, entities core.Entities) float64 {
	coverage := float64(entities.PopulatedCategories()) / core.EntityCategories

	var c float64
	if intent == core.IntentUnknown || score <= 0 {
		c = 0.3 * coverage
	} else {
		c = 0.3 + 0.5*float64(min(score, 3))/3 + 0.2*coverage
	}
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*10000) / 10000
}

// findPONumber returns the first PO token. Tokens without digits are accepted
// only after an explicit delimiter and when written in upper case.
func findPONumber(text string) string {
	for _, m := range poPattern.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			return m[1]
		}
		token := m[4]
		if hasDigit(token) {
			return token
		}
		if (m[2] != "" || m[3] != "") && token == strings.ToUpper(token) {
			return token
		}
	}
	return ""
}

func findAll(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}

func findTokens(re *regexp.Regexp, text string) []string {
	out := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if hasDigit(m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}

func findQuantities(text string) []string {
	out := []string{}
	for _, m := range quantityPattern.FindAllStringSubmatch(text, -1) {
		n := m[1]
		if n == "" {
			n = m[2]
		}
		n = strings.ReplaceAll(n, ",", "")
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func findPrices(text string) []string {
	out := []string{}
	for _, m := range pricePattern.FindAllString(text, -1) {
		out = append(out, whitespace.ReplaceAllString(m, ""))
	}
	return out
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
