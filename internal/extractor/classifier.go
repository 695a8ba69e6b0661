package extractor

import (
	"regexp"

	"github.com/mikey/supplier-mail-router/internal/core"
)

// Classifier scores a text against each intent
type Classifier interface {
	// Classify returns the winning intent and the score of every intent that matched
	Classify(text string) (core.Intent, map[core.Intent]int)
}

// KeywordClassifier scores intents by the number of distinct vocabulary phrases found
type KeywordClassifier struct {
	vocabulary map[core.Intent][]*regexp.Regexp
}

// NewKeywordClassifier creates a classifier with the supplier-mail vocabulary
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{vocabulary: defaultVocabulary()}
}

// NewKeywordClassifierWithVocabulary creates a classifier over custom phrase patterns.
// Patterns are compiled case-insensitively.
func NewKeywordClassifierWithVocabulary(vocabulary map[core.Intent][]string) (*KeywordClassifier, error) {
	compiled := make(map[core.Intent][]*regexp.Regexp, len(vocabulary))
	for intent, patterns := range vocabulary {
		for _, p := range patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, err
			}
			compiled[intent] = append(compiled[intent], re)
		}
	}
	return &KeywordClassifier{vocabulary: compiled}, nil
}

// Classify implements Classifier. Ties go to the intent listed first in core.IntentPriority.
func (c *KeywordClassifier) Classify(text string) (core.Intent, map[core.Intent]int) {
	scores := make(map[core.Intent]int)
	for intent, phrases := range c.vocabulary {
		for _, re := range phrases {
			if re.MatchString(text) {
				scores[intent]++
			}
		}
	}

	best := core.IntentUnknown
	bestScore := 0
	for _, intent := range core.IntentPriority {
		if scores[intent] > bestScore {
			best = intent
			bestScore = scores[intent]
		}
	}
	return best, scores
}

func defaultVocabulary() map[core.Intent][]*regexp.Regexp {
	return map[core.Intent][]*regexp.Regexp{
		core.IntentDeliveryDelay: {
			regexp.MustCompile(`(?i)\bdelay(?:s|ed)?\b`),
			regexp.MustCompile(`(?i)\blate\b`),
			regexp.MustCompile(`(?i)\bpostpone(?:d|ment)?\b`),
			regexp.MustCompile(`(?i)\breschedul(?:e|ed|ing)\b`),
			regexp.MustCompile(`(?i)\bbehind\s+schedule\b`),
		},
		core.IntentPriceChange: {
			regexp.MustCompile(`(?i)\bprice\s+(?:increase|change|decrease|adjustment)s?\b`),
			regexp.MustCompile(`(?i)\bcost\s+increases?\b`),
			regexp.MustCompile(`(?i)\bnew\s+pricing\b`),
			regexp.MustCompile(`(?i)\bprices?\b[^.\n]{0,60}?\b(?:increased|decreased|changed|raised|reduced)\b`),
		},
		core.IntentQuantityChange: {
			regexp.MustCompile(`(?i)\brevised?\s+quantit(?:y|ies)\b`),
			regexp.MustCompile(`(?i)\bquantity\s+changes?\b`),
			regexp.MustCompile(`(?i)\bquantity\s+from\s+\d[\d,]*\s+to\s+\d[\d,]*`),
			regexp.MustCompile(`(?i)\b(?:change|reduce|increase|update)[sd]?\s+(?:the\s+)?(?:order\s+)?quantit(?:y|ies)\b`),
		},
		core.IntentAcknowledgementRequest: {
			regexp.MustCompile(`(?i)\backnowledge(?:ment|d)?\b`),
			regexp.MustCompile(`(?i)\bconfirm\s+receipt\b`),
			regexp.MustCompile(`(?i)\bplease\s+confirm\b`),
			regexp.MustCompile(`(?i)\bconfirmation\b`),
		},
	}
}
