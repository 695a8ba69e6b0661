package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

func newTestExtractor(maxSize int) *RegexExtractor {
	return NewRegexExtractor(NewKeywordClassifier(), utils.NewTextProcessor(zap.NewNop()), maxSize)
}

func TestExtract_DeliveryDelay(t *testing.T) {
	x := newTestExtractor(0)

	res := x.Extract(&core.EmailMessage{
		Sender:  "logistics@acme-supply.com",
		Subject: "PO #12345 Delivery Update",
		Body:    "Dear team, the shipment has been delayed by 3 days. New delivery date: Dec 15, 2024. Quantity: 500 units.",
	})

	assert.Equal(t, core.IntentDeliveryDelay, res.Intent)
	assert.Equal(t, "12345", res.Entities.PONumber)
	assert.Equal(t, []string{"500"}, res.Entities.Quantities)
	assert.Equal(t, []string{"Dec 15, 2024"}, res.Entities.Dates)
	assert.Empty(t, res.Entities.Prices)
	assert.InDelta(t, 0.5867, res.Confidence, 1e-9)
	assert.Empty(t, res.Anomalies)
}

func TestExtract_PriceChange(t *testing.T) {
	x := newTestExtractor(0)

	res := x.Extract(&core.EmailMessage{
		Sender:  "sales@widgets.example",
		Subject: "Price Update - PO #67890",
		Body:    "Please note the price for Part #ABC-123 has increased from $10.00 to $12.00 effective next month.",
	})

	assert.Equal(t, core.IntentPriceChange, res.Intent)
	assert.Equal(t, "67890", res.Entities.PONumber)
	assert.Equal(t, []string{"ABC-123"}, res.Entities.PartNumbers)
	assert.Equal(t, []string{"$10.00", "$12.00"}, res.Entities.Prices)
	assert.GreaterOrEqual(t, res.Confidence, 0.3)
}

func TestExtract_PONumberForms(t *testing.T) {
	cases := map[string]string{
		"Re: PO #12345":                       "12345",
		"Update on PO 4500-1234":              "4500-1234",
		"P.O. No. 778899 shipped":             "778899",
		"Purchase Order: PX-2024-001 is late": "PX-2024-001",
		"po number 98765":                     "98765",
		"PO12345 shipment":                    "12345",
		"PO #ABCDEF shipment":                 "ABCDEF",
		"P.O. No. XKCDQ confirmed":            "XKCDQ",
	}
	for subject, want := range cases {
		t.Run(subject, func(t *testing.T) {
			res := newTestExtractor(0).Extract(&core.EmailMessage{Subject: subject})
			assert.Equal(t, want, res.Entities.PONumber)
		})
	}
}

func TestExtract_PONumberRoundTrip(t *testing.T) {
	x := newTestExtractor(0)
	for _, po := range []string{"100", "12345", "A1B2C3", "PO-77-X", "2024-0001"} {
		res := x.Extract(&core.EmailMessage{
			Subject: "Order status",
			Body:    "Regarding PO #" + po + ", nothing else to report.",
		})
		assert.Equal(t, po, res.Entities.PONumber, "po %s", po)
	}
}

func TestExtract_POMarkerWithoutDigitsIgnored(t *testing.T) {
	x := newTestExtractor(0)
	for _, body := range []string{
		"The PO has been received.",
		"PO # pending, will follow up.",
		"Pointer to the Position 12 file.",
		"PO Norway shipment",
	} {
		res := x.Extract(&core.EmailMessage{Body: body})
		assert.Empty(t, res.Entities.PONumber, body)
	}
}

func TestExtract_PricesStopAtPunctuation(t *testing.T) {
	res := newTestExtractor(0).Extract(&core.EmailMessage{
		Body: "The price is $10, effective now; was $1,200. Bulk rate $ 2,500.75 and $99.",
	})
	assert.Equal(t, []string{"$10", "$1,200", "$2,500.75", "$99"}, res.Entities.Prices)
}

func TestExtract_Dates(t *testing.T) {
	res := newTestExtractor(0).Extract(&core.EmailMessage{
		Body: "Shipped 12/01/2024, arriving January 5th, 2025 or 2025-01-07 at the latest; fallback 3-4-25.",
	})
	assert.Equal(t, []string{"12/01/2024", "January 5th, 2025", "2025-01-07", "3-4-25"}, res.Entities.Dates)
}

func TestExtract_Quantities(t *testing.T) {
	res := newTestExtractor(0).Extract(&core.EmailMessage{
		Body: "We can ship 1,200 pcs now and qty: 300 later, plus 5 pieces of samples.",
	})
	assert.Equal(t, []string{"1200", "300", "5"}, res.Entities.Quantities)
}

func TestExtract_UnknownIntent(t *testing.T) {
	x := newTestExtractor(0)

	res := x.Extract(&core.EmailMessage{Subject: "Hello", Body: "Just checking in about next week's visit."})
	assert.Equal(t, core.IntentUnknown, res.Intent)
	assert.LessOrEqual(t, res.Confidence, 0.3)

	// all entity categories populated, still no intent keyword
	res = x.Extract(&core.EmailMessage{
		Subject: "PO 12345",
		Body:    "Part # X-100, 10 units at $5.00 on 2024-01-05.",
	})
	assert.Equal(t, core.IntentUnknown, res.Intent)
	assert.Equal(t, core.EntityCategories, res.Entities.PopulatedCategories())
	assert.InDelta(t, 0.3, res.Confidence, 1e-9)
}

func TestExtract_TieBreakPrefersDeliveryDelay(t *testing.T) {
	res := newTestExtractor(0).Extract(&core.EmailMessage{
		Body: "The shipment is delayed and a price increase applies.",
	})
	assert.Equal(t, 1, res.IntentScores[core.IntentDeliveryDelay])
	assert.Equal(t, 1, res.IntentScores[core.IntentPriceChange])
	assert.Equal(t, core.IntentDeliveryDelay, res.Intent)
}

func TestExtract_ConfidenceMonotonic(t *testing.T) {
	base := core.Entities{}
	withPO := core.Entities{PONumber: "123"}
	withMore := core.Entities{PONumber: "123", Prices: []string{"$1"}}

	assert.Less(t, Confidence(core.IntentPriceChange, 1, base), Confidence(core.IntentPriceChange, 1, withPO))
	assert.Less(t, Confidence(core.IntentPriceChange, 1, withPO), Confidence(core.IntentPriceChange, 1, withMore))
	assert.Less(t, Confidence(core.IntentPriceChange, 1, withPO), Confidence(core.IntentPriceChange, 2, withPO))
	assert.Equal(t, Confidence(core.IntentPriceChange, 3, withPO), Confidence(core.IntentPriceChange, 5, withPO))
	assert.LessOrEqual(t, Confidence(core.IntentDeliveryDelay, 9, withMore), 1.0)
}

func TestExtract_Anomalies(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		res := newTestExtractor(0).Extract(&core.EmailMessage{})
		assert.Equal(t, []core.ExtractionAnomaly{core.AnomalyEmptyInput}, res.Anomalies)
		assert.Equal(t, core.IntentUnknown, res.Intent)
		assert.Zero(t, res.Confidence)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		res := newTestExtractor(0).Extract(&core.EmailMessage{Body: "PO #55555 is \xff\xfe delayed"})
		assert.Contains(t, res.Anomalies, core.AnomalyInvalidUTF8)
		assert.Equal(t, "55555", res.Entities.PONumber)
		assert.Equal(t, core.IntentDeliveryDelay, res.Intent)
	})

	t.Run("truncated", func(t *testing.T) {
		body := "PO #24680 " + strings.Repeat("filler ", 100) + "delayed"
		res := newTestExtractor(64).Extract(&core.EmailMessage{Body: body})
		assert.Contains(t, res.Anomalies, core.AnomalyTruncated)
		assert.Equal(t, "24680", res.Entities.PONumber)
		assert.Equal(t, core.IntentUnknown, res.Intent)
	})
}

func TestExtract_Deterministic(t *testing.T) {
	x := newTestExtractor(0)
	msg := &core.EmailMessage{
		Subject: "PO #12345 Delivery Update",
		Body:    "Delayed by 3 days. Please confirm receipt. 500 units, Part #ZX-9 at $4.50.",
	}
	first := x.Extract(msg)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, x.Extract(msg))
	}
}

func TestKeywordClassifier_CustomVocabulary(t *testing.T) {
	c, err := NewKeywordClassifierWithVocabulary(map[core.Intent][]string{
		core.IntentAcknowledgementRequest: {`\back\b`},
	})
	require.NoError(t, err)

	intent, scores := c.Classify("pls ACK this order")
	assert.Equal(t, core.IntentAcknowledgementRequest, intent)
	assert.Equal(t, 1, scores[core.IntentAcknowledgementRequest])

	_, err = NewKeywordClassifierWithVocabulary(map[core.Intent][]string{core.IntentPriceChange: {"("}})
	assert.Error(t, err)
}
