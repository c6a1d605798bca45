// Package receipt turns receipt images into advisory expense suggestions.
package receipt

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNoAmount = errors.New("failed to extract amount from receipt")

const (
	defaultDescription = "Receipt scan"
	rawTextLimit       = 500
)

// Suggestion is what a receipt looks like it says. Callers may override every field.
type Suggestion struct {
	Amount            int64  `json:"amount"` // Minor units
	Description       string `json:"description"`
	SuggestedCategory string `json:"suggested_category,omitempty"`
	RawText           string `json:"raw_text"`
}

// Extractor reads a receipt image. categoryNames are the event's categories,
// used to suggest one.
type Extractor interface {
	Extract(ctx context.Context, image []byte, categoryNames []string) (Suggestion, error)
}

var (
	amountPattern = regexp.MustCompile(`\d+\.\d{2}`)
	skipLine      = regexp.MustCompile(`(?i)^(total|amount|balance|date|time|subtotal|tax)`)
)

// categoryHints maps receipt vocabulary to words commonly used in category names
var categoryHints = map[string][]string{
	"food":      {"restaurant", "cafe", "pizza", "burger", "grill", "kitchen", "bistro", "bakery"},
	"drinks":    {"bar", "pub", "beer", "wine", "brewery"},
	"groceries": {"market", "grocery", "supermarket"},
	"transport": {"fuel", "gas", "petrol", "taxi", "uber", "parking", "train"},
	"lodging":   {"hotel", "hostel", "inn", "airbnb"},
}

// ParseText extracts a suggestion from OCR output
func ParseText(text string, categoryNames []string) (Suggestion, error) {
	amount, ok := parseAmount(text)
	if !ok {
		return Suggestion{}, ErrNoAmount
	}

	raw := text
	if len(raw) > rawTextLimit {
		raw = raw[:rawTextLimit]
	}
	return Suggestion{
		Amount:            amount,
		Description:       parseDescription(text),
		SuggestedCategory: suggestCategory(text, categoryNames),
		RawText:           raw,
	}, nil
}

// parseAmount picks the largest money-looking figure, usually the total
func parseAmount(text string) (int64, bool) {
	matches := amountPattern.FindAllString(strings.ReplaceAll(text, ",", "."), -1)
	if len(matches) == 0 {
		return 0, false
	}

	best := decimal.Zero
	for _, m := range matches {
		d, err := decimal.NewFromString(m)
		if err != nil {
			continue
		}
		if d.GreaterThan(best) {
			best = d
		}
	}
	if !best.IsPositive() {
		return 0, false
	}
	return best.Shift(2).IntPart(), true
}

func parseDescription(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 3 || len(line) >= 80 {
			continue
		}
		if !skipLine.MatchString(line) {
			return line
		}
	}
	return defaultDescription
}

func suggestCategory(text string, categoryNames []string) string {
	lower := strings.ToLower(text)
	for _, name := range categoryNames {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return name
		}
	}

	for hint, words := range categoryHints {
		for _, w := range words {
			if !containsWord(lower, w) {
				continue
			}
			for _, name := range categoryNames {
				if strings.Contains(strings.ToLower(name), hint) {
					return name
				}
			}
		}
	}
	return ""
}

func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if field == word {
			return true
		}
	}
	return false
}
