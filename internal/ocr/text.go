package ocr

import (
	"regexp"
	"strings"

	"github.com/raine/auction-bot/internal/lookup"
)

// MinFragmentLength is the shortest OCR fragment kept; shorter ones are noise.
const MinFragmentLength = 11

var (
	ocrDisallowedRe  = regexp.MustCompile(`[^a-zA-Z0-9\s.,\-$%#/]`)
	descDisallowedRe = regexp.MustCompile(`[^a-zA-Z0-9\s.,\-#]`)
)

// CleanText replaces characters outside the OCR alphabet with spaces and
// collapses whitespace.
func CleanText(raw string) string {
	text := ocrDisallowedRe.ReplaceAllString(raw, " ")
	return strings.Join(strings.Fields(text), " ")
}

// Findings is what one piece of cleaned OCR text yielded.
type Findings struct {
	Text         string
	Brands       []string
	ModelNumbers []string
}

// Analyze scans cleaned OCR text for brands and model numbers.
func Analyze(cleaned string) Findings {
	lower := strings.ToLower(cleaned)
	return Findings{
		Text:         cleaned,
		Brands:       lookup.FindBrands(lower),
		ModelNumbers: lookup.FindOCRModelNumbers(lower),
	}
}

// FilterFragments drops fragments shorter than MinFragmentLength.
func FilterFragments(fragments []string) []string {
	var out []string
	for _, f := range fragments {
		if len(f) >= MinFragmentLength {
			out = append(out, f)
		}
	}
	return out
}

// EnhancedDescription merges the cleaned lot description with OCR output.
// Brands and model numbers the description does not already mention go
// first. The result only contains alphanumerics, whitespace and . , - #.
func EnhancedDescription(cleanDesc, ocrText string, brands, models []string) string {
	lowerDesc := strings.ToLower(cleanDesc)
	var important []string
	for _, v := range append(append([]string(nil), brands...), models...) {
		if !strings.Contains(lowerDesc, strings.ToLower(v)) {
			important = append(important, v)
		}
	}

	parts := make([]string, 0, 3)
	if len(important) > 0 {
		parts = append(parts, strings.Join(important, " "))
	}
	parts = append(parts, cleanDesc, ocrText)

	combined := descDisallowedRe.ReplaceAllString(strings.Join(parts, " "), " ")
	return strings.Join(strings.Fields(combined), " ")
}
