// Package pricing looks up market prices for auction lots from web search,
// a retail site and, as a last resort, a keyword estimate.
package pricing

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	maxQueryLength = 100
	maxPlausible   = 10000.0
)

var (
	nonPriceRe = regexp.MustCompile(`[^\d.]`)

	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?)(?:\s?USD|\s?dollars|\s?\$)`),
		regexp.MustCompile(`Price[:;]\s*\$?(\d+(?:\.\d{1,2})?)`),
		regexp.MustCompile(`(\d+(?:\.\d{1,2})?)(?:\s?USD|\s?dollars|\s?\$)`),
	}

	lotMarkerRe  = regexp.MustCompile(`Lot #.*?:`)
	lotCodeRe    = regexp.MustCompile(`OAD\d+`)
	nonAlnumRe   = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	multiPieceRe = regexp.MustCompile(`set of \d+|\d+ piece`)
	inchSizeRe   = regexp.MustCompile(`(\d+)\s?(?:"|inch|in\b)`)
)

// CleanPrice strips everything but digits and dots from s and parses the
// rest. Unparseable input yields 0.
func CleanPrice(s string) float64 {
	clean := nonPriceRe.ReplaceAllString(s, "")
	if clean == "" {
		return 0
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractPrices returns every positive price mentioned in text. The same
// amount can appear more than once when several patterns match it.
func ExtractPrices(text string) []float64 {
	var prices []float64
	for _, re := range pricePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if p := CleanPrice(m[1]); p > 0 {
				prices = append(prices, p)
			}
		}
	}
	return prices
}

// plausible keeps prices in (0, 10000).
func plausible(prices []float64) []float64 {
	out := prices[:0:0]
	for _, p := range prices {
		if p > 0 && p < maxPlausible {
			out = append(out, p)
		}
	}
	return out
}

// TrimmedMedian drops the lowest and highest values when there are more
// than three and returns the upper median of the rest. An empty input
// returns 0.
func TrimmedMedian(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	sorted := slices.Clone(prices)
	slices.Sort(sorted)
	if len(sorted) > 3 {
		sorted = sorted[1 : len(sorted)-1]
	}
	return sorted[len(sorted)/2]
}

// CleanQuery removes lot markers and punctuation from a search query and
// caps its length.
func CleanQuery(q string) string {
	q = lotMarkerRe.ReplaceAllString(q, "")
	q = lotCodeRe.ReplaceAllString(q, "")
	q = nonAlnumRe.ReplaceAllString(q, " ")
	q = strings.TrimSpace(whitespaceRe.ReplaceAllString(q, " "))
	if len(q) > maxQueryLength {
		q = q[:maxQueryLength]
	}
	return q
}

var (
	premiumKeywords = []string{"premium", "professional", "high-end", "luxury", "gold", "platinum", "diamond"}
	midKeywords     = []string{"quality", "leather", "wireless", "bluetooth", "digital", "stainless"}
	basicKeywords   = []string{"basic", "simple", "mini", "small", "plastic"}

	categoryBasePrices = map[string]float64{
		"electronics": 100,
		"furniture":   120,
		"appliances":  150,
		"tools":       80,
		"jewelry":     200,
		"art":         150,
		"clothing":    40,
		"sports":      75,
	}
)

const (
	defaultBasePrice = 50.0
	minEstimate      = 10.0
)

// Estimate guesses a price from keywords in description. category selects
// the base price; unknown categories start at 50. The result is never
// below 10.
func Estimate(description, category string) float64 {
	lower := strings.ToLower(description)

	price, ok := categoryBasePrices[strings.ToLower(category)]
	if !ok {
		price = defaultBasePrice
	}

	for _, kw := range premiumKeywords {
		if strings.Contains(lower, kw) {
			price += 50
		}
	}
	for _, kw := range midKeywords {
		if strings.Contains(lower, kw) {
			price += 15
		}
	}
	for _, kw := range basicKeywords {
		if strings.Contains(lower, kw) {
			price -= 5
		}
	}

	if multiPieceRe.MatchString(lower) {
		price *= 1.5
	}
	if m := inchSizeRe.FindStringSubmatch(lower); m != nil {
		if size, err := strconv.Atoi(m[1]); err == nil && size > 32 {
			price += float64(size-32) * 5
		}
	}

	return max(price, minEstimate)
}
