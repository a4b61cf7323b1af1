// Package lookup holds the brand, model-number, category and color tables
// shared by OCR, object detection, product identification and pricing.
package lookup

import (
	"regexp"
	"strings"
)

// KnownBrands is the lowercase brand list used for word-boundary scans.
var KnownBrands = []string{
	"samsung", "sony", "apple", "lg", "bosch", "dewalt", "milwaukee", "makita",
	"craftsman", "ryobi", "stanley", "black and decker", "black & decker",
	"kitchenaid", "whirlpool", "ge", "general electric", "maytag", "kenmore",
	"frigidaire", "philips", "panasonic", "toshiba", "sharp", "dell", "hp",
	"microsoft", "lenovo", "asus", "acer", "canon", "nikon", "gopro", "bose",
	"sennheiser", "jbl", "sonos", "klipsch", "polk", "pioneer", "yamaha", "denon",
	"vizio", "insignia", "nintendo", "playstation", "xbox", "dyson", "shark",
	"hoover", "eureka", "bissell", "miele", "roomba", "irobot", "nutribullet",
	"cuisinart", "ninja", "breville", "calphalon", "coleman", "weber", "traeger",
	"yeti", "north face", "patagonia", "columbia", "nike", "adidas",
	"under armour", "new balance", "puma", "reebok", "levi's", "gap",
	"calvin klein", "ralph lauren", "gucci", "coach", "rolex", "casio", "citizen",
	"seiko", "timex", "fossil", "omega", "lego", "mattel", "hasbro",
	"fisher price", "barbie", "nerf", "ikea", "ashley", "la-z-boy",
	"ethan allen", "thomasville", "bassett",
}

// CatalogBrands are the brands the built-in product catalog recognizes.
var CatalogBrands = []string{
	"sony", "samsung", "apple", "lg", "bosch", "dewalt", "nike",
	"adidas", "microsoft", "dell", "hp", "asus", "craftsman",
}

var brandPatterns = compileBrandPatterns(KnownBrands)

func compileBrandPatterns(brands []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(brands))
	for i, b := range brands {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(b) + `\b`)
	}
	return out
}

// FindBrands returns every known brand that appears in text as a whole word,
// in table order.
func FindBrands(text string) []string {
	var found []string
	for i, re := range brandPatterns {
		if re.MatchString(text) {
			found = append(found, KnownBrands[i])
		}
	}
	return found
}

// FirstBrand returns the first known brand found in text.
func FirstBrand(text string) (string, bool) {
	for i, re := range brandPatterns {
		if re.MatchString(text) {
			return KnownBrands[i], true
		}
	}
	return "", false
}

// IsKnownBrand reports whether name is in the brand list, ignoring case.
func IsKnownBrand(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, b := range KnownBrands {
		if b == name {
			return true
		}
	}
	return false
}

// TitleCase upper-cases the first letter of each space separated word.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
