// Package item holds the auction lot record that flows through every
// processing stage.
package item

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var lotPrefixRe = regexp.MustCompile(`(?i)Lot #.*?:`)

// Detection is the merged output of object detection over an item's images.
type Detection struct {
	Objects        []string `json:"detected_objects"`
	Brands         []string `json:"detected_brands"`
	ModelNumbers   []string `json:"detected_model_numbers"`
	Colors         []string `json:"detected_colors"`
	AdditionalText string   `json:"additional_text,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// Empty reports whether nothing at all was detected.
func (d *Detection) Empty() bool {
	return d == nil || len(d.Objects)+len(d.Brands)+len(d.ModelNumbers)+len(d.Colors) == 0
}

// ProductInfo is the heuristic product identification result.
type ProductInfo struct {
	Name           string            `json:"name,omitempty"`
	Brand          string            `json:"brand,omitempty"`
	Model          string            `json:"model,omitempty"`
	Category       string            `json:"category,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Identifiers    map[string]string `json:"identifiers,omitempty"`
	Confidence     float64           `json:"confidence"`
}

// LLMProductInfo is the product description returned by the language model.
type LLMProductInfo struct {
	ProductType string `json:"product_type"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Attributes  string `json:"attributes"`
}

// Item is one auction lot.
type Item struct {
	LotNumber     string   `json:"lot_number"`
	ItemURL       string   `json:"item_url"`
	Description   string   `json:"description"`
	CurrentBid    string   `json:"current_bid"`
	TimeRemaining string   `json:"time_remaining"`
	Images        []string `json:"images"`

	OCRText             string `json:"ocr_text,omitempty"`
	EnhancedDescription string `json:"enhanced_description,omitempty"`
	RichSearchQuery     string `json:"rich_search_query,omitempty"`
	UsedSearchQuery     string `json:"used_search_query,omitempty"`
	FinalSearchQuery    string `json:"final_search_query,omitempty"`

	OCRBrands       []string        `json:"ocr_brands,omitempty"`
	OCRModelNumbers []string        `json:"ocr_model_numbers,omitempty"`
	ObjectDetection *Detection      `json:"object_detection,omitempty"`
	ProductInfo     *ProductInfo    `json:"product_info,omitempty"`
	LLMProductInfo  *LLMProductInfo `json:"llm_product_info,omitempty"`

	CurrentBidFloat float64 `json:"current_bid_float"`
	MarketPrice     float64 `json:"market_price"`
	PotentialProfit float64 `json:"potential_profit"`

	SkipForProcessing bool `json:"skip_for_processing,omitempty"`
}

// Stage transforms an item and returns the updated value. Stages never
// return an error: failures are logged and the input is passed through.
type Stage func(ctx context.Context, it Item) Item

// Chain composes stages left to right.
func Chain(stages ...Stage) Stage {
	return func(ctx context.Context, it Item) Item {
		for _, s := range stages {
			if ctx.Err() != nil {
				return it
			}
			it = s(ctx, it)
		}
		return it
	}
}

var unsafeIDRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// LotID returns a filesystem-safe identifier for the lot. It depends only
// on the item's fields, so every stage derives the same image paths. Lots
// without a number fall back to the last segment of the item URL, then to
// a hash of the description.
func (it Item) LotID() string {
	if it.LotNumber != "" {
		id := strings.ReplaceAll(it.LotNumber, " ", "_")
		id = strings.ReplaceAll(id, "#", "")
		id = strings.ReplaceAll(id, ":", "")
		return id
	}
	if u, err := url.Parse(it.ItemURL); err == nil && u.Path != "" {
		seg := unsafeIDRe.ReplaceAllString(path.Base(strings.TrimSuffix(u.Path, "/")), "_")
		if seg != "" && seg != "." && seg != "_" {
			return "unknown_" + seg
		}
	}
	sum := sha256.Sum256([]byte(it.Description))
	return "unknown_" + hex.EncodeToString(sum[:4])
}

// CleanDescription returns the description without the "Lot #...:" prefix.
func (it Item) CleanDescription() string {
	return StripLotPrefix(it.Description)
}

// StripLotPrefix removes "Lot #...:" markers from s and trims it.
func StripLotPrefix(s string) string {
	return strings.TrimSpace(lotPrefixRe.ReplaceAllString(s, ""))
}

// Profit returns market minus bid, or 0 when the market price is unknown.
func Profit(market, bid float64) float64 {
	if market <= 0 {
		return 0
	}
	return market - bid
}

// ProfitMargin returns profit as a percentage of the bid, or 0 when there
// is no bid.
func ProfitMargin(profit, bid float64) float64 {
	if bid <= 0 {
		return 0
	}
	return profit / bid * 100
}

// Clone returns a deep copy so that a stage can modify the result without
// touching its input.
func (it Item) Clone() Item {
	out := it
	out.Images = cloneStrings(it.Images)
	out.OCRBrands = cloneStrings(it.OCRBrands)
	out.OCRModelNumbers = cloneStrings(it.OCRModelNumbers)
	if it.ObjectDetection != nil {
		d := *it.ObjectDetection
		d.Objects = cloneStrings(d.Objects)
		d.Brands = cloneStrings(d.Brands)
		d.ModelNumbers = cloneStrings(d.ModelNumbers)
		d.Colors = cloneStrings(d.Colors)
		out.ObjectDetection = &d
	}
	if it.ProductInfo != nil {
		p := *it.ProductInfo
		p.Specifications = cloneMap(p.Specifications)
		p.Identifiers = cloneMap(p.Identifiers)
		out.ProductInfo = &p
	}
	if it.LLMProductInfo != nil {
		l := *it.LLMProductInfo
		out.LLMProductInfo = &l
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Dedupe returns the values with duplicates removed, keeping first-seen order.
func Dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
