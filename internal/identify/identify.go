// Package identify works out which product a lot is and builds the query
// used to price it.
package identify

import (
	"context"
	"strings"

	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/lookup"
	"github.com/rs/zerolog/log"
)

const maxPricingQueryLength = 150

// Query quality tiers, from most to least specific.
const (
	QualityOCR          = 90
	QualityStructured   = 80
	QualityVisionModel  = 70
	QualityBrandContext = 60
	QualityVisionObject = 50
	QualityDescription  = 20
)

type Identifier struct {
	catalog Catalog
}

// New creates an identifier. catalog may be nil to skip the product
// database lookup.
func New(catalog Catalog) *Identifier {
	return &Identifier{catalog: catalog}
}

// Identify implements item.Stage. It fills ProductInfo and FinalSearchQuery.
func (id *Identifier) Identify(ctx context.Context, in item.Item) item.Item {
	it := in.Clone()
	query := bestQuery(it)
	if query == "" {
		log.Warn().Str("lot", it.LotNumber).Msg("no text available for product identification")
		return it
	}

	var info item.ProductInfo
	if det := it.ObjectDetection; det != nil {
		if len(det.Brands) > 0 {
			info.Brand = det.Brands[0]
		}
		if len(det.ModelNumbers) > 0 {
			info.Model = det.ModelNumbers[0]
		}
		info.Category = lookup.CategorizeObjects(det.Objects)
	}

	if id.catalog != nil {
		res, err := id.catalog.Lookup(ctx, query)
		if err != nil {
			log.Error().Err(err).Msg("product catalog lookup failed")
		} else if res.Found {
			overrideInfo(&info, res)
		}
	}

	fillInfo(&info, ExtractStructured(it))

	if info.Confidence == 0 {
		info.Confidence = min(0.85, float64(filledFields(info))/5)
	}
	it.ProductInfo = &info

	q, quality := PricingQuery(it)
	it.FinalSearchQuery = q
	log.Info().
		Str("lot", it.LotNumber).
		Str("brand", info.Brand).
		Str("model", info.Model).
		Str("category", info.Category).
		Int("quality", quality).
		Str("query", q).
		Msg("identified product")
	return it
}

func bestQuery(it item.Item) string {
	switch {
	case it.RichSearchQuery != "":
		return it.RichSearchQuery
	case it.EnhancedDescription != "":
		return it.EnhancedDescription
	}
	return it.Description
}

func overrideInfo(info *item.ProductInfo, res CatalogResult) {
	if res.Name != "" {
		info.Name = res.Name
	}
	if res.Brand != "" {
		info.Brand = res.Brand
	}
	if res.Model != "" {
		info.Model = res.Model
	}
	if res.Category != "" {
		info.Category = res.Category
	}
	info.Confidence = max(info.Confidence, res.Confidence)
}

// fillInfo copies fields from src that are still empty in dst.
func fillInfo(dst *item.ProductInfo, src item.ProductInfo) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Brand == "" {
		dst.Brand = src.Brand
	}
	if dst.Model == "" {
		dst.Model = src.Model
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if len(dst.Specifications) == 0 {
		dst.Specifications = src.Specifications
	}
	if len(dst.Identifiers) == 0 {
		dst.Identifiers = src.Identifiers
	}
}

func filledFields(info item.ProductInfo) int {
	n := 0
	for _, v := range []string{info.Name, info.Brand, info.Model, info.Category} {
		if v != "" {
			n++
		}
	}
	return n
}

// PricingQuery builds the market price search query from the most specific
// information available and reports its quality tier.
func PricingQuery(it item.Item) (string, int) {
	desc := it.CleanDescription()
	info := it.ProductInfo
	if info == nil {
		info = &item.ProductInfo{}
	}

	var parts []string
	quality := 0
	switch {
	case len(it.OCRBrands) > 0 && len(it.OCRModelNumbers) > 0:
		parts = []string{lookup.TitleCase(it.OCRBrands[0]), strings.ToUpper(it.OCRModelNumbers[0])}
		quality = QualityOCR
	case info.Brand != "" && info.Model != "":
		parts = []string{info.Brand, info.Model}
		quality = QualityStructured
	case info.Brand != "":
		parts = []string{info.Brand}
		if info.Category != "" {
			parts = append(parts, info.Category)
		}
		if words := strings.Fields(desc); len(words) > 0 {
			parts = append(parts, strings.Join(words[:min(4, len(words))], " "))
		}
		quality = QualityBrandContext
	}

	if det := it.ObjectDetection; quality < QualityVisionObject && det != nil && len(det.Brands) > 0 {
		if len(det.ModelNumbers) > 0 {
			parts = []string{det.Brands[0], det.ModelNumbers[0]}
			quality = QualityVisionModel
		} else {
			parts = []string{det.Brands[0]}
			for _, obj := range det.Objects {
				if !lookup.GenericObjects[obj] {
					parts = append(parts, obj)
					break
				}
			}
			if len(det.Colors) > 0 {
				parts = append(parts, det.Colors[0])
			}
			quality = QualityVisionObject
		}
	}

	var query string
	if len(parts) == 0 {
		query = desc
		if query == "" {
			query = it.EnhancedDescription
		}
		quality = QualityDescription
	} else {
		query = strings.Join(parts, " ")
		if words := strings.Fields(desc); len(query) < 50 && len(words) > 5 {
			query += " " + strings.Join(words[:5], " ")
		}
	}

	if info.Category != "" && !strings.Contains(strings.ToLower(query), strings.ToLower(info.Category)) {
		query += " " + info.Category
	}

	query = strings.Join(strings.Fields(query), " ")
	if len(query) > maxPricingQueryLength {
		query = query[:maxPricingQueryLength]
	}
	return query, quality
}
