package identify

import (
	"context"
	"strings"

	"github.com/raine/auction-bot/internal/lookup"
)

// CatalogResult is a product database match. Non-empty fields override
// what detection found.
type CatalogResult struct {
	Found      bool
	Name       string
	Brand      string
	Model      string
	Category   string
	Confidence float64
}

// Catalog looks a free-text product query up in a product database.
type Catalog interface {
	Lookup(ctx context.Context, query string) (CatalogResult, error)
}

// KeywordCatalog is the built-in catalog. It only recognizes a handful of
// major brands by substring and never fills model or category.
type KeywordCatalog struct{}

// Lookup implements Catalog.
func (KeywordCatalog) Lookup(ctx context.Context, query string) (CatalogResult, error) {
	if err := ctx.Err(); err != nil {
		return CatalogResult{}, err
	}
	q := strings.ToLower(query)
	for _, b := range lookup.CatalogBrands {
		if strings.Contains(q, b) {
			return CatalogResult{Found: true, Brand: lookup.TitleCase(b), Confidence: 0.6}, nil
		}
	}
	return CatalogResult{}, nil
}
