package pricing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

const RetailSearchURL = "https://www.amazon.com/s"

// retailSelectors are tried in order; each contributes at most
// maxPerSelector prices.
var retailSelectors = []string{
	".a-price .a-offscreen",
	".a-price-whole",
	".a-color-price",
	".a-size-base .a-color-price",
	".a-price",
}

const maxPerSelector = 10

// HTMLSaver stores a raw page for later inspection.
type HTMLSaver func(prefix, html string) (string, error)

// RetailSearcher reads listed prices from a retail site's search page.
type RetailSearcher struct {
	baseURL  string
	saveHTML HTMLSaver
}

// NewRetailSearcher creates a retail searcher. save may be nil.
func NewRetailSearcher(baseURL string, save HTMLSaver) *RetailSearcher {
	if baseURL == "" {
		baseURL = RetailSearchURL
	}
	return &RetailSearcher{baseURL: baseURL, saveHTML: save}
}

func (r *RetailSearcher) Search(ctx context.Context, query string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q := CleanQuery(query)
	target := r.baseURL + "?" + url.Values{"k": {q}}.Encode()
	log.Info().Str("query", q).Msg("searching retail site")

	var prices []float64
	c := newCollector()
	c.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Referer", "https://www.google.com/")
		req.Headers.Set("Cache-Control", "no-cache")
	})
	c.OnResponse(func(res *colly.Response) {
		if r.saveHTML == nil {
			return
		}
		if _, err := r.saveHTML("amazon_search_"+q[:min(20, len(q))], string(res.Body)); err != nil {
			log.Debug().Err(err).Msg("failed to save retail page")
		}
	})
	c.OnHTML("body", func(e *colly.HTMLElement) {
		prices = pagePrices(e.DOM)
	})
	if err := c.Visit(target); err != nil {
		return 0, fmt.Errorf("failed to fetch retail search: %w", err)
	}

	if len(prices) == 0 {
		log.Warn().Str("query", q).Msg("no prices on retail page")
		return 0, nil
	}
	return TrimmedMedian(prices), nil
}

func pagePrices(doc *goquery.Selection) []float64 {
	var prices []float64
	for _, sel := range retailSelectors {
		found := doc.Find(sel)
		log.Debug().Str("selector", sel).Int("count", found.Length()).Msg("retail price elements")
		found.Slice(0, min(maxPerSelector, found.Length())).Each(func(_ int, s *goquery.Selection) {
			if p := CleanPrice(strings.TrimSpace(s.Text())); p > 0 && p < maxPlausible {
				prices = append(prices, p)
			}
		})
	}
	return prices
}
