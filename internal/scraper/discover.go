package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/raine/auction-bot/internal/browser"
	"github.com/raine/auction-bot/internal/selector"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoItemSelectors means neither an item container nor a link selector
	// matched the listing page.
	ErrNoItemSelectors = errors.New("no working selectors for items and links")
	// ErrNoItemURLs means the listing page had item containers but no links.
	ErrNoItemURLs = errors.New("no item urls found")
)

// HTMLSaver stores raw page HTML for later inspection.
type HTMLSaver interface {
	SaveHTML(prefix, html string) (string, error)
}

// Scraper loads pages through a browser session.
type Scraper struct {
	loader  browser.Loader
	saver   HTMLSaver
	baseURL string
	table   selector.Table
}

// New creates a scraper. saver may be nil.
func New(loader browser.Loader, saver HTMLSaver, baseURL string) *Scraper {
	return &Scraper{
		loader:  loader,
		saver:   saver,
		baseURL: baseURL,
		table:   selector.DefaultTable,
	}
}

// Discover loads the listing page, resolves its selectors and returns the
// item page URLs in first-seen order.
func (s *Scraper) Discover(ctx context.Context, listingURL string) ([]string, error) {
	log.Info().Str("url", listingURL).Msg("analyzing listing page")

	html, err := s.loader.Load(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing page: %w", err)
	}
	s.save("page_structure", html)

	doc, err := ParseHTML(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	resolved := selector.ResolveAll(doc, s.table)
	if !resolved.Has(selector.RoleItems, selector.RoleLink) {
		return nil, ErrNoItemSelectors
	}

	urls := ItemURLs(doc, resolved, s.baseURL)
	if len(urls) == 0 {
		return nil, ErrNoItemURLs
	}
	log.Info().Int("count", len(urls)).Msg("found item urls")
	return urls, nil
}

// ItemURLs takes the first link inside each item container, makes it
// absolute and removes duplicates.
func ItemURLs(doc *Document, resolved selector.Resolved, baseURL string) []string {
	items := doc.Find(resolved[selector.RoleItems])
	linkSel := resolved[selector.RoleLink]
	log.Debug().Int("items", items.Length()).Str("selector", resolved[selector.RoleItems]).Msg("item elements")

	seen := make(map[string]bool)
	var urls []string
	items.Each(func(_ int, el *goquery.Selection) {
		var found string
		el.Find(linkSel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if href, ok := a.Attr("href"); ok && href != "" {
				found = absoluteURL(baseURL, href)
				return false
			}
			return true
		})
		if found == "" || seen[found] {
			return
		}
		seen[found] = true
		urls = append(urls, found)
	})
	return urls
}

func (s *Scraper) save(prefix, html string) {
	if s.saver == nil {
		return
	}
	if _, err := s.saver.SaveHTML(prefix, html); err != nil {
		log.Warn().Err(err).Msg("failed to save page html")
	}
}
