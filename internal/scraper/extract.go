package scraper

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/raine/auction-bot/internal/item"
	"github.com/rs/zerolog/log"
)

const placeholderImagePath = "/images/imgloading"

var timeRemainingRe = regexp.MustCompile(`\d+H,\s*\d+M,\s*\d+S`)

// Extract loads an item page and parses it into an item.
func (s *Scraper) Extract(ctx context.Context, itemURL string) (item.Item, error) {
	html, err := s.loader.Load(ctx, itemURL)
	if err != nil {
		return item.Item{}, fmt.Errorf("failed to load item page: %w", err)
	}
	s.save("item_page_"+lastSegment(itemURL), html)

	it, err := ParseItemPage(html, itemURL, s.baseURL)
	if err != nil {
		return item.Item{}, err
	}
	log.Info().Str("lot", it.LotNumber).Int("images", len(it.Images)).Msg("extracted item details")
	return it, nil
}

// ParseItemPage extracts lot number, description, bid, time remaining and
// image URLs from item page HTML.
func ParseItemPage(html, itemURL, baseURL string) (item.Item, error) {
	doc, err := ParseHTML(html)
	if err != nil {
		return item.Item{}, fmt.Errorf("failed to parse item page: %w", err)
	}

	lot, desc := extractTitle(doc)
	return item.Item{
		LotNumber:     lot,
		Description:   desc,
		CurrentBid:    extractBid(doc),
		TimeRemaining: extractTimeRemaining(doc),
		Images:        extractImages(doc, baseURL),
		ItemURL:       itemURL,
	}, nil
}

func extractTitle(doc *Document) (lot, desc string) {
	h4 := doc.Find("div.item-head h4").First()
	if h4.Length() > 0 {
		full := strings.TrimSpace(h4.Text())
		if strings.Contains(full, "Lot #") && strings.Contains(full, ":") {
			parts := strings.SplitN(full, ":", 2)
			lot = strings.TrimSpace(parts[0])
			desc = strings.TrimSpace(parts[1])
		} else {
			lot = strings.TrimSpace(h4.Find(`span[ng-if*="lot_number"]`).First().Text())
			desc = strings.TrimSpace(h4.Find(`span[ng-bind-html="item.title"]`).First().Text())
		}
	}

	if lot == "" {
		doc.Find("h4, span, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := s.Text(); strings.Contains(text, "Lot #") {
				lot = strings.TrimSpace(text)
				return false
			}
			return true
		})
	}
	return lot, desc
}

// extractBid takes the first currency span after the "Current Bid:" label,
// falling back to the first currency span on the page.
func extractBid(doc *Document) string {
	var bid string
	afterLabel := false
	doc.Find("b, span[data-currency]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "b" {
			if strings.TrimSpace(s.Text()) == "Current Bid:" {
				afterLabel = true
			}
			return true
		}
		if afterLabel {
			bid = strings.TrimSpace(s.Text())
			return false
		}
		return true
	})
	if bid != "" {
		return bid
	}
	return strings.TrimSpace(doc.Find("span[data-currency]").First().Text())
}

func extractTimeRemaining(doc *Document) string {
	var remaining string
	afterLabel := false
	doc.Find("b, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "b" {
			if strings.TrimSpace(s.Text()) == "Time Remaining:" {
				afterLabel = true
			}
			return true
		}
		if !afterLabel {
			return true
		}
		text := compactText(s)
		if strings.Contains(text, "H,") && strings.Contains(text, "M,") && strings.Contains(text, "S") {
			remaining = text
		}
		return false
	})
	if remaining != "" {
		return remaining
	}

	// Innermost div with a countdown, so wrapper divs don't swallow the
	// whole page text.
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		text := compactText(s)
		if !timeRemainingRe.MatchString(text) {
			return
		}
		if remaining == "" || len(text) < len(remaining) {
			remaining = text
		}
	})
	return remaining
}

func extractImages(doc *Document, baseURL string) []string {
	var images []string
	for _, sel := range []string{"light-gallery li[data-src]", "light-gallery img[data-src]"} {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("data-src"); ok && src != "" {
				images = appendImage(images, baseURL, src)
			}
		})
		if len(images) > 0 {
			return images
		}
	}

	for _, sel := range []string{".item-image-slider img", "a.pic img", `img[src*="auctionimages"]`} {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			src := s.AttrOr("src", "")
			if src == "" {
				src = s.AttrOr("data-src", "")
			}
			if src != "" {
				images = appendImage(images, baseURL, src)
			}
		})
		if len(images) > 0 {
			return images
		}
	}
	return images
}

func appendImage(images []string, baseURL, src string) []string {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, placeholderImagePath) {
		return images
	}
	abs := absoluteURL(baseURL, src)
	if u, err := url.Parse(abs); err == nil && strings.HasPrefix(u.Path, placeholderImagePath) {
		return images
	}
	return append(images, abs)
}

// compactText returns the element text with whitespace runs collapsed.
func compactText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func lastSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	seg := path.Base(strings.TrimSuffix(u.Path, "/"))
	if seg == "." || seg == "/" {
		return "unknown"
	}
	return seg
}
