// Package scraper discovers item pages on an auction listing and extracts
// lot details from each item page.
package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document wraps a parsed goquery document and implements
// selector.Document.
type Document struct {
	doc *goquery.Document
}

// ParseHTML parses raw HTML.
func ParseHTML(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc}, nil
}

// Count returns the number of elements matching sel. goquery matches
// nothing for a selector that does not compile, so invalid candidates count
// as zero.
func (d *Document) Count(sel string) int {
	return d.doc.Find(sel).Length()
}

// Find returns the elements matching sel.
func (d *Document) Find(sel string) *goquery.Selection {
	return d.doc.Find(sel)
}

// absoluteURL resolves href against base. Unparseable input is returned
// unchanged.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	ref, err := url.Parse(href)
	if err != nil || ref.IsAbs() {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
