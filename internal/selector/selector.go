// Package selector resolves page roles (item container, link, bid, ...) to
// the first CSS selector candidate that matches something on a page.
package selector

import "github.com/rs/zerolog/log"

// Document counts the elements matching a CSS selector. Implementations
// return 0 for selectors they cannot parse.
type Document interface {
	Count(selector string) int
}

// Role is a named page element with its candidate selectors in priority
// order.
type Role struct {
	Name       string
	Candidates []string
}

// Table is an ordered list of roles.
type Table []Role

// Resolved maps a role name to the selector that matched.
type Resolved map[string]string

// Role names used by listing discovery.
const (
	RoleItems       = "items"
	RoleLotNumber   = "lot_number"
	RoleDescription = "description"
	RoleBid         = "bid"
	RoleTime        = "time"
	RoleImages      = "images"
	RoleLink        = "link"
)

// DefaultTable holds the listing page selectors.
var DefaultTable = Table{
	{RoleItems, []string{".aucbox", ".bidgridbox", ".bid-gallery-item", ".auction-item", ".item-card", ".lot-item", "div[data-lot-id]"}},
	{RoleLotNumber, []string{`b:contains("Lot #")`, ".lot-number", ".item-lot-number", ".lot-id"}},
	{RoleDescription, []string{".gridbox-item-title b", "li.gridbox-item-title b", ".title", ".item-title", ".description", ".item-description"}},
	{RoleBid, []string{"span.float-right[data-currency]", `li:contains("Current Bid:") span.float-right`, ".amount", ".current-bid", ".price", ".bid-amount"}},
	{RoleTime, []string{`li:contains("Time Remaining:") span.float-right span`, `span:contains("H, "):contains("M, "):contains("S")`, ".time-left", ".countdown", ".auction-end-time", ".time-remaining"}},
	{RoleImages, []string{".itemlist-image-slider img", "a.pic img", "light-gallery li[data-src]", "light-gallery img[data-src]", `img[src*="auctionimages"]`}},
	{RoleLink, []string{".gridbox-item-title a", "a.pic", "a", ".item-link", ".view-details"}},
}

// Resolve returns the first candidate with at least one match.
func Resolve(doc Document, candidates []string) (string, bool) {
	for _, c := range candidates {
		if doc.Count(c) > 0 {
			return c, true
		}
	}
	return "", false
}

// ResolveAll resolves every role in table order. Roles without a working
// candidate are left out of the result.
func ResolveAll(doc Document, table Table) Resolved {
	out := make(Resolved, len(table))
	for _, role := range table {
		sel, ok := Resolve(doc, role.Candidates)
		if !ok {
			log.Warn().Str("role", role.Name).Msg("no working selector")
			continue
		}
		log.Debug().Str("role", role.Name).Str("selector", sel).Int("count", doc.Count(sel)).Msg("selector resolved")
		out[role.Name] = sel
	}
	return out
}

// Has reports whether all given roles were resolved.
func (r Resolved) Has(roles ...string) bool {
	for _, name := range roles {
		if _, ok := r[name]; !ok {
			return false
		}
	}
	return true
}
