package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/llm"
	"github.com/raine/auction-bot/internal/metrics"
	"github.com/raine/auction-bot/internal/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// FallbackPrice is returned when the lookup itself breaks.
const FallbackPrice = 25.0

const (
	DefaultCacheMaxAge = 7 * 24 * time.Hour

	categoryConfidence = 0.6
)

// Price sources, as recorded in metrics and the price cache.
const (
	SourceCache    = "cache"
	SourceAPI      = "search_api"
	SourceScrape   = "search_scrape"
	SourceRetail   = "retail"
	SourceEstimate = "estimate"
	SourceSkipped  = "skipped"
	SourceFallback = "fallback"
)

// PriceCache persists prices by cleaned query.
type PriceCache interface {
	GetPriceCache(query string, maxAge time.Duration) (*storage.PriceCacheEntry, error)
	SetPriceCache(query string, entry *storage.PriceCacheEntry) error
}

// Options selects the collaborators of a Finder. Nil fields disable the
// corresponding step.
type Options struct {
	LLM         llm.QueryGenerator
	SearchAPI   Source
	Scraper     Source
	Retail      Source
	Cache       PriceCache
	CacheMaxAge time.Duration
	// Limiter throttles outbound searches. Nil means unlimited.
	Limiter *rate.Limiter
}

// Finder resolves the market price of an item by walking its sources in
// order until one yields a price.
type Finder struct {
	opts Options
}

func NewFinder(opts Options) *Finder {
	if opts.CacheMaxAge == 0 {
		opts.CacheMaxAge = DefaultCacheMaxAge
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Finder{opts: opts}
}

type state int

const (
	stateLLMQuery state = iota
	statePrimarySearch
	stateFallbackScrape
	stateRetailSearch
	stateEstimate
	stateDone
)

func (s state) String() string {
	switch s {
	case stateLLMQuery:
		return "llm_query"
	case statePrimarySearch:
		return "primary_search"
	case stateFallbackScrape:
		return "fallback_scrape"
	case stateRetailSearch:
		return "retail_search"
	case stateEstimate:
		return "estimate"
	case stateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// lookup carries one item through the states.
type lookup struct {
	it          item.Item
	query       string
	retailQuery string
	usedLLM     bool
	price       float64
	source      string
}

// Price returns a copy of in with the LLM identification, skip flag and
// used search query filled in, along with the market price. A price of 0
// means no query could be built or the item was marked to skip.
func (f *Finder) Price(ctx context.Context, in item.Item) (out item.Item, price float64) {
	l := &lookup{it: in.Clone()}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("lot", in.LotNumber).Msg("price lookup panicked")
			metrics.PriceLookups.WithLabelValues(SourceFallback).Inc()
			out, price = l.it, FallbackPrice
		}
	}()

	st := stateLLMQuery
	for st != stateDone {
		if ctx.Err() != nil {
			return l.it, 0
		}
		log.Debug().Str("lot", l.it.LotNumber).Stringer("state", st).Msg("price lookup")
		st = f.step(ctx, st, l)
	}

	if l.source != "" {
		metrics.PriceLookups.WithLabelValues(l.source).Inc()
	}
	return l.it, l.price
}

func (f *Finder) step(ctx context.Context, st state, l *lookup) state {
	switch st {
	case stateLLMQuery:
		if f.askLLM(ctx, l) {
			l.source = SourceSkipped
			return stateDone
		}
		if !f.buildQuery(l) {
			return stateDone
		}
		if f.fromCache(l) {
			return stateDone
		}
		return statePrimarySearch

	case statePrimarySearch:
		if f.opts.SearchAPI == nil {
			return stateFallbackScrape
		}
		price, err := f.search(ctx, f.opts.SearchAPI, CleanQuery(l.query))
		if err != nil {
			log.Error().Err(err).Msg("search API failed, scraping results page")
			return stateFallbackScrape
		}
		if f.found(l, price, SourceAPI) {
			return stateDone
		}
		return stateRetailSearch

	case stateFallbackScrape:
		if f.opts.Scraper != nil {
			price, err := f.search(ctx, f.opts.Scraper, CleanQuery(l.query))
			if err != nil {
				log.Error().Err(err).Msg("search results scrape failed")
			} else if f.found(l, price, SourceScrape) {
				return stateDone
			}
		}
		return stateRetailSearch

	case stateRetailSearch:
		if f.opts.Retail == nil {
			log.Debug().Msg("retail search disabled")
			return stateEstimate
		}
		log.Info().Msg("web search found no price, trying retail search")
		price, err := f.search(ctx, f.opts.Retail, l.retailQuery)
		if err != nil {
			log.Error().Err(err).Msg("retail search failed")
		} else if f.found(l, price, SourceRetail) {
			return stateDone
		}
		return stateEstimate

	case stateEstimate:
		category := ""
		if l.it.ProductInfo != nil {
			category = l.it.ProductInfo.Category
		}
		l.price = Estimate(l.query, category)
		l.source = SourceEstimate
		log.Warn().Str("query", truncate(l.query, 50)).Float64("price", l.price).Msg("no market price found, using estimate")
		return stateDone
	}
	return stateDone
}

// askLLM runs query generation and reports whether the item must be
// skipped for insufficient identification.
func (f *Finder) askLLM(ctx context.Context, l *lookup) bool {
	if f.opts.LLM == nil {
		return false
	}
	log.Info().Str("lot", l.it.LotNumber).Msg("generating search query")
	res, err := f.opts.LLM.GenerateSearchQuery(ctx, l.it)
	if err != nil {
		log.Warn().Err(err).Str("lot", l.it.LotNumber).Msg("search query generation failed")
		return false
	}

	l.it.LLMProductInfo = res.ProductInfo()
	if res.Insufficient {
		log.Warn().Str("lot", l.it.LotNumber).Msg("insufficient identification, marking to skip")
		l.it.SkipForProcessing = true
		return true
	}

	l.usedLLM = true
	l.query = res.GoogleQuery
	l.retailQuery = res.AmazonQuery
	log.Info().
		Str("brand", res.Brand).
		Str("model", res.Model).
		Str("type", res.ProductType).
		Str("query", res.GoogleQuery).
		Msg("llm identified product")
	return false
}

// buildQuery settles the search query and records it on the item. It
// reports false when there is nothing to search for.
func (f *Finder) buildQuery(l *lookup) bool {
	it := &l.it
	if l.query == "" {
		switch {
		case it.FinalSearchQuery != "":
			l.query = it.FinalSearchQuery
		case it.RichSearchQuery != "":
			l.query = it.RichSearchQuery
		case it.EnhancedDescription != "":
			l.query = it.EnhancedDescription
		default:
			l.query = it.Description
		}
	}
	if l.query == "" {
		log.Warn().Str("lot", it.LotNumber).Msg("no search query available")
		return false
	}

	if info := it.ProductInfo; !l.usedLLM && info != nil && info.Confidence > categoryConfidence &&
		info.Category != "" && !strings.Contains(strings.ToLower(l.query), strings.ToLower(info.Category)) {
		l.query += " " + info.Category
		log.Info().Str("query", l.query).Msg("added category to search query")
	}
	if l.retailQuery == "" {
		l.retailQuery = l.query
	}

	it.UsedSearchQuery = l.query
	log.Info().Str("lot", it.LotNumber).Str("query", l.query).Msg("researching market price")
	return true
}

func (f *Finder) fromCache(l *lookup) bool {
	if f.opts.Cache == nil {
		return false
	}
	entry, err := f.opts.Cache.GetPriceCache(CleanQuery(l.query), f.opts.CacheMaxAge)
	if err != nil {
		log.Error().Err(err).Msg("price cache lookup failed")
		return false
	}
	if entry == nil || entry.Price <= 0 {
		return false
	}
	log.Info().Str("query", l.query).Float64("price", entry.Price).Str("source", entry.Source).Msg("price cache hit")
	l.price = entry.Price
	l.source = SourceCache
	return true
}

func (f *Finder) search(ctx context.Context, src Source, query string) (float64, error) {
	if err := f.opts.Limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return src.Search(ctx, query)
}

// found records a positive price from source and stores it in the cache.
func (f *Finder) found(l *lookup, price float64, source string) bool {
	if price <= 0 {
		return false
	}
	l.price = price
	l.source = source
	log.Info().Str("source", source).Float64("price", price).Msg("found market price")

	if f.opts.Cache != nil {
		err := f.opts.Cache.SetPriceCache(CleanQuery(l.query), &storage.PriceCacheEntry{Price: price, Source: source})
		if err != nil {
			log.Error().Err(err).Msg("failed to cache price")
		}
	}
	return true
}
