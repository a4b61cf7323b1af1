// Package pipeline runs an auction through discovery, per-item enrichment,
// pricing and the final report.
package pipeline

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raine/auction-bot/internal/files"
	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/metrics"
	"github.com/raine/auction-bot/internal/report"
	"github.com/raine/auction-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// Discoverer finds the item pages of an auction listing.
type Discoverer interface {
	Discover(ctx context.Context, listingURL string) ([]string, error)
}

// Extractor reads one item page.
type Extractor interface {
	Extract(ctx context.Context, itemURL string) (item.Item, error)
}

// Pricer resolves an item's market price.
type Pricer interface {
	Price(ctx context.Context, it item.Item) (item.Item, float64)
}

// Snapshotter persists the item list between steps.
type Snapshotter interface {
	SaveItems(name string, items []item.Item) (string, error)
}

// RunRecorder keeps a history of runs.
type RunRecorder interface {
	CreateRun(auctionURL string) (*storage.Run, error)
	RecordLot(runID string, lotNumber, itemURL string, marketPrice float64) error
	FinishRun(id string, total, skipped int, reportPath string) error
}

// ReportFunc writes the final report and returns its path.
type ReportFunc func(items []item.Item, opts report.Options) (string, error)

// Options wires the orchestrator. Enrich, Pricer, Snapshots and Runs may be
// nil.
type Options struct {
	AuctionURL string
	MaxItems   int
	// ItemDelay is the mean pause between items; the actual pause varies
	// by up to half of it either way.
	ItemDelay time.Duration

	// Enrich runs after extraction in the collect pass.
	Enrich     item.Stage
	Pricer     Pricer
	Snapshots  Snapshotter
	Runs       RunRecorder
	ReportPath string
	Report     ReportFunc
}

// Summary describes a finished or interrupted run.
type Summary struct {
	RunID       string
	Items       []item.Item
	Skipped     int
	ReportPath  string
	Interrupted bool
}

// Orchestrator drives a single run. Items are handled strictly one at a
// time.
type Orchestrator struct {
	discoverer Discoverer
	extractor  Extractor
	opts       Options
}

func New(d Discoverer, e Extractor, opts Options) *Orchestrator {
	if opts.Report == nil {
		opts.Report = report.Generate
	}
	return &Orchestrator{discoverer: d, extractor: e, opts: opts}
}

// Run processes the auction. Discovery failures are returned; everything
// after that is logged and skipped. When ctx is cancelled the items
// gathered so far are saved to an interrupted snapshot and Run returns a
// summary with Interrupted set and a nil error.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: o.startRun()}
	log.Info().Str("run", sum.RunID).Str("url", o.opts.AuctionURL).Msg("starting run")

	urls, err := o.discoverer.Discover(ctx, o.opts.AuctionURL)
	if err != nil {
		return nil, err
	}
	if o.opts.MaxItems > 0 && len(urls) > o.opts.MaxItems {
		log.Info().Int("max", o.opts.MaxItems).Int("found", len(urls)).Msg("limiting items")
		urls = urls[:o.opts.MaxItems]
	}

	sum.Items = o.collect(ctx, urls)
	if ctx.Err() != nil {
		o.interrupted(sum)
		return sum, nil
	}
	log.Info().Int("items", len(sum.Items)).Msg("collected items")

	o.price(ctx, sum)
	if ctx.Err() != nil {
		o.interrupted(sum)
		return sum, nil
	}

	for _, it := range sum.Items {
		if it.SkipForProcessing {
			sum.Skipped++
		}
	}
	path, err := o.opts.Report(sum.Items, report.Options{
		Path:       o.opts.ReportPath,
		AuctionURL: o.opts.AuctionURL,
		RunID:      sum.RunID,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to generate report")
	} else {
		sum.ReportPath = path
	}

	if o.opts.Runs != nil {
		if err := o.opts.Runs.FinishRun(sum.RunID, len(sum.Items), sum.Skipped, sum.ReportPath); err != nil {
			log.Error().Err(err).Msg("failed to record run")
		}
	}
	return sum, nil
}

func (o *Orchestrator) startRun() string {
	if o.opts.Runs != nil {
		run, err := o.opts.Runs.CreateRun(o.opts.AuctionURL)
		if err == nil {
			return run.ID
		}
		log.Error().Err(err).Msg("failed to record run start")
	}
	return uuid.NewString()
}

// collect extracts and enriches every item page.
func (o *Orchestrator) collect(ctx context.Context, urls []string) []item.Item {
	items := []item.Item{}
	for i, u := range urls {
		if ctx.Err() != nil {
			break
		}
		log.Info().Int("n", i+1).Int("of", len(urls)).Str("url", u).Msg("processing item")

		it, err := o.extractor.Extract(ctx, u)
		if err != nil {
			log.Warn().Err(err).Str("url", u).Msg("failed to extract item, skipping")
			metrics.ItemsFailed.Inc()
			continue
		}
		if o.opts.Enrich != nil {
			it = o.opts.Enrich(ctx, it)
		}
		items = append(items, it)
		metrics.ItemsProcessed.Inc()
		o.snapshot(files.ProgressName(i+1, len(urls)), items)

		if i < len(urls)-1 {
			o.pause(ctx)
		}
	}
	return items
}

// price fills the bid, market price and profit of every item in place.
func (o *Orchestrator) price(ctx context.Context, sum *Summary) {
	if o.opts.Pricer == nil {
		log.Warn().Msg("no price finder configured, skipping market research")
		return
	}
	log.Info().Msg("starting market price research")

	items := sum.Items
	for i := range items {
		if ctx.Err() != nil {
			return
		}
		it := items[i]
		log.Info().Int("n", i+1).Int("of", len(items)).Str("lot", it.LotNumber).Msg("researching price")

		bid := ParseBid(it.CurrentBid)
		it, market := o.opts.Pricer.Price(ctx, it)
		it.CurrentBidFloat = bid
		it.MarketPrice = market
		it.PotentialProfit = item.Profit(market, bid)
		items[i] = it
		log.Info().
			Str("lot", it.LotNumber).
			Float64("bid", bid).
			Float64("market", market).
			Float64("profit", it.PotentialProfit).
			Msg("priced item")

		if o.opts.Runs != nil {
			if err := o.opts.Runs.RecordLot(sum.RunID, it.LotNumber, it.ItemURL, market); err != nil {
				log.Error().Err(err).Msg("failed to record lot")
			}
		}
		o.snapshot(files.PriceProgressName(i+1, len(items)), items)

		if i < len(items)-1 {
			o.pause(ctx)
		}
	}
	log.Info().Msg("market price research completed")
}

func (o *Orchestrator) interrupted(sum *Summary) {
	sum.Interrupted = true
	log.Warn().Int("items", len(sum.Items)).Msg("run interrupted, saving progress")
	o.snapshot(files.InterruptedName(time.Now()), sum.Items)
}

func (o *Orchestrator) snapshot(name string, items []item.Item) {
	if o.opts.Snapshots == nil {
		return
	}
	path, err := o.opts.Snapshots.SaveItems(name, items)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("failed to save progress")
		return
	}
	log.Debug().Str("path", path).Msg("saved progress")
}

func (o *Orchestrator) pause(ctx context.Context) {
	d := o.opts.ItemDelay
	if d <= 0 {
		return
	}
	d = d/2 + rand.N(d)
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// ParseBid reads a currency formatted bid such as "$1,250.00". Anything
// unparseable is 0.
func ParseBid(s string) float64 {
	s = strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(s))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Warn().Str("bid", s).Msg("could not parse current bid")
		return 0
	}
	return v
}
