package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/report"
	"github.com/raine/auction-bot/internal/scraper"
	"github.com/raine/auction-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDiscoverer struct {
	urls []string
	err  error
}

func (f *fakeDiscoverer) Discover(context.Context, string) ([]string, error) {
	return f.urls, f.err
}

type fakeExtractor struct {
	calls  []string
	fail   map[string]bool
	onCall func(n int)
}

func (f *fakeExtractor) Extract(_ context.Context, u string) (item.Item, error) {
	f.calls = append(f.calls, u)
	if f.onCall != nil {
		f.onCall(len(f.calls))
	}
	if f.fail[u] {
		return item.Item{}, errors.New("page timeout")
	}
	n := u[strings.LastIndex(u, "/")+1:]
	return item.Item{
		LotNumber:   "Lot #" + n,
		ItemURL:     u,
		Description: "Lot #" + n + ": thing " + n,
		CurrentBid:  "$50.00",
	}, nil
}

type fakePricer struct {
	prices map[string]float64
	skip   map[string]bool
}

func (f *fakePricer) Price(_ context.Context, in item.Item) (item.Item, float64) {
	it := in.Clone()
	if f.skip[it.LotNumber] {
		it.SkipForProcessing = true
		return it, 0
	}
	it.UsedSearchQuery = it.CleanDescription()
	return it, f.prices[it.LotNumber]
}

type memSnapshots struct {
	names []string
	last  []item.Item
}

func (m *memSnapshots) SaveItems(name string, items []item.Item) (string, error) {
	m.names = append(m.names, name)
	m.last = append([]item.Item(nil), items...)
	return "/tmp/" + name, nil
}

type fakeReport struct {
	calls int
	items []item.Item
	opts  report.Options
}

func (f *fakeReport) generate(items []item.Item, opts report.Options) (string, error) {
	f.calls++
	f.items = items
	f.opts = opts
	return opts.Path, nil
}

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "https://www.bidrl.com/item/" + string(rune('1'+i))
	}
	return out
}

func TestRun(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	extractor := &fakeExtractor{fail: map[string]bool{"https://www.bidrl.com/item/2": true}}
	pricer := &fakePricer{
		prices: map[string]float64{"Lot #1": 150},
		skip:   map[string]bool{"Lot #3": true},
	}
	snaps := &memSnapshots{}
	rep := &fakeReport{}
	enrich := func(_ context.Context, in item.Item) item.Item {
		it := in.Clone()
		it.EnhancedDescription = it.CleanDescription()
		return it
	}

	o := New(&fakeDiscoverer{urls: urls(3)}, extractor, Options{
		AuctionURL: "https://www.bidrl.com/auction/9/",
		Enrich:     enrich,
		Pricer:     pricer,
		Snapshots:  snaps,
		Runs:       store,
		ReportPath: "out.xlsx",
		Report:     rep.generate,
	})
	sum, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, sum.Interrupted)
	require.Len(t, sum.Items, 2)
	first := sum.Items[0]
	assert.Equal(t, "thing 1", first.EnhancedDescription)
	assert.Equal(t, 50.0, first.CurrentBidFloat)
	assert.Equal(t, 150.0, first.MarketPrice)
	assert.Equal(t, 100.0, first.PotentialProfit)
	assert.Equal(t, "thing 1", first.UsedSearchQuery)
	assert.True(t, sum.Items[1].SkipForProcessing)
	assert.Zero(t, sum.Items[1].PotentialProfit)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, "out.xlsx", sum.ReportPath)

	assert.Equal(t, []string{
		"progress_1_of_3.json",
		"progress_3_of_3.json",
		"price_progress_1_of_2.json",
		"price_progress_2_of_2.json",
	}, snaps.names)

	assert.Equal(t, 1, rep.calls)
	assert.Equal(t, sum.RunID, rep.opts.RunID)
	assert.Equal(t, "https://www.bidrl.com/auction/9/", rep.opts.AuctionURL)

	runs, err := store.ListRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sum.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].TotalItems)
	assert.Equal(t, 1, runs[0].SkippedItems)
	lots, err := store.CountLots(sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, lots)
}

func TestRun_MaxItems(t *testing.T) {
	extractor := &fakeExtractor{}
	o := New(&fakeDiscoverer{urls: urls(5)}, extractor, Options{MaxItems: 2, Report: (&fakeReport{}).generate})
	sum, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, extractor.calls, 2)
	assert.Len(t, sum.Items, 2)
	assert.NotEmpty(t, sum.RunID)
}

func TestRun_DiscoveryFailure(t *testing.T) {
	rep := &fakeReport{}
	o := New(&fakeDiscoverer{err: scraper.ErrNoItemSelectors}, &fakeExtractor{}, Options{Report: rep.generate})
	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, scraper.ErrNoItemSelectors)
	assert.Zero(t, rep.calls)
}

func TestRun_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	extractor := &fakeExtractor{onCall: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	snaps := &memSnapshots{}
	rep := &fakeReport{}
	o := New(&fakeDiscoverer{urls: urls(4)}, extractor, Options{
		Pricer:    &fakePricer{},
		Snapshots: snaps,
		Report:    rep.generate,
	})

	sum, err := o.Run(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Interrupted)
	assert.Len(t, sum.Items, 2)
	assert.Len(t, extractor.calls, 2)
	assert.Zero(t, rep.calls)

	require.NotEmpty(t, snaps.names)
	last := snaps.names[len(snaps.names)-1]
	assert.True(t, strings.HasPrefix(last, "interrupted_progress_"), last)
	assert.Len(t, snaps.last, 2)
}

func TestParseBid(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$50.00", 50},
		{"$1,250.50", 1250.5},
		{" 7 ", 7},
		{"", 0},
		{"N/A", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseBid(tt.in), tt.in)
	}
}
