package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/llm"
	"github.com/raine/auction-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$1,234.56", 1234.56},
		{"USD 20", 20},
		{"  $ 7 ", 7},
		{"", 0},
		{"free", 0},
		{"1.2.3", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := CleanPrice(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CleanPrice(strconv.FormatFloat(got, 'f', -1, 64)))
		})
	}
}

func TestExtractPrices(t *testing.T) {
	assert.Equal(t, []float64{1299.99, 50, 50}, ExtractPrices("Now $1,299.99 or 50 USD"))
	assert.Equal(t, []float64{45.5}, ExtractPrices("Price: 45.50"))
	assert.Empty(t, ExtractPrices("no prices here"))
}

func TestTrimmedMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single", []float64{10}, 10},
		{"upper median of two", []float64{10, 20}, 20},
		{"three unsorted", []float64{30, 10, 20}, 20},
		{"five trimmed", []float64{10, 20, 30, 40, 50}, 30},
		{"four trimmed", []float64{1, 100, 2, 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimmedMedian(tt.in))
		})
	}

	in := []float64{3, 1, 2}
	TrimmedMedian(in)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestCleanQuery(t *testing.T) {
	assert.Equal(t, "Sony TV 55 w remote", CleanQuery(`Lot #12: Sony TV (55") OAD123 w/ remote!`))
	assert.Len(t, CleanQuery(strings.Repeat("a ", 80)), maxQueryLength)
	assert.Empty(t, CleanQuery("Lot #1: !!!"))
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		desc     string
		category string
		want     float64
	}{
		{"", "", 50},
		{"premium leather set of 4", "", 172.5},
		{"small plastic mini cup", "", 35},
		{`55" television`, "electronics", 215},
		{"65 inch tv", "", 215},
		{"gold diamond ring", "jewelry", 300},
		{"basic simple mini small plastic", "clothing", 15},
		{"Wireless speaker", "unknown", 65},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := Estimate(tt.desc, tt.category)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, got, Estimate(tt.desc, tt.category))
			assert.GreaterOrEqual(t, got, minEstimate)
		})
	}
}

func TestSearchAPI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("key"))
		assert.Equal(t, "cx1", q.Get("cx"))
		assert.Equal(t, "5", q.Get("num"))
		w.Header().Set("Content-Type", "application/json")

		if q.Get("q") == "nothing price" {
			w.Write([]byte(`{}`))
			return
		}
		assert.Equal(t, "sony tv price", q.Get("q"))
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"title": "Sony TV $100", "snippet": "Only $120.00 today"},
				{"title": "Sony TV - 110 USD", "snippet": "In stock"},
			},
		})
	}))
	defer ts.Close()

	api := NewSearchAPI("secret", "cx1", ts.URL)
	price, err := api.Search(context.Background(), "sony tv")
	require.NoError(t, err)
	assert.Equal(t, 110.0, price)

	price, err = api.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Zero(t, price)
}

func TestSearchAPI_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"quota"}`))
	}))
	defer ts.Close()

	_, err := NewSearchAPI("secret", "cx1", ts.URL).Search(context.Background(), "sony tv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.NotContains(t, err.Error(), "secret")
}

func TestResultsScraper(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "one two three four five price", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<p>Widget $15.00</p>
			<p>Pro model $25.00</p>
			<p>Bulk lot $20,000.00</p>
		</body></html>`)
	}))
	defer ts.Close()

	price, err := NewResultsScraper(ts.URL).Search(context.Background(), "one two three four five six")
	require.NoError(t, err)
	assert.Equal(t, 25.0, price)
}

func TestResultsScraper_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := NewResultsScraper(ts.URL).Search(context.Background(), "lamp")
	assert.Error(t, err)
}

func TestRetailSearcher(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Sony headphones", r.URL.Query().Get("k"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>`)
		for _, p := range []string{"19.99", "29.99", "39.99"} {
			fmt.Fprintf(w, `<span class="a-price"><span class="a-offscreen">$%s</span><span aria-hidden="true">$%s</span></span>`, p, p)
		}
		fmt.Fprint(w, `</body></html>`)
	}))
	defer ts.Close()

	var saved []string
	save := func(prefix, html string) (string, error) {
		saved = append(saved, prefix)
		return "", nil
	}

	price, err := NewRetailSearcher(ts.URL, save).Search(context.Background(), "Lot #1: Sony headphones!")
	require.NoError(t, err)
	assert.Equal(t, 29.99, price)
	assert.Equal(t, []string{"amazon_search_Sony headphones"}, saved)
}

func TestRetailSearcher_NoPrices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>No results</p></body></html>`)
	}))
	defer ts.Close()

	price, err := NewRetailSearcher(ts.URL, nil).Search(context.Background(), "lamp")
	require.NoError(t, err)
	assert.Zero(t, price)
}

type fakeSource struct {
	price   float64
	err     error
	panics  bool
	queries []string
}

func (f *fakeSource) Search(_ context.Context, query string) (float64, error) {
	f.queries = append(f.queries, query)
	if f.panics {
		panic("boom")
	}
	return f.price, f.err
}

type fakeGenerator struct {
	res *llm.Result
	err error
}

func (f *fakeGenerator) GenerateSearchQuery(context.Context, item.Item) (*llm.Result, error) {
	return f.res, f.err
}

func TestFinder(t *testing.T) {
	base := item.Item{
		LotNumber:        "Lot #1",
		Description:      "Lot #1: premium widget",
		FinalSearchQuery: "Acme widget",
		ProductInfo:      &item.ProductInfo{Category: "tools", Confidence: 0.8},
	}

	t.Run("search api", func(t *testing.T) {
		api, retail := &fakeSource{price: 42}, &fakeSource{price: 99}
		out, price := NewFinder(Options{SearchAPI: api, Retail: retail}).Price(context.Background(), base)
		assert.Equal(t, 42.0, price)
		assert.Equal(t, "Acme widget tools", out.UsedSearchQuery)
		assert.Equal(t, []string{"Acme widget tools"}, api.queries)
		assert.Empty(t, retail.queries)
		assert.Empty(t, base.UsedSearchQuery)
	})

	t.Run("api failure falls back to scrape", func(t *testing.T) {
		api := &fakeSource{err: errors.New("quota")}
		scraper := &fakeSource{price: 30}
		_, price := NewFinder(Options{SearchAPI: api, Scraper: scraper}).Price(context.Background(), base)
		assert.Equal(t, 30.0, price)
		assert.Len(t, scraper.queries, 1)
	})

	t.Run("api without prices goes to retail", func(t *testing.T) {
		api, scraper, retail := &fakeSource{}, &fakeSource{price: 1}, &fakeSource{price: 60}
		_, price := NewFinder(Options{SearchAPI: api, Scraper: scraper, Retail: retail}).Price(context.Background(), base)
		assert.Equal(t, 60.0, price)
		assert.Empty(t, scraper.queries)
		assert.Equal(t, []string{"Acme widget tools"}, retail.queries)
	})

	t.Run("no sources estimates", func(t *testing.T) {
		it := item.Item{Description: "Lot #1: premium widget"}
		out, price := NewFinder(Options{}).Price(context.Background(), it)
		assert.Equal(t, 100.0, price)
		assert.Equal(t, "Lot #1: premium widget", out.UsedSearchQuery)
	})

	t.Run("insufficient identification skips", func(t *testing.T) {
		gen := &fakeGenerator{res: &llm.Result{ProductType: "Unknown", Brand: "Unknown", Model: "Unknown", Insufficient: true}}
		api := &fakeSource{price: 42}
		out, price := NewFinder(Options{LLM: gen, SearchAPI: api}).Price(context.Background(), base)
		assert.Zero(t, price)
		assert.True(t, out.SkipForProcessing)
		require.NotNil(t, out.LLMProductInfo)
		assert.Equal(t, "Unknown", out.LLMProductInfo.Brand)
		assert.Empty(t, api.queries)
	})

	t.Run("llm queries", func(t *testing.T) {
		gen := &fakeGenerator{res: &llm.Result{
			ProductType: "Drill", Brand: "DeWalt", Model: "DCD771",
			GoogleQuery: "DeWalt DCD771 drill", AmazonQuery: "DeWalt DCD771",
		}}
		api, retail := &fakeSource{}, &fakeSource{price: 80}
		out, price := NewFinder(Options{LLM: gen, SearchAPI: api, Retail: retail}).Price(context.Background(), base)
		assert.Equal(t, 80.0, price)
		assert.Equal(t, "DeWalt DCD771 drill", out.UsedSearchQuery)
		assert.Equal(t, []string{"DeWalt DCD771 drill"}, api.queries)
		assert.Equal(t, []string{"DeWalt DCD771"}, retail.queries)
		assert.False(t, out.SkipForProcessing)
		assert.Equal(t, "DCD771", out.LLMProductInfo.Model)
	})

	t.Run("llm failure uses item queries", func(t *testing.T) {
		api := &fakeSource{price: 42}
		out, _ := NewFinder(Options{LLM: &fakeGenerator{err: errors.New("down")}, SearchAPI: api}).Price(context.Background(), base)
		assert.Equal(t, "Acme widget tools", out.UsedSearchQuery)
		assert.Nil(t, out.LLMProductInfo)
	})

	t.Run("no query", func(t *testing.T) {
		out, price := NewFinder(Options{SearchAPI: &fakeSource{price: 5}}).Price(context.Background(), item.Item{})
		assert.Zero(t, price)
		assert.Empty(t, out.UsedSearchQuery)
	})

	t.Run("panic returns fallback price", func(t *testing.T) {
		_, price := NewFinder(Options{SearchAPI: &fakeSource{panics: true}}).Price(context.Background(), base)
		assert.Equal(t, FallbackPrice, price)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, price := NewFinder(Options{SearchAPI: &fakeSource{price: 5}}).Price(ctx, base)
		assert.Zero(t, price)
	})
}

func TestFinder_Cache(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	api := &fakeSource{price: 42}
	finder := NewFinder(Options{SearchAPI: api, Cache: store})
	it := item.Item{Description: "Acme widget"}

	_, first := finder.Price(context.Background(), it)
	_, second := finder.Price(context.Background(), it)
	assert.Equal(t, 42.0, first)
	assert.Equal(t, 42.0, second)
	assert.Len(t, api.queries, 1)

	entry, err := store.GetPriceCache("Acme widget", 0)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, SourceAPI, entry.Source)
}
