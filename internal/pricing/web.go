package pricing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

const (
	CustomSearchURL  = "https://www.googleapis.com/customsearch/v1"
	SearchResultsURL = "https://www.google.com/search"

	searchTimeout = 30 * time.Second
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

func randomUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}

// Source finds a market price for a query. It returns 0 and a nil error
// when the source answered but had no usable prices.
type Source interface {
	Search(ctx context.Context, query string) (float64, error)
}

// SearchAPI queries the Google Custom Search JSON API and reads prices from
// result titles and snippets.
type SearchAPI struct {
	httpClient *resty.Client
	baseURL    string
	apiKey     string
	cx         string
}

func NewSearchAPI(apiKey, cx, baseURL string) *SearchAPI {
	if baseURL == "" {
		baseURL = CustomSearchURL
	}
	client := resty.New().SetTimeout(searchTimeout)
	return &SearchAPI{httpClient: client, baseURL: baseURL, apiKey: apiKey, cx: cx}
}

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (s *SearchAPI) Search(ctx context.Context, query string) (float64, error) {
	var result searchResponse
	res, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": s.apiKey,
			"cx":  s.cx,
			"q":   query + " price",
			"num": "5",
		}).
		SetResult(&result).
		Get(s.baseURL)
	if err := handleError(res, err); err != nil {
		return 0, err
	}

	if len(result.Items) == 0 {
		log.Warn().Str("query", query).Msg("no items in search results")
		return 0, nil
	}

	var prices []float64
	for _, it := range result.Items {
		log.Debug().Str("title", it.Title).Msg("search result")
		prices = append(prices, ExtractPrices(it.Title)...)
		prices = append(prices, ExtractPrices(it.Snippet)...)
	}
	if len(prices) == 0 {
		log.Warn().Str("query", query).Msg("no prices in search results")
		return 0, nil
	}
	return TrimmedMedian(prices), nil
}

// handleError turns a failed resty call into an error. The request URL is
// left out since it carries the API key.
func handleError(res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("search request failed: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("search request failed (status: %d): %s", res.StatusCode(), truncate(res.String(), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ResultsScraper fetches the public search results page and reads prices
// from its text.
type ResultsScraper struct {
	baseURL string
}

func NewResultsScraper(baseURL string) *ResultsScraper {
	if baseURL == "" {
		baseURL = SearchResultsURL
	}
	return &ResultsScraper{baseURL: baseURL}
}

// scrapeQuery keeps the first five words of q and asks for prices.
func scrapeQuery(q string) string {
	words := strings.Fields(q)
	return strings.Join(words[:min(5, len(words))], " ") + " price"
}

func (s *ResultsScraper) Search(ctx context.Context, query string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q := scrapeQuery(query)
	target := s.baseURL + "?" + url.Values{"q": {q}}.Encode()
	log.Info().Str("query", q).Msg("scraping search results page")

	var pageText string
	c := newCollector()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Referer", "https://www.google.com/")
	})
	c.OnHTML("body", func(e *colly.HTMLElement) {
		pageText = e.Text
	})
	if err := c.Visit(target); err != nil {
		return 0, fmt.Errorf("failed to fetch search results: %w", err)
	}

	prices := plausible(ExtractPrices(pageText))
	if len(prices) == 0 {
		log.Warn().Str("query", q).Msg("no prices on search results page")
		return 0, nil
	}
	return TrimmedMedian(prices), nil
}

func newCollector() *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(randomUserAgent()),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(searchTimeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("DNT", "1")
	})
	return c
}
