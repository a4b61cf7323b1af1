package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/raine/auction-bot/config"
	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/pricing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	query := flag.String("q", "", "Item description to price")
	category := flag.String("category", "", "Product category used by the estimator (e.g. electronics)")
	retail := flag.Bool("retail", false, "Also search the retail site")
	estimate := flag.Bool("estimate", false, "Only print the keyword estimate")
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "Error: -q is required")
		os.Exit(2)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *estimate {
		fmt.Printf("%.2f\n", pricing.Estimate(*query, *category))
		return
	}

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := pricing.Options{Scraper: pricing.NewResultsScraper("")}
	if cfg.UseGoogleAPI {
		opts.SearchAPI = pricing.NewSearchAPI(cfg.GoogleAPIKey, cfg.GoogleCX, "")
	}
	if *retail {
		opts.Retail = pricing.NewRetailSearcher(cfg.RetailSearchURL, nil)
	}
	finder := pricing.NewFinder(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	it := item.Item{Description: *query}
	if *category != "" {
		it.ProductInfo = &item.ProductInfo{Category: *category, Confidence: 1}
	}
	it, price := finder.Price(ctx, it)

	fmt.Printf("Query: %s\n", it.UsedSearchQuery)
	fmt.Printf("Price: $%.2f\n", price)
}
