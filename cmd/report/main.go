package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/raine/auction-bot/config"
	"github.com/raine/auction-bot/internal/files"
	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/pipeline"
	"github.com/raine/auction-bot/internal/report"
)

func main() {
	snapshot := flag.String("snapshot", "", "Progress snapshot to build the report from (file name or path)")
	out := flag.String("out", "", "Report path (default: <data>/output/auction_opportunities.xlsx)")
	auctionURL := flag.String("auction", "", "Auction URL recorded in the metadata sheet")
	flag.Parse()

	if *snapshot == "" {
		fmt.Fprintln(os.Stderr, "Error: -snapshot is required")
		os.Exit(2)
	}

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	layout := files.NewLayout(cfg.DataDir)

	items, err := layout.LoadItems(*snapshot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Snapshots taken before pricing finished have no numeric bid yet.
	for i, it := range items {
		if it.CurrentBidFloat == 0 {
			it.CurrentBidFloat = pipeline.ParseBid(it.CurrentBid)
		}
		it.PotentialProfit = item.Profit(it.MarketPrice, it.CurrentBidFloat)
		items[i] = it
	}

	path := *out
	if path == "" {
		path = layout.ReportPath()
	}
	if *auctionURL == "" {
		*auctionURL = cfg.AuctionURL
	}

	written, err := report.Generate(items, report.Options{Path: path, AuctionURL: *auctionURL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s (%d items)\n", written, len(items))
}
