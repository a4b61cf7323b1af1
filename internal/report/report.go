// Package report writes the profit opportunities spreadsheet.
package report

import (
	"cmp"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/raine/auction-bot/internal/item"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

const (
	OpportunitiesSheet = "Opportunities"
	MetadataSheet      = "Metadata"

	searchLinkBase = "https://www.google.com/search?q="
	retailLinkBase = "https://www.amazon.com/s?k="
)

var headers = []string{
	"Lot Number", "Description", "Enhanced Description", "Current Bid",
	"Market Price", "Potential Profit", "Profit Margin %", "ROI",
	"Time Remaining", "Item URL", "Search Link", "Retail Link",
	"Image URLs", "OCR Text", "Search Query",
}

var columnWidths = []float64{12, 45, 45, 12, 12, 14, 14, 10, 18, 40, 20, 20, 40, 50, 40}

// Row is one line of the opportunities sheet.
type Row struct {
	LotNumber           string
	Description         string
	EnhancedDescription string
	CurrentBid          float64
	MarketPrice         float64
	Profit              float64
	Margin              float64
	TimeRemaining       string
	ItemURL             string
	SearchLink          string
	RetailLink          string
	ImageURLs           string
	OCRText             string
	SearchQuery         string
}

func (r Row) values() []any {
	return []any{
		r.LotNumber, r.Description, r.EnhancedDescription, r.CurrentBid,
		r.MarketPrice, r.Profit, r.Margin, r.Margin,
		r.TimeRemaining, r.ItemURL, r.SearchLink, r.RetailLink,
		r.ImageURLs, r.OCRText, r.SearchQuery,
	}
}

// BuildRows computes profit and margin for every item not marked to skip
// and sorts the rows by profit, highest first. Ties keep input order.
func BuildRows(items []item.Item) (rows []Row, skipped int) {
	for _, it := range items {
		if it.SkipForProcessing {
			skipped++
			continue
		}
		profit := item.Profit(it.MarketPrice, it.CurrentBidFloat)
		query := searchQuery(it)
		row := Row{
			LotNumber:           it.LotNumber,
			Description:         it.Description,
			EnhancedDescription: it.EnhancedDescription,
			CurrentBid:          it.CurrentBidFloat,
			MarketPrice:         it.MarketPrice,
			Profit:              profit,
			Margin:              item.ProfitMargin(profit, it.CurrentBidFloat),
			TimeRemaining:       it.TimeRemaining,
			ItemURL:             it.ItemURL,
			ImageURLs:           strings.Join(it.Images, ", "),
			OCRText:             it.OCRText,
			SearchQuery:         query,
		}
		if query != "" {
			row.SearchLink = searchLinkBase + url.QueryEscape(query)
			row.RetailLink = retailLinkBase + url.QueryEscape(query)
		}
		rows = append(rows, row)
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		return cmp.Compare(b.Profit, a.Profit)
	})
	return rows, skipped
}

func searchQuery(it item.Item) string {
	switch {
	case it.UsedSearchQuery != "":
		return it.UsedSearchQuery
	case it.FinalSearchQuery != "":
		return it.FinalSearchQuery
	}
	return it.CleanDescription()
}

// Band classifies a profit margin for row coloring: BandHigh is 100% and
// above, BandMedium 50% up to 100%, BandLoss anything below 0%.
type Band int

const (
	BandNone Band = iota
	BandHigh
	BandMedium
	BandLoss
)

// MarginBand returns the color band for a margin given in percent.
func MarginBand(margin float64) Band {
	switch {
	case margin >= 100:
		return BandHigh
	case margin >= 50:
		return BandMedium
	case margin < 0:
		return BandLoss
	}
	return BandNone
}

var bandFills = map[Band]string{
	BandHigh:   "C6EFCE",
	BandMedium: "BDD7EE",
	BandLoss:   "FFC7CE",
}

const (
	headerFill    = "305496"
	alternateFill = "F2F2F2"
)

// Options describe the report being generated.
type Options struct {
	Path       string
	AuctionURL string
	RunID      string
	// Now stamps the metadata sheet. Zero means time.Now.
	Now time.Time
}

// Generate writes the spreadsheet for items to opts.Path and returns the
// path written.
func Generate(items []item.Item, opts Options) (string, error) {
	rows, skipped := BuildRows(items)
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", OpportunitiesSheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeOpportunities(f, rows); err != nil {
		return "", err
	}
	if err := writeMetadata(f, rows, skipped, opts); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := f.SaveAs(opts.Path); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	log.Info().
		Str("path", opts.Path).
		Int("rows", len(rows)).
		Int("skipped", skipped).
		Msg("report saved")
	return opts.Path, nil
}

func writeOpportunities(f *excelize.File, rows []Row) error {
	sheet := OpportunitiesSheet
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := r.values()
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	st := newStyler(f, sheet)
	st.header(len(headers))
	for i, r := range rows {
		st.row(i+2, r)
	}
	st.layout()
	return nil
}

func writeMetadata(f *excelize.File, rows []Row, skipped int, opts Options) error {
	if _, err := f.NewSheet(MetadataSheet); err != nil {
		return fmt.Errorf("failed to create metadata sheet: %w", err)
	}

	topItem, topProfit := "None", 0.0
	if len(rows) > 0 {
		topItem, topProfit = rows[0].Description, rows[0].Profit
	}
	meta := [][]any{
		{"Property", "Value"},
		{"Generated On", opts.Now.Format("2006-01-02 15:04:05")},
		{"Auction URL", opts.AuctionURL},
		{"Run ID", opts.RunID},
		{"Total Items", len(rows)},
		{"Skipped Items", skipped},
		{"Top Profit Item", topItem},
		{"Top Profit", topProfit},
	}
	for i, values := range meta {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(MetadataSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}

	st := newStyler(f, MetadataSheet)
	st.header(2)
	if err := f.SetColWidth(MetadataSheet, "A", "A", 18); err != nil {
		log.Warn().Err(err).Msg("failed to set metadata column width")
	}
	if err := f.SetColWidth(MetadataSheet, "B", "B", 60); err != nil {
		log.Warn().Err(err).Msg("failed to set metadata column width")
	}
	return nil
}
