package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/raine/auction-bot/internal/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testItems() []item.Item {
	return []item.Item{
		{
			LotNumber:       "Lot #1",
			Description:     "Lot #1: Camera",
			ItemURL:         "https://www.bidrl.com/item/1",
			Images:          []string{"https://img/1.jpg", "https://img/2.jpg"},
			CurrentBidFloat: 50,
			MarketPrice:     150,
			UsedSearchQuery: "canon camera",
		},
		{LotNumber: "Lot #2", Description: "Lot #2: Mystery", CurrentBidFloat: 5, MarketPrice: 500, SkipForProcessing: true},
		{LotNumber: "Lot #3", Description: "Lot #3: Lamp", CurrentBidFloat: 40, MarketPrice: 30},
		{LotNumber: "Lot #4", Description: "Lot #4: Box of cables", CurrentBidFloat: 20},
		{LotNumber: "Lot #5", Description: "Lot #5: Kettle", CurrentBidFloat: 10, MarketPrice: 17},
		{LotNumber: "Lot #6", Description: "Lot #6: Rug", CurrentBidFloat: 15},
	}
}

func TestBuildRows(t *testing.T) {
	rows, skipped := BuildRows(testItems())
	assert.Equal(t, 1, skipped)
	require.Len(t, rows, 5)

	var lots []string
	for _, r := range rows {
		lots = append(lots, r.LotNumber)
	}
	assert.Equal(t, []string{"Lot #1", "Lot #5", "Lot #4", "Lot #6", "Lot #3"}, lots)

	top := rows[0]
	assert.Equal(t, 100.0, top.Profit)
	assert.Equal(t, 200.0, top.Margin)
	assert.Equal(t, "https://www.google.com/search?q=canon+camera", top.SearchLink)
	assert.Equal(t, "https://www.amazon.com/s?k=canon+camera", top.RetailLink)
	assert.Equal(t, "https://img/1.jpg, https://img/2.jpg", top.ImageURLs)

	assert.Equal(t, "Box of cables", rows[2].SearchQuery)
	assert.Zero(t, rows[2].Profit)
	assert.Zero(t, rows[2].Margin)

	assert.Equal(t, -10.0, rows[4].Profit)
	assert.Equal(t, -25.0, rows[4].Margin)
}

func TestBuildRows_Empty(t *testing.T) {
	rows, skipped := BuildRows(nil)
	assert.Empty(t, rows)
	assert.Zero(t, skipped)
}

func TestMarginBand(t *testing.T) {
	tests := []struct {
		margin float64
		want   Band
	}{
		{200, BandHigh},
		{100, BandHigh},
		{99.9, BandMedium},
		{50, BandMedium},
		{49, BandNone},
		{0, BandNone},
		{-0.1, BandLoss},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MarginBand(tt.margin), "margin %v", tt.margin)
	}
}

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "auction_opportunities.xlsx")
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	got, err := Generate(testItems(), Options{
		Path:       path,
		AuctionURL: "https://www.bidrl.com/auction/123/",
		RunID:      "run-1",
		Now:        now,
	})
	require.NoError(t, err)
	assert.Equal(t, path, got)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(OpportunitiesSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "Lot #1", rows[1][0])
	assert.Equal(t, "50", rows[1][3])
	assert.Equal(t, "150", rows[1][4])
	assert.Equal(t, "100", rows[1][5])
	assert.Equal(t, "200", rows[1][6])
	assert.Equal(t, "canon camera", rows[1][14])

	ok, link, err := f.GetCellHyperLink(OpportunitiesSheet, "J2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://www.bidrl.com/item/1", link)

	high, err := f.GetCellStyle(OpportunitiesSheet, "G2")
	require.NoError(t, err)
	loss, err := f.GetCellStyle(OpportunitiesSheet, "G6")
	require.NoError(t, err)
	assert.NotZero(t, high)
	assert.NotEqual(t, high, loss)

	meta, err := f.GetRows(MetadataSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	values := map[string]string{}
	for _, r := range meta[1:] {
		require.Len(t, r, 2)
		values[r[0]] = r[1]
	}
	assert.Equal(t, "2026-03-01 12:30:00", values["Generated On"])
	assert.Equal(t, "https://www.bidrl.com/auction/123/", values["Auction URL"])
	assert.Equal(t, "run-1", values["Run ID"])
	assert.Equal(t, "5", values["Total Items"])
	assert.Equal(t, "1", values["Skipped Items"])
	assert.Equal(t, "Lot #1: Camera", values["Top Profit Item"])
	assert.Equal(t, "100", values["Top Profit"])
}

func TestGenerate_NoRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	_, err := Generate([]item.Item{{Description: "skip me", SkipForProcessing: true}}, Options{Path: path})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue(MetadataSheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "None", value)
	skipped, err := f.GetCellValue(MetadataSheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, "1", skipped)
}
